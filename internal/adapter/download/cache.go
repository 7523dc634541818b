package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

// CachedFetcher wraps a Fetcher with an on-disk cache keyed by file name.
type CachedFetcher struct {
	inner   Fetcher
	dir     string
	source  string
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator that stores bodies under dir.
func NewCachedFetcher(inner Fetcher, dir, source string, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{inner: inner, dir: dir, source: source, metrics: metrics}
}

// Path returns where name is cached.
func (c *CachedFetcher) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Fetch returns the cached copy of name when present. Otherwise it tries
// urls in order and caches the first successful body. The error from the
// last attempt is returned when every URL fails.
func (c *CachedFetcher) Fetch(ctx context.Context, name string, urls ...string) ([]byte, error) {
	path := c.Path(name)
	if body, err := os.ReadFile(path); err == nil {
		c.metrics.FetchRequests.WithLabelValues(c.source, "cache_hit").Inc()
		return body, nil
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", name, ErrNotFound)
	}

	var lastErr error
	for _, u := range urls {
		body, err := c.inner.Get(ctx, u)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		// Only successful downloads are cached so a 404 can be retried on the
		// next run.
		if err := c.store(path, body); err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, lastErr
}

// Evict removes a cached file, for example after it turned out to be
// unreadable.
func (c *CachedFetcher) Evict(name string) error {
	err := os.Remove(c.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("evict %s: %w", name, err)
	}
	return nil
}

func (c *CachedFetcher) store(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", path, err)
	}
	return nil
}
