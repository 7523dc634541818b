// Package download fetches remote files (ZIP archives, workbooks, HTML
// index pages) and caches them on disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

// ErrNotFound is returned for HTTP 404 responses.
var ErrNotFound = errors.New("remote file not found")

// Fetcher retrieves the body at a URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client is a plain HTTP fetcher with one fixed timeout per request and no
// retries.
type Client struct {
	httpClient *http.Client
	source     string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a fetcher. source labels its metrics.
func NewClient(source string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		source:  source,
		metrics: metrics,
		logger:  logger,
	}
}

// Get downloads url and returns its body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, url)
	c.metrics.FetchDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNotFound):
		c.metrics.FetchRequests.WithLabelValues(c.source, "not_found").Inc()
	case err != nil:
		c.metrics.FetchRequests.WithLabelValues(c.source, "error").Inc()
	default:
		c.metrics.FetchRequests.WithLabelValues(c.source, "success").Inc()
		c.logger.Debug("downloaded", "url", url, "bytes", len(body))
	}
	return body, err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("download %s: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
