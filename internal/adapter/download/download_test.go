package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

func testClient() *Client {
	return NewClient("test", 5*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/f8612020.zip":
			_, _ = w.Write([]byte("PK-bytes"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient()

	body, err := c.Get(context.Background(), srv.URL+"/f8612020.zip")
	require.NoError(t, err)
	assert.Equal(t, "PK-bytes", string(body))

	_, err = c.Get(context.Background(), srv.URL+"/f8612031.zip")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(context.Background(), srv.URL+"/broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status 500")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("test", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("test", "error")))
}

// --- mock for cache tests ---

type countingFetcher struct {
	calls []string
	body  map[string]string
}

func (f *countingFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if b, ok := f.body[url]; ok {
		return []byte(b), nil
	}
	return nil, ErrNotFound
}

func TestCachedFetcher_FallsBackAndCaches(t *testing.T) {
	inner := &countingFetcher{body: map[string]string{"https://backup/v1.zip": "archive"}}
	dir := t.TempDir()
	cached := NewCachedFetcher(inner, dir, "outages", observability.NewMetricsForTesting())

	body, err := cached.Fetch(context.Background(), "outage_dataset.zip", "https://primary/v2.zip", "https://backup/v1.zip")
	require.NoError(t, err)
	assert.Equal(t, "archive", string(body))
	assert.Equal(t, []string{"https://primary/v2.zip", "https://backup/v1.zip"}, inner.calls)

	onDisk, err := os.ReadFile(filepath.Join(dir, "outage_dataset.zip"))
	require.NoError(t, err)
	assert.Equal(t, "archive", string(onDisk))

	body, err = cached.Fetch(context.Background(), "outage_dataset.zip", "https://primary/v2.zip")
	require.NoError(t, err)
	assert.Equal(t, "archive", string(body))
	assert.Len(t, inner.calls, 2, "second fetch should be served from disk")
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.FetchRequests.WithLabelValues("outages", "cache_hit")))
}

func TestCachedFetcher_NotFoundIsNotCached(t *testing.T) {
	inner := &countingFetcher{}
	dir := t.TempDir()
	cached := NewCachedFetcher(inner, dir, "form861", observability.NewMetricsForTesting())

	_, err := cached.Fetch(context.Background(), "f8612030.zip", "https://eia/f8612030.zip")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, "f8612030.zip"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = cached.Fetch(context.Background(), "f8612030.zip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedFetcher_Evict(t *testing.T) {
	dir := t.TempDir()
	cached := NewCachedFetcher(&countingFetcher{}, dir, "wholesale", observability.NewMetricsForTesting())
	require.NoError(t, os.WriteFile(cached.Path("w.xlsx"), []byte("junk"), 0o644))

	require.NoError(t, cached.Evict("w.xlsx"))
	require.NoError(t, cached.Evict("w.xlsx"))
	_, err := os.Stat(cached.Path("w.xlsx"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLinks(t *testing.T) {
	page := `<html><body>
		<a href="/electricity/wholesalemarkets/xls/ice_electric-2019final.xlsx">2019</a>
		<a href="https://www.eia.gov/electricity/wholesalemarkets/xls/ice_electric-2020final.xlsx">2020</a>
		<a href="/electricity/wholesalemarkets/xls/ice_electric-2019final.xlsx">dup</a>
		<a href="about.html">about</a>
		<a>no href</a>
	</body></html>`
	inner := &countingFetcher{body: map[string]string{"https://www.eia.gov/electricity/wholesalemarkets/data.php": page}}

	links, err := Links(context.Background(), inner, "https://www.eia.gov/electricity/wholesalemarkets/data.php", func(href string) bool {
		return strings.HasSuffix(href, ".xlsx")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.eia.gov/electricity/wholesalemarkets/xls/ice_electric-2019final.xlsx",
		"https://www.eia.gov/electricity/wholesalemarkets/xls/ice_electric-2020final.xlsx",
	}, links)

	_, err = Links(context.Background(), inner, "https://www.eia.gov/missing.php", func(string) bool { return true })
	assert.ErrorIs(t, err, ErrNotFound)
}
