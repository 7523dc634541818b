package eia

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

const (
	testAPIKey        = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:     testAPIKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Generation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/electricity/electric-power-operational-data/data/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, testAPIKey, q.Get("api_key"))
		assert.Equal(t, "WND", q.Get("facets[fueltypeid][]"))
		assert.Equal(t, "99", q.Get("facets[sectorid][]"))
		assert.Equal(t, "annual", q.Get("frequency"))
		assert.Equal(t, "5000", q.Get("length"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"response":{"total":"2","data":[
			{"period":"2020","location":"CA","generation":"13708.5"},
			{"period":"2020","location":"US","generation":337510}
		]}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rows, err := c.Generation(context.Background(), "WND")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "CA", rows[0]["location"])
	assert.Equal(t, "13708.5", rows[0]["generation"])
	assert.Equal(t, json.Number("337510"), rows[1]["generation"])
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("generation", "success")))
}

func TestClient_RetailSales(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/electricity/retail-sales/data/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "RES", q.Get("facets[sectorid][]"))
		assert.Equal(t, "2021", q.Get("start"))
		assert.Equal(t, "2021", q.Get("end"))
		assert.Equal(t, []string{"price"}, q["data[0]"])
		assert.Equal(t, []string{"sales"}, q["data[2]"])

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"response":{"data":[{"stateid":"NY","price":"22.1","revenue":"1","sales":"2"}]}}`)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).RetailSales(context.Background(), "RES", 2021)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NY", rows[0]["stateid"])
}

func TestClient_Errors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "invalid api_key", http.StatusForbidden)
		}))
		defer srv.Close()

		c := testClient(srv.URL)
		_, err := c.Generation(context.Background(), "ALL")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 403")
		assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("generation", "error")))
	})

	t.Run("missing data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"error":"no such route"}`)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL).RetailSales(context.Background(), "ALL", 2020)
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{not json`)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL).RetailSales(context.Background(), "ALL", 2020)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode response")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := testClient("http://127.0.0.1:0")
		c.limiter = rate.NewLimiter(1, 0)
		_, err := c.Generation(ctx, "ALL")
		require.Error(t, err)
	})
}
