// Package eia is a client for the EIA open data API (v2).
package eia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

// ErrUnexpectedResponse means the body decoded but had no response.data.
var ErrUnexpectedResponse = errors.New("unexpected EIA API response format")

// pageLength is the API's maximum row count per request.
const pageLength = 5000

// Client queries EIA API v2 datasets. Requests are paced by a token bucket.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an EIA API client from configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: cfg.EIAAPIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL: cfg.EIAAPIURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.EIARateLimit), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// Generation returns annual net generation rows for one fuel type across
// all years and locations, summed over sectors (sector 99). Each row has
// period, location and generation.
func (c *Client) Generation(ctx context.Context, fuelID string) ([]domain.RawRow, error) {
	params := url.Values{
		"frequency":            {"annual"},
		"data[0]":              {"generation"},
		"facets[fueltypeid][]": {fuelID},
		"facets[sectorid][]":   {"99"},
		"sort[0][column]":      {"period"},
		"sort[0][direction]":   {"asc"},
		"length":               {strconv.Itoa(pageLength)},
	}
	return c.query(ctx, "electricity/electric-power-operational-data/data/", params, "generation")
}

// RetailSales returns one year of state retail price, revenue and sales rows
// for a sector. Each row has stateid, price, revenue and sales.
func (c *Client) RetailSales(ctx context.Context, sectorID string, year int) ([]domain.RawRow, error) {
	y := strconv.Itoa(year)
	params := url.Values{
		"frequency":          {"annual"},
		"data[0]":            {"price"},
		"data[1]":            {"revenue"},
		"data[2]":            {"sales"},
		"facets[sectorid][]": {sectorID},
		"start":              {y},
		"end":                {y},
		"sort[0][column]":    {"stateid"},
		"sort[0][direction]": {"asc"},
		"length":             {strconv.Itoa(pageLength)},
	}
	return c.query(ctx, "electricity/retail-sales/data/", params, "retail_sales")
}

func (c *Client) query(ctx context.Context, route string, params url.Values, source string) ([]domain.RawRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params.Set("api_key", c.apiKey)
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, route, params.Encode())

	start := time.Now()
	rows, err := c.doRequest(ctx, fullURL)
	c.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("eia %s: %w", source, err)
	}
	c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	c.logger.Debug("eia query complete", "source", source, "rows", len(rows))
	return rows, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error: status %d: %s", resp.StatusCode, body)
	}

	var apiResp response
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Response == nil || apiResp.Response.Data == nil {
		return nil, ErrUnexpectedResponse
	}
	return apiResp.Response.Data, nil
}

// EIA API response types.

type response struct {
	Response *responseBody `json:"response"`
}

type responseBody struct {
	Total json.RawMessage `json:"total"`
	Data  []domain.RawRow `json:"data"`
}
