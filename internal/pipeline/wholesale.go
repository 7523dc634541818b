package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/download"
	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/grid-reliability-etl/internal/aggregate"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

const (
	wholesaleBaseURL = "https://www.eia.gov/electricity/wholesalemarkets/data"
	wholesalePageURL = "https://www.eia.gov/electricity/wholesalemarkets/data.php"
)

// WholesaleURLs lists the known workbook locations for year.
func WholesaleURLs(year int) []string {
	return []string{
		fmt.Sprintf("%s/wholesale_prices_%d.xlsx", wholesaleBaseURL, year),
		fmt.Sprintf("%s/wholesale_electricity_prices_%d.xlsx", wholesaleBaseURL, year),
	}
}

// Wholesale publishes wholesale-prices.json from the yearly hub workbooks, or
// sample data when none can be read.
func (r *Runner) Wholesale(ctx context.Context, sample bool) error {
	if sample {
		return r.publishSampleWholesale(ctx)
	}

	var points []output.WholesalePoint
	var discovered []string
	discoveryDone := false

	for _, year := range r.ref.Years.Wholesale.Years() {
		name := fmt.Sprintf("wholesale_prices_%d.xlsx", year)
		body, err := r.src.Wholesale.Fetch(ctx, name, WholesaleURLs(year)...)
		if err != nil && ctx.Err() == nil && r.src.Pages != nil {
			if !discoveryDone {
				discovered = r.discoverWorkbooks(ctx)
				discoveryDone = true
			}
			if urls := linksForYear(discovered, year); len(urls) > 0 {
				body, err = r.src.Wholesale.Fetch(ctx, name, urls...)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.skip(rawdata.Wholesale, year, err)
			continue
		}

		rows, err := spreadsheet.ReadXLSX(bytes.NewReader(body))
		if err != nil {
			if evictErr := r.src.Wholesale.Evict(name); evictErr != nil {
				r.logger.Warn("could not evict bad workbook", "file", name, "error", evictErr)
			}
			r.skip(rawdata.Wholesale, year, err)
			continue
		}

		yearPoints := r.hubPrices(rows, year)
		if len(yearPoints) == 0 {
			r.skip(rawdata.Wholesale, year, fmt.Errorf("%s: no hub columns: %w", name, ErrNoData))
			continue
		}
		r.logger.Info("hub prices parsed", "year", year, "hubs", len(yearPoints))
		points = append(points, yearPoints...)
	}

	if len(points) == 0 {
		r.logger.Warn("no wholesale data found, publishing sample data")
		return r.publishSampleWholesale(ctx)
	}
	file := output.NewWholesaleFile(points, r.ref.HubNames(), r.ref.StateToHub(), output.SourceWholesale)
	return r.publish(ctx, output.WholesaleFileName, file)
}

func (r *Runner) publishSampleWholesale(ctx context.Context) error {
	file := output.NewWholesaleFile(sampleWholesalePoints(r.ref), r.ref.HubNames(), r.ref.StateToHub(), output.SourceSample)
	return r.publish(ctx, output.WholesaleFileName, file)
}

// discoverWorkbooks lists the workbook links on the wholesale data page.
func (r *Runner) discoverWorkbooks(ctx context.Context) []string {
	links, err := download.Links(ctx, r.src.Pages, wholesalePageURL, func(href string) bool {
		return strings.HasSuffix(strings.ToLower(href), ".xlsx")
	})
	if err != nil {
		r.logger.Warn("wholesale link discovery failed", "error", err)
		return nil
	}
	r.logger.Info("wholesale links discovered", "links", len(links))
	return links
}

func linksForYear(links []string, year int) []string {
	y := strconv.Itoa(year)
	var out []string
	for _, l := range links {
		if strings.Contains(l, y) {
			out = append(out, l)
		}
	}
	return out
}

// hubPrices summarizes each hub column of a price workbook. The header is
// the first row naming any hub; non-numeric and non-positive prices are
// ignored.
func (r *Runner) hubPrices(rows [][]string, year int) []output.WholesalePoint {
	names := r.ref.HubNames()
	hdr, ok := schema.FindHeaderRow(rows, schema.MentionsAny(names))
	if !ok {
		return nil
	}
	table := schema.NewTable(rows, hdr)

	var records []domain.CanonicalRecord
	read := 0
	for _, hub := range r.ref.Hubs {
		idx, ok := schema.Resolve(table.Header, []string{hub.Name})
		if !ok {
			continue
		}
		for _, c := range table.Column(idx) {
			read++
			v, ok := domain.ParseNumber(c)
			if !ok || v <= 0 {
				continue
			}
			records = append(records, domain.CanonicalRecord{
				Key:     domain.EntityKey{Year: year},
				Metrics: domain.Metrics{domain.MetricPrice: v},
				Labels:  map[string]string{"hub": hub.Name},
			})
		}
	}
	r.metrics.RowsRead.WithLabelValues(rawdata.Wholesale).Add(float64(read))
	r.metrics.RecordsEmitted.WithLabelValues(rawdata.Wholesale).Add(float64(len(records)))

	groups := aggregate.Aggregate(records, func(rec domain.CanonicalRecord) string { return rec.Label("hub") }, []aggregate.Reducer{
		{Metric: domain.MetricPrice, Output: "avg", Op: aggregate.Mean, Places: 2},
		{Metric: domain.MetricPrice, Output: "min", Op: aggregate.Min, Places: 2},
		{Metric: domain.MetricPrice, Output: "max", Op: aggregate.Max, Places: 2},
		{Metric: domain.MetricPrice, Output: "volatility", Op: aggregate.StdDev, Places: 2},
		{Metric: domain.MetricPrice, Output: "count", Op: aggregate.Count, Places: 0},
	})

	points := make([]output.WholesalePoint, 0, len(groups))
	for _, g := range groups {
		hub, _ := r.ref.Hub(g.Key)
		points = append(points, output.WholesalePoint{
			Hub:          hub.Name,
			Year:         year,
			AvgPrice:     g.Metrics["avg"],
			MinPrice:     g.Metrics["min"],
			MaxPrice:     g.Metrics["max"],
			Volatility:   g.Metrics["volatility"],
			DataPoints:   int(g.Metrics["count"]),
			MappedStates: hub.States,
			Region:       hub.Region,
		})
	}
	return points
}
