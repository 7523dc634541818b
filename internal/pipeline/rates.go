package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/normalize"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// FetchRates downloads retail prices for every year and sector. Years
// without any valid record are not written.
func (r *Runner) FetchRates(ctx context.Context) error {
	n := normalize.Rates(r.ref, "stateid")
	m := schema.Identity("stateid", domain.MetricPrice, domain.MetricRevenue, domain.MetricSales)

	for _, year := range r.ref.Years.Rates.Years() {
		var out []rawdata.RateRow
		for _, sector := range r.ref.Sectors {
			rows, err := r.src.EIA.RetailSales(ctx, sector.ID, year)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.skip(rawdata.Rates, year, fmt.Errorf("sector %s: %w", sector.ID, err))
				continue
			}

			res := n.All(rows, m, year)
			r.count(rawdata.Rates, len(rows), res)
			for _, rec := range res.Records {
				out = append(out, rawdata.RateRow{
					State:      rec.Key.StateCode,
					Sector:     sector.ID,
					SectorName: sector.Name,
					Price:      rec.Metrics[domain.MetricPrice],
					Revenue:    rec.Metrics.Get(domain.MetricRevenue),
					Sales:      rec.Metrics.Get(domain.MetricSales),
					Year:       year,
				})
			}
		}

		if len(out) == 0 {
			r.skip(rawdata.Rates, year, ErrNoData)
			continue
		}
		if err := r.store.Write(rawdata.Rates, year, out); err != nil {
			return err
		}
		r.logger.Info("rates written", "year", year, "records", len(out))
	}
	return nil
}
