package pipeline

import (
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/aggregate"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/normalize"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// Derived generation metrics.
const (
	fieldTotal          = "total"
	fieldWind           = "wind"
	fieldSolar          = "solar"
	fieldVREPenetration = "vrePenetration"
	fieldWindPen        = "windPenetration"
	fieldSolarPen       = "solarPenetration"
)

// loadGeneration returns one record per state with every fuel field (0 when
// the fuel has no row) and the wind, solar and VRE penetration.
func (r *Runner) loadGeneration(year int) ([]domain.CanonicalRecord, error) {
	byFuel, err := r.store.ReadGeneration(year)
	if err != nil {
		return nil, err
	}

	n := normalize.Generation(r.ref)
	m := schema.Identity("location", "generation")
	var perFuel []domain.CanonicalRecord
	reducers := make([]aggregate.Reducer, 0, len(r.ref.Fuels))
	for _, fuel := range r.ref.Fuels {
		rows := byFuel[fuel.ID]
		res := n.All(rows, m, year)
		r.count(rawdata.Generation, len(rows), res)
		for _, rec := range res.Records {
			perFuel = append(perFuel, domain.CanonicalRecord{
				Key:     rec.Key,
				Metrics: domain.Metrics{fuel.Field: rec.Metrics["generation"]},
			})
		}
		reducers = append(reducers, aggregate.Reducer{Metric: fuel.Field, Op: aggregate.Sum, Places: domain.NoRounding})
	}

	groups := aggregate.Aggregate(perFuel, aggregate.ByStateYear, reducers)
	out := make([]domain.CanonicalRecord, 0, len(groups))
	for _, g := range groups {
		for _, fuel := range r.ref.Fuels {
			if _, ok := g.Metrics[fuel.Field]; !ok {
				g.Metrics[fuel.Field] = 0
			}
		}
		total := g.Metrics[fieldTotal]
		wind, solar := g.Metrics[fieldWind], g.Metrics[fieldSolar]
		g.Metrics[fieldWindPen] = domain.Penetration(wind, total)
		g.Metrics[fieldSolarPen] = domain.Penetration(solar, total)
		g.Metrics[fieldVREPenetration] = domain.Penetration(wind+solar, total)
		out = append(out, domain.CanonicalRecord{Key: g.Key, Metrics: g.Metrics})
	}
	return out, nil
}

// loadReliability re-validates a state reliability file.
func (r *Runner) loadReliability(year int) ([]domain.CanonicalRecord, error) {
	rows, err := r.store.ReadRows(rawdata.Reliability, year)
	if err != nil {
		return nil, err
	}
	res := normalize.Reliability(r.ref).All(rows, schema.Identity(schema.FieldState, domain.MetricSAIDI, domain.MetricSAIFI), year)
	r.count(rawdata.Reliability, len(rows), res)
	if dropped := res.Dropped(); dropped > 0 {
		r.logger.Info("filtered invalid reliability records", "year", year, "dropped", dropped)
	}
	groups := aggregate.Aggregate(res.Records, aggregate.ByStateYear, []aggregate.Reducer{
		{Metric: domain.MetricSAIDI, Op: aggregate.Mean, Places: 1},
		{Metric: domain.MetricSAIFI, Op: aggregate.Mean, Places: 2},
	})
	return aggregate.Records(groups), nil
}

// rateField names the chart field for a sector, e.g. rateResidential.
func rateField(sector domain.Sector) string {
	if sector.Name == "" {
		return "rate"
	}
	return "rate" + strings.ToUpper(sector.Name[:1]) + sector.Name[1:]
}

// loadRates pivots a rates file into one record per state with one price
// field per sector.
func (r *Runner) loadRates(year int) ([]domain.CanonicalRecord, error) {
	rows, err := r.store.ReadRows(rawdata.Rates, year)
	if err != nil {
		return nil, err
	}
	res := normalize.Rates(r.ref, schema.FieldState).All(rows, schema.Identity(schema.FieldState, domain.MetricPrice, domain.MetricRevenue, domain.MetricSales, "sector"), year)
	r.count(rawdata.Rates, len(rows), res)

	fields := make(map[string]string, len(r.ref.Sectors))
	reducers := make([]aggregate.Reducer, 0, len(r.ref.Sectors))
	for _, s := range r.ref.Sectors {
		fields[s.ID] = rateField(s)
		reducers = append(reducers, aggregate.Reducer{Metric: rateField(s), Op: aggregate.Mean, Places: 2})
	}

	var pivoted []domain.CanonicalRecord
	for _, rec := range res.Records {
		field, ok := fields[rec.Label("sector")]
		if !ok {
			continue
		}
		pivoted = append(pivoted, domain.CanonicalRecord{
			Key:     rec.Key,
			Metrics: domain.Metrics{field: rec.Metrics[domain.MetricPrice]},
		})
	}
	return aggregate.Records(aggregate.Aggregate(pivoted, aggregate.ByStateYear, reducers)), nil
}

// rateFields lists the chart rate fields in sector order.
func (r *Runner) rateFields() []string {
	out := make([]string, len(r.ref.Sectors))
	for i, s := range r.ref.Sectors {
		out[i] = rateField(s)
	}
	return out
}

// generationFields lists the generation fields in fuel order followed by
// the penetration fields.
func (r *Runner) generationFields() []string {
	out := make([]string, 0, len(r.ref.Fuels)+3)
	for _, f := range r.ref.Fuels {
		out = append(out, f.Field)
	}
	return append(out, fieldVREPenetration, fieldWindPen, fieldSolarPen)
}
