package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/grid-reliability-etl/internal/combine"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/normalize"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// BuildOptions selects what Build produces.
type BuildOptions struct {
	// Sample publishes deterministic sample chart data.
	Sample bool
	// UtilitiesOnly builds utilities.json and nothing else.
	UtilitiesOnly bool
}

// Build publishes saidi-vre.json and, when utility inputs exist,
// utilities.json. Without raw generation or reliability directories it
// publishes sample chart data instead.
func (r *Runner) Build(ctx context.Context, opts BuildOptions) error {
	switch {
	case opts.Sample:
		return r.publish(ctx, output.ChartFileName, output.NewChartFile(sampleChartPoints(r.ref), output.SourceSample))
	case opts.UtilitiesOnly:
		return r.BuildUtilities(ctx)
	}

	if !r.store.HasDataset(rawdata.Generation) || !r.store.HasDataset(rawdata.Reliability) {
		r.logger.Warn("raw data directories not found, publishing sample chart data",
			"dir", r.store.Dir)
		return r.publish(ctx, output.ChartFileName, output.NewChartFile(sampleChartPoints(r.ref), output.SourceSample))
	}

	if err := r.BuildChart(ctx); err != nil {
		if !errors.Is(err, ErrNoData) {
			return err
		}
		r.logger.Warn("no chart points produced, check raw data files")
	}

	if !r.store.HasDataset(rawdata.Utilities) {
		r.logger.Info("no utility data found, run fetch form861 to generate it")
		return nil
	}
	if err := r.BuildUtilities(ctx); err != nil && !errors.Is(err, ErrNoData) {
		return err
	}
	return nil
}

// BuildChart joins generation, reliability and rates into saidi-vre.json.
// A year needs both generation and reliability files; rates are optional.
func (r *Runner) BuildChart(ctx context.Context) error {
	gen := combine.Source{Name: rawdata.Generation, Fields: r.generationFields()}
	rel := combine.Source{Name: rawdata.Reliability, Payload: true, Fields: []string{domain.MetricSAIDI, domain.MetricSAIFI}}
	rates := combine.Source{Name: rawdata.Rates, Payload: true, Fields: r.rateFields()}

	for _, year := range r.ref.Years.Chart.Years() {
		genRecs, err := r.loadGeneration(year)
		if err != nil {
			r.skip(rawdata.Generation, year, err)
			continue
		}
		relRecs, err := r.loadReliability(year)
		if err != nil {
			r.skip(rawdata.Reliability, year, err)
			continue
		}
		rateRecs, err := r.loadRates(year)
		if err != nil {
			r.skip(rawdata.Rates, year, err)
		}

		gen.Records = append(gen.Records, genRecs...)
		rel.Records = append(rel.Records, relRecs...)
		rates.Records = append(rates.Records, rateRecs...)
		r.logger.Info("chart inputs loaded", "year", year,
			"generation_states", len(genRecs), "reliability_states", len(relRecs), "rate_states", len(rateRecs))
	}

	points := combine.Combine([]combine.Source{gen, rel, rates}, r.ref)
	if len(points) == 0 {
		return fmt.Errorf("build chart: %w", ErrNoData)
	}

	chart := make([]output.ChartPoint, len(points))
	for i, p := range points {
		chart[i] = chartPoint(p)
	}
	r.metrics.RecordsEmitted.WithLabelValues("chart").Add(float64(len(chart)))
	return r.publish(ctx, output.ChartFileName, output.NewChartFile(chart, r.chartSource()))
}

func chartPoint(p combine.Point) output.ChartPoint {
	whole := func(field string) *float64 { return domain.RoundPtr(p.Value(field), 0) }
	return output.ChartPoint{
		State:             p.State.Name,
		StateCode:         p.Key.StateCode,
		Year:              p.Key.Year,
		SAIDI:             p.Value(domain.MetricSAIDI),
		SAIFI:             p.Value(domain.MetricSAIFI),
		VREPenetration:    p.Value(fieldVREPenetration),
		WindPenetration:   p.Value(fieldWindPen),
		SolarPenetration:  p.Value(fieldSolarPen),
		TotalGeneration:   whole(fieldTotal),
		Region:            p.State.Region,
		RateResidential:   p.Value("rateResidential"),
		RateCommercial:    p.Value("rateCommercial"),
		RateIndustrial:    p.Value("rateIndustrial"),
		RateAll:           p.Value("rateAll"),
		GenerationWind:    whole(fieldWind),
		GenerationSolar:   whole(fieldSolar),
		GenerationGas:     whole("gas"),
		GenerationCoal:    whole("coal"),
		GenerationNuclear: whole("nuclear"),
		GenerationHydro:   whole("hydro"),
		GenerationOther:   whole("other"),
	}
}

// chartSource labels where the reliability numbers came from.
func (r *Runner) chartSource() string {
	if !r.store.HasDataset(rawdata.Reliability) {
		return output.SourceChartNoReliability
	}
	reported, err := r.reliabilityReported()
	switch {
	case errors.Is(err, rawdata.ErrMissing):
		return output.SourceChartNoReliability
	case err == nil && reported:
		return output.SourceChartForm861
	default:
		return output.SourceChartEstimates
	}
}

// BuildUtilities publishes utilities.json from the raw utilities files,
// adding each utility's state VRE context.
func (r *Runner) BuildUtilities(ctx context.Context) error {
	flags := make([]string, len(r.ref.RTOs))
	for i, rto := range r.ref.RTOs {
		flags[i] = rto.Flag
	}
	n := normalize.Utilities(r.ref, flags)
	fields := append([]string{
		schema.FieldState, rawdata.UtilityIDKey, domain.MetricSAIDI, domain.MetricSAIFI, domain.MetricCustomers,
		rawdata.UtilityNameKey, rawdata.OwnershipKey, rawdata.NERCRegionKey,
	}, flags...)
	m := schema.Identity(fields...)

	var records []output.UtilityRecord
	for _, year := range r.ref.Years.Form861.Years() {
		rows, err := r.store.ReadRows(rawdata.Utilities, year)
		if err != nil {
			if !errors.Is(err, rawdata.ErrMissing) {
				r.skip(rawdata.Utilities, year, err)
			}
			continue
		}

		stateGen := make(map[string]domain.Metrics)
		if gen, err := r.loadGeneration(year); err == nil {
			for _, g := range gen {
				stateGen[g.Key.StateCode] = g.Metrics
			}
		}

		res := n.All(rows, m, year)
		r.count(rawdata.Utilities, len(rows), res)
		for _, rec := range res.Records {
			records = append(records, r.utilityRecord(rec, stateGen[rec.Key.StateCode]))
		}
		r.logger.Info("utilities loaded", "year", year, "utilities", len(res.Records))
	}

	if len(records) == 0 {
		r.logger.Warn("no utility data found")
		return fmt.Errorf("build utilities: %w", ErrNoData)
	}
	return r.publish(ctx, output.UtilityFileName, output.NewUtilityFile(records))
}

func (r *Runner) utilityRecord(rec domain.CanonicalRecord, gen domain.Metrics) output.UtilityRecord {
	info, _ := r.ref.State(rec.Key.StateCode)
	u := output.UtilityRecord{
		UtilityID:             rec.Key.UtilityID,
		UtilityName:           rec.Label(rawdata.UtilityNameKey),
		State:                 info.Name,
		StateCode:             info.Code,
		Region:                info.Region,
		Ownership:             rec.Label(rawdata.OwnershipKey),
		NERCRegion:            rec.Label(rawdata.NERCRegionKey),
		RTOs:                  []string{},
		Year:                  rec.Key.Year,
		SAIDI:                 rec.Metrics.Get(domain.MetricSAIDI),
		SAIFI:                 rec.Metrics.Get(domain.MetricSAIFI),
		Customers:             rec.Metrics.Get(domain.MetricCustomers),
		StateVREPenetration:   gen[fieldVREPenetration],
		StateWindPenetration:  gen[fieldWindPen],
		StateSolarPenetration: gen[fieldSolarPen],
	}
	for _, rto := range r.ref.RTOs {
		if !isYes(rec.Label(rto.Flag)) {
			continue
		}
		u.RTOs = append(u.RTOs, rto.Name)
		if u.PrimaryRTO == nil {
			name := rto.Name
			u.PrimaryRTO = &name
		}
	}
	return u
}
