package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
)

// estimateSeed keeps estimated and sample datasets identical across runs.
const estimateSeed = 42

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(estimateSeed, estimateSeed))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

// FetchGeneration downloads annual generation for every fuel and writes one
// file per year, then makes sure reliability inputs exist.
func (r *Runner) FetchGeneration(ctx context.Context) error {
	byFuel := make(map[string]map[int][]rawdata.GenerationRow, len(r.ref.Fuels))
	for _, fuel := range r.ref.Fuels {
		rows, err := r.src.EIA.Generation(ctx, fuel.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("generation fetch failed", "fuel", fuel.ID, "error", err)
			r.metrics.DatasetsSkipped.WithLabelValues(rawdata.Generation, skipReason(err)).Inc()
			continue
		}
		r.metrics.RowsRead.WithLabelValues(rawdata.Generation).Add(float64(len(rows)))
		byFuel[fuel.ID] = generationByYear(rows)
		r.logger.Info("generation fetched", "fuel", fuel.ID, "years", len(byFuel[fuel.ID]))
	}

	for _, year := range r.ref.Years.Generation.Years() {
		file := make(map[string][]rawdata.GenerationRow, len(r.ref.Fuels))
		states := 0
		for _, fuel := range r.ref.Fuels {
			rows := byFuel[fuel.ID][year]
			if rows == nil {
				rows = []rawdata.GenerationRow{}
			}
			file[fuel.ID] = rows
			states += len(rows)
		}
		if err := r.store.Write(rawdata.Generation, year, file); err != nil {
			return err
		}
		r.metrics.RecordsEmitted.WithLabelValues(rawdata.Generation).Add(float64(states))
	}

	return r.ensureReliability()
}

// generationByYear keeps two-letter locations with a numeric value. A
// repeated location within a year keeps its first position and last value.
func generationByYear(rows []domain.RawRow) map[int][]rawdata.GenerationRow {
	out := make(map[int][]rawdata.GenerationRow)
	index := make(map[int]map[string]int)
	for _, row := range rows {
		loc, _ := row["location"].(string)
		loc = strings.TrimSpace(loc)
		if len(loc) != 2 {
			continue
		}
		gen, ok := domain.ParseNumber(row["generation"])
		if !ok {
			continue
		}
		period, ok := domain.ParseNumber(row["period"])
		if !ok {
			continue
		}
		year := int(period)
		if index[year] == nil {
			index[year] = make(map[string]int)
		}
		if i, seen := index[year][loc]; seen {
			out[year][i].Generation = gen
			continue
		}
		index[year][loc] = len(out[year])
		out[year] = append(out[year], rawdata.GenerationRow{Location: loc, Generation: gen})
	}
	return out
}

// ensureReliability writes estimated reliability files unless the existing
// ones look like reported Form 861 data.
func (r *Runner) ensureReliability() error {
	reported, err := r.reliabilityReported()
	if err != nil && !errors.Is(err, rawdata.ErrMissing) {
		r.logger.Warn("could not inspect existing reliability data", "error", err)
	}
	if reported {
		r.logger.Info("reported reliability data present, skipping estimates")
		return nil
	}

	r.logger.Info("writing estimated reliability data")
	rng := newRand()
	for _, year := range r.ref.Years.Generation.Years() {
		if err := r.store.Write(rawdata.Reliability, year, estimateReliability(r.ref, year, rng)); err != nil {
			return err
		}
	}
	return nil
}

// reliabilityReported applies the provenance heuristic to the most recent
// reliability file.
func (r *Runner) reliabilityReported() (bool, error) {
	years, err := r.store.Years(rawdata.Reliability)
	if err != nil {
		return false, err
	}
	if len(years) == 0 {
		return false, rawdata.ErrMissing
	}
	rows, err := r.store.ReadRows(rawdata.Reliability, years[len(years)-1])
	if err != nil {
		return false, err
	}
	saidi := make([]float64, len(rows))
	for i, row := range rows {
		saidi[i], _ = domain.ParseNumber(row["saidi"])
	}
	return domain.IsReportedReliability(saidi), nil
}

// estimateReliability derives state SAIDI from the reference base values
// with a slight yearly trend and noise.
func estimateReliability(ref *domain.RefData, year int, rng *rand.Rand) []rawdata.ReliabilityRow {
	rows := make([]rawdata.ReliabilityRow, 0, len(ref.States))
	for _, s := range ref.States {
		base, ok := ref.ReliabilityBase[s.Code]
		if !ok {
			continue
		}
		trend := 1 + float64(year-2018)*0.01
		saidi := domain.Round(base*trend*uniform(rng, 0.8, 1.2), 1)
		saifi := domain.Round(saidi/100*uniform(rng, 0.9, 1.1), 2)
		rows = append(rows, rawdata.ReliabilityRow{State: s.Code, SAIDI: saidi, SAIFI: saifi, Year: year})
	}
	return rows
}
