package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/grid-reliability-etl/internal/aggregate"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// Outage archive locations, primary first.
var OutageArchiveURLs = []string{
	"https://data.openei.org/files/6458/Outage%20Dataset%20v2.zip",
	"https://data.openei.org/files/6458/Outage%20Dataset%20v1.zip",
}

const (
	outageArchiveName = "outage_dataset.zip"
	maxOutageEvents   = 500
	unknownCause      = "Unknown"
)

// Outages publishes outage-events.json from the DOE-417 event reports, or
// sample data when no event can be read.
func (r *Runner) Outages(ctx context.Context, sample bool) error {
	if sample {
		return r.publish(ctx, output.OutageFileName, sampleOutageFile(r.ref))
	}

	events, err := r.outageEvents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.skip(rawdata.Outages, 0, err)
	}
	if len(events) == 0 {
		r.logger.Warn("no outage events found, publishing sample data")
		return r.publish(ctx, output.OutageFileName, sampleOutageFile(r.ref))
	}

	summary := summarizeOutages(events, r.ref)
	years := make([]int, len(events))
	for i, e := range events {
		years[i] = e.Year
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	if len(events) > maxOutageEvents {
		events = events[len(events)-maxOutageEvents:]
	}

	r.logger.Info("outage events parsed", "events", len(years), "state_years", len(summary))
	file := output.NewOutageFile(events, summary, years, r.ref.CausePriority, output.SourceOutages)
	return r.publish(ctx, output.OutageFileName, file)
}

// outageEvents reads every event CSV of the extracted archive, downloading
// and extracting it first when nothing is cached.
func (r *Runner) outageEvents(ctx context.Context) ([]output.OutageEvent, error) {
	dir := filepath.Join(r.store.DatasetDir(rawdata.Outages), "extracted")
	files, err := eventCSVs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		body, err := r.src.Outages.Fetch(ctx, outageArchiveName, OutageArchiveURLs...)
		if err != nil {
			return nil, err
		}
		zr, err := spreadsheet.OpenZip(body)
		if err != nil {
			if evictErr := r.src.Outages.Evict(outageArchiveName); evictErr != nil {
				r.logger.Warn("could not evict bad archive", "error", evictErr)
			}
			return nil, err
		}
		if files, err = spreadsheet.ExtractAll(zr, dir, isEventCSV); err != nil {
			return nil, err
		}
		sort.Strings(files)
	}

	var events []output.OutageEvent
	seq := make(map[string]int)
	for _, path := range files {
		parsed, err := r.parseEventFile(path)
		if err != nil {
			r.logger.Warn("skipping event file", "file", filepath.Base(path), "error", err)
			r.metrics.DatasetsSkipped.WithLabelValues(rawdata.Outages, skipReason(err)).Inc()
			continue
		}
		for _, e := range parsed {
			prefix := "US"
			if len(e.States) > 0 {
				prefix = e.States[0]
			}
			k := fmt.Sprintf("%s-%d", prefix, e.Year)
			e.EventID = fmt.Sprintf("%s-%03d", k, seq[k])
			seq[k]++
			events = append(events, e)
		}
	}
	return events, nil
}

func isEventCSV(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	return strings.HasSuffix(base, ".csv") && (strings.Contains(base, "417") || strings.Contains(base, "event"))
}

func eventCSVs(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isEventCSV(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}

func (r *Runner) parseEventFile(path string) ([]output.OutageEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := spreadsheet.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	table := schema.NewTable(rows, 0)
	m, missing := schema.OutageEventRules().Resolve(table.Header)
	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved columns %v: %w", missing, spreadsheet.ErrMalformed)
	}

	records := table.Records()
	r.metrics.RowsRead.WithLabelValues(rawdata.Outages).Add(float64(len(records)))
	var events []output.OutageEvent
	for _, row := range records {
		e, ok := parseOutageEvent(row, m, r.ref)
		if !ok {
			r.metrics.RecordsDropped.WithLabelValues(rawdata.Outages, "out_of_range").Inc()
			continue
		}
		events = append(events, e)
	}
	r.metrics.RecordsEmitted.WithLabelValues(rawdata.Outages).Add(float64(len(events)))
	return events, nil
}

// parseOutageEvent converts one report row. Rows without a usable date or
// outside the supported years are rejected; unparseable counts become 0.
func parseOutageEvent(row domain.RawRow, m schema.Mapping, ref *domain.RefData) (output.OutageEvent, bool) {
	date := cell(m, row, schema.FieldDate)
	if len(date) < 4 {
		return output.OutageEvent{}, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || !ref.Years.Outages.Contains(year) {
		return output.OutageEvent{}, false
	}

	cause := cell(m, row, schema.FieldCause)
	category := domain.CategorizeCause(cause, ref.CauseCategories)
	if cause == "" {
		cause = unknownCause
	}

	var customers int64
	if v, ok := domain.ParseNumber(cell(m, row, schema.FieldCustomers)); ok {
		customers = int64(v)
	}
	duration, _ := domain.ParseNumber(cell(m, row, schema.FieldDuration))

	states := []string{}
	if code, ok := ResolveArea(cell(m, row, schema.FieldArea), ref); ok {
		states = append(states, code)
	}

	return output.OutageEvent{
		Date:              date,
		Year:              year,
		States:            states,
		Cause:             cause,
		CauseCategory:     category,
		CustomersAffected: customers,
		DurationHours:     duration,
	}, true
}

// ResolveArea maps a DOE-417 "Area Affected" value to a state code. It
// accepts a leading two-letter code ("TX", "TX: ERCOT") or a leading full
// state name ("Texas: ERCOT").
func ResolveArea(area string, ref *domain.RefData) (string, bool) {
	area = strings.TrimSpace(area)
	if len(area) >= 2 {
		code := strings.ToUpper(area[:2])
		if ref.IsState(code) && (len(area) == 2 || !isLetter(area[2])) {
			return code, true
		}
	}

	lower := strings.ToLower(area)
	best, bestLen := "", 0
	for _, s := range ref.States {
		name := strings.ToLower(s.Name)
		if len(name) > bestLen && strings.HasPrefix(lower, name) {
			best, bestLen = s.Code, len(name)
		}
	}
	return best, best != ""
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// summarizeOutages reduces events per state-year. Events without a state are
// left out. The result is sorted by year, then state.
func summarizeOutages(events []output.OutageEvent, ref *domain.RefData) []output.StateYearSummary {
	records := make([]domain.CanonicalRecord, 0, len(events))
	for _, e := range events {
		if len(e.States) == 0 {
			continue
		}
		bucket := domain.SummaryBucket(e.CauseCategory, ref.CausePriority)
		for _, state := range e.States {
			records = append(records, domain.CanonicalRecord{
				Key: domain.EntityKey{StateCode: state, Year: e.Year},
				Metrics: domain.Metrics{
					domain.MetricAffected: float64(e.CustomersAffected),
					domain.MetricDuration: e.DurationHours,
					bucket:                1,
				},
			})
		}
	}

	reducers := []aggregate.Reducer{
		{Metric: domain.MetricDuration, Output: domain.MetricEvents, Op: aggregate.Count, Places: 0},
		{Metric: domain.MetricDuration, Op: aggregate.Mean, Places: 1},
		{Metric: domain.MetricAffected, Op: aggregate.Sum, Places: 0},
		{Metric: domain.MetricAffected, Output: "maxCustomers", Op: aggregate.Max, Places: 0},
	}
	for _, b := range ref.CausePriority {
		reducers = append(reducers, aggregate.Reducer{Metric: b, Op: aggregate.Sum, Places: 0})
	}

	groups := aggregate.Aggregate(records, aggregate.ByStateYear, reducers)
	out := make([]output.StateYearSummary, 0, len(groups))
	for _, g := range groups {
		counts := make(map[string]int, len(ref.CausePriority))
		for _, b := range ref.CausePriority {
			counts[b] = int(g.Metrics[b])
		}
		out = append(out, output.StateYearSummary{
			StateCode:              g.Key.StateCode,
			Year:                   g.Key.Year,
			TotalEvents:            int(g.Metrics[domain.MetricEvents]),
			WeatherEvents:          counts["weather"],
			EquipmentEvents:        counts["equipment"],
			DemandEvents:           counts["demand"],
			OtherEvents:            counts[domain.CauseOther],
			PrimaryCause:           aggregate.PrimaryCause(counts, ref.CausePriority),
			TotalCustomersAffected: int64(g.Metrics[domain.MetricAffected]),
			MaxEventCustomers:      int64(g.Metrics["maxCustomers"]),
			AvgDurationHours:       g.Metrics[domain.MetricDuration],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].StateCode < out[j].StateCode
	})
	return out
}
