package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/grid-reliability-etl/internal/aggregate"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/normalize"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

const form861BaseURL = "https://www.eia.gov/electricity/data/eia861"

// Workbook name patterns inside the Form 861 archive, most specific first.
var (
	reliabilityWorkbooks = []*regexp.Regexp{
		regexp.MustCompile(`reliability.*\.xlsx?$`),
		regexp.MustCompile(`rel_.*\.xlsx?$`),
		regexp.MustCompile(`saidi.*\.xlsx?$`),
	}
	utilityWorkbooks = []*regexp.Regexp{
		regexp.MustCompile(`utility_data.*\.xlsx?$`),
	}
)

// Form861URL returns the archive location for year. EIA moves a year's
// archive under archive/ once a newer year is released.
func Form861URL(year, currentYear int) string {
	if year >= currentYear {
		return fmt.Sprintf("%s/zip/f861%d.zip", form861BaseURL, year)
	}
	return fmt.Sprintf("%s/archive/zip/f861%d.zip", form861BaseURL, year)
}

// FetchForm861 downloads each Form 861 archive and writes state reliability
// averages and utility-level records.
func (r *Runner) FetchForm861(ctx context.Context) error {
	written := 0
	for _, year := range r.ref.Years.Form861.Years() {
		if err := r.form861Year(ctx, year); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.skip(rawdata.Form861, year, err)
			continue
		}
		written++
	}
	r.logger.Info("form 861 processed", "years", written)
	return nil
}

func (r *Runner) form861Year(ctx context.Context, year int) error {
	name := fmt.Sprintf("f861%d.zip", year)
	body, err := r.src.Form861.Fetch(ctx, name, Form861URL(year, domain.Now().Year()))
	if err != nil {
		return err
	}
	zr, err := spreadsheet.OpenZip(body)
	if err != nil {
		if evictErr := r.src.Form861.Evict(name); evictErr != nil {
			r.logger.Warn("could not evict bad archive", "file", name, "error", evictErr)
		}
		return err
	}

	records, err := r.reliabilityRecords(zr, year)
	if err != nil {
		return err
	}

	states := aggregate.Aggregate(records, aggregate.ByStateYear, []aggregate.Reducer{
		{Metric: domain.MetricSAIDI, Op: aggregate.Mean, Places: 1},
		{Metric: domain.MetricSAIFI, Op: aggregate.Mean, Places: 2},
	})
	rows := make([]rawdata.ReliabilityRow, 0, len(states))
	for _, g := range states {
		rows = append(rows, rawdata.ReliabilityRow{
			State: g.Key.StateCode,
			SAIDI: g.Metrics[domain.MetricSAIDI],
			SAIFI: g.Metrics[domain.MetricSAIFI],
			Year:  year,
		})
	}
	if err := r.store.Write(rawdata.Reliability, year, rows); err != nil {
		return err
	}
	r.logger.Info("reliability written", "year", year, "states", len(rows), "utilities", len(records))

	utilities := r.utilityRows(zr, records, year)
	if len(utilities) == 0 {
		return nil
	}
	return r.store.Write(rawdata.Utilities, year, utilities)
}

// reliabilityRecords reads the utility rows of the reliability workbook.
// When the workbook has no SAIFI column it is estimated as SAIDI/100.
func (r *Runner) reliabilityRecords(zr *zip.Reader, year int) ([]domain.CanonicalRecord, error) {
	f, ok := spreadsheet.FindFile(zr, reliabilityWorkbooks)
	if !ok {
		return nil, fmt.Errorf("no reliability workbook: %w", ErrNoData)
	}
	sheet, err := spreadsheet.ReadZipXLSX(f)
	if err != nil {
		return nil, err
	}

	rules := schema.ReliabilityRules()
	stateRule, _ := rules.Rule(schema.FieldState)
	saidiRule, _ := rules.Rule(schema.FieldSAIDI)
	off, ok := schema.LocateHeader(sheet, schema.MaxHeaderOffset, stateRule, saidiRule)
	if !ok {
		return nil, fmt.Errorf("%s: no state and SAIDI header: %w", f.Name, spreadsheet.ErrMalformed)
	}
	table := schema.NewTable(sheet, off)
	m, missing := rules.Resolve(table.Header)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: unresolved columns %v: %w", f.Name, missing, spreadsheet.ErrMalformed)
	}

	rows := table.Records()
	res := normalize.Reliability(r.ref).All(rows, m, year)
	r.count(rawdata.Reliability, len(rows), res)
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrNoData)
	}
	if !m.Has(schema.FieldSAIFI) {
		for _, rec := range res.Records {
			rec.Metrics[domain.MetricSAIFI] = rec.Metrics[domain.MetricSAIDI] / 100
		}
	}
	return res.Records, nil
}

// utilityMeta is one row of the utility data workbook.
type utilityMeta struct {
	name, ownership, nerc string
	rtos                  map[string]bool
}

// utilityRows reduces reliability records per utility and merges the utility
// data workbook when the archive has one.
func (r *Runner) utilityRows(zr *zip.Reader, records []domain.CanonicalRecord, year int) []rawdata.UtilityRow {
	meta := r.utilityMetadata(zr, year)

	groups := aggregate.Aggregate(records, aggregate.ByUtility, []aggregate.Reducer{
		{Metric: domain.MetricSAIDI, Op: aggregate.Mean, Places: 1},
		{Metric: domain.MetricSAIFI, Op: aggregate.Mean, Places: 2},
		{Metric: domain.MetricCustomers, Op: aggregate.Max, Places: 0},
	})

	rows := make([]rawdata.UtilityRow, 0, len(groups))
	for _, g := range groups {
		if g.Key.UtilityID == "" {
			continue
		}
		row := rawdata.UtilityRow{
			UtilityID:   g.Key.UtilityID,
			UtilityName: g.First.Label(schema.FieldUtilityName),
			State:       g.Key.StateCode,
			Ownership:   g.First.Label(schema.FieldOwnership),
			RTOs:        make(map[string]bool, len(r.ref.RTOs)),
			SAIDI:       g.Metrics.Get(domain.MetricSAIDI),
			SAIFI:       g.Metrics.Get(domain.MetricSAIFI),
			Customers:   g.Metrics.Get(domain.MetricCustomers),
		}
		for _, rto := range r.ref.RTOs {
			row.RTOs[rto.Flag] = false
		}
		if md, ok := meta[utilityKey(g.Key.UtilityID, g.Key.StateCode)]; ok {
			if row.UtilityName == "" {
				row.UtilityName = md.name
			}
			if row.Ownership == "" {
				row.Ownership = md.ownership
			}
			row.NERCRegion = md.nerc
			for flag, member := range md.rtos {
				row.RTOs[flag] = member
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func utilityKey(id, state string) string {
	return id + "|" + state
}

// utilityMetadata indexes the utility data workbook by utility and state.
// A missing or unreadable workbook yields no metadata.
func (r *Runner) utilityMetadata(zr *zip.Reader, year int) map[string]utilityMeta {
	f, ok := spreadsheet.FindFile(zr, utilityWorkbooks)
	if !ok {
		r.logger.Info("no utility data workbook", "year", year)
		return nil
	}
	sheet, err := spreadsheet.ReadZipXLSX(f)
	if err != nil {
		r.logger.Warn("utility data workbook unreadable", "year", year, "error", err)
		return nil
	}

	rules := schema.UtilityDataRules(r.ref.RTOs)
	idRule, _ := rules.Rule(schema.FieldUtilityID)
	stateRule, _ := rules.Rule(schema.FieldState)
	off, ok := schema.LocateHeader(sheet, schema.MaxHeaderOffset, idRule, stateRule)
	if !ok {
		r.logger.Warn("utility data header not found", "year", year, "file", f.Name)
		return nil
	}
	table := schema.NewTable(sheet, off)
	m, _ := rules.Resolve(table.Header)

	meta := make(map[string]utilityMeta)
	for _, row := range table.Records() {
		idVal, _ := m.Value(row, schema.FieldUtilityID)
		stateVal, _ := m.Value(row, schema.FieldState)
		key := utilityKey(normalize.FormatID(idVal), domain.NormalizeStateCode(stateVal))
		if _, seen := meta[key]; seen {
			continue
		}
		md := utilityMeta{
			name:      cell(m, row, schema.FieldUtilityName),
			ownership: cell(m, row, schema.FieldOwnership),
			nerc:      cell(m, row, schema.FieldNERCRegion),
			rtos:      make(map[string]bool, len(r.ref.RTOs)),
		}
		for _, rto := range r.ref.RTOs {
			md.rtos[rto.Flag] = isYes(cell(m, row, rto.Flag))
		}
		meta[key] = md
	}
	return meta
}

func cell(m schema.Mapping, row domain.RawRow, field string) string {
	v, _ := m.Value(row, field)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "x":
		return true
	}
	return false
}
