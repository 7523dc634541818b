// Package normalize turns resolved raw rows into canonical records.
package normalize

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// SkipReason says why a row produced no record. The empty reason means the
// row was kept.
type SkipReason string

const (
	Kept            SkipReason = ""
	InvalidState    SkipReason = "invalid_state"
	MissingRequired SkipReason = "missing_required"
	OutOfRange      SkipReason = "out_of_range"
)

// FieldSpec declares one numeric metric of a record.
type FieldSpec struct {
	Metric string
	// Column is the mapping field to read; defaults to Metric.
	Column   string
	Required bool
	Range    *domain.Range
	// Places is the number of decimals kept. Use domain.NoRounding to keep
	// the coerced value as is.
	Places int
}

func (f FieldSpec) column() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Metric
}

// Normalizer validates rows of one dataset.
type Normalizer struct {
	Ref        *domain.RefData
	StateField string
	// UtilityField, when set, fills EntityKey.UtilityID.
	UtilityField string
	Fields       []FieldSpec
	// Labels are copied as trimmed strings when present.
	Labels []string
}

// Normalize converts row into a record for year. A non-empty SkipReason means
// the row must be dropped.
func (n Normalizer) Normalize(row domain.RawRow, m schema.Mapping, year int) (domain.CanonicalRecord, SkipReason) {
	stateVal, _ := m.Value(row, n.StateField)
	state := domain.NormalizeStateCode(stateVal)
	if !n.Ref.IsState(state) {
		return domain.CanonicalRecord{}, InvalidState
	}

	rec := domain.CanonicalRecord{
		Key:     domain.EntityKey{StateCode: state, Year: year},
		Metrics: make(domain.Metrics, len(n.Fields)),
	}

	for _, f := range n.Fields {
		raw, _ := m.Value(row, f.column())
		v, ok := domain.ParseNumber(raw)
		if !ok {
			if f.Required {
				return domain.CanonicalRecord{}, MissingRequired
			}
			continue
		}
		if f.Range != nil && !f.Range.Contains(v) {
			return domain.CanonicalRecord{}, OutOfRange
		}
		rec.Metrics[f.Metric] = domain.Round(v, f.Places)
	}

	if n.UtilityField != "" {
		id, _ := m.Value(row, n.UtilityField)
		rec.Key.UtilityID = FormatID(id)
	}

	for _, l := range n.Labels {
		v, ok := m.Value(row, l)
		if !ok {
			continue
		}
		s := strings.TrimSpace(toString(v))
		if s == "" {
			continue
		}
		if rec.Labels == nil {
			rec.Labels = make(map[string]string, len(n.Labels))
		}
		rec.Labels[l] = s
	}

	return rec, Kept
}

// Result is the outcome of normalizing a batch.
type Result struct {
	Records []domain.CanonicalRecord
	Skipped map[SkipReason]int
}

// Dropped is the total number of skipped rows.
func (r Result) Dropped() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// All normalizes every row, keeping input order.
func (n Normalizer) All(rows []domain.RawRow, m schema.Mapping, year int) Result {
	res := Result{Skipped: make(map[SkipReason]int)}
	for _, row := range rows {
		rec, reason := n.Normalize(row, m, year)
		if reason != Kept {
			res.Skipped[reason]++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// FormatID renders a utility identifier cell. Spreadsheet and JSON numbers
// lose their trailing ".0".
func FormatID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return s
	default:
		if f, ok := domain.ParseNumber(t); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		if f, ok := domain.ParseNumber(t); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}
