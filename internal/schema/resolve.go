// Package schema locates columns in loosely structured government
// spreadsheets. Matching is driven by ordered rule tables so the same header
// fixtures resolve identically on every run.
package schema

import (
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// NormalizeLabel lowercases a header or pattern and turns '-' and '_' into
// spaces.
func NormalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}

// Resolve returns the index of the header matched by the highest-priority
// pattern. Within a pattern the first matching header wins. ok is false when
// nothing matches; callers treat that as missing data.
func Resolve(header []string, patterns []string) (int, bool) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeLabel(h)
	}
	for _, p := range patterns {
		p = NormalizeLabel(p)
		if p == "" {
			continue
		}
		for i, h := range normalized {
			if strings.Contains(h, p) {
				return i, true
			}
		}
	}
	return -1, false
}

// Rule binds a canonical field name to its header patterns, most specific
// first.
type Rule struct {
	Field    string
	Patterns []string
	Required bool
}

// RuleSet is an ordered rule table.
type RuleSet []Rule

// Mapping maps canonical field names to the source column label they were
// resolved to.
type Mapping map[string]string

// Identity maps each field to a column of the same name. Used for inputs
// that are already keyed canonically, such as the raw JSON files.
func Identity(fields ...string) Mapping {
	m := make(Mapping, len(fields))
	for _, f := range fields {
		m[f] = f
	}
	return m
}

// Value reads a field from row through the mapping.
func (m Mapping) Value(row domain.RawRow, field string) (any, bool) {
	label, ok := m[field]
	if !ok {
		return nil, false
	}
	v, ok := row[label]
	return v, ok
}

// Has reports whether field was resolved.
func (m Mapping) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// Resolve maps every rule against header. missing lists required fields that
// no header matched, in rule order.
func (rs RuleSet) Resolve(header []string) (Mapping, []string) {
	m := make(Mapping, len(rs))
	var missing []string
	for _, r := range rs {
		idx, ok := Resolve(header, r.Patterns)
		if !ok {
			if r.Required {
				missing = append(missing, r.Field)
			}
			continue
		}
		m[r.Field] = strings.TrimSpace(header[idx])
	}
	return m, missing
}

// Rule returns the rule for field.
func (rs RuleSet) Rule(field string) (Rule, bool) {
	for _, r := range rs {
		if r.Field == field {
			return r, true
		}
	}
	return Rule{}, false
}

// MaxHeaderOffset is how many leading non-header rows a workbook may carry.
const MaxHeaderOffset = 2

// LocateHeader tries rows 0..maxOffset as the header and returns the first
// one where both key and value resolve.
func LocateHeader(rows [][]string, maxOffset int, key, value Rule) (int, bool) {
	for off := 0; off <= maxOffset && off < len(rows); off++ {
		if _, ok := Resolve(rows[off], key.Patterns); !ok {
			continue
		}
		if _, ok := Resolve(rows[off], value.Patterns); ok {
			return off, true
		}
	}
	return -1, false
}

// FindHeaderRow returns the index of the first row satisfying match.
func FindHeaderRow(rows [][]string, match func(row []string) bool) (int, bool) {
	for i, row := range rows {
		if match(row) {
			return i, true
		}
	}
	return -1, false
}

// MentionsAny matches a row whose joined cells contain any of names,
// case-insensitively.
func MentionsAny(names []string) func(row []string) bool {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}
	return func(row []string) bool {
		joined := strings.ToLower(strings.Join(row, " "))
		for _, n := range lowered {
			if n != "" && strings.Contains(joined, n) {
				return true
			}
		}
		return false
	}
}
