// Package aggregate groups canonical records by key and reduces their
// metrics.
package aggregate

import (
	"math"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// Op reduces the non-null values of one metric within a group. It is never
// called with an empty slice.
type Op func(values []float64) float64

// Mean is the arithmetic mean.
func Mean(values []float64) float64 {
	return Sum(values) / float64(len(values))
}

// Sum adds the values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Max returns the largest value.
func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

// Min returns the smallest value.
func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	return m
}

// StdDev is the sample standard deviation, 0 for a single value.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// Count returns how many non-null values were seen.
func Count(values []float64) float64 {
	return float64(len(values))
}

// Reducer describes how one output metric is produced.
type Reducer struct {
	// Metric is the input metric; Output defaults to it.
	Metric string
	Output string
	Op     Op
	// Places is applied after reduction; domain.NoRounding keeps the raw
	// result.
	Places int
}

func (r Reducer) output() string {
	if r.Output != "" {
		return r.Output
	}
	return r.Metric
}

// Group is one partition's reduced metrics.
type Group[K comparable] struct {
	Key     K
	Metrics domain.Metrics
	// Records is the number of input records in the partition.
	Records int
	// First is the first record seen for the key; its labels carry through.
	First domain.CanonicalRecord
}

// Aggregate partitions records by keyFn and applies reducers per partition.
// Groups exist only for keys with at least one record and are returned in
// the order their keys were first seen. A metric with no non-null values in
// a partition stays null.
func Aggregate[K comparable](records []domain.CanonicalRecord, keyFn func(domain.CanonicalRecord) K, reducers []Reducer) []Group[K] {
	type partition struct {
		first  domain.CanonicalRecord
		n      int
		values map[string][]float64
	}

	// Several reducers may read the same metric; collect it once.
	var metrics []string
	seen := make(map[string]bool, len(reducers))
	for _, r := range reducers {
		if !seen[r.Metric] {
			seen[r.Metric] = true
			metrics = append(metrics, r.Metric)
		}
	}

	index := make(map[K]int)
	var keys []K
	var parts []*partition

	for _, rec := range records {
		k := keyFn(rec)
		i, ok := index[k]
		if !ok {
			i = len(parts)
			index[k] = i
			keys = append(keys, k)
			parts = append(parts, &partition{first: rec, values: make(map[string][]float64)})
		}
		p := parts[i]
		p.n++
		for _, name := range metrics {
			if v, ok := rec.Metrics[name]; ok {
				p.values[name] = append(p.values[name], v)
			}
		}
	}

	groups := make([]Group[K], len(parts))
	for i, p := range parts {
		m := make(domain.Metrics, len(reducers))
		for _, r := range reducers {
			vals := p.values[r.Metric]
			if len(vals) == 0 {
				continue
			}
			m[r.output()] = domain.Round(r.Op(vals), r.Places)
		}
		groups[i] = Group[K]{Key: keys[i], Metrics: m, Records: p.n, First: p.first}
	}
	return groups
}

// ByStateYear keys records on (state, year).
func ByStateYear(r domain.CanonicalRecord) domain.EntityKey {
	return r.Key.StateYear()
}

// ByUtility keys records on (state, year, utility).
func ByUtility(r domain.CanonicalRecord) domain.EntityKey {
	return r.Key
}

// Records converts groups keyed by EntityKey back into canonical records.
func Records(groups []Group[domain.EntityKey]) []domain.CanonicalRecord {
	out := make([]domain.CanonicalRecord, len(groups))
	for i, g := range groups {
		out[i] = domain.CanonicalRecord{Key: g.Key, Metrics: g.Metrics, Labels: g.First.Labels}
	}
	return out
}

// PrimaryCause picks the category with the strictly greatest count. Ties go
// to whichever category comes first in priority.
func PrimaryCause(counts map[string]int, priority []string) string {
	best := ""
	bestCount := -1
	for _, c := range priority {
		if n := counts[c]; n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
