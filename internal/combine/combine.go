// Package combine outer-joins aggregated datasets on (state, year).
package combine

import (
	"sort"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// Source is one aggregated dataset taking part in a join.
type Source struct {
	Name string
	// Payload sources can make a point survive. Context sources only fill
	// fields on points that survive for other reasons.
	Payload bool
	// Fields are the metric names this source contributes. Every point
	// carries all of them, nil when the source has no value for the key.
	Fields  []string
	Records []domain.CanonicalRecord
}

// Point is one joined (state, year) row.
type Point struct {
	Key    domain.EntityKey
	State  domain.StateInfo
	Fields map[string]*float64
	// Sources lists the names of sources that had a record for the key.
	Sources []string
}

// Value returns a field, nil when null or undeclared.
func (p Point) Value(field string) *float64 {
	return p.Fields[field]
}

// Has reports whether source contributed a record to the point.
func (p Point) Has(source string) bool {
	for _, s := range p.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Combine joins sources on (state, year). A point is emitted only when its
// state is known and some payload source has a non-null field for it. Points
// are sorted by year, then state code.
func Combine(sources []Source, ref *domain.RefData) []Point {
	points := make(map[domain.EntityKey]*Point)
	survives := make(map[domain.EntityKey]bool)

	for _, src := range sources {
		for _, rec := range src.Records {
			key := rec.Key.StateYear()
			info, ok := ref.State(key.StateCode)
			if !ok {
				continue
			}
			p, ok := points[key]
			if !ok {
				p = &Point{Key: key, State: info, Fields: make(map[string]*float64)}
				points[key] = p
			}
			p.Sources = append(p.Sources, src.Name)
			for _, f := range src.Fields {
				v := rec.Metrics.Get(f)
				if v == nil {
					continue
				}
				p.Fields[f] = v
				if src.Payload {
					survives[key] = true
				}
			}
		}
	}

	out := make([]Point, 0, len(survives))
	for key, p := range points {
		if !survives[key] {
			continue
		}
		for _, src := range sources {
			for _, f := range src.Fields {
				if _, ok := p.Fields[f]; !ok {
					p.Fields[f] = nil
				}
			}
		}
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Year != out[j].Key.Year {
			return out[i].Key.Year < out[j].Key.Year
		}
		return out[i].Key.StateCode < out[j].Key.StateCode
	})
	return out
}
