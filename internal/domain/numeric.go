package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NoRounding disables post-reduction rounding.
const NoRounding = -1

// Round rounds v half-to-even to the given number of decimals. Negative
// places return v unchanged.
func Round(v float64, places int) float64 {
	if places < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(int32(places)).InexactFloat64()
}

// RoundPtr rounds a nullable value.
func RoundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, places)
	return &r
}

// ParseNumber coerces a cell or JSON value to a finite float.
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Penetration returns part as a percentage of total, rounded to 2 decimals,
// or 0 when total is not positive.
func Penetration(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return Round(part/total*100, 2)
}

// Range is an interval for numeric validation. Both ends are exclusive
// unless the matching Inclusive flag is set.
type Range struct {
	Min, Max                   float64
	MinInclusive, MaxInclusive bool
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if v < r.Min || (v == r.Min && !r.MinInclusive) {
		return false
	}
	if v > r.Max || (v == r.Max && !r.MaxInclusive) {
		return false
	}
	return true
}

// Validation ranges.
var (
	SAIDIRange = Range{Min: 0, Max: 10000}
	PriceRange = Range{Min: 0, Max: 100, MaxInclusive: true}
)

// NormalizeStateCode trims and uppercases a state cell.
func NormalizeStateCode(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
