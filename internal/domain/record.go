package domain

// Metric names shared across datasets.
const (
	MetricSAIDI     = "saidi"
	MetricSAIFI     = "saifi"
	MetricCustomers = "customers"
	MetricPrice     = "price"
	MetricRevenue   = "revenue"
	MetricSales     = "sales"
	MetricDuration  = "durationHours"
	MetricAffected  = "customersAffected"
	MetricEvents    = "events"
)

// RawRow is one untyped input row keyed by source column label. Labels are
// not stable across years; resolve them through a schema mapping.
type RawRow map[string]any

// EntityKey identifies what a record describes. UtilityID is empty for
// state-level records.
type EntityKey struct {
	StateCode string
	Year      int
	UtilityID string
}

// StateYear returns the key without the utility component.
func (k EntityKey) StateYear() EntityKey {
	return EntityKey{StateCode: k.StateCode, Year: k.Year}
}

// Metrics holds numeric fields by name. A missing entry means null.
type Metrics map[string]float64

// Get returns the value for name, or nil when it is null.
func (m Metrics) Get(name string) *float64 {
	v, ok := m[name]
	if !ok {
		return nil
	}
	return &v
}

// Clone returns an independent copy.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CanonicalRecord is a validated row: a key, numeric metrics and optional
// categorical labels (sector, ownership, cause category, ...).
type CanonicalRecord struct {
	Key     EntityKey
	Metrics Metrics
	Labels  map[string]string
}

// Label returns the named label or "".
func (r CanonicalRecord) Label(name string) string {
	if r.Labels == nil {
		return ""
	}
	return r.Labels[name]
}
