package schema

import "github.com/couchcryptid/grid-reliability-etl/internal/domain"

// Canonical field names produced by the rule tables.
const (
	FieldState       = "state"
	FieldSAIDI       = "saidi"
	FieldSAIFI       = "saifi"
	FieldUtilityID   = "utilityId"
	FieldUtilityName = "utilityName"
	FieldOwnership   = "ownership"
	FieldCustomers   = "customers"
	FieldNERCRegion  = "nercRegion"
	FieldDate        = "date"
	FieldCause       = "cause"
	FieldDuration    = "duration"
	FieldArea        = "area"
)

// ReliabilityRules resolves Form 861 reliability workbooks. Normalized
// ("without major event days") indices are preferred over raw ones.
func ReliabilityRules() RuleSet {
	return RuleSet{
		{Field: FieldState, Patterns: []string{"state", "st"}, Required: true},
		{Field: FieldSAIDI, Patterns: []string{"saidi without", "saidi w/o", "saidi wo", "saidi"}, Required: true},
		{Field: FieldSAIFI, Patterns: []string{"saifi without", "saifi w/o", "saifi wo", "saifi"}},
		{Field: FieldUtilityID, Patterns: []string{"utility number", "utility id", "utility no"}},
		{Field: FieldUtilityName, Patterns: []string{"utility name"}},
		{Field: FieldOwnership, Patterns: []string{"ownership"}},
		{Field: FieldCustomers, Patterns: []string{"number of customers", "customers"}},
	}
}

// UtilityDataRules resolves the Form 861 utility metadata workbook. RTO
// membership columns come from the reference table, one field per flag.
func UtilityDataRules(rtos []domain.RTO) RuleSet {
	rs := RuleSet{
		{Field: FieldUtilityID, Patterns: []string{"utility number", "utility id", "utility no"}, Required: true},
		{Field: FieldState, Patterns: []string{"state", "st"}, Required: true},
		{Field: FieldUtilityName, Patterns: []string{"utility name"}},
		{Field: FieldOwnership, Patterns: []string{"ownership"}},
		{Field: FieldNERCRegion, Patterns: []string{"nerc region", "nerc"}},
	}
	for _, r := range rtos {
		rs = append(rs, Rule{Field: r.Flag, Patterns: r.Patterns})
	}
	return rs
}

// OutageEventRules resolves DOE-417 event CSVs across dataset versions.
func OutageEventRules() RuleSet {
	return RuleSet{
		{Field: FieldDate, Patterns: []string{"event date", "date"}, Required: true},
		{Field: FieldCause, Patterns: []string{"event type", "cause"}},
		{Field: FieldCustomers, Patterns: []string{"number of customers affected", "customers"}},
		{Field: FieldDuration, Patterns: []string{"duration"}},
		{Field: FieldArea, Patterns: []string{"area affected", "state"}},
	}
}
