package normalize

import (
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

// Reliability validates Form 861 utility rows and raw reliability files.
// SAIDI is required and range checked; rounding happens after aggregation.
func Reliability(ref *domain.RefData) Normalizer {
	return Normalizer{
		Ref:          ref,
		StateField:   schema.FieldState,
		UtilityField: schema.FieldUtilityID,
		Fields: []FieldSpec{
			{Metric: domain.MetricSAIDI, Required: true, Range: &domain.SAIDIRange, Places: domain.NoRounding},
			{Metric: domain.MetricSAIFI, Places: domain.NoRounding},
			{Metric: domain.MetricCustomers, Places: domain.NoRounding},
		},
		Labels: []string{schema.FieldUtilityName, schema.FieldOwnership},
	}
}

// Rates validates EIA retail-sales API rows and raw rate files.
func Rates(ref *domain.RefData, stateField string) Normalizer {
	return Normalizer{
		Ref:        ref,
		StateField: stateField,
		Fields: []FieldSpec{
			{Metric: domain.MetricPrice, Required: true, Range: &domain.PriceRange, Places: 2},
			{Metric: domain.MetricRevenue, Places: 0},
			{Metric: domain.MetricSales, Places: 0},
		},
		Labels: []string{"sector"},
	}
}

// Generation validates one fuel's rows from a raw generation file.
func Generation(ref *domain.RefData) Normalizer {
	return Normalizer{
		Ref:        ref,
		StateField: "location",
		Fields: []FieldSpec{
			{Metric: "generation", Required: true, Places: domain.NoRounding},
		},
	}
}

// Utilities validates rows of the raw utilities files. flags are the RTO
// membership columns, carried as labels.
func Utilities(ref *domain.RefData, flags []string) Normalizer {
	labels := []string{rawdata.UtilityNameKey, rawdata.OwnershipKey, rawdata.NERCRegionKey}
	return Normalizer{
		Ref:          ref,
		StateField:   schema.FieldState,
		UtilityField: rawdata.UtilityIDKey,
		Fields: []FieldSpec{
			{Metric: domain.MetricSAIDI, Places: domain.NoRounding},
			{Metric: domain.MetricSAIFI, Places: domain.NoRounding},
			{Metric: domain.MetricCustomers, Places: domain.NoRounding},
		},
		Labels: append(labels, flags...),
	}
}
