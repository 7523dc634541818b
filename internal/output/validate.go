package output

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// ValidateChart checks a decoded saidi-vre.json against the output contract.
func ValidateChart(f ChartFile, ref *domain.RefData) []error {
	var errs []error
	var years []int
	var states, regions []string
	for i, p := range f.Points {
		if !ref.IsState(p.StateCode) {
			errs = append(errs, fmt.Errorf("points[%d]: unknown state code %q", i, p.StateCode))
		}
		if p.SAIDI != nil && !domain.SAIDIRange.Contains(*p.SAIDI) {
			errs = append(errs, fmt.Errorf("points[%d]: saidi %v out of range", i, *p.SAIDI))
		}
		for name, rate := range map[string]*float64{
			"rateResidential": p.RateResidential, "rateCommercial": p.RateCommercial,
			"rateIndustrial": p.RateIndustrial, "rateAll": p.RateAll,
		} {
			if rate != nil && !domain.PriceRange.Contains(*rate) {
				errs = append(errs, fmt.Errorf("points[%d]: %s %v out of range", i, name, *rate))
			}
		}
		if i > 0 && pointLess(p, f.Points[i-1]) {
			errs = append(errs, fmt.Errorf("points[%d]: not sorted by year and state", i))
		}
		years = append(years, p.Year)
		states = append(states, p.StateCode)
		regions = append(regions, p.Region)
	}
	errs = append(errs, checkYears(f.Metadata.YearsAvailable)...)
	errs = appendMismatch(errs, "states", f.Metadata.States, DistinctSorted(states))
	errs = appendMismatch(errs, "regions", f.Metadata.Regions, DistinctSorted(regions))
	if !slices.Equal(f.Metadata.YearsAvailable, DistinctYears(years)) {
		errs = append(errs, fmt.Errorf("metadata.yearsAvailable does not match points"))
	}
	return errs
}

// ValidateUtilities checks a decoded utilities.json.
func ValidateUtilities(f UtilityFile, ref *domain.RefData) []error {
	var errs []error
	var rtos, ownership []string
	for i, u := range f.Utilities {
		if !ref.IsState(u.StateCode) {
			errs = append(errs, fmt.Errorf("utilities[%d]: unknown state code %q", i, u.StateCode))
		}
		if u.PrimaryRTO != nil && (len(u.RTOs) == 0 || u.RTOs[0] != *u.PrimaryRTO) {
			errs = append(errs, fmt.Errorf("utilities[%d]: primaryRto is not the first rto", i))
		}
		rtos = append(rtos, u.RTOs...)
		ownership = append(ownership, u.Ownership)
	}
	errs = append(errs, checkYears(f.Metadata.YearsAvailable)...)
	errs = appendMismatch(errs, "rtos", f.Metadata.RTOs, DistinctSorted(rtos))
	errs = appendMismatch(errs, "ownershipTypes", f.Metadata.OwnershipTypes, DistinctSorted(ownership))
	return errs
}

// ValidateOutages checks a decoded outage-events.json.
func ValidateOutages(f OutageFile, ref *domain.RefData) []error {
	var errs []error
	for i, s := range f.StateYearSummary {
		if !ref.IsState(s.StateCode) {
			errs = append(errs, fmt.Errorf("stateYearSummary[%d]: unknown state code %q", i, s.StateCode))
		}
		if sum := s.WeatherEvents + s.EquipmentEvents + s.DemandEvents + s.OtherEvents; sum != s.TotalEvents {
			errs = append(errs, fmt.Errorf("stateYearSummary[%d]: category counts %d != totalEvents %d", i, sum, s.TotalEvents))
		}
		if !slices.Contains(ref.CausePriority, s.PrimaryCause) {
			errs = append(errs, fmt.Errorf("stateYearSummary[%d]: unknown primaryCause %q", i, s.PrimaryCause))
		}
	}
	return append(errs, checkYears(f.Metadata.YearsAvailable)...)
}

// ValidateWholesale checks a decoded wholesale-prices.json.
func ValidateWholesale(f WholesaleFile, ref *domain.RefData) []error {
	var errs []error
	for i, p := range f.Points {
		if _, ok := ref.Hub(p.Hub); !ok {
			errs = append(errs, fmt.Errorf("points[%d]: unknown hub %q", i, p.Hub))
		}
		if p.MinPrice > p.AvgPrice || p.AvgPrice > p.MaxPrice {
			errs = append(errs, fmt.Errorf("points[%d]: avgPrice outside min/max", i))
		}
		if p.DataPoints <= 0 {
			errs = append(errs, fmt.Errorf("points[%d]: no data points", i))
		}
	}
	for state := range f.Metadata.StateToHub {
		if !ref.IsState(state) {
			errs = append(errs, fmt.Errorf("metadata.stateToHub: unknown state code %q", state))
		}
	}
	return append(errs, checkYears(f.Metadata.YearsAvailable)...)
}

func pointLess(a, b ChartPoint) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.StateCode < b.StateCode
}

func checkYears(years []int) []error {
	for i := 1; i < len(years); i++ {
		if years[i] <= years[i-1] {
			return []error{fmt.Errorf("metadata.yearsAvailable is not sorted and distinct")}
		}
	}
	return nil
}

func appendMismatch(errs []error, field string, got, want []string) []error {
	if !slices.Equal(got, want) {
		errs = append(errs, fmt.Errorf("metadata.%s does not match records", field))
	}
	return errs
}
