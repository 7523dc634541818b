// Package output defines the JSON documents consumed by the chart frontend
// and the sinks that publish them.
package output

import (
	"sort"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// Output file names.
const (
	ChartFileName     = "saidi-vre.json"
	UtilityFileName   = "utilities.json"
	OutageFileName    = "outage-events.json"
	WholesaleFileName = "wholesale-prices.json"
)

// FileNames lists every document the pipelines produce.
var FileNames = []string{ChartFileName, UtilityFileName, OutageFileName, WholesaleFileName}

// Data source descriptions.
const (
	SourceSample             = "Sample data for development"
	SourceChartForm861       = "EIA API (generation) and EIA Form 861 (reliability)"
	SourceChartEstimates     = "EIA API (generation) and Form 861 estimates (reliability)"
	SourceChartNoReliability = "EIA API (generation) and sample data (reliability)"
	SourceUtilities          = "EIA Form 861 (utility-level reliability and metadata)"
	SourceOutages            = "DOE Event-Correlated Outage Dataset (EAGLE-I + DOE-417)"
	SourceWholesale          = "EIA Wholesale Electricity Markets (ICE)"
)

// ChartPoint is one state-year row of saidi-vre.json. Nullable fields are
// pointers and serialize as null rather than being omitted.
type ChartPoint struct {
	State            string   `json:"state"`
	StateCode        string   `json:"stateCode"`
	Year             int      `json:"year"`
	SAIDI            *float64 `json:"saidi"`
	SAIFI            *float64 `json:"saifi"`
	VREPenetration   *float64 `json:"vrePenetration"`
	WindPenetration  *float64 `json:"windPenetration"`
	SolarPenetration *float64 `json:"solarPenetration"`
	TotalGeneration  *float64 `json:"totalGeneration"`
	CustomerCount    int64    `json:"customerCount"`
	Region           string   `json:"region"`

	RateResidential *float64 `json:"rateResidential"`
	RateCommercial  *float64 `json:"rateCommercial"`
	RateIndustrial  *float64 `json:"rateIndustrial"`
	RateAll         *float64 `json:"rateAll"`

	GenerationWind    *float64 `json:"generationWind"`
	GenerationSolar   *float64 `json:"generationSolar"`
	GenerationGas     *float64 `json:"generationGas"`
	GenerationCoal    *float64 `json:"generationCoal"`
	GenerationNuclear *float64 `json:"generationNuclear"`
	GenerationHydro   *float64 `json:"generationHydro"`
	GenerationOther   *float64 `json:"generationOther"`
}

// ChartMetadata describes saidi-vre.json.
type ChartMetadata struct {
	LastUpdated    string   `json:"lastUpdated"`
	YearsAvailable []int    `json:"yearsAvailable"`
	States         []string `json:"states"`
	Regions        []string `json:"regions"`
	DataSource     string   `json:"dataSource"`
}

// ChartFile is the saidi-vre.json document.
type ChartFile struct {
	Points   []ChartPoint  `json:"points"`
	Metadata ChartMetadata `json:"metadata"`
}

// NewChartFile derives metadata from the points.
func NewChartFile(points []ChartPoint, dataSource string) ChartFile {
	years := make([]int, 0, len(points))
	states := make([]string, 0, len(points))
	regions := make([]string, 0, len(points))
	for _, p := range points {
		years = append(years, p.Year)
		states = append(states, p.StateCode)
		regions = append(regions, p.Region)
	}
	return ChartFile{
		Points: nonNil(points),
		Metadata: ChartMetadata{
			LastUpdated:    domain.Timestamp(),
			YearsAvailable: DistinctYears(years),
			States:         DistinctSorted(states),
			Regions:        DistinctSorted(regions),
			DataSource:     dataSource,
		},
	}
}

// UtilityRecord is one utility-year row of utilities.json.
type UtilityRecord struct {
	UtilityID   string   `json:"utilityId"`
	UtilityName string   `json:"utilityName"`
	State       string   `json:"state"`
	StateCode   string   `json:"stateCode"`
	Region      string   `json:"region"`
	Ownership   string   `json:"ownership"`
	NERCRegion  string   `json:"nercRegion"`
	PrimaryRTO  *string  `json:"primaryRto"`
	RTOs        []string `json:"rtos"`
	Year        int      `json:"year"`
	SAIDI       *float64 `json:"saidi"`
	SAIFI       *float64 `json:"saifi"`
	Customers   *float64 `json:"customers"`

	StateVREPenetration   float64 `json:"stateVrePenetration"`
	StateWindPenetration  float64 `json:"stateWindPenetration"`
	StateSolarPenetration float64 `json:"stateSolarPenetration"`
}

// UtilityMetadata describes utilities.json.
type UtilityMetadata struct {
	LastUpdated    string   `json:"lastUpdated"`
	YearsAvailable []int    `json:"yearsAvailable"`
	OwnershipTypes []string `json:"ownershipTypes"`
	RTOs           []string `json:"rtos"`
	TotalUtilities int      `json:"totalUtilities"`
	DataSource     string   `json:"dataSource"`
}

// UtilityFile is the utilities.json document.
type UtilityFile struct {
	Utilities []UtilityRecord `json:"utilities"`
	Metadata  UtilityMetadata `json:"metadata"`
}

// NewUtilityFile derives metadata from the records.
func NewUtilityFile(records []UtilityRecord) UtilityFile {
	var years []int
	var ownership, rtos []string
	ids := make(map[string]struct{})
	for _, u := range records {
		years = append(years, u.Year)
		ownership = append(ownership, u.Ownership)
		rtos = append(rtos, u.RTOs...)
		ids[u.UtilityID] = struct{}{}
	}
	return UtilityFile{
		Utilities: nonNil(records),
		Metadata: UtilityMetadata{
			LastUpdated:    domain.Timestamp(),
			YearsAvailable: DistinctYears(years),
			OwnershipTypes: DistinctSorted(ownership),
			RTOs:           DistinctSorted(rtos),
			TotalUtilities: len(ids),
			DataSource:     SourceUtilities,
		},
	}
}

// OutageEvent is one DOE-417 disturbance report.
type OutageEvent struct {
	EventID           string   `json:"eventId"`
	Date              string   `json:"date"`
	Year              int      `json:"year"`
	States            []string `json:"states"`
	Cause             string   `json:"cause"`
	CauseCategory     string   `json:"causeCategory"`
	CustomersAffected int64    `json:"customersAffected"`
	DurationHours     float64  `json:"durationHours"`
}

// StateYearSummary aggregates the events of one state-year.
type StateYearSummary struct {
	StateCode              string  `json:"stateCode"`
	Year                   int     `json:"year"`
	TotalEvents            int     `json:"totalEvents"`
	WeatherEvents          int     `json:"weatherEvents"`
	EquipmentEvents        int     `json:"equipmentEvents"`
	DemandEvents           int     `json:"demandEvents"`
	OtherEvents            int     `json:"otherEvents"`
	PrimaryCause           string  `json:"primaryCause"`
	TotalCustomersAffected int64   `json:"totalCustomersAffected"`
	MaxEventCustomers      int64   `json:"maxEventCustomers"`
	AvgDurationHours       float64 `json:"avgDurationHours"`
}

// OutageMetadata describes outage-events.json.
type OutageMetadata struct {
	LastUpdated    string   `json:"lastUpdated"`
	YearsAvailable []int    `json:"yearsAvailable"`
	CauseTypes     []string `json:"causeTypes"`
	DataSource     string   `json:"dataSource"`
}

// OutageFile is the outage-events.json document.
type OutageFile struct {
	Events           []OutageEvent      `json:"events"`
	StateYearSummary []StateYearSummary `json:"stateYearSummary"`
	Metadata         OutageMetadata     `json:"metadata"`
}

// NewOutageFile builds the document. years covers every parsed event, not
// only the retained tail.
func NewOutageFile(events []OutageEvent, summary []StateYearSummary, years []int, causeTypes []string, dataSource string) OutageFile {
	return OutageFile{
		Events:           nonNil(events),
		StateYearSummary: nonNil(summary),
		Metadata: OutageMetadata{
			LastUpdated:    domain.Timestamp(),
			YearsAvailable: DistinctYears(years),
			CauseTypes:     nonNil(causeTypes),
			DataSource:     dataSource,
		},
	}
}

// WholesalePoint is one hub-year price summary.
type WholesalePoint struct {
	Hub          string   `json:"hub"`
	Year         int      `json:"year"`
	AvgPrice     float64  `json:"avgPrice"`
	MinPrice     float64  `json:"minPrice"`
	MaxPrice     float64  `json:"maxPrice"`
	Volatility   float64  `json:"volatility"`
	DataPoints   int      `json:"dataPoints"`
	MappedStates []string `json:"mappedStates"`
	Region       string   `json:"region"`
}

// WholesaleMetadata describes wholesale-prices.json.
type WholesaleMetadata struct {
	LastUpdated    string            `json:"lastUpdated"`
	HubsAvailable  []string          `json:"hubsAvailable"`
	YearsAvailable []int             `json:"yearsAvailable"`
	StateToHub     map[string]string `json:"stateToHub"`
	DataSource     string            `json:"dataSource"`
}

// WholesaleFile is the wholesale-prices.json document.
type WholesaleFile struct {
	Points   []WholesalePoint  `json:"points"`
	Metadata WholesaleMetadata `json:"metadata"`
}

// NewWholesaleFile derives metadata from the points. hubOrder fixes the
// order of hubsAvailable; hubs without points are left out.
func NewWholesaleFile(points []WholesalePoint, hubOrder []string, stateToHub map[string]string, dataSource string) WholesaleFile {
	present := make(map[string]bool)
	years := make([]int, 0, len(points))
	for _, p := range points {
		present[p.Hub] = true
		years = append(years, p.Year)
	}
	hubs := make([]string, 0, len(present))
	for _, h := range hubOrder {
		if present[h] {
			hubs = append(hubs, h)
		}
	}
	return WholesaleFile{
		Points: nonNil(points),
		Metadata: WholesaleMetadata{
			LastUpdated:    domain.Timestamp(),
			HubsAvailable:  hubs,
			YearsAvailable: DistinctYears(years),
			StateToHub:     stateToHub,
			DataSource:     dataSource,
		},
	}
}

// DistinctSorted returns the sorted set of non-empty values.
func DistinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DistinctYears returns the ascending set of years.
func DistinctYears(years []int) []int {
	seen := make(map[int]struct{}, len(years))
	out := make([]int, 0)
	for _, y := range years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// nonNil keeps empty arrays as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
