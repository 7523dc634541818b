// Package domain models the public utility datasets the pipeline consumes:
// EIA state generation by fuel, EIA retail electricity prices, EIA Form 861
// reliability indices, DOE-417 major disturbance events and EIA/ICE wholesale
// hub prices.
//
// # Data Sources
//
// Generation and retail prices come from the EIA API v2
// (https://api.eia.gov/v2). Reliability indices come from the annual Form 861
// ZIP archives (https://www.eia.gov/electricity/data/eia861/), which contain
// one Excel workbook per schedule. Outage events come from the OpenEI
// event-correlated outage dataset (submission 6458). Wholesale prices are
// only published as yearly Excel workbooks.
//
// # EIA Data Conventions
//
// State codes:
//
//	Two-letter postal codes. Only the 50 states plus DC are accepted; API
//	rows for "US", census regions and territories are discarded.
//
// Numeric cells:
//
//	API values arrive as JSON strings or numbers. Workbook cells may hold
//	".", blanks or footnote markers. Anything that does not parse as a finite
//	float is treated as missing, never as zero.
//
// Reliability indices:
//
//	SAIDI is minutes of interruption per customer per year, SAIFI is
//	interruptions per customer per year. Form 861 reports both with and
//	without Major Event Days; the "without MED" columns are preferred.
//	SAIDI is only accepted in (0, 10000): values above ~2000 do occur after
//	severe storms (Maine 2023 averaged ~2961), larger ones are data errors.
//
// Retail prices:
//
//	Cents per kWh, accepted in (0, 100]. Revenue is thousand dollars, sales
//	are thousand kWh.
//
// Generation:
//
//	Annual MWh for sector 99 (all sectors). Wind plus solar over total is the
//	variable renewable energy (VRE) penetration, in percent.
//
// # Rounding
//
// Values are rounded half-to-even to a fixed number of decimals per field
// (see [Round]): SAIDI 1, SAIFI 2, prices 2, penetration 2, MWh 0.
package domain
