package rawdata

import "encoding/json"

// ReliabilityRow is one state average in a reliability file.
type ReliabilityRow struct {
	State string  `json:"state"`
	SAIDI float64 `json:"saidi"`
	SAIFI float64 `json:"saifi"`
	Year  int     `json:"year"`
}

// GenerationRow is one state's annual generation for a fuel, in MWh.
type GenerationRow struct {
	Location   string  `json:"location"`
	Generation float64 `json:"generation"`
}

// RateRow is one state-sector retail price, in cents per kWh.
type RateRow struct {
	State      string   `json:"state"`
	Sector     string   `json:"sector"`
	SectorName string   `json:"sectorName"`
	Price      float64  `json:"price"`
	Revenue    *float64 `json:"revenue"`
	Sales      *float64 `json:"sales"`
	Year       int      `json:"year"`
}

// UtilityRow is one utility-year in a utilities file. RTO membership is
// written as one boolean per flag column, keyed by the flag name.
type UtilityRow struct {
	UtilityID   string
	UtilityName string
	State       string
	Ownership   string
	NERCRegion  string
	RTOs        map[string]bool
	SAIDI       *float64
	SAIFI       *float64
	Customers   *float64
}

// MarshalJSON flattens the RTO flags next to the other fields.
func (u UtilityRow) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"utility_id":   u.UtilityID,
		"utility_name": u.UtilityName,
		"state":        u.State,
		"ownership":    u.Ownership,
		"nerc_region":  u.NERCRegion,
		"saidi":        u.SAIDI,
		"saifi":        u.SAIFI,
		"customers":    u.Customers,
	}
	for flag, member := range u.RTOs {
		m[flag] = member
	}
	return json.Marshal(m)
}

// Keys of a utilities file row.
const (
	UtilityIDKey   = "utility_id"
	UtilityNameKey = "utility_name"
	OwnershipKey   = "ownership"
	NERCRegionKey  = "nerc_region"
)
