package domain

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed refdata.yaml
var refDataYAML []byte

// StateInfo is one row of the state table.
type StateInfo struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// Fuel maps an EIA fueltypeid to the generation field it feeds.
type Fuel struct {
	ID    string `yaml:"id"`
	Field string `yaml:"field"`
}

// Sector is an EIA retail-sales sectorid.
type Sector struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CauseCategory groups DOE-417 cause keywords.
type CauseCategory struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// RTO describes one RTO membership column of the Form 861 utility workbook.
type RTO struct {
	Flag     string   `yaml:"flag"`
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Hub is a wholesale trading hub and the states it prices.
type Hub struct {
	Name      string   `yaml:"name"`
	States    []string `yaml:"states"`
	Region    string   `yaml:"region"`
	DataFrom  int      `yaml:"dataFrom"`
	BasePrice float64  `yaml:"basePrice"`
}

// YearRange is an inclusive span of data years.
type YearRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Years lists every year in the range in ascending order.
func (r YearRange) Years() []int {
	if r.End < r.Start {
		return nil
	}
	years := make([]int, 0, r.End-r.Start+1)
	for y := r.Start; y <= r.End; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// DatasetYears holds the supported year span of each dataset.
type DatasetYears struct {
	Generation      YearRange `yaml:"generation"`
	Rates           YearRange `yaml:"rates"`
	Form861         YearRange `yaml:"form861"`
	Chart           YearRange `yaml:"chart"`
	Outages         YearRange `yaml:"outages"`
	OutagesSample   YearRange `yaml:"outagesSample"`
	Wholesale       YearRange `yaml:"wholesale"`
	WholesaleSample YearRange `yaml:"wholesaleSample"`
}

// RefData is the immutable reference configuration passed into every
// pipeline. Lists keep their YAML order.
type RefData struct {
	States          []StateInfo        `yaml:"states"`
	FIPS            map[string]string  `yaml:"fips"`
	Fuels           []Fuel             `yaml:"fuels"`
	Sectors         []Sector           `yaml:"sectors"`
	CauseCategories []CauseCategory    `yaml:"causeCategories"`
	CausePriority   []string           `yaml:"causePriority"`
	RTOs            []RTO              `yaml:"rtos"`
	Hubs            []Hub              `yaml:"hubs"`
	Years           DatasetYears       `yaml:"years"`
	ReliabilityBase map[string]float64 `yaml:"reliabilityBase"`

	byCode map[string]StateInfo
	byName map[string]string
}

// ParseRefData decodes a reference document and builds its lookup indexes.
func ParseRefData(data []byte) (*RefData, error) {
	var ref RefData
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if len(ref.States) == 0 {
		return nil, fmt.Errorf("parse reference data: no states")
	}
	ref.byCode = make(map[string]StateInfo, len(ref.States))
	ref.byName = make(map[string]string, len(ref.States))
	for _, s := range ref.States {
		ref.byCode[s.Code] = s
		ref.byName[strings.ToLower(s.Name)] = s.Code
	}
	return &ref, nil
}

var defaultRefData = sync.OnceValues(func() (*RefData, error) {
	return ParseRefData(refDataYAML)
})

// DefaultRefData returns the embedded reference tables. The embedded document
// is part of the binary, so a parse failure is a programming error.
func DefaultRefData() *RefData {
	ref, err := defaultRefData()
	if err != nil {
		panic(err)
	}
	return ref
}

// State looks up a state by its two-letter code.
func (r *RefData) State(code string) (StateInfo, bool) {
	s, ok := r.byCode[code]
	return s, ok
}

// IsState reports whether code is one of the 51 accepted codes.
func (r *RefData) IsState(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// StateCodeByName resolves a full state name, case-insensitively.
func (r *RefData) StateCodeByName(name string) (string, bool) {
	code, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// StateCodes returns the accepted codes sorted ascending.
func (r *RefData) StateCodes() []string {
	codes := make([]string, 0, len(r.States))
	for _, s := range r.States {
		codes = append(codes, s.Code)
	}
	sort.Strings(codes)
	return codes
}

// Hub looks up a hub by name.
func (r *RefData) Hub(name string) (Hub, bool) {
	for _, h := range r.Hubs {
		if h.Name == name {
			return h, true
		}
	}
	return Hub{}, false
}

// HubNames lists hub names in table order.
func (r *RefData) HubNames() []string {
	names := make([]string, 0, len(r.Hubs))
	for _, h := range r.Hubs {
		names = append(names, h.Name)
	}
	return names
}

// StateToHub maps each state to the first hub in table order that lists it.
func (r *RefData) StateToHub() map[string]string {
	m := make(map[string]string)
	for _, h := range r.Hubs {
		for _, s := range h.States {
			if _, ok := m[s]; !ok {
				m[s] = h.Name
			}
		}
	}
	return m
}
