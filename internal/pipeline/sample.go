package pipeline

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
)

// Regional bases for sample chart data.
var (
	sampleVREBase   = map[string]float64{"West": 15, "Midwest": 12, "South": 5, "Northeast": 8}
	sampleSAIDIBase = map[string]float64{"West": 150, "South": 200, "Midwest": 120, "Northeast": 100}
)

func ptr(v float64) *float64 { return &v }

// sampleChartPoints generates a deterministic chart dataset for development
// with VRE growing over time.
func sampleChartPoints(ref *domain.RefData) []output.ChartPoint {
	rng := newRand()
	var points []output.ChartPoint
	for _, year := range ref.Years.Chart.Years() {
		offset := float64(year-ref.Years.Chart.Start) / 10
		for _, s := range ref.States {
			vre := sampleVREBase[s.Region] * (1 + offset*2) * uniform(rng, 0.5, 1.5)
			wind := vre * uniform(rng, 0.4, 0.8)
			solar := vre - wind
			saidi := sampleSAIDIBase[s.Region] * uniform(rng, 0.6, 1.4)
			saifi := saidi / 100 * uniform(rng, 0.9, 1.1)

			points = append(points, output.ChartPoint{
				State:            s.Name,
				StateCode:        s.Code,
				Year:             year,
				SAIDI:            ptr(domain.Round(saidi, 1)),
				SAIFI:            ptr(domain.Round(saifi, 2)),
				VREPenetration:   ptr(domain.Round(vre, 1)),
				WindPenetration:  ptr(domain.Round(wind, 1)),
				SolarPenetration: ptr(domain.Round(solar, 1)),
				TotalGeneration:  ptr(float64(randInt(rng, 10000, 500000))),
				CustomerCount:    int64(randInt(rng, 100000, 5000000)),
				Region:           s.Region,
			})
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Year != points[j].Year {
			return points[i].Year < points[j].Year
		}
		return points[i].StateCode < points[j].StateCode
	})
	return points
}

// outageProfile shapes sample outages for one state.
type outageProfile struct {
	state       string
	weatherRate float64
	baseEvents  int
}

var sampleOutageProfiles = []outageProfile{
	{"FL", 0.7, 15}, {"TX", 0.6, 20}, {"LA", 0.7, 12}, {"NC", 0.5, 10}, {"GA", 0.5, 8},
	{"NY", 0.4, 12}, {"PA", 0.4, 8}, {"OH", 0.4, 7}, {"MI", 0.5, 8}, {"IL", 0.4, 7},
	{"CA", 0.3, 15}, {"WA", 0.3, 5}, {"AZ", 0.2, 4}, {"CO", 0.3, 4}, {"NV", 0.2, 3},
}

var sampleCauseNames = map[string]string{
	"weather":   "Severe Weather",
	"equipment": "Equipment Failure",
	"other":     "Other",
}

const maxSampleOutageEvents = 100

// sampleOutageFile generates deterministic outage events and their
// state-year summaries.
func sampleOutageFile(ref *domain.RefData) output.OutageFile {
	rng := newRand()
	years := ref.Years.OutagesSample.Years()
	var events []output.OutageEvent
	var summary []output.StateYearSummary

	for _, year := range years {
		for _, p := range sampleOutageProfiles {
			trend := 1 + float64(year-ref.Years.OutagesSample.Start)*0.03
			n := int(float64(p.baseEvents) * trend * uniform(rng, 0.7, 1.3))
			weather := int(float64(n) * p.weatherRate)
			equipment := int(float64(n) * 0.2)

			var total, largest int64
			for i := range n {
				category := domain.CauseOther
				switch {
				case i < weather:
					category = "weather"
				case i < weather+equipment:
					category = "equipment"
				}

				var customers int
				var duration float64
				if category == "weather" {
					customers = randInt(rng, 10000, 500000)
					duration = uniform(rng, 2, 48)
				} else {
					customers = randInt(rng, 5000, 100000)
					duration = uniform(rng, 1, 12)
				}
				month, day := randInt(rng, 1, 12), randInt(rng, 1, 28)

				events = append(events, output.OutageEvent{
					EventID:           fmt.Sprintf("%s-%d-%03d", p.state, year, i),
					Date:              fmt.Sprintf("%d-%02d-%02d", year, month, day),
					Year:              year,
					States:            []string{p.state},
					Cause:             sampleCauseNames[category],
					CauseCategory:     category,
					CustomersAffected: int64(customers),
					DurationHours:     domain.Round(duration, 1),
				})
				total += int64(customers)
				largest = max(largest, int64(customers))
			}

			primary := "equipment"
			if weather > equipment {
				primary = "weather"
			}
			summary = append(summary, output.StateYearSummary{
				StateCode:              p.state,
				Year:                   year,
				TotalEvents:            n,
				WeatherEvents:          weather,
				EquipmentEvents:        equipment,
				OtherEvents:            n - weather - equipment,
				PrimaryCause:           primary,
				TotalCustomersAffected: total,
				MaxEventCustomers:      largest,
				AvgDurationHours:       domain.Round(uniform(rng, 4, 16), 1),
			})
		}
	}

	if len(events) > maxSampleOutageEvents {
		events = events[len(events)-maxSampleOutageEvents:]
	}
	return output.NewOutageFile(events, summary, years, ref.CausePriority, output.SourceSample)
}

// sampleWholesalePoints generates deterministic hub prices. Hubs are left
// out for years before their data begins.
func sampleWholesalePoints(ref *domain.RefData) []output.WholesalePoint {
	rng := newRand()
	var points []output.WholesalePoint
	for _, year := range ref.Years.WholesaleSample.Years() {
		trend := 1 + float64(year-ref.Years.WholesaleSample.Start)*0.02
		for _, h := range ref.Hubs {
			if year < h.DataFrom {
				continue
			}
			avg := h.BasePrice * trend * uniform(rng, 0.85, 1.15)
			volatility := avg * uniform(rng, 0.15, 0.35)
			points = append(points, output.WholesalePoint{
				Hub:          h.Name,
				Year:         year,
				AvgPrice:     domain.Round(avg, 2),
				MinPrice:     domain.Round(avg*0.4, 2),
				MaxPrice:     domain.Round(avg*2.5, 2),
				Volatility:   domain.Round(volatility, 2),
				DataPoints:   365,
				MappedStates: h.States,
				Region:       h.Region,
			})
		}
	}
	return points
}
