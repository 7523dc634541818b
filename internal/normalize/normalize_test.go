package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/schema"
)

var reliabilityMapping = schema.Identity(
	schema.FieldState, schema.FieldSAIDI, schema.FieldSAIFI, schema.FieldUtilityID,
	schema.FieldUtilityName, schema.FieldOwnership, schema.FieldCustomers,
)

func TestReliability_Normalize(t *testing.T) {
	n := Reliability(domain.DefaultRefData())

	tests := []struct {
		name   string
		row    domain.RawRow
		reason SkipReason
	}{
		{"valid", domain.RawRow{"state": " ca ", "saidi": "150.5"}, Kept},
		{"unknown state", domain.RawRow{"state": "PR", "saidi": "150.5"}, InvalidState},
		{"missing state", domain.RawRow{"saidi": "150.5"}, InvalidState},
		{"unparseable saidi", domain.RawRow{"state": "CA", "saidi": "."}, MissingRequired},
		{"zero saidi", domain.RawRow{"state": "CA", "saidi": 0.0}, OutOfRange},
		{"negative saidi", domain.RawRow{"state": "CA", "saidi": "-3"}, OutOfRange},
		{"saidi at upper bound", domain.RawRow{"state": "CA", "saidi": 10000}, OutOfRange},
		{"saidi far out of range", domain.RawRow{"state": "TX", "saidi": 9999999.0}, OutOfRange},
		{"saidi just below bound", domain.RawRow{"state": "ME", "saidi": "9999.9"}, Kept},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason := n.Normalize(tt.row, reliabilityMapping, 2020)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestReliability_OptionalFieldsBecomeNull(t *testing.T) {
	n := Reliability(domain.DefaultRefData())
	row := domain.RawRow{
		"state":       "CA",
		"saidi":       "150.5",
		"saifi":       "n/a",
		"utilityId":   "14328.0",
		"utilityName": " Pacific Gas & Electric Co ",
		"ownership":   "",
		"customers":   json.Number("5400000"),
	}

	rec, reason := n.Normalize(row, reliabilityMapping, 2020)
	require.Equal(t, Kept, reason)

	assert.Equal(t, domain.EntityKey{StateCode: "CA", Year: 2020, UtilityID: "14328"}, rec.Key)
	assert.Equal(t, 150.5, rec.Metrics[domain.MetricSAIDI])
	assert.Nil(t, rec.Metrics.Get(domain.MetricSAIFI))
	assert.Equal(t, 5400000.0, rec.Metrics[domain.MetricCustomers])
	assert.Equal(t, "Pacific Gas & Electric Co", rec.Label(schema.FieldUtilityName))
	assert.Empty(t, rec.Label(schema.FieldOwnership))
}

func TestRates_Normalize(t *testing.T) {
	n := Rates(domain.DefaultRefData(), "stateid")
	m := schema.Identity("stateid", domain.MetricPrice, domain.MetricRevenue, domain.MetricSales, "sector")

	rec, reason := n.Normalize(domain.RawRow{
		"stateid": "NY", "price": "19.456", "revenue": "1234.6", "sales": nil, "sector": "RES",
	}, m, 2021)
	require.Equal(t, Kept, reason)
	assert.Equal(t, 19.46, rec.Metrics[domain.MetricPrice])
	assert.Equal(t, 1235.0, rec.Metrics[domain.MetricRevenue])
	assert.Nil(t, rec.Metrics.Get(domain.MetricSales))
	assert.Equal(t, "RES", rec.Label("sector"))

	_, reason = n.Normalize(domain.RawRow{"stateid": "NY", "price": 100.0}, m, 2021)
	assert.Equal(t, Kept, reason)
	_, reason = n.Normalize(domain.RawRow{"stateid": "NY", "price": 100.5}, m, 2021)
	assert.Equal(t, OutOfRange, reason)
	_, reason = n.Normalize(domain.RawRow{"stateid": "NY", "price": 0}, m, 2021)
	assert.Equal(t, OutOfRange, reason)
	_, reason = n.Normalize(domain.RawRow{"stateid": "US", "price": 12.0}, m, 2021)
	assert.Equal(t, InvalidState, reason)
}

func TestAll(t *testing.T) {
	n := Reliability(domain.DefaultRefData())
	rows := []domain.RawRow{
		{"state": "CA", "saidi": 150.5},
		{"state": "TX", "saidi": 9999999.0},
		{"state": "XX", "saidi": 100.0},
		{"state": "NV", "saidi": 120.0},
	}

	res := n.All(rows, reliabilityMapping, 2020)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "CA", res.Records[0].Key.StateCode)
	assert.Equal(t, "NV", res.Records[1].Key.StateCode)
	assert.Equal(t, 1, res.Skipped[OutOfRange])
	assert.Equal(t, 1, res.Skipped[InvalidState])
	assert.Equal(t, 2, res.Dropped())
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "195", FormatID(195.0))
	assert.Equal(t, "195", FormatID("195"))
	assert.Equal(t, "195", FormatID("195.0"))
	assert.Equal(t, "A-12", FormatID(" A-12 "))
	assert.Equal(t, "", FormatID(nil))
}
