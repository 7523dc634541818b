package output

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func f(v float64) *float64 { return &v }

func TestNewChartFile(t *testing.T) {
	freezeClock(t)
	points := []ChartPoint{
		{State: "California", StateCode: "CA", Year: 2020, SAIDI: f(150.5), Region: "West"},
		{State: "Texas", StateCode: "TX", Year: 2020, Region: "South"},
		{State: "California", StateCode: "CA", Year: 2019, Region: "West"},
	}

	file := NewChartFile(points, SourceChartForm861)

	assert.Equal(t, "2024-05-01T08:30:00Z", file.Metadata.LastUpdated)
	assert.Equal(t, []int{2019, 2020}, file.Metadata.YearsAvailable)
	assert.Equal(t, []string{"CA", "TX"}, file.Metadata.States)
	assert.Equal(t, []string{"South", "West"}, file.Metadata.Regions)
	assert.Equal(t, SourceChartForm861, file.Metadata.DataSource)
}

func TestChartPoint_NullsAreSerialized(t *testing.T) {
	body, err := json.Marshal(ChartPoint{State: "Texas", StateCode: "TX", Year: 2020})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	for _, field := range []string{"saidi", "saifi", "rateResidential", "generationHydro", "vrePenetration"} {
		v, ok := decoded[field]
		assert.True(t, ok, "%s must be present", field)
		assert.Nil(t, v, "%s must be null", field)
	}
}

func TestNewUtilityFile(t *testing.T) {
	freezeClock(t)
	pjm := "PJM"
	records := []UtilityRecord{
		{UtilityID: "1", StateCode: "PA", Ownership: "Cooperative", RTOs: []string{"PJM", "MISO"}, PrimaryRTO: &pjm, Year: 2020},
		{UtilityID: "1", StateCode: "PA", Ownership: "Cooperative", RTOs: []string{"PJM"}, PrimaryRTO: &pjm, Year: 2021},
		{UtilityID: "2", StateCode: "TX", Ownership: "", RTOs: []string{}, Year: 2021},
	}

	file := NewUtilityFile(records)

	assert.Equal(t, []int{2020, 2021}, file.Metadata.YearsAvailable)
	assert.Equal(t, []string{"Cooperative"}, file.Metadata.OwnershipTypes)
	assert.Equal(t, []string{"MISO", "PJM"}, file.Metadata.RTOs)
	assert.Equal(t, 2, file.Metadata.TotalUtilities)
	assert.Empty(t, ValidateUtilities(file, domain.DefaultRefData()))
}

func TestNewWholesaleFile(t *testing.T) {
	freezeClock(t)
	ref := domain.DefaultRefData()
	points := []WholesalePoint{
		{Hub: "SP15", Year: 2015, AvgPrice: 40, MinPrice: 20, MaxPrice: 90, DataPoints: 250},
		{Hub: "Mass Hub", Year: 2014, AvgPrice: 50, MinPrice: 20, MaxPrice: 90, DataPoints: 250},
	}

	file := NewWholesaleFile(points, ref.HubNames(), ref.StateToHub(), SourceWholesale)

	assert.Equal(t, []string{"Mass Hub", "SP15"}, file.Metadata.HubsAvailable)
	assert.Equal(t, []int{2014, 2015}, file.Metadata.YearsAvailable)
	assert.Empty(t, ValidateWholesale(file, ref))
}

func TestNewOutageFile_EmptySlicesAreArrays(t *testing.T) {
	freezeClock(t)
	file := NewOutageFile(nil, nil, []int{2016, 2014, 2016}, []string{"weather"}, SourceOutages)
	doc, err := Encode(OutageFileName, file)
	require.NoError(t, err)

	assert.Contains(t, string(doc.Body), `"events": []`)
	assert.Contains(t, string(doc.Body), `"stateYearSummary": []`)
	assert.Equal(t, []int{2014, 2016}, file.Metadata.YearsAvailable)
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DistinctSorted([]string{"b", "", "a", "b"}))
	assert.Equal(t, []string{}, DistinctSorted(nil))
	assert.Equal(t, []int{1, 3}, DistinctYears([]int{3, 1, 3}))
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public", "data")
	sink := FileSink{Dir: dir}

	require.NoError(t, sink.Publish(context.Background(), Document{Name: ChartFileName, Body: []byte("old-and-longer")}))
	require.NoError(t, sink.Publish(context.Background(), Document{Name: ChartFileName, Body: []byte("new")}))

	got, err := os.ReadFile(filepath.Join(dir, ChartFileName))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

type recordingSink struct {
	docs []string
	err  error
}

func (s *recordingSink) Publish(_ context.Context, doc Document) error {
	s.docs = append(s.docs, doc.Name)
	return s.err
}

func TestFanout(t *testing.T) {
	t.Run("mirror failure is not fatal", func(t *testing.T) {
		primary := &recordingSink{}
		broken := &recordingSink{err: errors.New("broker down")}
		healthy := &recordingSink{}
		fan := Fanout{Primary: primary, Mirrors: []Sink{broken, healthy}}

		require.NoError(t, fan.Publish(context.Background(), Document{Name: "a.json"}))
		assert.Equal(t, []string{"a.json"}, primary.docs)
		assert.Equal(t, []string{"a.json"}, healthy.docs)
	})

	t.Run("primary failure stops publishing", func(t *testing.T) {
		primary := &recordingSink{err: errors.New("disk full")}
		mirror := &recordingSink{}
		fan := Fanout{Primary: primary, Mirrors: []Sink{mirror}}

		require.Error(t, fan.Publish(context.Background(), Document{Name: "a.json"}))
		assert.Empty(t, mirror.docs)
	})
}

func TestValidateChart(t *testing.T) {
	freezeClock(t)
	ref := domain.DefaultRefData()

	good := NewChartFile([]ChartPoint{
		{StateCode: "CA", Year: 2020, SAIDI: f(150.5), RateAll: f(20), Region: "West"},
		{StateCode: "TX", Year: 2020, Region: "South"},
	}, SourceChartEstimates)
	assert.Empty(t, ValidateChart(good, ref))

	bad := NewChartFile([]ChartPoint{
		{StateCode: "TX", Year: 2020, SAIDI: f(9999999), Region: "South"},
		{StateCode: "CA", Year: 2020, Region: "West"},
		{StateCode: "PR", Year: 2020, RateAll: f(120), Region: "South"},
	}, SourceChartEstimates)
	bad.Metadata.Regions = []string{"West"}
	errs := ValidateChart(bad, ref)
	assert.Len(t, errs, 5)
}
