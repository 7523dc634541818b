package rawdata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndReadRows(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	rows := []ReliabilityRow{{State: "CA", SAIDI: 150.5, SAIFI: 1.2, Year: 2020}}

	require.NoError(t, s.Write(Reliability, 2020, rows))
	assert.FileExists(t, filepath.Join(s.Dir, "reliability", "reliability_2020.json"))

	got, err := s.ReadRows(Reliability, 2020)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CA", got[0]["state"])
	assert.Equal(t, json.Number("150.5"), got[0]["saidi"])
	assert.Equal(t, json.Number("2020"), got[0]["year"])
}

func TestStore_ReadMissing(t *testing.T) {
	s := Store{Dir: t.TempDir()}

	_, err := s.ReadRows(Rates, 2019)
	assert.ErrorIs(t, err, ErrMissing)

	_, err = s.ReadGeneration(2019)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestStore_ReadMalformed(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	require.NoError(t, os.MkdirAll(s.DatasetDir(Rates), 0o755))
	require.NoError(t, os.WriteFile(s.Path(Rates, 2019), []byte("{not json"), 0o644))

	_, err := s.ReadRows(Rates, 2019)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissing)
}

func TestStore_ReadGeneration(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	gen := map[string][]GenerationRow{
		"ALL": {{Location: "TX", Generation: 1000}},
		"WND": {},
	}
	require.NoError(t, s.Write(Generation, 2021, gen))

	got, err := s.ReadGeneration(2021)
	require.NoError(t, err)
	assert.Equal(t, []domain.RawRow{{"location": "TX", "generation": json.Number("1000")}}, got["ALL"])
	assert.Empty(t, got["WND"])
}

func TestStore_YearsAndHasDataset(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	assert.False(t, s.HasDataset(Reliability))

	for _, y := range []int{2021, 2013, 2017} {
		require.NoError(t, s.Write(Reliability, y, []ReliabilityRow{}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.DatasetDir(Reliability), "reliability_notes.json"), []byte("[]"), 0o644))

	assert.True(t, s.HasDataset(Reliability))
	years, err := s.Years(Reliability)
	require.NoError(t, err)
	assert.Equal(t, []int{2013, 2017, 2021}, years)
}

func TestUtilityRow_MarshalFlattensFlags(t *testing.T) {
	saidi := 120.0
	body, err := json.Marshal(UtilityRow{
		UtilityID: "195",
		State:     "AL",
		RTOs:      map[string]bool{"rto_pjm": true, "rto_miso": false},
		SAIDI:     &saidi,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"utility_id":  "195", "utility_name": "", "state": "AL", "ownership": "",
		"nerc_region": "", "saidi": 120, "saifi": null, "customers": null,
		"rto_pjm": true, "rto_miso": false
	}`, string(body))
}
