package feeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

const kpRowsFixture = `[
  ["time_tag","Kp","a_running","station_count"],
  ["2026-10-13 09:00:00.000","2.33","9","8"],
  ["2026-10-13 06:00:00.000","1.67","6","8"],
  ["2026-10-13 12:00:00.000","bad","",""],
  ["2026-10-13 15:00:00.000","12","",""],
  ["not a time","3",""," "]
]`

const kpObjectsFixture = `[
  {"time_tag":"2026-10-13T06:00:00","Kp":3.0,"a_running":15,"station_count":8},
  {"time_tag":"2026-10-13T09:00:00","kp_index":4},
  {"time_tag":"2026-10-13T12:00:00","Kp":null}
]`

func TestKpClient_FetchRows(t *testing.T) {
	mux := http.NewServeMux()
	serveJSON(mux, KpPath, kpRowsFixture)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := NewKpClient(testOptions(srv)).Fetch(context.Background())
	require.True(t, res.OK, res.Error)

	kp := res.Payload.(spaceweather.KpIndex)
	require.Len(t, kp.History, 2)
	assert.Equal(t, time.Date(2026, 10, 13, 6, 0, 0, 0, time.UTC), kp.History[0].Time)
	assert.Equal(t, 1.67, kp.History[0].Kp)
	assert.Equal(t, 2.33, kp.History[1].Kp)
	assert.Equal(t, 2.33, *kp.Current)
}

func TestParseKp_ObjectForm(t *testing.T) {
	got, err := parseKp(json.RawMessage(kpObjectsFixture), 24)
	require.NoError(t, err)

	kp := got.(spaceweather.KpIndex)
	require.Len(t, kp.History, 2)
	assert.Equal(t, 3.0, kp.History[0].Kp)
	assert.Equal(t, 4.0, kp.History[1].Kp)
	assert.Equal(t, 4.0, *kp.Current)
}

func TestParseKp_KeepsMostRecentReadings(t *testing.T) {
	raw := `[
	  ["time_tag","Kp"],
	  ["2026-10-13 12:00:00.000","5"],
	  ["2026-10-13 00:00:00.000","1"],
	  ["2026-10-13 06:00:00.000","3"],
	  ["2026-10-13 03:00:00.000","2"],
	  ["2026-10-13 09:00:00.000","4"]
	]`

	got, err := parseKp(json.RawMessage(raw), 3)
	require.NoError(t, err)

	kp := got.(spaceweather.KpIndex)
	var values []float64
	for _, r := range kp.History {
		values = append(values, r.Kp)
	}
	assert.Equal(t, []float64{3, 4, 5}, values)
	assert.Equal(t, 5.0, *kp.Current)
}

func TestParseKp_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty array", `[]`},
		{"header only", `[["time_tag","Kp"]]`},
		{"all out of range", `[["time_tag","Kp"],["2026-10-13 00:00:00.000","-1"],["2026-10-13 03:00:00.000","9.5"]]`},
		{"object not array", `{"Kp": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseKp(json.RawMessage(tt.raw), 24)
			assert.Error(t, err)
		})
	}
}
