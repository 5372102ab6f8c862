package spaceweather

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/space-weather-aggregation/internal/observability"
)

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

// --- stub feed client ---

type stubClient struct {
	source  FeedSource
	payload any
	err     string
	calls   atomic.Int32
	wait    func(ctx context.Context) error
}

func (s *stubClient) Source() FeedSource { return s.source }

func (s *stubClient) Fetch(ctx context.Context) FeedResult {
	s.calls.Add(1)
	if s.wait != nil {
		if err := s.wait(ctx); err != nil {
			return FeedResult{Source: s.source, FetchedAt: testNow, Error: err.Error()}
		}
	}
	if s.err != "" {
		return FeedResult{Source: s.source, FetchedAt: testNow, Error: s.err}
	}
	return FeedResult{Source: s.source, FetchedAt: testNow, Payload: s.payload, OK: true}
}

func f64(v float64) *float64 { return &v }

func sampleSolarWind(speed float64) SolarWind {
	observed := testNow.Add(-time.Minute)
	return SolarWind{
		Speed:      f64(speed),
		Density:    f64(4.2),
		Bz:         f64(-3.1),
		Bt:         f64(6.5),
		ObservedAt: &observed,
		Series: []SolarWindPoint{
			{Time: testNow.Add(-2 * time.Minute), Speed: speed - 10},
			{Time: testNow.Add(-time.Minute), Speed: speed},
		},
	}
}

func sampleKp(kp float64) KpIndex {
	return KpIndex{
		Current: f64(kp),
		History: []KpReading{
			{Time: testNow.Add(-6 * time.Hour), Kp: 1.33},
			{Time: testNow.Add(-3 * time.Hour), Kp: kp},
		},
	}
}

func sampleScales(g int) Scales {
	return Scales{
		G: Scale{Scale: "G" + string(rune('0'+g)), Level: g, Text: "storm"},
		S: Scale{Scale: "S0", Level: 0, Text: "none"},
		R: Scale{Scale: "R1", Level: 1, Text: "minor"},
	}
}

func sampleAlerts(id string) []Alert {
	return []Alert{{
		ID:       id,
		IssuedAt: testNow.Add(-time.Hour),
		Headline: "WARNING: Geomagnetic K-index of 4 expected",
		Impacts:  "Aurora may be visible at high latitudes",
		Text:     "Space Weather Message Code: WARK04",
	}}
}

func okClients(speed, kp float64, g int, alertID string) []*stubClient {
	return []*stubClient{
		{source: SourceSolarWind, payload: sampleSolarWind(speed)},
		{source: SourceKpIndex, payload: sampleKp(kp)},
		{source: SourceScales, payload: sampleScales(g)},
		{source: SourceAlerts, payload: sampleAlerts(alertID)},
	}
}

func asFeedClients(stubs []*stubClient) []FeedClient {
	out := make([]FeedClient, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

func newTestAggregator(stubs []*stubClient) *Aggregator {
	return NewAggregator(asFeedClients(stubs), clockwork.NewFakeClockAt(testNow), observability.NewMetricsForTesting())
}

// --- Aggregate ---

func TestAggregate_AllFeedsLive(t *testing.T) {
	agg := newTestAggregator(okClients(420, 7, 3, "WARK04"))

	snap := agg.Aggregate(context.Background(), nil)

	assert.False(t, snap.Degraded)
	assert.True(t, snap.Complete())
	assert.Equal(t, testNow, snap.GeneratedAt)
	assert.Equal(t, 4, snap.LiveFeeds())

	assert.Equal(t, StatusLive, snap.SolarWind.Status)
	assert.Equal(t, 420.0, *snap.SolarWind.Speed)
	assert.Equal(t, StatusLive, snap.Kp.Status)
	assert.Equal(t, 7.0, *snap.Kp.Current)
	assert.Equal(t, StatusLive, snap.Scales.Status)
	assert.Equal(t, 3, snap.Scales.G.Level)
	assert.Equal(t, StatusLive, snap.Alerts.Status)
	require.Len(t, snap.Alerts.Items, 1)
	assert.Equal(t, "WARK04", snap.Alerts.Items[0].ID)

	assert.Equal(t, StatusLive, snap.Aurora.Status)
	assert.Equal(t, 7, snap.Aurora.Tier)
}

func TestAggregate_OneFeedFailsUsesPrevious(t *testing.T) {
	previous := newTestAggregator(okClients(380, 3, 0, "OLD")).Aggregate(context.Background(), nil)

	stubs := okClients(510, 5, 1, "NEW")
	stubs[1] = &stubClient{source: SourceKpIndex, err: "kp_index: fetch failed: server error"}

	snap := newTestAggregator(stubs).Aggregate(context.Background(), &previous)

	assert.True(t, snap.Degraded)
	assert.False(t, snap.Complete())

	want := previous.Kp
	want.Status = StatusStale
	assert.Equal(t, want, snap.Kp)

	// Other sections are live values from this run.
	assert.Equal(t, StatusLive, snap.SolarWind.Status)
	assert.Equal(t, 510.0, *snap.SolarWind.Speed)
	assert.Equal(t, "NEW", snap.Alerts.Items[0].ID)

	// Aurora is derived from the substituted Kp (3) and the live G1 (Kp 5).
	assert.Equal(t, StatusStale, snap.Aurora.Status)
	assert.Equal(t, 5, snap.Aurora.Tier)

	assert.Equal(t, 3, snap.LiveFeeds())
	for _, f := range snap.Feeds {
		if f.Source == SourceKpIndex {
			assert.False(t, f.OK)
			assert.Contains(t, f.Error, "server error")
		}
	}
}

func TestAggregate_AllFailNoPrevious(t *testing.T) {
	stubs := []*stubClient{
		{source: SourceSolarWind, err: "timeout"},
		{source: SourceKpIndex, err: "timeout"},
		{source: SourceScales, err: "bad json"},
		{source: SourceAlerts, err: "503"},
	}

	snap := newTestAggregator(stubs).Aggregate(context.Background(), nil)

	assert.True(t, snap.Degraded)
	assert.Equal(t, 0, snap.LiveFeeds())
	assert.Equal(t, StatusUnavailable, snap.SolarWind.Status)
	assert.Equal(t, StatusUnavailable, snap.Kp.Status)
	assert.Equal(t, StatusUnavailable, snap.Scales.Status)
	assert.Equal(t, StatusUnavailable, snap.Aurora.Status)
	assert.Equal(t, StatusUnavailable, snap.Alerts.Status)
	assert.Equal(t, "Unavailable", snap.Scales.G.Text)
	assert.Equal(t, "Unknown", snap.Aurora.Label)

	// Sections are never null on the wire.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, key := range []string{"solarWind", "kp", "scales", "aurora", "alerts"} {
		section, ok := wire[key].(map[string]any)
		require.True(t, ok, key)
		assert.Equal(t, "unavailable", section["status"], key)
	}
	assert.NotNil(t, wire["alerts"].(map[string]any)["items"])
}

func TestAggregate_PreviousUnavailableSectionStaysUnavailable(t *testing.T) {
	previous := Unavailable(testNow.Add(-time.Hour))

	stubs := okClients(400, 2, 0, "X")
	stubs[0] = &stubClient{source: SourceSolarWind, err: "down"}

	snap := newTestAggregator(stubs).Aggregate(context.Background(), &previous)

	assert.Equal(t, StatusUnavailable, snap.SolarWind.Status)
	assert.Equal(t, StatusLive, snap.Kp.Status)
	assert.True(t, snap.Degraded)
}

func TestAggregate_MissingClientIsUnavailable(t *testing.T) {
	stubs := okClients(400, 2, 0, "X")[:3] // no alerts client

	snap := newTestAggregator(stubs).Aggregate(context.Background(), nil)

	assert.Equal(t, StatusUnavailable, snap.Alerts.Status)
	assert.True(t, snap.Degraded)
	assert.Equal(t, "no client configured", snap.Feeds[3].Error)
}

// Run with -race: the missing source sits between clients whose goroutines are already running.
func TestAggregate_MissingClientBetweenConfiguredOnes(t *testing.T) {
	all := okClients(400, 2, 0, "X")
	stubs := []*stubClient{all[0], all[2], all[3]} // no Kp client

	for i := 0; i < 20; i++ {
		snap := newTestAggregator(stubs).Aggregate(context.Background(), nil)

		require.Len(t, snap.Feeds, len(AllSources))
		assert.Equal(t, "no client configured", snap.Feeds[1].Error)
		assert.Equal(t, StatusUnavailable, snap.Kp.Status)
		assert.Equal(t, 3, snap.LiveFeeds())
	}
}

func TestAggregate_WrongPayloadTypeIsFailure(t *testing.T) {
	stubs := okClients(400, 2, 0, "X")
	stubs[2] = &stubClient{source: SourceScales, payload: "not scales"}

	snap := newTestAggregator(stubs).Aggregate(context.Background(), nil)

	assert.Equal(t, StatusUnavailable, snap.Scales.Status)
	assert.Contains(t, snap.Feeds[2].Error, "unexpected noaa_scales payload")
}

func TestAggregate_FetchesConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(len(AllSources))
	allIn := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allIn)
	}()

	// Each client only succeeds if every other client is in flight at the same time.
	barrier := func(ctx context.Context) error {
		arrived.Done()
		select {
		case <-allIn:
			return nil
		case <-time.After(2 * time.Second):
			return context.DeadlineExceeded
		}
	}

	stubs := okClients(400, 2, 0, "X")
	for _, s := range stubs {
		s.wait = barrier
	}

	snap := newTestAggregator(stubs).Aggregate(context.Background(), nil)

	assert.Equal(t, 4, snap.LiveFeeds())
	for _, s := range stubs {
		assert.Equal(t, int32(1), s.calls.Load())
	}
}

func TestBuild_Deterministic(t *testing.T) {
	results := map[FeedSource]FeedResult{
		SourceSolarWind: {Source: SourceSolarWind, FetchedAt: testNow, Payload: sampleSolarWind(450), OK: true},
		SourceKpIndex:   {Source: SourceKpIndex, FetchedAt: testNow, Error: "boom"},
		SourceScales:    {Source: SourceScales, FetchedAt: testNow, Payload: sampleScales(2), OK: true},
		SourceAlerts:    {Source: SourceAlerts, FetchedAt: testNow, Payload: []Alert(nil), OK: true},
	}

	a := Build(testNow, results, nil)
	b := Build(testNow, results, nil)

	assert.Equal(t, a, b)
	assert.NotNil(t, a.Alerts.Items)
	assert.Empty(t, a.Alerts.Items)
}

func TestSnapshot_MarkStale(t *testing.T) {
	snap := newTestAggregator(okClients(400, 2, 0, "X")).Aggregate(context.Background(), nil)
	require.False(t, snap.Degraded)

	stale := snap.MarkStale()

	assert.True(t, stale.Degraded)
	assert.Equal(t, StatusStale, stale.SolarWind.Status)
	assert.Equal(t, StatusStale, stale.Aurora.Status)
	assert.Equal(t, snap.Kp.History, stale.Kp.History)
	// The receiver is untouched.
	assert.Equal(t, StatusLive, snap.Kp.Status)
}

func TestCacheRecord_StaleAt(t *testing.T) {
	threshold := 2 * time.Hour
	rec := &CacheRecord{SavedAt: testNow}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just saved", testNow, false},
		{"one hour", testNow.Add(time.Hour), false},
		{"exactly threshold", testNow.Add(threshold), false},
		{"past threshold", testNow.Add(threshold + time.Nanosecond), true},
		{"three hours", testNow.Add(3 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.StaleAt(tt.now, threshold))
		})
	}

	var missing *CacheRecord
	assert.True(t, missing.StaleAt(testNow, threshold))
}
