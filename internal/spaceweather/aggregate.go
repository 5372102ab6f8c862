package spaceweather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/space-weather-aggregation/internal/observability"
)

// Aggregator fans out to every feed client and folds the results into one Snapshot.
type Aggregator struct {
	clients map[FeedSource]FeedClient
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewAggregator creates an Aggregator. A nil clock uses real time.
// If two clients report the same source the last one wins.
func NewAggregator(clients []FeedClient, clock clockwork.Clock, metrics *observability.Metrics) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	bySource := make(map[FeedSource]FeedClient, len(clients))
	for _, c := range clients {
		bySource[c.Source()] = c
	}
	return &Aggregator{
		clients: bySource,
		clock:   clock,
		metrics: metrics,
	}
}

// Aggregate fetches all feeds concurrently and builds a Snapshot. Sections whose
// feed failed are copied from previous (marked stale) or marked unavailable.
func (a *Aggregator) Aggregate(ctx context.Context, previous *Snapshot) Snapshot {
	startedAt := a.clock.Now().UTC()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[FeedSource]FeedResult, len(AllSources))
	)

	for _, src := range AllSources {
		client, ok := a.clients[src]
		if !ok {
			mu.Lock()
			results[src] = FeedResult{
				Source:    src,
				FetchedAt: startedAt,
				Error:     "no client configured",
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			r := client.Fetch(ctx)
			r.Source = src
			if !r.OK {
				log.Printf("WARN: feed %s failed: %s", src, r.Error)
			}

			mu.Lock()
			results[src] = r
			mu.Unlock()
		}()
	}

	wg.Wait()

	snap := Build(startedAt, results, previous)
	a.metrics.ObserveAggregation(snap.Degraded)
	return snap
}

// Build folds feed results into a Snapshot stamped with generatedAt. It is pure:
// identical inputs always produce the same Snapshot.
func Build(generatedAt time.Time, results map[FeedSource]FeedResult, previous *Snapshot) Snapshot {
	snap := Snapshot{
		GeneratedAt: generatedAt,
		Feeds:       make([]FeedStatus, 0, len(AllSources)),
	}

	for _, src := range AllSources {
		r, ok := results[src]
		if !ok {
			r = FeedResult{Source: src, FetchedAt: generatedAt, Error: "no result"}
		}
		if r.OK {
			if err := applyPayload(&snap, src, r.Payload); err != nil {
				r.OK = false
				r.Payload = nil
				r.Error = err.Error()
			}
		}
		if !r.OK {
			substitute(&snap, src, previous)
		}
		snap.Feeds = append(snap.Feeds, FeedStatus{
			Source:    src,
			OK:        r.OK,
			FetchedAt: r.FetchedAt,
			Error:     r.Error,
		})
	}

	snap.Aurora = deriveAurora(snap.Kp, snap.Scales)
	snap.Degraded = snap.SolarWind.Status != StatusLive ||
		snap.Kp.Status != StatusLive ||
		snap.Scales.Status != StatusLive ||
		snap.Aurora.Status != StatusLive ||
		snap.Alerts.Status != StatusLive

	return snap
}

// Unavailable returns a Snapshot whose every section carries the unavailable marker.
func Unavailable(generatedAt time.Time) Snapshot {
	return Build(generatedAt, nil, nil)
}

func applyPayload(snap *Snapshot, src FeedSource, payload any) error {
	switch src {
	case SourceSolarWind:
		sw, ok := payload.(SolarWind)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", src, payload)
		}
		sw.Status = StatusLive
		snap.SolarWind = sw
	case SourceKpIndex:
		kp, ok := payload.(KpIndex)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", src, payload)
		}
		kp.Status = StatusLive
		snap.Kp = kp
	case SourceScales:
		sc, ok := payload.(Scales)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", src, payload)
		}
		sc.Status = StatusLive
		snap.Scales = sc
	case SourceAlerts:
		items, ok := payload.([]Alert)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", src, payload)
		}
		if items == nil {
			items = []Alert{}
		}
		snap.Alerts = Alerts{Status: StatusLive, Items: items}
	default:
		return fmt.Errorf("unknown feed source %q", src)
	}
	return nil
}

func substitute(snap *Snapshot, src FeedSource, previous *Snapshot) {
	switch src {
	case SourceSolarWind:
		if previous != nil && previous.SolarWind.Status != StatusUnavailable {
			snap.SolarWind = previous.SolarWind
			snap.SolarWind.Status = StatusStale
			return
		}
		snap.SolarWind = SolarWind{Status: StatusUnavailable, Series: []SolarWindPoint{}}
	case SourceKpIndex:
		if previous != nil && previous.Kp.Status != StatusUnavailable {
			snap.Kp = previous.Kp
			snap.Kp.Status = StatusStale
			return
		}
		snap.Kp = KpIndex{Status: StatusUnavailable, History: []KpReading{}}
	case SourceScales:
		if previous != nil && previous.Scales.Status != StatusUnavailable {
			snap.Scales = previous.Scales
			snap.Scales.Status = StatusStale
			return
		}
		snap.Scales = Scales{
			Status: StatusUnavailable,
			G:      unavailableScale("G"),
			S:      unavailableScale("S"),
			R:      unavailableScale("R"),
		}
	case SourceAlerts:
		if previous != nil && previous.Alerts.Status != StatusUnavailable {
			snap.Alerts = previous.Alerts
			snap.Alerts.Status = StatusStale
			return
		}
		snap.Alerts = Alerts{Status: StatusUnavailable, Items: []Alert{}}
	}
}

func unavailableScale(prefix string) Scale {
	return Scale{Scale: prefix + "?", Level: -1, Text: "Unavailable"}
}
