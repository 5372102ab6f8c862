package spaceweather

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/space-weather-aggregation/internal/observability"
)

// State is the coordinator's refresh state.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRefreshing:
		return "REFRESHING"
	default:
		return "UNKNOWN"
	}
}

const (
	refreshKey = "refresh"

	triggerRead   = "read"
	triggerManual = "manual"
)

// SnapshotSource produces a fresh Snapshot, substituting sections from previous on feed failure.
// *Aggregator is the production implementation.
type SnapshotSource interface {
	Aggregate(ctx context.Context, previous *Snapshot) Snapshot
}

// CoordinatorConfig controls the staleness policy.
type CoordinatorConfig struct {
	// MaxAge is the cache staleness threshold. Defaults to 2h.
	MaxAge time.Duration
	// RefreshTimeout bounds one shared aggregation. Defaults to 30s.
	RefreshTimeout time.Duration
}

// Coordinator decides between serving the cached snapshot and aggregating a new one.
//
// At most one aggregation runs at a time. Callers that arrive while one is in
// flight wait for it and receive its result; a caller whose context ends first
// gets the last good snapshot marked degraded instead.
type Coordinator struct {
	store   CacheStore
	source  SnapshotSource
	clock   clockwork.Clock
	metrics *observability.Metrics

	maxAge         time.Duration
	refreshTimeout time.Duration

	group singleflight.Group
	state atomic.Int32

	mu      sync.RWMutex
	current *CacheRecord
}

// NewCoordinator wires a coordinator over store and source. A nil clock uses real time.
func NewCoordinator(store CacheStore, source SnapshotSource, cfg CoordinatorConfig, clock clockwork.Clock, metrics *observability.Metrics) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 2 * time.Hour
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &Coordinator{
		store:          store,
		source:         source,
		clock:          clock,
		metrics:        metrics,
		maxAge:         cfg.MaxAge,
		refreshTimeout: cfg.RefreshTimeout,
	}
}

// State reports whether an aggregation is currently in flight.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// GetSnapshotForDisplay returns the cached snapshot when it is fresh, refreshing it otherwise.
func (c *Coordinator) GetSnapshotForDisplay(ctx context.Context) Snapshot {
	if c.State() == StateIdle {
		rec := c.record()
		if rec != nil && !c.store.IsStale(rec, c.maxAge) {
			return rec.Snapshot
		}
	}
	return c.refresh(ctx, triggerRead)
}

// ForceRefresh aggregates a new snapshot regardless of cache age, joining any refresh already in flight.
func (c *Coordinator) ForceRefresh(ctx context.Context) Snapshot {
	return c.refresh(ctx, triggerManual)
}

func (c *Coordinator) refresh(ctx context.Context, trigger string) Snapshot {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.runRefresh(ctx, trigger), nil
	})

	select {
	case res := <-ch:
		snap, ok := res.Val.(Snapshot)
		if !ok {
			return c.fallback()
		}
		return snap
	case <-ctx.Done():
		log.Printf("WARN: %s refresh wait abandoned: %v; serving last good snapshot", trigger, ctx.Err())
		return c.fallback()
	}
}

// runRefresh executes one aggregation. Its context keeps the starting caller's
// values but not its cancellation, so a caller giving up does not cancel the
// work the other waiters share.
func (c *Coordinator) runRefresh(parent context.Context, trigger string) Snapshot {
	c.state.Store(int32(StateRefreshing))
	c.metrics.SetRefreshInFlight(true)
	defer func() {
		c.state.Store(int32(StateIdle))
		c.metrics.SetRefreshInFlight(false)
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.refreshTimeout)
	defer cancel()

	var previous *Snapshot
	if rec := c.record(); rec != nil {
		prev := rec.Snapshot
		previous = &prev
	}

	snap := c.source.Aggregate(ctx, previous)

	if snap.LiveFeeds() == 0 {
		c.metrics.ObserveRefresh(trigger, "no_data")
		if previous == nil {
			log.Printf("ERROR: %s refresh: every feed failed and no cached snapshot exists", trigger)
			return snap
		}
		log.Printf("ERROR: %s refresh: every feed failed; serving cached snapshot from %s",
			trigger, previous.GeneratedAt.Format(time.RFC3339))
		out := previous.MarkStale()
		out.Feeds = snap.Feeds
		return out
	}

	rec, err := c.store.Save(snap)
	c.metrics.ObserveCacheWrite(err == nil)
	if err != nil {
		log.Printf("ERROR: %s refresh: failed to persist snapshot: %v", trigger, err)
		c.metrics.ObserveRefresh(trigger, "save_failed")
		rec = CacheRecord{SavedAt: c.clock.Now().UTC(), Snapshot: snap}
	} else {
		c.metrics.ObserveRefresh(trigger, "saved")
	}
	c.setRecord(&rec)

	log.Printf("INFO: %s refresh done: %d/%d feeds live, degraded=%t",
		trigger, snap.LiveFeeds(), len(AllSources), snap.Degraded)
	return snap
}

// record returns the in-process record, falling back to the store.
// Load failures of any kind mean there is no usable cache.
func (c *Coordinator) record() *CacheRecord {
	c.mu.RLock()
	rec := c.current
	c.mu.RUnlock()
	if rec != nil {
		return rec
	}

	loaded, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, ErrCacheMissing) {
			log.Printf("WARN: ignoring cached snapshot: %v", err)
		}
		return nil
	}

	c.mu.Lock()
	if c.current == nil {
		c.current = loaded
	}
	rec = c.current
	c.mu.Unlock()
	return rec
}

func (c *Coordinator) setRecord(rec *CacheRecord) {
	c.mu.Lock()
	c.current = rec
	c.mu.Unlock()
}

func (c *Coordinator) fallback() Snapshot {
	if rec := c.record(); rec != nil {
		return rec.Snapshot.MarkStale()
	}
	return Unavailable(c.clock.Now().UTC())
}
