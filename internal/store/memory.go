package store

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// MemoryStore is a concurrency-safe in-memory implementation of the cache store.
// It keeps only the most recent record and loses it on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rec   *spaceweather.CacheRecord
	clock clockwork.Clock
}

// NewMemoryStore creates an empty MemoryStore. A nil clock uses real time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock}
}

// Load returns a copy of the stored record, or ErrCacheMissing.
func (s *MemoryStore) Load() (*spaceweather.CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rec == nil {
		return nil, spaceweather.ErrCacheMissing
	}
	rec := *s.rec
	return &rec, nil
}

// Save replaces the stored record.
func (s *MemoryStore) Save(snapshot spaceweather.Snapshot) (spaceweather.CacheRecord, error) {
	rec := spaceweather.CacheRecord{
		SavedAt:  s.clock.Now().UTC(),
		Snapshot: snapshot,
	}

	s.mu.Lock()
	s.rec = &rec
	s.mu.Unlock()

	return rec, nil
}

// Put seeds the store with an existing record, e.g. one with a back-dated SavedAt.
func (s *MemoryStore) Put(rec spaceweather.CacheRecord) {
	s.mu.Lock()
	s.rec = &rec
	s.mu.Unlock()
}

// IsStale reports whether rec is older than threshold.
func (s *MemoryStore) IsStale(rec *spaceweather.CacheRecord, threshold time.Duration) bool {
	return rec.StaleAt(s.clock.Now(), threshold)
}
