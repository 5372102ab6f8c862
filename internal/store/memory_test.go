package store

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	s := NewMemoryStore(clock)

	_, err := s.Load()
	assert.ErrorIs(t, err, spaceweather.ErrCacheMissing)

	snap := sampleSnapshot(now)
	saved, err := s.Save(snap)
	require.NoError(t, err)
	assert.Equal(t, now, saved.SavedAt)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, snap, loaded.Snapshot)

	// Load hands out a copy.
	loaded.SavedAt = time.Time{}
	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, now, again.SavedAt)
}

func TestMemoryStore_PutAndIsStale(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	s := NewMemoryStore(clock)
	s.Put(spaceweather.CacheRecord{SavedAt: now.Add(-3 * time.Hour), Snapshot: sampleSnapshot(now)})

	rec, err := s.Load()
	require.NoError(t, err)
	assert.True(t, s.IsStale(rec, 2*time.Hour))
	assert.False(t, s.IsStale(rec, 4*time.Hour))

	clock.Advance(2 * time.Hour)
	assert.True(t, s.IsStale(rec, 4*time.Hour))
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Save(sampleSnapshot(now))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Load()
		}()
	}
	wg.Wait()

	_, err := s.Load()
	assert.NoError(t, err)
}
