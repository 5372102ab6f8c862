package spaceweather

import (
	"context"
	"errors"
	"time"
)

// FeedResult is the outcome of one upstream fetch attempt.
// Payload is one of SolarWind, KpIndex, Scales or []Alert and is nil when OK is false.
type FeedResult struct {
	Source    FeedSource
	FetchedAt time.Time
	Payload   any
	OK        bool
	Error     string
}

// FeedClient abstracts one NOAA data source. Fetch never returns an error;
// failures are reported through FeedResult.OK and FeedResult.Error.
type FeedClient interface {
	Source() FeedSource
	Fetch(ctx context.Context) FeedResult
}

// CacheStore is the contract the file store (and the in-memory store) must satisfy.
type CacheStore interface {
	Load() (*CacheRecord, error)
	Save(snapshot Snapshot) (CacheRecord, error)
	IsStale(rec *CacheRecord, threshold time.Duration) bool
}

var (
	// ErrCacheMissing is returned by CacheStore.Load when nothing has been saved yet.
	ErrCacheMissing = errors.New("no cached snapshot")
	// ErrCacheCorrupt is returned by CacheStore.Load when the persisted record cannot be read or parsed.
	ErrCacheCorrupt = errors.New("cached snapshot is corrupt")
)
