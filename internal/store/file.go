package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// FileStore persists a single CacheRecord as a JSON document.
//
// Saves go to a temporary file in the target directory which is then renamed
// over the target, so readers see either the old record or the new one.
type FileStore struct {
	path  string
	clock clockwork.Clock
}

// NewFileStore creates a FileStore at path. A nil clock uses real time.
func NewFileStore(path string, clock clockwork.Clock) *FileStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileStore{path: path, clock: clock}
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cached record. A missing file yields ErrCacheMissing; an
// unreadable or unparsable file yields ErrCacheCorrupt.
func (s *FileStore) Load() (*spaceweather.CacheRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, spaceweather.ErrCacheMissing
		}
		return nil, fmt.Errorf("%w: read %s: %v", spaceweather.ErrCacheCorrupt, s.path, err)
	}

	var rec spaceweather.CacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", spaceweather.ErrCacheCorrupt, s.path, err)
	}
	if rec.SavedAt.IsZero() {
		return nil, fmt.Errorf("%w: %s has no savedAt", spaceweather.ErrCacheCorrupt, s.path)
	}
	return &rec, nil
}

// Save replaces the cached record with snapshot, stamped with the current time.
func (s *FileStore) Save(snapshot spaceweather.Snapshot) (spaceweather.CacheRecord, error) {
	rec := spaceweather.CacheRecord{
		SavedAt:  s.clock.Now().UTC(),
		Snapshot: snapshot,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return spaceweather.CacheRecord{}, fmt.Errorf("encode cache record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return spaceweather.CacheRecord{}, fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return spaceweather.CacheRecord{}, err
	}

	log.Printf("INFO: cache written to %s", s.path)
	return rec, nil
}

// IsStale reports whether rec is older than threshold.
func (s *FileStore) IsStale(rec *spaceweather.CacheRecord, threshold time.Duration) bool {
	return rec.StaleAt(s.clock.Now(), threshold)
}

func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp cache file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace cache file %s: %w", path, err)
	}
	return nil
}
