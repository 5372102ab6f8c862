package spaceweather

import (
	"time"
)

// FeedSource identifies one upstream NOAA SWPC feed.
type FeedSource string

const (
	SourceSolarWind FeedSource = "solar_wind"
	SourceKpIndex   FeedSource = "kp_index"
	SourceScales    FeedSource = "noaa_scales"
	SourceAlerts    FeedSource = "alerts"
)

// AllSources lists every feed a complete snapshot is built from.
var AllSources = []FeedSource{SourceSolarWind, SourceKpIndex, SourceScales, SourceAlerts}

// FieldStatus marks where a snapshot section came from.
type FieldStatus string

const (
	StatusLive        FieldStatus = "live"
	StatusStale       FieldStatus = "stale"
	StatusUnavailable FieldStatus = "unavailable"
)

// SolarWind is the latest plasma and magnetic field reading at L1.
// Readings the feed did not carry are nil.
type SolarWind struct {
	Status     FieldStatus      `json:"status"`
	Speed      *float64         `json:"speed,omitempty"`   // km/s
	Density    *float64         `json:"density,omitempty"` // p/cm3
	Bz         *float64         `json:"bz,omitempty"`      // nT, GSM
	Bt         *float64         `json:"bt,omitempty"`      // nT
	ObservedAt *time.Time       `json:"observedAt,omitempty"`
	Series     []SolarWindPoint `json:"series"`
}

// SolarWindPoint is one entry of the speed trend.
type SolarWindPoint struct {
	Time  time.Time `json:"time"`
	Speed float64   `json:"speed"`
}

// KpReading is a single planetary K-index value.
type KpReading struct {
	Time time.Time `json:"time"`
	Kp   float64   `json:"kp"`
}

// KpIndex holds the current Kp and the recent history, oldest first.
type KpIndex struct {
	Status  FieldStatus `json:"status"`
	Current *float64    `json:"current,omitempty"`
	History []KpReading `json:"history"`
}

// Scale is one NOAA space weather scale level, e.g. G3 "Strong".
type Scale struct {
	Scale string `json:"scale"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Scales holds the current geomagnetic storm, solar radiation storm, and radio blackout levels.
type Scales struct {
	Status FieldStatus `json:"status"`
	G      Scale       `json:"G"`
	S      Scale       `json:"S"`
	R      Scale       `json:"R"`
}

// Aurora is the derived visibility estimate.
type Aurora struct {
	Status   FieldStatus `json:"status"`
	Tier     int         `json:"tier"`
	Label    string      `json:"label"`
	Latitude *int        `json:"latitude,omitempty"` // geomagnetic latitude boundary in degrees
}

// Alert is a parsed SWPC bulletin.
type Alert struct {
	ID       string    `json:"id"`
	IssuedAt time.Time `json:"issuedAt"`
	Headline string    `json:"headline"`
	Impacts  string    `json:"impacts"`
	Text     string    `json:"text"`
}

// Alerts holds the most recent bulletins, newest first.
type Alerts struct {
	Status FieldStatus `json:"status"`
	Items  []Alert     `json:"items"`
}

// FeedStatus records how one feed fared in the aggregation that produced a snapshot.
type FeedStatus struct {
	Source    FeedSource `json:"source"`
	OK        bool       `json:"ok"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Error     string     `json:"error,omitempty"`
}

// Snapshot is the unified, servable space weather state.
type Snapshot struct {
	SolarWind   SolarWind    `json:"solarWind"`
	Kp          KpIndex      `json:"kp"`
	Scales      Scales       `json:"scales"`
	Aurora      Aurora       `json:"aurora"`
	Alerts      Alerts       `json:"alerts"`
	Feeds       []FeedStatus `json:"feeds"`
	GeneratedAt time.Time    `json:"generatedAt"` // always UTC
	Degraded    bool         `json:"degraded"`
}

// Complete reports whether every section came from a live fetch.
func (s Snapshot) Complete() bool {
	return !s.Degraded
}

// LiveFeeds counts the feeds that succeeded in the aggregation behind this snapshot.
func (s Snapshot) LiveFeeds() int {
	n := 0
	for _, f := range s.Feeds {
		if f.OK {
			n++
		}
	}
	return n
}

// MarkStale returns a copy with every live section downgraded to stale.
// Used when a snapshot is served in place of a refresh that produced nothing new.
func (s Snapshot) MarkStale() Snapshot {
	s.SolarWind.Status = downgrade(s.SolarWind.Status)
	s.Kp.Status = downgrade(s.Kp.Status)
	s.Scales.Status = downgrade(s.Scales.Status)
	s.Aurora.Status = downgrade(s.Aurora.Status)
	s.Alerts.Status = downgrade(s.Alerts.Status)
	s.Degraded = true
	return s
}

func downgrade(st FieldStatus) FieldStatus {
	if st == StatusLive {
		return StatusStale
	}
	return st
}

// CacheRecord is the persisted form of the latest snapshot.
type CacheRecord struct {
	SavedAt  time.Time `json:"savedAt"`
	Snapshot Snapshot  `json:"snapshot"`
}

// StaleAt reports whether the record is older than threshold at now.
// A nil record is always stale.
func (r *CacheRecord) StaleAt(now time.Time, threshold time.Duration) bool {
	if r == nil {
		return true
	}
	return now.Sub(r.SavedAt) > threshold
}
