package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// AppConfig holds all process settings, populated from the environment (and .env when present).
type AppConfig struct {
	Port string `validate:"required,numeric"`

	// NOAABaseURL is the SWPC services host every feed path is appended to.
	NOAABaseURL string `validate:"required,url"`

	// CacheFile is the snapshot cache location. Empty keeps the cache in memory only.
	CacheFile string
	// CacheMaxAge is the staleness threshold for the cached snapshot.
	CacheMaxAge time.Duration `validate:"gt=0"`

	// FeedTimeout bounds one feed fetch, retries included.
	FeedTimeout    time.Duration `validate:"gt=0"`
	FeedMaxRetries int           `validate:"gte=0,lte=10"`
	// RefreshTimeout bounds one full aggregation.
	RefreshTimeout time.Duration `validate:"gt=0"`

	// Scheduler settings for keeping the cache warm.
	SchedulerEnabled bool
	RefreshInterval  time.Duration `validate:"gte=1m"`

	AlertsLimit          int `validate:"gte=1,lte=50"`
	KpHistoryLimit       int `validate:"gte=1,lte=240"`
	SolarWindSeriesLimit int `validate:"gte=1,lte=1000"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.NOAABaseURL = strings.TrimRight(getenvDefault("NOAA_BASE_URL", "https://services.swpc.noaa.gov"), "/")

	// An explicitly empty CACHE_FILE selects the in-memory store.
	if v, ok := os.LookupEnv("CACHE_FILE"); ok {
		cfg.CacheFile = strings.TrimSpace(v)
	} else {
		cfg.CacheFile = "static/data/space_weather_cache.json"
	}

	var err error
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", "2h"); err != nil {
		return nil, err
	}
	if cfg.FeedTimeout, err = getenvDuration("FEED_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	cfg.FeedMaxRetries = getenvInt("FEED_MAX_RETRIES", 2)
	cfg.SchedulerEnabled = getenvBool("SCHEDULER_ENABLED", true)

	cfg.AlertsLimit = getenvInt("ALERTS_LIMIT", 5)
	cfg.KpHistoryLimit = getenvInt("KP_HISTORY_LIMIT", 24) // 72h of 3-hour readings
	cfg.SolarWindSeriesLimit = getenvInt("SOLAR_WIND_SERIES_LIMIT", 60)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.RefreshTimeout < cfg.FeedTimeout {
		return nil, fmt.Errorf("invalid configuration: REFRESH_TIMEOUT (%s) must not be shorter than FEED_TIMEOUT (%s)",
			cfg.RefreshTimeout, cfg.FeedTimeout)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
