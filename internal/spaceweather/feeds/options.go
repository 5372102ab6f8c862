package feeds

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/space-weather-aggregation/internal/observability"
	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

// DefaultBaseURL is the NOAA Space Weather Prediction Center services host.
const DefaultBaseURL = "https://services.swpc.noaa.gov"

// Feed paths relative to the base URL.
const (
	PlasmaPath = "/products/solar-wind/plasma-2-hour.json"
	MagPath    = "/products/solar-wind/mag-2-hour.json"
	KpPath     = "/products/noaa-planetary-k-index.json"
	ScalesPath = "/products/noaa-scales.json"
	AlertsPath = "/products/alerts.json"
)

// Options configures the NOAA feed clients. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	HTTP    HTTPClientConfig

	// Timeout bounds one Fetch call, retries included.
	Timeout time.Duration

	AlertsLimit    int
	KpHistoryLimit int
	SeriesLimit    int

	Clock   clockwork.Clock
	Metrics *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.HTTP.Client == nil {
		o.HTTP.Client = &http.Client{Timeout: o.Timeout}
	}
	if o.HTTP.Backoff.InitialInterval <= 0 {
		o.HTTP.Backoff.InitialInterval = 500 * time.Millisecond
	}
	if o.HTTP.Backoff.MaxInterval <= 0 {
		o.HTTP.Backoff.MaxInterval = 5 * time.Second
	}
	if o.AlertsLimit <= 0 {
		o.AlertsLimit = 5
	}
	if o.KpHistoryLimit <= 0 {
		o.KpHistoryLimit = 24
	}
	if o.SeriesLimit <= 0 {
		o.SeriesLimit = 60
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// NewClients builds one client per NOAA feed.
func NewClients(opts Options) []spaceweather.FeedClient {
	return []spaceweather.FeedClient{
		NewSolarWindClient(opts),
		NewKpClient(opts),
		NewScalesClient(opts),
		NewAlertsClient(opts),
	}
}
