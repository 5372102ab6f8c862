package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for feed aggregation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FeedFetches       *prometheus.CounterVec   // labels: source, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: source
	Aggregations      prometheus.Counter
	Refreshes         *prometheus.CounterVec // labels: trigger={read,manual}, outcome={saved,save_failed,no_data}
	CacheWrites       *prometheus.CounterVec // labels: outcome={success,error}
	SnapshotDegraded  prometheus.Gauge
	RefreshInFlight   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting registers metrics on a throwaway registry so tests can build many instances.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "space_weather",
			Name:      "feed_fetch_total",
			Help:      "Upstream feed fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "space_weather",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),
		Aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "space_weather",
			Name:      "aggregations_total",
			Help:      "Total aggregation runs across all feeds.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "space_weather",
			Name:      "refreshes_total",
			Help:      "Snapshot refreshes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "space_weather",
			Name:      "cache_writes_total",
			Help:      "Cache file writes by outcome.",
		}, []string{"outcome"}),
		SnapshotDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "space_weather",
			Name:      "snapshot_degraded",
			Help:      "1 when the latest aggregated snapshot is degraded, 0 otherwise.",
		}),
		RefreshInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "space_weather",
			Name:      "refresh_in_flight",
			Help:      "1 while an aggregation is running.",
		}),
	}

	reg.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.Aggregations,
		m.Refreshes,
		m.CacheWrites,
		m.SnapshotDegraded,
		m.RefreshInFlight,
	)

	return m
}

// ObserveFetch records one feed fetch.
func (m *Metrics) ObserveFetch(source string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FeedFetches.WithLabelValues(source, outcome(ok)).Inc()
	m.FeedFetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveAggregation records a finished aggregation and whether it was degraded.
func (m *Metrics) ObserveAggregation(degraded bool) {
	if m == nil {
		return
	}
	m.Aggregations.Inc()
	if degraded {
		m.SnapshotDegraded.Set(1)
	} else {
		m.SnapshotDegraded.Set(0)
	}
}

// ObserveRefresh records the outcome of a coordinator refresh.
func (m *Metrics) ObserveRefresh(trigger, result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(trigger, result).Inc()
}

// ObserveCacheWrite records a cache save attempt.
func (m *Metrics) ObserveCacheWrite(ok bool) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(outcome(ok)).Inc()
}

// SetRefreshInFlight toggles the in-flight gauge.
func (m *Metrics) SetRefreshInFlight(running bool) {
	if m == nil {
		return
	}
	if running {
		m.RefreshInFlight.Set(1)
	} else {
		m.RefreshInFlight.Set(0)
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
