// package metrics holds the Prometheus collectors for request queues, response caches and retries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. Each instance owns its registry so
// several clients (and tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	QueueDepth       *prometheus.GaugeVec
	QueueExecuted    *prometheus.CounterVec
	QueueWait        *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	TracksWritten    prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labeltree_queue_depth",
			Help: "Requests waiting in a rate-limited queue",
		}, []string{"queue"}),
		QueueExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltree_queue_executed_total",
			Help: "Requests executed by a rate-limited queue, by outcome",
		}, []string{"queue", "outcome"}),
		QueueWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labeltree_queue_wait_seconds",
			Help:    "Time between enqueue and execution start",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"queue"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltree_cache_hits_total",
			Help: "Response cache hits",
		}, []string{"tier"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltree_cache_misses_total",
			Help: "Response cache misses, stale entries included",
		}, []string{"tier"}),
		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltree_retry_attempts_total",
			Help: "Retries scheduled after a 429 response",
		}, []string{"service"}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltree_upstream_requests_total",
			Help: "HTTP requests sent upstream, by service and status class",
		}, []string{"service", "class"}),
		TracksWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "labeltree_playlist_tracks_written_total",
			Help: "Track URIs appended to playlists",
		}),
	}
}

// StatusClass buckets an HTTP status for the upstream request counter.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "network"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
