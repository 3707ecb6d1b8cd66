// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the monetization pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the platform's Prometheus collectors behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	postsPublished  prometheus.Counter
	supportRecorded *prometheus.CounterVec
	feedCacheHits   prometheus.Counter
	feedCacheMisses prometheus.Counter
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		postsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posts_published_total",
			Help: "Total posts transitioned to the published state.",
		}),
		supportRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_transactions_total",
			Help: "Total supporter transactions by final status.",
		}, []string{"status"}),
		feedCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_cache_hits_total",
			Help: "Feed responses served from cache.",
		}),
		feedCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_cache_misses_total",
			Help: "Feed responses composed from storage.",
		}),
	}

	registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.postsPublished,
		m.supportRecorded,
		m.feedCacheHits,
		m.feedCacheMisses,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight notes a request entering the handler.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight notes a request leaving the handler.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPostPublished counts a publish transition.
func (m *Metrics) RecordPostPublished() { m.postsPublished.Inc() }

// RecordSupportTransaction counts a transaction reaching a status.
func (m *Metrics) RecordSupportTransaction(status string) {
	m.supportRecorded.WithLabelValues(status).Inc()
}

// RecordFeedCacheHit counts a feed page served from cache.
func (m *Metrics) RecordFeedCacheHit() { m.feedCacheHits.Inc() }

// RecordFeedCacheMiss counts a feed page composed from storage.
func (m *Metrics) RecordFeedCacheMiss() { m.feedCacheMisses.Inc() }
