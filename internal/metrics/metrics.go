// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one process. A nil *Metrics is valid
// and records nothing, which keeps components usable in tests.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamRetries  prometheus.Counter
	sourceStatus     *prometheus.CounterVec
	searchResults    prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	featuredRefresh  *prometheus.CounterVec
	featuredEvents   prometheus.Gauge
	emailsSent       *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "ticketing",
			Name:      "requests_total",
			Help:      "Requests sent to the ticketing API by operation and outcome.",
		}, []string{"operation", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meeteasy",
			Subsystem: "ticketing",
			Name:      "request_duration_seconds",
			Help:      "Latency of ticketing API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		upstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "ticketing",
			Name:      "rate_limit_retries_total",
			Help:      "Retries caused by rate-limit responses.",
		}),
		sourceStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "search",
			Name:      "source_status_total",
			Help:      "Per-source outcome of search requests.",
		}, []string{"source", "status"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meeteasy",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of merged results per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meeteasy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		featuredRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "featured",
			Name:      "refresh_total",
			Help:      "Featured carousel refreshes by outcome.",
		}, []string{"outcome"}),
		featuredEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meeteasy",
			Subsystem: "featured",
			Name:      "events",
			Help:      "Events currently held in the featured carousel.",
		}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meeteasy",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Confirmation emails by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.upstreamRequests,
		m.upstreamDuration,
		m.upstreamRetries,
		m.sourceStatus,
		m.searchResults,
		m.httpRequests,
		m.httpDuration,
		m.featuredRefresh,
		m.featuredEvents,
		m.emailsSent,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpstream records one ticketing API request.
func (m *Metrics) ObserveUpstream(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(operation, status).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncRetry records one rate-limit retry.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.upstreamRetries.Inc()
}

// ObserveSearch records the per-source statuses and merged size of one search.
func (m *Metrics) ObserveSearch(statuses map[string]string, results int) {
	if m == nil {
		return
	}
	for src, st := range statuses {
		m.sourceStatus.WithLabelValues(src, st).Inc()
	}
	m.searchResults.Observe(float64(results))
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveFeatured records a featured refresh and the resulting carousel size.
func (m *Metrics) ObserveFeatured(outcome string, events int) {
	if m == nil {
		return
	}
	m.featuredRefresh.WithLabelValues(outcome).Inc()
	m.featuredEvents.Set(float64(events))
}

// ObserveEmail records a confirmation email outcome.
func (m *Metrics) ObserveEmail(outcome string) {
	if m == nil {
		return
	}
	m.emailsSent.WithLabelValues(outcome).Inc()
}
