package engine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects data-plane counters and latency. Construct one per
// process with a dedicated registry so tests can assert on isolated
// instances.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	injected    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the data-plane collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulant_requests_total",
			Help: "Requests served by the data plane, by endpoint and status.",
		}, []string{"endpoint", "status"}),
		injected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulant_injected_errors_total",
			Help: "Responses where the error profile fired.",
		}, []string{"endpoint"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulant_rate_limited_total",
			Help: "Requests rejected by an endpoint token bucket.",
		}, []string{"endpoint"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simulant_request_duration_seconds",
			Help:    "End-to-end simulated request duration, including shaped delays.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.requests, m.injected, m.rateLimited, m.duration)
	return m
}

// Request records one completed response.
func (m *Metrics) Request(endpoint string, status int, injected bool, d time.Duration) {
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
	if injected {
		m.injected.WithLabelValues(endpoint).Inc()
	}
}

// RateLimited records one 429 rejection.
func (m *Metrics) RateLimited(endpoint string) {
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// Handler exposes the collectors in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
