// Package metrics exposes the prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors registered for this process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	backendRequests *prometheus.CounterVec
	sourceFailures  *prometheus.CounterVec
	backendUp       *prometheus.GaugeVec
}

// New creates and registers the collectors under the given namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by service, method, path, and status.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests to hosted backends by backend, operation, and outcome.",
		}, []string{"backend", "operation", "outcome"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_source_failures_total",
			Help:      "Aggregation source reads that failed and were defaulted to zero.",
		}, []string{"source"}),
		backendUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "Last probe result per backend (1 healthy, 0 unhealthy).",
		}, []string{"backend"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.inFlight,
		m.backendRequests,
		m.sourceFailures,
		m.backendUp,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordBackendRequest records a call to a hosted backend.
func (m *Metrics) RecordBackendRequest(backend, operation, outcome string) {
	m.backendRequests.WithLabelValues(backend, operation, outcome).Inc()
}

// RecordSourceFailure counts an absorbed aggregation source failure.
func (m *Metrics) RecordSourceFailure(source string) {
	m.sourceFailures.WithLabelValues(source).Inc()
}

// SetBackendUp records the latest health probe result for a backend.
func (m *Metrics) SetBackendUp(backend string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.backendUp.WithLabelValues(backend).Set(v)
}
