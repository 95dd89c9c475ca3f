package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// TokenChecks counts credential lookups by resulting lifecycle state
	TokenChecks *prometheus.CounterVec
	// TokenRefreshes counts refresh exchanges by result
	TokenRefreshes *prometheus.CounterVec
	// TableResolutions counts how a table was found for an account
	TableResolutions *prometheus.CounterVec
	// SyncOutcomes counts sync results by status
	SyncOutcomes *prometheus.CounterVec
	// SelfHealRetries counts retries after a stale table reference
	SelfHealRetries prometheus.Counter
	// ReportFetches counts report fetches by result
	ReportFetches *prometheus.CounterVec
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TokenChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_checks_total",
				Help:      "Credential lookups by lifecycle state",
			},
			[]string{"state"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Refresh token exchanges by result",
			},
			[]string{"result"},
		),
		TableResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_resolutions_total",
				Help:      "Table resolutions by source",
			},
			[]string{"source"},
		),
		SyncOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_outcomes_total",
				Help:      "Report sync outcomes by status",
			},
			[]string{"status"},
		),
		SelfHealRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_self_heal_retries_total",
				Help:      "Sync retries after a stale table reference",
			},
		),
		ReportFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_fetches_total",
				Help:      "Report fetches by result",
			},
			[]string{"result"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.TokenChecks,
		m.TokenRefreshes,
		m.TableResolutions,
		m.SyncOutcomes,
		m.SelfHealRetries,
		m.ReportFetches,
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for gathering in tests and tools.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTokenCheck records the lifecycle state seen for a credential lookup
func (m *Metrics) RecordTokenCheck(state string) {
	if m == nil {
		return
	}
	m.TokenChecks.WithLabelValues(state).Inc()
}

// RecordTokenRefresh records a refresh exchange
func (m *Metrics) RecordTokenRefresh(success bool) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTableResolution records how a table was resolved
func (m *Metrics) RecordTableResolution(source string) {
	if m == nil {
		return
	}
	m.TableResolutions.WithLabelValues(source).Inc()
}

// RecordSyncOutcome records a sync outcome
func (m *Metrics) RecordSyncOutcome(status string) {
	if m == nil {
		return
	}
	m.SyncOutcomes.WithLabelValues(status).Inc()
}

// RecordSelfHealRetry records a retry after a stale table reference
func (m *Metrics) RecordSelfHealRetry() {
	if m == nil {
		return
	}
	m.SelfHealRetries.Inc()
}

// RecordReportFetch records a report fetch with result
func (m *Metrics) RecordReportFetch(result string) {
	if m == nil {
		return
	}
	m.ReportFetches.WithLabelValues(result).Inc()
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
