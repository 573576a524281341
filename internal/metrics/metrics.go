// Package metrics records Prometheus metrics for endpoint runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithMetricsEnabled enables or disables metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRegistry sets the registry metrics are registered on and gathered from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the run metrics. A nil or disabled Manager records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	buildFailures *prometheus.CounterVec
	retries       *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "routekit",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "requests_total",
		Help:      "Endpoint requests sent, by operation, method and outcome",
	}, []string{"operation", "method", "outcome"})

	m.duration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "request_duration_seconds",
		Help:      "Round-trip time of endpoint requests",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.buildFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "build_failures_total",
		Help:      "Requests that could not be built, by operation and reason",
	}, []string{"operation", "reason"})

	m.retries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "retries_total",
		Help:      "Request attempts repeated after a retryable failure",
	}, []string{"operation"})

	return m
}

// Registry returns the registry holding the metrics.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts a sent request and observes its duration.
func (m *Manager) RecordRequest(operation, method, outcome string, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.requests.WithLabelValues(operation, method, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordBuildFailure counts a request that never left the process.
func (m *Manager) RecordBuildFailure(operation, reason string) {
	if m == nil || !m.enabled {
		return
	}
	m.buildFailures.WithLabelValues(operation, reason).Inc()
}

// RecordRetry counts a repeated attempt.
func (m *Manager) RecordRetry(operation string) {
	if m == nil || !m.enabled {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// WriteFile writes the gathered metrics in the text exposition format.
func (m *Manager) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
