// Package metrics provides Prometheus metrics collection for the credit
// inference service: prediction counts, failures and latency, batch
// scoring volume, and artifact load time, exposed via the Prometheus
// metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	PredictionsTotal   prometheus.Counter   // Total single-record predictions served
	PredictionFailures prometheus.Counter   // Total failed single-record predictions
	PredictionLatency  prometheus.Histogram // Single-record prediction latency in seconds

	BatchRequests prometheus.Counter   // Total batch scoring requests
	BatchFailures prometheus.Counter   // Total failed batch scoring requests
	BatchRows     prometheus.Histogram // Rows scored per batch request

	ArtifactLoadSeconds prometheus.Gauge // Startup artifact load duration in seconds
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// tests, which need isolation from the global registry).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of single-record predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed single-record predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Single-record prediction latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		BatchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_requests_total",
			Help: "Total number of batch scoring requests",
		}),
		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_failures_total",
			Help: "Total number of failed batch scoring requests",
		}),
		BatchRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_rows",
			Help:    "Rows scored per batch request",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		}),
		ArtifactLoadSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "artifact_load_seconds",
			Help: "Startup artifact load duration in seconds",
		}),
	}
}

// PredictionsInc implements infer.MetricsInterface.
func (m *Metrics) PredictionsInc() {
	if m != nil {
		m.PredictionsTotal.Inc()
	}
}

// FailuresInc implements infer.MetricsInterface.
func (m *Metrics) FailuresInc() {
	if m != nil {
		m.PredictionFailures.Inc()
	}
}

// LatencyObserve implements infer.MetricsInterface.
func (m *Metrics) LatencyObserve(seconds float64) {
	if m != nil {
		m.PredictionLatency.Observe(seconds)
	}
}
