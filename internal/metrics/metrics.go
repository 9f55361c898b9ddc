// Package metrics exposes pipeline instrumentation over a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Transitions      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	PendingApprovals prometheus.Gauge
	InFlight         prometheus.Gauge
	RetryAttempts    *prometheus.CounterVec
}

// New creates a Metrics with all collectors registered on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergate",
			Subsystem: "pipeline",
			Name:      "transitions_total",
			Help:      "Stage transitions by source and destination stage.",
		}, []string{"from", "to"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledgergate",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time documents spend in each stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		PendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgergate",
			Subsystem: "pipeline",
			Name:      "pending_approvals",
			Help:      "Documents currently suspended awaiting approval.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgergate",
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Documents currently being processed.",
		}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgergate",
			Subsystem: "pipeline",
			Name:      "retry_attempts_total",
			Help:      "Collaborator retry attempts by operation.",
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.Transitions,
		m.StageDuration,
		m.PendingApprovals,
		m.InFlight,
		m.RetryAttempts,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
