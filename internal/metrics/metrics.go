// Package metrics exposes Prometheus counters for the monitoring cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the monitor's Prometheus collectors.
type Metrics struct {
	CyclesTotal       prometheus.Counter
	SymbolErrorsTotal prometheus.Counter
	AlertsTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram

	registry *prometheus.Registry
}

// New registers the monitor collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptomon_cycles_total",
			Help: "Completed monitoring cycles.",
		}),
		SymbolErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptomon_symbol_errors_total",
			Help: "Per-symbol failures that caused a cycle skip.",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptomon_alerts_total",
			Help: "Notifications emitted, labelled by alert kind.",
		}, []string{"kind"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptomon_cycle_duration_seconds",
			Help:    "Wall time per monitoring cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		registry: registry,
	}

	registry.MustRegister(m.CyclesTotal, m.SymbolErrorsTotal, m.AlertsTotal, m.CycleDuration)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
