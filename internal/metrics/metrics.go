// Package metrics provides Prometheus metrics for inspections and syncs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of tjsync. A nil *Metrics records
// nothing.
type Metrics struct {
	PairingsTotal        *prometheus.CounterVec
	MessagesTotal        *prometheus.CounterVec
	ActionsExecutedTotal *prometheus.CounterVec
	InspectDuration      prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PairingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tjsync_pairings_total",
				Help: "Total number of pairings produced by the matcher, by state.",
			},
			[]string{"state"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tjsync_messages_total",
				Help: "Total number of reconciliation messages by level.",
			},
			[]string{"level"},
		),
		ActionsExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tjsync_actions_executed_total",
				Help: "Total number of executed actions by target, kind and result.",
			},
			[]string{"target", "kind", "result"},
		),
		InspectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tjsync_inspect_duration_seconds",
				Help:    "Duration of fetching, matching and reconciling one window.",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.PairingsTotal)
	reg.MustRegister(m.MessagesTotal)
	reg.MustRegister(m.ActionsExecutedTotal)
	reg.MustRegister(m.InspectDuration)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPairing increments the pairing counter.
func (m *Metrics) RecordPairing(state string) {
	if m == nil {
		return
	}
	m.PairingsTotal.WithLabelValues(state).Inc()
}

// RecordMessage increments the message counter.
func (m *Metrics) RecordMessage(level string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(level).Inc()
}

// RecordAction increments the executed action counter.
func (m *Metrics) RecordAction(target, kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ActionsExecutedTotal.WithLabelValues(target, kind, result).Inc()
}

// ObserveInspect records the duration of one inspection.
func (m *Metrics) ObserveInspect(seconds float64) {
	if m == nil {
		return
	}
	m.InspectDuration.Observe(seconds)
}
