// Package metrics exposes Prometheus collectors for the screening
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a dedicated registry, so
// multiple instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsScreened prometheus.Counter
	Decisions            *prometheus.CounterVec
	AlertsCreated        *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
}

// New creates and registers the Kestrel collectors. The size callbacks
// feed the store gauges; either may be nil.
func New(transactionCount, alertCount func() int) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TransactionsScreened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_transactions_screened_total",
			Help: "Number of transactions evaluated by the rule engine.",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_decisions_total",
			Help: "Number of fraud decisions by outcome.",
		}, []string{"outcome"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_alerts_created_total",
			Help: "Number of alerts created by severity.",
		}, []string{"severity"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_evaluation_duration_seconds",
			Help:    "Rule engine evaluation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	registry.MustRegister(
		m.TransactionsScreened,
		m.Decisions,
		m.AlertsCreated,
		m.EvaluationDuration,
		collectors.NewGoCollector(),
	)

	if transactionCount != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kestrel_transaction_store_size",
			Help: "Number of transactions currently held in memory.",
		}, func() float64 { return float64(transactionCount()) }))
	}
	if alertCount != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kestrel_alert_store_size",
			Help: "Number of alerts currently held in memory.",
		}, func() float64 { return float64(alertCount()) }))
	}

	return m
}

// RecordDecision counts one decision by outcome.
func (m *Metrics) RecordDecision(fraud bool) {
	outcome := "clean"
	if fraud {
		outcome = "fraud"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
