// Package metrics holds the Prometheus collectors for the bot. All methods
// are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accidentbot"

type Metrics struct {
	Registry *prometheus.Registry

	IntentsTotal     *prometheus.CounterVec
	SubmissionsTotal *prometheus.CounterVec
	GenerationsTotal *prometheus.CounterVec
	QueriesTotal     *prometheus.CounterVec
	SessionsEvicted  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified inbound messages by intent.",
		}, []string{"intent"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_submissions_total",
			Help:      "Report submission attempts by outcome.",
		}, []string{"outcome"}),
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Text generation calls by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accident_queries_total",
			Help:      "Accident query API calls by outcome.",
		}, []string{"outcome"}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Idle sessions removed by the sweeper.",
		}),
	}
	reg.MustRegister(m.IntentsTotal, m.SubmissionsTotal, m.GenerationsTotal, m.QueriesTotal, m.SessionsEvicted)
	return m
}

// RegisterSessionGauge exposes the live session count through fn.
func (m *Metrics) RegisterSessionGauge(fn func() int) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held in memory.",
	}, func() float64 { return float64(fn()) }))
}

func (m *Metrics) RecordIntent(intent string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(intent).Inc()
}

func (m *Metrics) RecordSubmission(success bool) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordGeneration counts one provider call. outcome is ok, blocked or error.
func (m *Metrics) RecordGeneration(purpose, outcome string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) RecordQuery(success bool) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsEvicted.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
