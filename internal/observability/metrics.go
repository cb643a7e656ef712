package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rapidresponse"

// Metrics holds the Prometheus collectors for disaster run processing.
type Metrics struct {
	RunsCreated  prometheus.Counter
	RunsInFlight prometheus.Gauge
	RunsFinished *prometheus.CounterVec // labels: status={complete,fallback_applied,failed}

	ProviderFetches *prometheus.CounterVec   // labels: provider, outcome={success,error}
	StageDuration   *prometheus.HistogramVec // labels: stage
	StageFailures   *prometheus.CounterVec   // labels: stage

	SynthesisDuration prometheus.Histogram
	EventsDropped     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_created_total",
			Help:      "Disaster runs accepted by the orchestrator.",
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs currently being processed.",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached a terminal status.",
		}, []string{"status"}),
		ProviderFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Data provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Analysis stage execution time.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Analysis stage errors and recovered panics.",
		}, []string{"stage"}),
		SynthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "LLM plan synthesis latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Notification events dropped for slow subscribers.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsCreated,
		m.RunsInFlight,
		m.RunsFinished,
		m.ProviderFetches,
		m.StageDuration,
		m.StageFailures,
		m.SynthesisDuration,
		m.EventsDropped,
	}
}
