package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// Metrics holds Prometheus metrics for pipeline runs and their outcomes.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	StageCalls     *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	DecisionsTotal *prometheus.CounterVec
	Confidence     prometheus.Histogram
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscds_pipeline_runs_total",
			Help: "Total pipeline runs by status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscds_pipeline_duration_seconds",
			Help:    "Duration of full pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		StageCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscds_stage_calls_total",
			Help: "Total agent stage calls by stage and status.",
		}, []string{"stage", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexuscds_stage_duration_seconds",
			Help:    "Duration of agent stage LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~128s
		}, []string{"stage"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexuscds_triage_decisions_total",
			Help: "Total triage decisions by level and classification source.",
		}, []string{"level", "source"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexuscds_triage_confidence",
			Help:    "Confidence attached to triage decisions.",
			Buckets: prometheus.LinearBuckets(10, 10, 10), // 10 .. 100
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageCalls,
		m.StageDuration,
		m.DecisionsTotal,
		m.Confidence,
	)

	return m
}

// Hooks returns pipeline Hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnStage: func(stage string, d time.Duration, err error) {
			m.StageCalls.WithLabelValues(stage, status(err)).Inc()
			m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
		},
		OnComplete: func(d time.Duration, err error) {
			m.RunsTotal.WithLabelValues(status(err)).Inc()
			m.RunDuration.Observe(d.Seconds())
		},
	}
}

// ObserveDecision records the outcome of a classified run.
func (m *Metrics) ObserveDecision(d triage.Decision) {
	m.DecisionsTotal.WithLabelValues(string(d.Level), string(d.Source)).Inc()
	m.Confidence.Observe(float64(d.Confidence))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
