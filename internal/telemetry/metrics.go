package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/auraflow/pkg/api"
)

// Metrics is an api.Observer that records orchestrator activity as
// Prometheus metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted     prometheus.Counter
	stagesStarted   *prometheus.CounterVec
	stagesCompleted *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	terminalRuns    *prometheus.CounterVec
}

var _ api.Observer = (*Metrics)(nil)

// NewMetrics registers the auraflow collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	const namespace = "auraflow"
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Orchestration runs that acquired their venture.",
		}),
		stagesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_started_total",
			Help:      "Stage executions started.",
		}, []string{"stage"}),
		stagesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_completed_total",
			Help:      "Stage executions finished, by outcome.",
		}, []string{"stage", "outcome"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage failures by failure kind and precondition reason.",
		}, []string{"stage", "kind", "reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
		terminalRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_runs_total",
			Help:      "Runs that found their venture in a terminal state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		m.runsStarted,
		m.stagesStarted,
		m.stagesCompleted,
		m.stageFailures,
		m.stageDuration,
		m.terminalRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnRunStart(ctx context.Context, v *api.Venture) {
	m.runsStarted.Inc()
}

func (m *Metrics) OnStageStart(ctx context.Context, v *api.Venture, stage api.State) {
	m.stagesStarted.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) OnStageCompleted(ctx context.Context, v *api.Venture, stage, next api.State, err error, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if err == nil {
		m.stagesCompleted.WithLabelValues(string(stage), "success").Inc()
		return
	}
	m.stagesCompleted.WithLabelValues(string(stage), "failure").Inc()

	kind, reason := string(api.FailureExecutor), ""
	var stageErr *api.StageError
	if errors.As(err, &stageErr) {
		kind = string(stageErr.Kind)
	}
	var pre *api.PreconditionError
	if errors.As(err, &pre) {
		reason = string(pre.Reason)
	}
	m.stageFailures.WithLabelValues(string(stage), kind, reason).Inc()
}

func (m *Metrics) OnTerminal(ctx context.Context, v *api.Venture) {
	m.terminalRuns.WithLabelValues(string(v.State)).Inc()
}
