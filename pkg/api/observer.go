package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives callbacks from the orchestrator for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay venture processing.
type Observer interface {
	// OnRunStart is called once per Run after the venture has been loaded
	// and its lease acquired.
	OnRunStart(ctx context.Context, v *Venture)

	// OnStageStart is called before invoking a stage executor.
	OnStageStart(ctx context.Context, v *Venture, stage State)

	// OnStageCompleted is called after an executor returns, for both
	// successes and failures (err != nil). next is the state persisted.
	OnStageCompleted(ctx context.Context, v *Venture, stage State, next State, err error, duration time.Duration)

	// OnTerminal is called when Run finds the venture in LIVE or a failed
	// state. It is the bounded side action of a terminal run.
	OnTerminal(ctx context.Context, v *Venture)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, v *Venture)                {}
func (NoopObserver) OnStageStart(ctx context.Context, v *Venture, stage State) {}
func (NoopObserver) OnStageCompleted(ctx context.Context, v *Venture, stage State, next State, err error, d time.Duration) {
}
func (NoopObserver) OnTerminal(ctx context.Context, v *Venture) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, v *Venture) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, v)
	}
}

func (c *CompositeObserver) OnStageStart(ctx context.Context, v *Venture, stage State) {
	for _, o := range c.observers {
		o.OnStageStart(ctx, v, stage)
	}
}

func (c *CompositeObserver) OnStageCompleted(ctx context.Context, v *Venture, stage State, next State, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageCompleted(ctx, v, stage, next, err, d)
	}
}

func (c *CompositeObserver) OnTerminal(ctx context.Context, v *Venture) {
	for _, o := range c.observers {
		o.OnTerminal(ctx, v)
	}
}

// LoggingObserver writes structured logs using zerolog.
type LoggingObserver struct {
	Logger zerolog.Logger
}

// NewLoggingObserver creates an Observer that logs venture lifecycle
// events to logger.
func NewLoggingObserver(logger zerolog.Logger) Observer {
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, v *Venture) {
	o.Logger.Info().
		Str("venture_id", v.ID).
		Str("state", string(v.State)).
		Msg("orchestration started")
}

func (o *LoggingObserver) OnStageStart(ctx context.Context, v *Venture, stage State) {
	o.Logger.Debug().
		Str("venture_id", v.ID).
		Str("stage", string(stage)).
		Msg("stage started")
}

func (o *LoggingObserver) OnStageCompleted(ctx context.Context, v *Venture, stage State, next State, err error, d time.Duration) {
	ev := o.Logger.Info()
	if err != nil {
		ev = o.Logger.Error().Err(err)
	}
	ev.Str("venture_id", v.ID).
		Str("stage", string(stage)).
		Str("next_state", string(next)).
		Dur("duration", d).
		Msg("stage completed")
}

func (o *LoggingObserver) OnTerminal(ctx context.Context, v *Venture) {
	if v.State == StateLive {
		ev := o.Logger.Info().Str("venture_id", v.ID)
		if sales, err := DecodeSalesDetails(v.SalesDetails); err == nil {
			ev = ev.Str("landing_page_url", sales.LandingPageURL).
				Str("payment_link_url", sales.PaymentLinkURL)
		}
		ev.Msg("venture is live")
		return
	}
	o.Logger.Warn().
		Str("venture_id", v.ID).
		Str("state", string(v.State)).
		Msg("venture is failed; reset required to retry")
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted        atomic.Int64
	stagesStarted      atomic.Int64
	stagesSucceeded    atomic.Int64
	stagesFailed       atomic.Int64
	terminalRuns       atomic.Int64
	totalStageDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted     int64
	StagesStarted   int64
	StagesSucceeded int64
	StagesFailed    int64
	TerminalRuns    int64

	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, v *Venture) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnStageStart(ctx context.Context, v *Venture, stage State) {
	m.stagesStarted.Add(1)
}

func (m *BasicMetrics) OnStageCompleted(ctx context.Context, v *Venture, stage State, next State, err error, d time.Duration) {
	if err != nil {
		m.stagesFailed.Add(1)
		return
	}
	m.stagesSucceeded.Add(1)
	m.totalStageDuration.Add(d.Nanoseconds())
}

func (m *BasicMetrics) OnTerminal(ctx context.Context, v *Venture) {
	m.terminalRuns.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	succeeded := m.stagesSucceeded.Load()
	totalNs := m.totalStageDuration.Load()

	var avg time.Duration
	if succeeded > 0 {
		avg = time.Duration(totalNs / succeeded)
	}

	return BasicMetricsSnapshot{
		RunsStarted:      m.runsStarted.Load(),
		StagesStarted:    m.stagesStarted.Load(),
		StagesSucceeded:  succeeded,
		StagesFailed:     m.stagesFailed.Load(),
		TerminalRuns:     m.terminalRuns.Load(),
		AvgStageDuration: avg,
	}
}
