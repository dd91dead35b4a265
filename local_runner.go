package auraflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/pkg/scheduler"
)

// LocalRunner bundles an in-memory Orchestrator and a Scheduler running in
// a background goroutine, for development and demos.
//
// Typical usage:
//
//	runner, _ := auraflow.NewLocalRunner(stages)
//	_ = runner.Start(ctx)
//	id, _ := runner.Submit(ctx)
//	...
//	runner.Stop()
type LocalRunner struct {
	// Orchestrator is the in-memory orchestrator used by this runner.
	Orchestrator Orchestrator

	// Scheduler sweeps Orchestrator's active ventures.
	Scheduler *scheduler.Scheduler

	logger zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

const defaultLocalInterval = 100 * time.Millisecond

// NewLocalRunner constructs a LocalRunner with a short sweep interval and
// no pacing.
func NewLocalRunner(stages Stages) (*LocalRunner, error) {
	return NewLocalRunnerWithConfig(stages, scheduler.Config{
		Interval: defaultLocalInterval,
		Pacing:   -1,
	})
}

// NewLocalRunnerWithConfig is NewLocalRunner with explicit scheduler settings.
func NewLocalRunnerWithConfig(stages Stages, cfg scheduler.Config) (*LocalRunner, error) {
	orch, err := NewInMemoryOrchestrator(stages)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &LocalRunner{
		Orchestrator: orch,
		Scheduler:    scheduler.NewWithConfig(orch, cfg),
		logger:       logger,
	}, nil
}

// Start runs the scheduler loop until Stop is called or ctx is done.
//
// If Start is called more than once without Stop, it returns an error.
func (r *LocalRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("auraflow: LocalRunner already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func(done chan struct{}) {
		defer close(done)
		if err := r.Scheduler.Run(ctx); err != nil {
			r.logger.Error().Err(err).Msg("local runner stopped")
		}
	}(r.done)
	return nil
}

// Stop cancels the scheduler loop and waits for it to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done
}

// Submit creates a venture for the scheduler to pick up on its next sweep.
func (r *LocalRunner) Submit(ctx context.Context) (string, error) {
	v, err := r.Orchestrator.Create(ctx)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// SweepNow runs one sweep immediately instead of waiting for the interval.
func (r *LocalRunner) SweepNow(ctx context.Context) (scheduler.SweepReport, error) {
	return r.Scheduler.Sweep(ctx)
}
