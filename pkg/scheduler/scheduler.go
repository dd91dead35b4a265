package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petrijr/auraflow/pkg/api"
)

const (
	DefaultInterval = time.Hour
	DefaultPacing   = 5 * time.Second
)

// Config controls sweep timing.
type Config struct {
	// Interval between the start of consecutive sweeps. <= 0 means DefaultInterval.
	Interval time.Duration

	// Pacing is the pause between two ventures within a sweep. Negative
	// disables pacing; zero means DefaultPacing.
	Pacing time.Duration

	// Concurrency is the number of ventures run in parallel. <= 1 runs
	// ventures sequentially.
	Concurrency int

	// SeedWhenIdle creates a new venture when a sweep finds none active.
	SeedWhenIdle bool

	Logger *zerolog.Logger
}

// SweepReport summarizes one pass over the active ventures.
type SweepReport struct {
	Started  time.Time
	Duration time.Duration

	Processed int
	Skipped   int
	Live      int
	Failed    int

	// Seeded is the id of the venture created because none were active.
	Seeded string
}

// Scheduler runs sweeps against an Orchestrator.
type Scheduler struct {
	orch   api.Orchestrator
	cfg    Config
	logger zerolog.Logger

	// sleep waits for d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	sweeping bool
}

// New creates a Scheduler with default timing.
func New(orch api.Orchestrator) *Scheduler {
	return NewWithConfig(orch, Config{})
}

// NewWithConfig creates a Scheduler using cfg.
func NewWithConfig(orch api.Orchestrator, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Scheduler{
		orch:   orch,
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
		sleep:  sleepContext,
	}
}

// ErrSweepInProgress is returned by Sweep when another sweep is running on
// the same Scheduler.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweep runs every active venture once.
//
// It returns an error when the orchestrator reports a store fault; the
// report then covers the ventures processed before the fault.
func (s *Scheduler) Sweep(ctx context.Context) (report SweepReport, err error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return SweepReport{}, ErrSweepInProgress
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	report.Started = time.Now()
	defer func() { report.Duration = time.Since(report.Started) }()

	ids, err := s.orch.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("list active ventures: %w", err)
	}

	if len(ids) == 0 {
		if !s.cfg.SeedWhenIdle {
			s.logger.Info().Msg("no active ventures")
			return report, nil
		}
		v, err := s.orch.Create(ctx)
		if err != nil {
			return report, fmt.Errorf("seed venture: %w", err)
		}
		s.logger.Info().Str("venture_id", v.ID).Msg("no active ventures; seeded a new one")
		report.Seeded = v.ID
		ids = []string{v.ID}
	}

	s.logger.Info().Int("ventures", len(ids)).Msg("sweep started")

	if s.cfg.Concurrency > 1 {
		err = s.sweepParallel(ctx, ids, &report)
	} else {
		err = s.sweepSequential(ctx, ids, &report)
	}

	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Error().Err(err)
	}
	ev.Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("live", report.Live).
		Int("failed", report.Failed).
		Msg("sweep finished")

	return report, err
}

func (s *Scheduler) sweepSequential(ctx context.Context, ids []string, report *SweepReport) error {
	for i, id := range ids {
		if i > 0 && s.cfg.Pacing > 0 {
			if err := s.sleep(ctx, s.cfg.Pacing); err != nil {
				return err
			}
		}
		if err := s.runOne(ctx, id, report, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) sweepParallel(ctx context.Context, ids []string, report *SweepReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	var mu sync.Mutex
	for i, id := range ids {
		if i > 0 && s.cfg.Pacing > 0 {
			if err := s.sleep(gctx, s.cfg.Pacing); err != nil {
				break
			}
		}
		g.Go(func() error {
			// A fault elsewhere already ended the sweep.
			if gctx.Err() != nil {
				return nil
			}
			return s.runOne(gctx, id, report, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runOne runs a single venture and folds the outcome into report.
// Busy, vanished and unrunnable ventures are skipped, as are runs that lost
// their lease; other errors abort the sweep.
func (s *Scheduler) runOne(ctx context.Context, id string, report *SweepReport, mu *sync.Mutex) error {
	v, err := s.orch.Run(ctx, id)

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	switch {
	case errors.Is(err, api.ErrVentureBusy),
		errors.Is(err, api.ErrVentureNotFound),
		errors.Is(err, api.ErrLeaseLost):
		s.logger.Warn().Err(err).Str("venture_id", id).Msg("skipping venture")
		report.Skipped++
		return nil
	case errors.Is(err, api.ErrInvalidState):
		s.logger.Error().Err(err).Str("venture_id", id).Msg("skipping venture with unknown state")
		report.Skipped++
		return nil
	case err != nil:
		return fmt.Errorf("run venture %s: %w", id, err)
	}

	report.Processed++
	switch {
	case v.State == api.StateLive:
		report.Live++
	case v.State.Failed():
		report.Failed++
	}
	return nil
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
// A failed sweep is logged and retried at the next interval. Sweeps never
// overlap: a sweep that outlasts the interval delays the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Dur("pacing", s.cfg.Pacing).
		Int("concurrency", s.cfg.Concurrency).
		Msg("scheduler started")

	for {
		started := time.Now()
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("sweep aborted; retrying next cycle")
		}

		wait := s.cfg.Interval - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		if err := s.sleep(ctx, wait); err != nil {
			s.logger.Info().Msg("scheduler stopped")
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
