package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/internal/persistence"
	"github.com/petrijr/auraflow/pkg/api"
)

// DefaultLeaseTTL bounds how long a crashed run can block its venture.
const DefaultLeaseTTL = 30 * time.Minute

// orchestrator drives ventures through the stage table in pkg/api.
type orchestrator struct {
	ventures persistence.Store
	events   persistence.EventStore
	stages   api.Stages

	observer api.Observer
	logger   zerolog.Logger

	owner    string
	leaseTTL time.Duration
	locks    *keyedMutex
}

// Config describes how to construct an orchestrator.
// Only Persistence and Stages are required.
type Config struct {
	Persistence persistence.Persistence
	Stages      api.Stages
	Observer    api.Observer
	Logger      *zerolog.Logger

	// LeaseTTL is the per-venture lease duration; <= 0 uses DefaultLeaseTTL.
	LeaseTTL time.Duration

	// Owner identifies this process in lease records; empty generates one.
	Owner string
}

// NewOrchestratorWithConfig creates a new Orchestrator using the given configuration.
func NewOrchestratorWithConfig(cfg Config) (api.Orchestrator, error) {
	if cfg.Persistence.Ventures == nil {
		return nil, errors.New("venture store is required")
	}
	if err := cfg.Stages.Validate(); err != nil {
		return nil, err
	}

	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	owner := cfg.Owner
	if owner == "" {
		owner = "orchestrator-" + uuid.NewString()
	}

	return &orchestrator{
		ventures: cfg.Persistence.Ventures,
		events:   events,
		stages:   cfg.Stages,
		observer: obs,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		owner:    owner,
		leaseTTL: ttl,
		locks:    newKeyedMutex(),
	}, nil
}

// NewInMemoryOrchestrator returns an Orchestrator backed entirely by an
// in-memory store.
func NewInMemoryOrchestrator(stages api.Stages, obs api.Observer) (api.Orchestrator, error) {
	mem := persistence.NewInMemoryStore()
	return NewOrchestratorWithConfig(Config{
		Persistence: persistence.Persistence{Ventures: mem, Events: mem},
		Stages:      stages,
		Observer:    obs,
	})
}

// NewSQLiteOrchestrator returns an Orchestrator that persists ventures and
// their history in SQLite.
func NewSQLiteOrchestrator(db *sql.DB, stages api.Stages, obs api.Observer) (api.Orchestrator, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewOrchestratorWithConfig(Config{
		Persistence: persistence.Persistence{Ventures: store, Events: store},
		Stages:      stages,
		Observer:    obs,
	})
}

// NewRedisOrchestrator returns an Orchestrator that persists ventures in Redis.
func NewRedisOrchestrator(client redis.UniversalClient, stages api.Stages, obs api.Observer) (api.Orchestrator, error) {
	store := persistence.NewRedisStore(client, "auraflow:")
	return NewOrchestratorWithConfig(Config{
		Persistence: persistence.Persistence{Ventures: store, Events: store},
		Stages:      stages,
		Observer:    obs,
	})
}

func (o *orchestrator) Create(ctx context.Context) (*api.Venture, error) {
	v, err := o.ventures.Create(ctx)
	if err != nil {
		return nil, err
	}
	o.record(ctx, api.VentureEvent{
		VentureID: v.ID,
		Type:      api.EventVentureCreated,
		To:        v.State,
	})
	o.logger.Info().Str("venture_id", v.ID).Msg("created venture")
	return v, nil
}

func (o *orchestrator) Get(ctx context.Context, id string) (*api.Venture, error) {
	return o.ventures.Get(ctx, id)
}

func (o *orchestrator) List(ctx context.Context, opts api.VentureListOptions) ([]*api.Venture, error) {
	return o.ventures.List(ctx, persistence.Filter{State: opts.State})
}

func (o *orchestrator) ListActive(ctx context.Context) ([]string, error) {
	return o.ventures.ListActive(ctx)
}

func (o *orchestrator) History(ctx context.Context, id string) ([]api.VentureEvent, error) {
	if _, err := o.ventures.Get(ctx, id); err != nil {
		return nil, err
	}
	return o.events.ListEvents(ctx, id)
}

func (o *orchestrator) Reset(ctx context.Context, id string) (*api.Venture, error) {
	lease, release, err := o.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = lease.ctx

	v, err := o.ventures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	origin, ok := v.State.Origin()
	if !ok {
		return v, fmt.Errorf("%w: %s is %s", api.ErrNotFailed, id, v.State)
	}
	if err := o.ventures.SetState(ctx, id, origin); err != nil {
		return v, err
	}
	o.record(ctx, api.VentureEvent{
		VentureID: id,
		Type:      api.EventVentureReset,
		From:      v.State,
		To:        origin,
	})
	o.logger.Info().
		Str("venture_id", id).
		Str("from", string(v.State)).
		Str("to", string(origin)).
		Msg("venture reset")

	v.State = origin
	return v, nil
}

// Run drives the venture until it is terminal or a stage fails.
//
// The loop is bounded by the number of non-terminal states: each successful
// iteration advances the state by exactly one edge, so a venture starting
// in DISCOVERY reaches LIVE on the last iteration.
func (o *orchestrator) Run(ctx context.Context, id string) (*api.Venture, error) {
	lease, release, err := o.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = lease.ctx

	v, err := o.ventures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.observer.OnRunStart(ctx, v)

	for i := 0; i <= len(api.ActiveStates); i++ {
		if i > 0 {
			if v, err = o.ventures.Get(ctx, id); err != nil {
				if lost := lease.lost(); lost != nil {
					return nil, lost
				}
				return nil, err
			}
		}

		if v.State.Terminal() {
			o.observer.OnTerminal(ctx, v)
			return v, nil
		}

		advanced, err := o.step(ctx, lease, v)
		if err != nil {
			return v, err
		}
		if !advanced {
			return v, nil
		}
	}

	// Unreachable while every stage advances by one edge.
	return v, fmt.Errorf("venture %s did not settle after %d transitions", id, len(api.ActiveStates))
}

// step runs the stage for v.State once and persists the outcome.
// It returns advanced=false when the venture moved to a failed state.
// A non-nil error is a store fault, an interruption or a lost lease; in the
// latter two cases nothing is persisted. v is updated in place on success.
func (o *orchestrator) step(ctx context.Context, lease *heldLease, v *api.Venture) (bool, error) {
	stage := v.State
	executor, ok := o.stages.For(stage)
	if !ok {
		// Validate guarantees an executor for every non-terminal state;
		// an unknown persisted state lands here.
		return false, fmt.Errorf("%w: %q for venture %s", api.ErrInvalidState, stage, v.ID)
	}
	next, _ := stage.Next()
	failed, _ := stage.FailedState()
	output, _ := stage.Output()

	o.observer.OnStageStart(ctx, v, stage)
	o.record(ctx, api.VentureEvent{VentureID: v.ID, Type: api.EventStageStarted, From: stage})

	start := time.Now()
	result, stageErr := o.execute(ctx, executor, v, stage)
	duration := time.Since(start)

	if err := lease.lost(); err != nil {
		// Another process may own the venture now; its run decides the outcome.
		o.logger.Warn().
			Err(err).
			Str("venture_id", v.ID).
			Str("stage", string(stage)).
			Msg("discarding stage outcome")
		return false, fmt.Errorf("stage %s for %s: %w", stage, v.ID, err)
	}
	if stageErr != nil && ctx.Err() != nil {
		// Shutdown interrupted the stage; leave the state for the next run.
		return false, fmt.Errorf("stage %s for %s interrupted: %w", stage, v.ID, ctx.Err())
	}
	if stageErr != nil {
		o.logger.Error().
			Err(stageErr).
			Str("venture_id", v.ID).
			Str("stage", string(stage)).
			Str("kind", string(stageErr.Kind)).
			Msg("stage failed")

		if err := o.ventures.SetState(ctx, v.ID, failed); err != nil {
			return false, fmt.Errorf("persist failed state for %s: %w", v.ID, err)
		}
		v.State = failed
		o.observer.OnStageCompleted(ctx, v, stage, failed, stageErr, duration)
		o.record(ctx, api.VentureEvent{
			VentureID: v.ID,
			Type:      api.EventStageFailed,
			From:      stage,
			To:        failed,
			Detail:    stageErr.Error(),
		})
		return false, nil
	}

	// Detail first, then state: a crash in between re-runs this stage with
	// the detail already present, which the executor contract tolerates.
	if err := o.ventures.SetDetail(ctx, v.ID, output, result); err != nil {
		return false, fmt.Errorf("persist %s for %s: %w", output, v.ID, err)
	}
	if err := o.ventures.SetState(ctx, v.ID, next); err != nil {
		return false, fmt.Errorf("persist state %s for %s: %w", next, v.ID, err)
	}

	v.State = next
	o.observer.OnStageCompleted(ctx, v, stage, next, nil, duration)
	o.record(ctx, api.VentureEvent{VentureID: v.ID, Type: api.EventStageSucceeded, From: stage, To: next})
	if next == api.StateLive {
		o.record(ctx, api.VentureEvent{VentureID: v.ID, Type: api.EventVentureLive, To: next})
	}
	return true, nil
}

// execute checks the stage's preconditions and calls the executor,
// converting every failure mode (including panics) into a StageError.
func (o *orchestrator) execute(ctx context.Context, executor api.StageExecutor, v *api.Venture, stage api.State) (result any, stageErr *api.StageError) {
	in, err := buildInput(v, stage)
	if err != nil {
		return nil, &api.StageError{Stage: stage, Kind: api.FailurePrecondition, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("venture_id", v.ID).
				Str("stage", string(stage)).
				Bytes("stack", debug.Stack()).
				Msg("stage executor panicked")
			result = nil
			stageErr = &api.StageError{Stage: stage, Kind: api.FailurePanic, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err := executor.Execute(ctx, in)
	if err != nil {
		kind := api.FailureExecutor
		if api.IsPrecondition(err) {
			kind = api.FailurePrecondition
		}
		return nil, &api.StageError{Stage: stage, Kind: kind, Err: err}
	}
	if out == nil {
		return nil, &api.StageError{Stage: stage, Kind: api.FailureExecutor, Err: errors.New("executor returned no result")}
	}
	return out, nil
}

// buildInput decodes the prior details the stage may read. Required details
// that are absent or corrupt yield a PreconditionError; optional ones are
// passed through only when they decode cleanly.
func buildInput(v *api.Venture, stage api.State) (api.StageInput, error) {
	in := api.StageInput{Venture: v.Clone()}

	required := make(map[api.DetailField]bool)
	for _, f := range api.Requirements(stage) {
		required[f] = true
	}

	if len(v.NicheIdea) > 0 || required[api.FieldNicheIdea] {
		niche, err := api.DecodeNicheIdea(v.NicheIdea)
		switch {
		case err == nil:
			in.NicheIdea = &niche
		case required[api.FieldNicheIdea]:
			return in, err
		}
	}

	if len(v.ProductDetails) > 0 || required[api.FieldProductDetails] {
		product, err := api.DecodeProductDetails(v.ProductDetails)
		switch {
		case err == nil:
			in.ProductDetails = &product
		case required[api.FieldProductDetails]:
			return in, err
		}
	}

	return in, nil
}

// acquire takes the in-process lock and the store lease for id and starts
// the lease heartbeat. The returned lease's context must be used for all
// work done under the lease; release stops the heartbeat and frees both.
func (o *orchestrator) acquire(ctx context.Context, id string) (*heldLease, func(), error) {
	unlock, ok := o.locks.TryLock(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", api.ErrVentureBusy, id)
	}

	acquired, err := o.ventures.TryAcquireLease(ctx, id, o.owner, o.leaseTTL)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if !acquired {
		unlock()
		return nil, nil, fmt.Errorf("%w: %s", api.ErrVentureBusy, id)
	}

	lease := startHeartbeat(ctx, o.ventures, id, o.owner, o.leaseTTL, o.logger)
	return lease, func() {
		lease.halt()
		// Release even if the run's context was cancelled.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.ventures.ReleaseLease(relCtx, id, o.owner); err != nil {
			o.logger.Warn().Err(err).Str("venture_id", id).Msg("release lease")
		}
		unlock()
	}, nil
}

// record appends a history event. History is best-effort and never blocks
// a transition.
func (o *orchestrator) record(ctx context.Context, ev api.VentureEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := o.events.AppendEvent(ctx, ev); err != nil {
		o.logger.Warn().
			Err(err).
			Str("venture_id", ev.VentureID).
			Str("event", string(ev.Type)).
			Msg("append venture event")
	}
}
