package auraflow

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/auraflow/internal/engine"
	"github.com/petrijr/auraflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Orchestrator         = api.Orchestrator
	Venture              = api.Venture
	VentureEvent         = api.VentureEvent
	VentureListOptions   = api.VentureListOptions
	State                = api.State
	Stages               = api.Stages
	StageExecutor        = api.StageExecutor
	StageFunc            = api.StageFunc
	StageInput           = api.StageInput
	NicheIdea            = api.NicheIdea
	ProductDetails       = api.ProductDetails
	SalesDetails         = api.SalesDetails
	RetryPolicy          = api.RetryPolicy
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

const (
	StateDiscovery               = api.StateDiscovery
	StateProductGeneration       = api.StateProductGeneration
	StateDeployment              = api.StateDeployment
	StateLive                    = api.StateLive
	StateFailedDiscovery         = api.StateFailedDiscovery
	StateFailedProductGeneration = api.StateFailedProductGeneration
	StateFailedDeployment        = api.StateFailedDeployment
)

// Orchestrator constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryOrchestrator returns an Orchestrator whose ventures live only
// as long as the process.
func NewInMemoryOrchestrator(stages Stages) (Orchestrator, error) {
	return engine.NewInMemoryOrchestrator(stages, nil)
}

// NewInMemoryOrchestratorWithObserver is NewInMemoryOrchestrator with obs
// receiving lifecycle callbacks.
func NewInMemoryOrchestratorWithObserver(stages Stages, obs Observer) (Orchestrator, error) {
	return engine.NewInMemoryOrchestrator(stages, obs)
}

// NewSQLiteOrchestrator returns an Orchestrator that persists ventures in
// db, applying schema migrations first.
func NewSQLiteOrchestrator(db *sql.DB, stages Stages) (Orchestrator, error) {
	return engine.NewSQLiteOrchestrator(db, stages, nil)
}

// NewSQLiteOrchestratorWithObserver returns a SQLite-backed Orchestrator with the given Observer.
func NewSQLiteOrchestratorWithObserver(db *sql.DB, stages Stages, obs Observer) (Orchestrator, error) {
	return engine.NewSQLiteOrchestrator(db, stages, obs)
}

// NewRedisOrchestrator returns an Orchestrator that persists ventures in Redis.
func NewRedisOrchestrator(client redis.UniversalClient, stages Stages) (Orchestrator, error) {
	return engine.NewRedisOrchestrator(client, stages, nil)
}

// NewRedisOrchestratorWithObserver returns a Redis-backed Orchestrator with the given Observer.
func NewRedisOrchestratorWithObserver(client redis.UniversalClient, stages Stages, obs Observer) (Orchestrator, error) {
	return engine.NewRedisOrchestrator(client, stages, obs)
}

// Convenience helpers that just forward to the underlying Orchestrator.

// Launch creates a venture and drives it until it is live or a stage fails.
func Launch(ctx context.Context, orch Orchestrator) (*Venture, error) {
	v, err := orch.Create(ctx)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, v.ID)
}

// Run drives an existing venture.
func Run(ctx context.Context, orch Orchestrator, id string) (*Venture, error) {
	return orch.Run(ctx, id)
}

// RetryFailed resets a failed venture and runs it again from the stage that failed.
func RetryFailed(ctx context.Context, orch Orchestrator, id string) (*Venture, error) {
	if _, err := orch.Reset(ctx, id); err != nil {
		return nil, err
	}
	return orch.Run(ctx, id)
}
