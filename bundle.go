package auraflow

import (
	"database/sql"

	"github.com/petrijr/auraflow/pkg/scheduler"
)

// SchedulerBundle wires together an Orchestrator and a Scheduler that
// sweeps its active ventures.
//
// For now, we only provide a SQLite-backed bundle.
type SchedulerBundle struct {
	Orchestrator Orchestrator
	Scheduler    *scheduler.Scheduler
}

// NewSQLiteBundle constructs a durable Orchestrator + Scheduler pair over db.
// Ventures, leases and history are persisted in the provided *sql.DB.
//
// Typical usage:
//
//	db, _ := persistence.OpenSQLite("db/auraflow.db")
//	bundle, err := auraflow.NewSQLiteBundle(db, stages, scheduler.Config{SeedWhenIdle: true})
//	go bundle.Scheduler.Run(ctx)
func NewSQLiteBundle(db *sql.DB, stages Stages, cfg scheduler.Config) (*SchedulerBundle, error) {
	orch, err := NewSQLiteOrchestrator(db, stages)
	if err != nil {
		return nil, err
	}
	return &SchedulerBundle{
		Orchestrator: orch,
		Scheduler:    scheduler.NewWithConfig(orch, cfg),
	}, nil
}
