// Package auraflow drives micro-ventures through a fixed lifecycle:
// niche discovery, product generation and deployment of a landing page with
// a payment link.
//
// # Core Concepts
//
//  1. Orchestrator
//  2. Stages
//  3. Scheduler
//  4. LocalRunner
//
// # Orchestrator
//
// The Orchestrator owns the venture state machine:
//
//	DISCOVERY -> PRODUCT_GENERATION -> DEPLOYMENT -> LIVE
//
// A failing stage moves the venture to FAILED_<stage> and the failure is
// never retried automatically. Reset (or RetryFailed) moves it back.
// Orchestrators can be backed by memory, SQLite or Redis; at most one run
// per venture executes at a time across processes sharing a store.
//
// # Stages
//
// Each non-terminal state has one StageExecutor. The returned value is
// persisted verbatim as that stage's detail document (niche_idea,
// product_details, sales_details). StagesBuilder offers typed helpers:
//
//	stages := auraflow.NewStages().
//	    Discover(findNiche).
//	    Produce(writeEbook).
//	    Deploy(publish).
//	    MustBuild()
//
// The production implementations live in pkg/stages and talk to Reddit,
// OpenAI, Stripe and Vercel through pkg/clients.
//
// # Scheduler
//
// pkg/scheduler sweeps every active venture on an interval, pacing calls
// between ventures and seeding a new venture when none are active.
//
// # LocalRunner
//
// LocalRunner couples an in-memory orchestrator with a background scheduler
// for development:
//
//	runner, _ := auraflow.NewLocalRunner(stages)
//	_ = runner.Start(ctx)
//	id, _ := runner.Submit(ctx)
//	defer runner.Stop()
package auraflow
