// Package api contains the core building blocks of the auraflow venture
// orchestrator: the venture data model, the closed state machine, the stage
// executor contract, errors, and observability hooks.
//
// Most users interact with the higher-level auraflow package, which
// re-exports selected types and constructors from this package. The api
// package is intended for custom stage executors, store integrations and
// observers.
//
// # Ventures and States
//
// A Venture moves through a fixed pipeline:
//
//	DISCOVERY -> PRODUCT_GENERATION -> DEPLOYMENT -> LIVE
//
// Every non-terminal state has exactly one FAILED_<state> variant reachable
// only from that state. LIVE and FAILED_* are terminal for automatic
// processing; a failed venture only moves again through Orchestrator.Reset.
//
// The transition table is encoded in State.Next, State.FailedState and
// State.Output so the orchestrator and the stores agree on it.
//
// # Stage Executors
//
// A StageExecutor receives a StageInput (a venture snapshot plus the decoded
// details produced by earlier stages) and returns the document to persist
// for its stage. Executors are called at least once per successful
// transition and must tolerate re-execution.
//
// # Observability
//
// Observer receives run, stage and terminal callbacks. LoggingObserver and
// BasicMetrics are ready-made implementations; NewCompositeObserver combines
// several.
package api
