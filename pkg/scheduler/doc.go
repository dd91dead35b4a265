// Package scheduler provides the periodic driver that moves auraflow
// ventures forward.
//
// A Scheduler sweeps the store on a fixed interval: it lists the ventures
// that are neither LIVE nor failed and asks the orchestrator to run each
// one. Ventures that fail a stage stay failed until they are reset; the
// scheduler never retries them on its own.
//
// # Pacing and concurrency
//
// By default ventures are processed strictly one after another with a short
// pause between them, which keeps calls to the external services spread
// out. Setting Concurrency above one processes distinct ventures in
// parallel; the orchestrator's per-venture lease still guarantees a single
// run per venture at a time.
//
// # Failure handling
//
// A venture that is busy (leased by another process) or has disappeared is
// skipped. Any other error from the orchestrator is treated as the store
// being unavailable: the sweep stops and the next one starts at the next
// interval.
//
// Most applications construct a scheduler via the auraflow package, which
// wires the store, orchestrator and scheduler together.
package scheduler
