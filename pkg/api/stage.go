package api

import (
	"context"
	"errors"
	"fmt"
)

// StageInput is what an executor receives: a snapshot of the venture plus
// the decoded prior details the stage may depend on.
//
// NicheIdea and ProductDetails are nil when the corresponding detail has not
// been produced yet.
type StageInput struct {
	Venture        *Venture
	NicheIdea      *NicheIdea
	ProductDetails *ProductDetails
}

// StageExecutor performs the external-facing work of one stage.
//
// A nil error means success and the returned value is persisted as the
// stage's detail document. Executors must be safe to run again for the same
// venture: a crash between persisting the detail and advancing the state
// re-executes the stage on the next run.
type StageExecutor interface {
	Execute(ctx context.Context, in StageInput) (any, error)
}

// StageFunc adapts a plain function to StageExecutor.
type StageFunc func(ctx context.Context, in StageInput) (any, error)

// Execute calls f.
func (f StageFunc) Execute(ctx context.Context, in StageInput) (any, error) {
	return f(ctx, in)
}

// Stages binds one executor to each non-terminal state.
type Stages struct {
	Discovery  StageExecutor
	Production StageExecutor
	Deployment StageExecutor
}

// For returns the executor responsible for state s.
func (s Stages) For(state State) (StageExecutor, bool) {
	var ex StageExecutor
	switch state {
	case StateDiscovery:
		ex = s.Discovery
	case StateProductGeneration:
		ex = s.Production
	case StateDeployment:
		ex = s.Deployment
	}
	return ex, ex != nil
}

// Validate checks that every non-terminal state has an executor.
func (s Stages) Validate() error {
	var errs []error
	for _, st := range ActiveStates {
		if _, ok := s.For(st); !ok {
			errs = append(errs, fmt.Errorf("no executor bound for state %s", st))
		}
	}
	return errors.Join(errs...)
}

// Requirements lists the details a stage cannot run without.
// Deployment reads product_details when present but does not require it.
func Requirements(state State) []DetailField {
	switch state {
	case StateProductGeneration, StateDeployment:
		return []DetailField{FieldNicheIdea}
	default:
		return nil
	}
}
