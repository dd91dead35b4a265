package api

import "context"

// Orchestrator is the venture lifecycle API.
type Orchestrator interface {
	// Create allocates a new venture in InitialState.
	Create(ctx context.Context) (*Venture, error)

	// Get looks up a venture by ID.
	// Returns an error wrapping ErrVentureNotFound if the id is unknown.
	Get(ctx context.Context, id string) (*Venture, error)

	// List returns ventures matching opts in creation order.
	List(ctx context.Context, opts VentureListOptions) ([]*Venture, error)

	// ListActive returns the ids of ventures that are neither LIVE nor failed.
	ListActive(ctx context.Context) ([]string, error)

	// Run drives the venture forward until it reaches a terminal state or a
	// stage fails. Stage failures are recorded in the returned venture's
	// State and are not reported as errors; the error is reserved for
	// not-found, busy and store faults, and for a ctx cancelled while a
	// stage was running, in which case the state is left unchanged.
	Run(ctx context.Context, id string) (*Venture, error)

	// Reset moves a FAILED_<state> venture back to <state> so the next run
	// retries that stage. It is the only way out of a failed state.
	Reset(ctx context.Context, id string) (*Venture, error)

	// History returns the recorded transition events for a venture.
	History(ctx context.Context, id string) ([]VentureEvent, error)
}
