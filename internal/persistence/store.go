package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/petrijr/auraflow/pkg/api"
)

// Store is the durable venture record store.
//
// Writes to a single venture are serialized by the implementation; writes
// to distinct ventures may proceed independently.
type Store interface {
	// Create inserts a fresh venture in api.InitialState and returns it.
	Create(ctx context.Context) (*api.Venture, error)

	// Get returns the full current record or an error wrapping
	// api.ErrVentureNotFound.
	Get(ctx context.Context, id string) (*api.Venture, error)

	// SetState overwrites the state field. Repeating it with the same value
	// has no further effect.
	SetState(ctx context.Context, id string, state api.State) error

	// SetDetail JSON-encodes payload into the named detail field.
	// Fields outside api.DetailFields are rejected with
	// api.ErrInvalidDetailField.
	SetDetail(ctx context.Context, id string, field api.DetailField, payload any) error

	// List returns ventures matching filter in creation order.
	List(ctx context.Context, filter Filter) ([]*api.Venture, error)

	// ListActive returns ids of ventures in one of api.ActiveStates, in
	// creation order. Records holding an unknown state are not listed.
	ListActive(ctx context.Context) ([]string, error)

	// TryAcquireLease attempts to acquire (or re-acquire) a lease on a venture.
	// If the venture is currently leased by another owner and the lease has not
	// expired, it returns acquired=false, err=nil.
	//
	// A lease owned by the same owner is re-entrant.
	TryAcquireLease(ctx context.Context, id, owner string, ttl time.Duration) (acquired bool, err error)

	// RenewLease extends a lease held by owner to ttl from now. It returns
	// api.ErrLeaseLost when owner no longer holds an unexpired lease.
	RenewLease(ctx context.Context, id, owner string, ttl time.Duration) error

	// ReleaseLease releases a lease if it is owned by owner. It is idempotent.
	ReleaseLease(ctx context.Context, id, owner string) error
}

// EventStore is an append-only history of venture transitions.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.VentureEvent) error
	ListEvents(ctx context.Context, ventureID string) ([]api.VentureEvent, error)
}

// Filter selects ventures from the store.
// A zero State means "no filter".
type Filter struct {
	State api.State
}

// Persistence bundles the store interfaces so the orchestrator can depend
// on a single value.
type Persistence struct {
	Ventures Store
	Events   EventStore
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.VentureEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, ventureID string) ([]api.VentureEvent, error) {
	return nil, nil
}

func checkState(state api.State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", api.ErrInvalidState, string(state))
	}
	return nil
}
