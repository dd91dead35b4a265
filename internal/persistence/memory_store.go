package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petrijr/auraflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of Store and
// EventStore backed by maps. It is not durable and is meant for tests and
// local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	ventures map[string]*api.Venture
	order    []string
	leases   map[string]memLease
	events   map[string][]api.VentureEvent

	now func() time.Time
}

type memLease struct {
	owner     string
	expiresAt time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ventures: make(map[string]*api.Venture),
		leases:   make(map[string]memLease),
		events:   make(map[string][]api.VentureEvent),
		now:      time.Now,
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ Store = (*InMemoryStore)(nil)

var _ EventStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Create(ctx context.Context) (*api.Venture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := NewVentureID()
	for {
		if _, exists := s.ventures[id]; !exists {
			break
		}
		id = NewVentureID()
	}

	v := &api.Venture{
		ID:        id,
		State:     api.InitialState,
		CreatedAt: s.now().UTC(),
	}
	s.ventures[id] = v
	s.order = append(s.order, id)
	return v.Clone(), nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*api.Venture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.ventures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return v.Clone(), nil
}

func (s *InMemoryStore) SetState(ctx context.Context, id string, state api.State) error {
	if err := checkState(state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.ventures[id]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	v.State = state
	return nil
}

func (s *InMemoryStore) SetDetail(ctx context.Context, id string, field api.DetailField, payload any) error {
	if _, err := api.ParseDetailField(string(field)); err != nil {
		return err
	}
	raw, err := EncodeDetail(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.ventures[id]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return v.SetDetail(field, raw)
}

func (s *InMemoryStore) List(ctx context.Context, filter Filter) ([]*api.Venture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Venture
	for _, id := range s.order {
		v := s.ventures[id]
		if filter.State != "" && v.State != filter.State {
			continue
		}
		result = append(result, v.Clone())
	}
	return result, nil
}

func (s *InMemoryStore) ListActive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		if s.ventures[id].State.Active() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *InMemoryStore) TryAcquireLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ventures[id]; !ok {
		return false, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}

	now := s.now()
	if cur, ok := s.leases[id]; ok && cur.owner != owner && now.Before(cur.expiresAt) {
		return false, nil
	}
	s.leases[id] = memLease{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *InMemoryStore) RenewLease(ctx context.Context, id, owner string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cur, ok := s.leases[id]
	if !ok || cur.owner != owner || !now.Before(cur.expiresAt) {
		return fmt.Errorf("%w: %s", api.ErrLeaseLost, id)
	}
	s.leases[id] = memLease{owner: owner, expiresAt: now.Add(ttl)}
	return nil
}

func (s *InMemoryStore) ReleaseLease(ctx context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.leases[id]; ok && cur.owner == owner {
		delete(s.leases, id)
	}
	return nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.VentureEvent) error {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.VentureID] = append(s.events[ev.VentureID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, ventureID string) ([]api.VentureEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.VentureEvent, len(s.events[ventureID]))
	copy(out, s.events[ventureID])
	return out, nil
}
