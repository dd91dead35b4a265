package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/internal/persistence"
	"github.com/petrijr/auraflow/pkg/api"
)

// minHeartbeat keeps very short test TTLs from spinning the renew loop.
const minHeartbeat = 5 * time.Millisecond

// heldLease is a store lease kept alive by a background heartbeat.
//
// ctx is cancelled with a cause wrapping api.ErrLeaseLost when a renewal
// fails, so stages observe the loss and the orchestrator refuses to persist
// their outcome.
type heldLease struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   chan struct{}
	done   chan struct{}
}

// startHeartbeat renews the lease on id every ttl/3 until stop is called
// or the parent context ends.
func startHeartbeat(parent context.Context, store persistence.Store, id, owner string, ttl time.Duration, logger zerolog.Logger) *heldLease {
	ctx, cancel := context.WithCancelCause(parent)
	l := &heldLease{
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	interval := ttl / 3
	if interval < minHeartbeat {
		interval = minHeartbeat
	}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := store.RenewLease(ctx, id, owner, ttl)
				if err == nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Str("venture_id", id).Msg("lease renewal failed")
				if !errors.Is(err, api.ErrLeaseLost) {
					err = fmt.Errorf("%w: %s: %v", api.ErrLeaseLost, id, err)
				}
				cancel(err)
				return
			}
		}
	}()
	return l
}

// lost returns the cancellation cause when the heartbeat gave up on the lease.
func (l *heldLease) lost() error {
	if l.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(l.ctx)
	if errors.Is(cause, api.ErrLeaseLost) {
		return cause
	}
	return nil
}

// halt stops the heartbeat and waits for it to exit.
func (l *heldLease) halt() {
	close(l.stop)
	<-l.done
	l.cancel(nil)
}
