package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/auraflow/pkg/api"
)

// fullStore is what every backend in this package implements.
type fullStore interface {
	Store
	EventStore
}

// runStoreContract exercises the behaviour shared by all backends.
func runStoreContract(t *testing.T, newStore func(t *testing.T) fullStore) {
	t.Run("CreateGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, v.ID)
		require.Equal(t, api.StateDiscovery, v.State)
		require.Nil(t, v.NicheIdea)
		require.Nil(t, v.SalesDetails)

		got, err := store.Get(ctx, v.ID)
		require.NoError(t, err)
		require.Equal(t, v.ID, got.ID)
		require.Equal(t, api.StateDiscovery, got.State)
		require.WithinDuration(t, v.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("CreateDistinctIDs", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			v, err := store.Create(ctx)
			require.NoError(t, err)
			require.False(t, seen[v.ID], "duplicate id %s", v.ID)
			seen[v.ID] = true
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), "does-not-exist")
		require.ErrorIs(t, err, api.ErrVentureNotFound)
	})

	t.Run("SetStateIdempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, store.SetState(ctx, v.ID, api.StateProductGeneration))
		require.NoError(t, store.SetState(ctx, v.ID, api.StateProductGeneration))

		got, err := store.Get(ctx, v.ID)
		require.NoError(t, err)
		require.Equal(t, api.StateProductGeneration, got.State)
	})

	t.Run("SetStateRejectsUnknownState", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		err = store.SetState(ctx, v.ID, api.State("PAUSED"))
		require.ErrorIs(t, err, api.ErrInvalidState)
	})

	t.Run("SetStateUnknownVenture", func(t *testing.T) {
		store := newStore(t)
		err := store.SetState(context.Background(), "missing", api.StateLive)
		require.ErrorIs(t, err, api.ErrVentureNotFound)
	})

	t.Run("SetDetailRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		idea := api.NicheIdea{ChosenTopic: "Budget travel", TargetAudience: "students", Reasoning: "popular"}
		require.NoError(t, store.SetDetail(ctx, v.ID, api.FieldNicheIdea, idea))

		got, err := store.Get(ctx, v.ID)
		require.NoError(t, err)

		decoded, err := api.DecodeNicheIdea(got.NicheIdea)
		require.NoError(t, err)
		require.Equal(t, idea, decoded)
		require.Nil(t, got.ProductDetails)
	})

	t.Run("SetDetailRawJSON", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		raw := json.RawMessage(`{"landing_page_url":"https://x.example"}`)
		require.NoError(t, store.SetDetail(ctx, v.ID, api.FieldSalesDetails, raw))

		got, err := store.Get(ctx, v.ID)
		require.NoError(t, err)
		require.JSONEq(t, string(raw), string(got.SalesDetails))
	})

	t.Run("SetDetailRejectsUnknownField", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		err = store.SetDetail(ctx, v.ID, api.DetailField("state"), map[string]string{"x": "y"})
		require.ErrorIs(t, err, api.ErrInvalidDetailField)

		got, err := store.Get(ctx, v.ID)
		require.NoError(t, err)
		require.Equal(t, api.StateDiscovery, got.State)
	})

	t.Run("SetDetailUnknownVenture", func(t *testing.T) {
		store := newStore(t)
		err := store.SetDetail(context.Background(), "missing", api.FieldNicheIdea, map[string]string{"a": "b"})
		require.ErrorIs(t, err, api.ErrVentureNotFound)
	})

	t.Run("ListAndListActive", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var ids []string
		for i := 0; i < 4; i++ {
			v, err := store.Create(ctx)
			require.NoError(t, err)
			ids = append(ids, v.ID)
		}
		require.NoError(t, store.SetState(ctx, ids[1], api.StateLive))
		require.NoError(t, store.SetState(ctx, ids[2], api.StateFailedDeployment))
		require.NoError(t, store.SetState(ctx, ids[3], api.StateDeployment))

		active, err := store.ListActive(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{ids[0], ids[3]}, active)

		all, err := store.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i, v := range all {
			require.Equal(t, ids[i], v.ID)
		}

		live, err := store.List(ctx, Filter{State: api.StateLive})
		require.NoError(t, err)
		require.Len(t, live, 1)
		require.Equal(t, ids[1], live[0].ID)

		// A reset venture becomes active again.
		require.NoError(t, store.SetState(ctx, ids[2], api.StateDeployment))
		active, err = store.ListActive(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{ids[0], ids[2], ids[3]}, active)
	})

	t.Run("ListActiveEmpty", func(t *testing.T) {
		store := newStore(t)
		active, err := store.ListActive(context.Background())
		require.NoError(t, err)
		require.Empty(t, active)
	})

	t.Run("LeaseAcquireRelease", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		ok, err := store.TryAcquireLease(ctx, v.ID, "owner1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.TryAcquireLease(ctx, v.ID, "owner2", time.Minute)
		require.NoError(t, err)
		require.False(t, ok, "lease should be held by owner1")

		ok, err = store.TryAcquireLease(ctx, v.ID, "owner1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "lease should be re-entrant for its owner")

		// Releasing someone else's lease is a no-op.
		require.NoError(t, store.ReleaseLease(ctx, v.ID, "owner2"))
		ok, err = store.TryAcquireLease(ctx, v.ID, "owner2", time.Minute)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, store.ReleaseLease(ctx, v.ID, "owner1"))
		require.NoError(t, store.ReleaseLease(ctx, v.ID, "owner1"))

		ok, err = store.TryAcquireLease(ctx, v.ID, "owner2", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("LeaseExpires", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		ok, err := store.TryAcquireLease(ctx, v.ID, "owner1", 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		require.Eventually(t, func() bool {
			ok, err := store.TryAcquireLease(ctx, v.ID, "owner2", time.Minute)
			return err == nil && ok
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("LeaseRenew", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		ok, err := store.TryAcquireLease(ctx, v.ID, "owner1", 150*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.RenewLease(ctx, v.ID, "owner1", time.Minute))
		require.ErrorIs(t, store.RenewLease(ctx, v.ID, "owner2", time.Minute), api.ErrLeaseLost)

		// The renewal outlives the original ttl.
		time.Sleep(300 * time.Millisecond)
		ok, err = store.TryAcquireLease(ctx, v.ID, "owner2", time.Minute)
		require.NoError(t, err)
		require.False(t, ok, "renewed lease should still be held by owner1")

		require.NoError(t, store.ReleaseLease(ctx, v.ID, "owner1"))
		require.ErrorIs(t, store.RenewLease(ctx, v.ID, "owner1", time.Minute), api.ErrLeaseLost)
	})

	t.Run("LeaseRenewAfterExpiry", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		ok, err := store.TryAcquireLease(ctx, v.ID, "owner1", 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		require.Eventually(t, func() bool {
			return errors.Is(store.RenewLease(ctx, v.ID, "owner1", time.Minute), api.ErrLeaseLost)
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("LeaseUnknownVenture", func(t *testing.T) {
		store := newStore(t)
		_, err := store.TryAcquireLease(context.Background(), "missing", "owner", time.Minute)
		require.True(t, errors.Is(err, api.ErrVentureNotFound), "got %v", err)
	})

	t.Run("Events", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		v, err := store.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, store.AppendEvent(ctx, api.VentureEvent{
			VentureID: v.ID,
			Type:      api.EventStageStarted,
			From:      api.StateDiscovery,
		}))
		require.NoError(t, store.AppendEvent(ctx, api.VentureEvent{
			VentureID: v.ID,
			Type:      api.EventStageFailed,
			From:      api.StateDiscovery,
			To:        api.StateFailedDiscovery,
			Detail:    "boom",
		}))

		events, err := store.ListEvents(ctx, v.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, api.EventStageStarted, events[0].Type)
		require.Equal(t, api.EventStageFailed, events[1].Type)
		require.Equal(t, api.StateFailedDiscovery, events[1].To)
		require.Equal(t, "boom", events[1].Detail)
		require.False(t, events[0].At.IsZero())

		none, err := store.ListEvents(ctx, "other")
		require.NoError(t, err)
		require.Empty(t, none)
	})
}
