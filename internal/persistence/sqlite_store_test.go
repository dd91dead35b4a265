package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/auraflow/pkg/api"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "auraflow.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) fullStore {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auraflow.db")
	ctx := context.Background()

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	v, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetDetail(ctx, v.ID, api.FieldNicheIdea, api.NicheIdea{ChosenTopic: "Pottery"}))
	require.NoError(t, store.SetState(ctx, v.ID, api.StateProductGeneration))
	require.NoError(t, db.Close())

	// Reopening the same file runs migrations again and keeps the data.
	db2, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	store2, err := NewSQLiteStore(db2)
	require.NoError(t, err)

	got, err := store2.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, api.StateProductGeneration, got.State)

	idea, err := api.DecodeNicheIdea(got.NicheIdea)
	require.NoError(t, err)
	require.Equal(t, "Pottery", idea.ChosenTopic)
}

func TestSQLiteStore_CorruptDetailIsReturnedRaw(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	v, err := store.Create(ctx)
	require.NoError(t, err)

	// Simulate a document damaged outside the store API.
	_, err = store.db.ExecContext(ctx, `UPDATE ventures SET niche_idea = ? WHERE id = ?`, "{not json", v.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, v.ID)
	require.NoError(t, err)

	_, err = api.DecodeNicheIdea(got.NicheIdea)
	var pe *api.PreconditionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, api.ReasonCorrupt, pe.Reason)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("")
	require.Error(t, err)
}

func TestSQLiteStore_ListActiveSkipsUnknownState(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	broken, err := store.Create(ctx)
	require.NoError(t, err)
	healthy, err := store.Create(ctx)
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, `UPDATE ventures SET state = 'PRODUCT_GEN' WHERE id = ?`, broken.ID)
	require.NoError(t, err)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{healthy.ID}, active)

	got, err := store.Get(ctx, broken.ID)
	require.NoError(t, err)
	require.Equal(t, api.State("PRODUCT_GEN"), got.State)
}
