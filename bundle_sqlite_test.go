package auraflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/auraflow/internal/persistence"
	"github.com/petrijr/auraflow/pkg/scheduler"
)

// TestSQLiteBundle_DurableAcrossRestart shows that a venture parked in a
// failed state survives a simulated process restart and can be retried by
// a fresh bundle over the same database file.
func TestSQLiteBundle_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "auraflow_bundle.db")
	deployErr := errors.New("vercel unavailable")

	// --- Phase 1: sweep once; deployment fails.

	db1, err := persistence.OpenSQLite(dbPath)
	require.NoError(t, err)

	bundle1, err := NewSQLiteBundle(db1, testStages(&deployErr), scheduler.Config{SeedWhenIdle: true, Pacing: -1})
	require.NoError(t, err)

	report, err := bundle1.Scheduler.Sweep(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Seeded)
	require.Equal(t, 1, report.Failed)
	id := report.Seeded

	require.NoError(t, db1.Close())

	// --- Phase 2: new process, same file.

	db2, err := persistence.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer db2.Close()

	deployErr = nil
	bundle2, err := NewSQLiteBundle(db2, testStages(&deployErr), scheduler.Config{Pacing: -1})
	require.NoError(t, err)

	v, err := bundle2.Orchestrator.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateFailedDeployment, v.State)

	// Failed ventures are not swept.
	report, err = bundle2.Scheduler.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Processed)

	v, err = RetryFailed(ctx, bundle2.Orchestrator, id)
	require.NoError(t, err)
	require.Equal(t, StateLive, v.State)
}
