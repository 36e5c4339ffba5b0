package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sweeps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func storedResult() *optimize.Result {
	return &optimize.Result{
		Spec: optimize.ParameterSpec{Name: "Fillet_Radius", Min: 2, Max: 15, Steps: 3, Mode: optimize.StepLinear},
		History: []optimize.TrialRecord{
			{Index: 1, ParameterValue: 2, QualityScore: 65, ElapsedSeconds: 0.5, ArtifactPath: "out/trial_01_Fillet_Radius_2.step"},
			{Index: 2, ParameterValue: 8.5, QualityScore: 92, ElapsedSeconds: 0.6, ArtifactPath: "out/trial_02_Fillet_Radius_8.5.step"},
			{Index: 3, ParameterValue: 15, Error: "rebuild: recompute failed", ElapsedSeconds: 0.2},
		},
		BestIndex: 2,
	}
}

func TestSaveAndLoadResult(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveResult(ctx, "sweep-001", storedResult()))

	loaded, err := db.LoadResult(ctx, "sweep-001")
	require.NoError(t, err)

	assert.Equal(t, "Fillet_Radius", loaded.Spec.Name)
	assert.Equal(t, optimize.StepLinear, loaded.Spec.Mode)
	assert.Equal(t, 2, loaded.BestIndex)
	require.Len(t, loaded.History, 3)
	assert.Equal(t, 92.0, loaded.History[1].QualityScore)
	assert.Equal(t, "rebuild: recompute failed", loaded.History[2].Error)
	assert.True(t, loaded.History[2].Failed())

	best, ok := loaded.Best()
	require.True(t, ok)
	assert.Equal(t, 8.5, best.ParameterValue)
}

func TestLoadResultNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSweepNotFound)
}

func TestSaveResultRejectsDuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveResult(ctx, "sweep-001", storedResult()))
	assert.Error(t, db.SaveResult(ctx, "sweep-001", storedResult()))

	// The failed save must not leave partial trial rows behind.
	loaded, err := db.LoadResult(ctx, "sweep-001")
	require.NoError(t, err)
	assert.Len(t, loaded.History, 3)
}

func TestListSweeps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveResult(ctx, "sweep-001", storedResult()))
	require.NoError(t, db.SaveResult(ctx, "sweep-002", storedResult()))

	sweeps, err := db.ListSweeps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sweeps, 2)

	// Newest first; same timestamp falls back to ID ordering.
	assert.Equal(t, "sweep-002", sweeps[0].ID)
	assert.Equal(t, "Fillet_Radius", sweeps[0].Parameter)
	assert.Equal(t, 3, sweeps[0].Trials)
	assert.Equal(t, 2, sweeps[0].BestIndex)
	assert.Equal(t, 92.0, sweeps[0].BestScore)

	limited, err := db.ListSweeps(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
