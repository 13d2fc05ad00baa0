package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
	"github.com/banshee-data/bodymeasure/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func runPipeline(t *testing.T, frames []landmark.Set, ref *float64) (*pipeline.Result, error) {
	t.Helper()
	rec := testutil.Recording(frames, 30)
	return pipeline.New(pipeline.DefaultConfig()).Run(context.Background(), pipeline.Request{
		Frames: rec, Estimator: rec, ReferenceHeightCm: ref,
	})
}

func TestMigrations(t *testing.T) {
	db := setupTestDB(t)

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'run_measurements'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenDB_Unmigrated(t *testing.T) {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)
}

func TestRunStore_SuccessfulRun(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	ref := 180.0
	res, err := runPipeline(t, testutil.RepeatFrames(testutil.StandingFigure(1), 5), &ref)
	require.NoError(t, err)

	run, err := NewRunFromResult("subject.json", res)
	require.NoError(t, err)
	require.NoError(t, store.Insert(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAt)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, "subject.json", got.Source)
	require.NotNil(t, got.ReferenceHeightCm)
	assert.Equal(t, 180.0, *got.ReferenceHeightCm)
	assert.Equal(t, 100.0, got.CalibrationFactor)
	assert.True(t, got.CalibrationApplied)
	assert.Equal(t, "cm", got.Unit)
	assert.Equal(t, res.Mesh.Vertices, got.Vertices)
	assert.Equal(t, string(res.Quality.MeshQuality), got.MeshQuality)
	assert.Empty(t, got.FailedStage)

	require.Len(t, got.Measurements, res.Measurements.Len())
	byName := make(map[measure.Name]Measurement)
	for _, m := range got.Measurements {
		byName[m.Name] = m
	}
	assert.InDelta(t, 180.0, byName[measure.Height].Value, 1e-9)
	assert.Equal(t, "cm", byName[measure.Height].Unit)
	assert.Equal(t, "cm³", byName[measure.MeshVolume].Unit)

	var bundle struct {
		Measurements *measure.Set `json:"measurements"`
	}
	require.NoError(t, json.Unmarshal(got.ResultJSON, &bundle))
	assert.InDelta(t, 50.0, bundle.Measurements.Value(measure.ShoulderWidth), 1e-9)
}

func TestRunStore_FailedRun(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	_, runErr := runPipeline(t, make([]landmark.Set, 3), nil)
	require.Error(t, runErr)

	run := NewFailedRun("empty.json", nil, runErr)
	require.NoError(t, store.Insert(run))

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "scaffold_building", got.FailedStage)
	assert.Equal(t, "no_landmarks_detected", got.FailureKind)
	assert.Contains(t, got.Error, "no landmarks")
	assert.Nil(t, got.ReferenceHeightCm)
	assert.Empty(t, got.Measurements)
	assert.Empty(t, got.ResultJSON)

	plain := NewFailedRun("broken.mp4", nil, errors.New("codec missing"))
	assert.Empty(t, plain.FailedStage)
	assert.Equal(t, "codec missing", plain.Error)
}

func TestRunStore_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	for i := 1; i <= 4; i++ {
		run := NewFailedRun(fmt.Sprintf("clip-%d.mp4", i), nil, errors.New("unreadable"))
		run.CreatedAt = int64(i) * 1000
		require.NoError(t, store.Insert(run))
	}

	runs, err := store.List(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "clip-4.mp4", runs[0].Source)
	assert.Equal(t, "clip-2.mp4", runs[2].Source)
	assert.Equal(t, int64(4000), runs[0].CreatedAt)

	all, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, store.Delete(runs[0].RunID))
	_, err = store.Get(runs[0].RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.Delete(runs[0].RunID), ErrRunNotFound)

	all, err = store.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunStore_DeleteCascadesMeasurements(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	res, err := runPipeline(t, testutil.RepeatFrames(testutil.StandingFigure(1), 2), nil)
	require.NoError(t, err)
	run, err := NewRunFromResult("subject.json", res)
	require.NoError(t, err)
	require.NoError(t, store.Insert(run))
	require.NoError(t, store.Delete(run.RunID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM run_measurements`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestNewRunFromResult_RequiresMeasurements(t *testing.T) {
	_, err := NewRunFromResult("x", nil)
	assert.Error(t, err)
	_, err = NewRunFromResult("x", &pipeline.Result{})
	assert.Error(t, err)
}
