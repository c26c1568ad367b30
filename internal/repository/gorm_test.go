package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, NewGormRunRepository(db).Migrate(context.Background()))
	return db
}

func testResult(runID string, backend model.BackendType) *model.Result {
	return &model.Result{
		RunID:     runID,
		Backend:   backend,
		Params:    model.Params{Limit: 30, Count: 5, Workers: 2, Collectors: 1},
		Workers:   2,
		Primes:    []int{2, 3, 5, 7, 11},
		Phases:    model.Phases{Mark: 3 * time.Millisecond, Collect: time.Millisecond},
		Elapsed:   5 * time.Millisecond,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testRecord(t *testing.T, runID string, backend model.BackendType) *RunRecord {
	t.Helper()
	rec, err := NewRunRecord(testResult(runID, backend))
	require.NoError(t, err)
	return rec
}

func TestRunRecord_RoundTrip(t *testing.T) {
	want := testResult("run-1", model.BackendLocks)
	rec, err := NewRunRecord(want)
	require.NoError(t, err)

	assert.Equal(t, 5, rec.Found)
	assert.Equal(t, 11, rec.LastPrime)
	assert.Equal(t, "sieve_runs", rec.TableName())
	assert.Equal(t, 5*time.Millisecond, rec.Elapsed())

	got, err := rec.ToModel()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunRecord_ToModelEmptyPrimes(t *testing.T) {
	rec := &RunRecord{RunID: "empty"}
	got, err := rec.ToModel()
	require.NoError(t, err)
	assert.NotNil(t, got.Primes)
	assert.Empty(t, got.Primes)

	rec.Primes = JSONField("not json")
	_, err = rec.ToModel()
	assert.Error(t, err)
}

func TestGormRunRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	t.Run("GetByRunID_NotFound", func(t *testing.T) {
		run, err := repo.GetByRunID(ctx, "missing")
		assert.Nil(t, run)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("Save_Success", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, testRecord(t, "run-1", model.BackendThreads)))

		run, err := repo.GetByRunID(ctx, "run-1")
		require.NoError(t, err)
		assert.NotZero(t, run.ID)
		assert.Equal(t, model.BackendThreads, run.Backend)

		result, err := run.ToModel()
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 5, 7, 11}, result.Primes)
	})

	t.Run("Save_Duplicate", func(t *testing.T) {
		err := repo.Save(ctx, testRecord(t, "run-1", model.BackendThreads))
		assert.True(t, apperrors.IsDatabaseError(err))
	})
}

func TestGormRunRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	backends := []model.BackendType{model.BackendThreads, model.BackendLocks, model.BackendThreads}
	for i, b := range backends {
		require.NoError(t, repo.Save(ctx, testRecord(t, fmt.Sprintf("run-%d", i), b)))
	}

	t.Run("NewestFirst", func(t *testing.T) {
		runs, err := repo.List(ctx, ListOptions{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "run-2", runs[0].RunID)
		assert.Equal(t, "run-0", runs[2].RunID)
	})

	t.Run("FilterByBackend", func(t *testing.T) {
		runs, err := repo.List(ctx, ListOptions{Backend: model.BackendThreads})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, run := range runs {
			assert.Equal(t, model.BackendThreads, run.Backend)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		runs, err := repo.List(ctx, ListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-2", runs[0].RunID)
	})
}

func TestGormRunRepository_SetArtifactURL(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRecord(t, "run-1", model.BackendDistributed)))

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, repo.SetArtifactURL(ctx, "run-1", "file:///tmp/primes.json"))
		run, err := repo.GetByRunID(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "file:///tmp/primes.json", run.ArtifactURL)
	})

	t.Run("NotFound", func(t *testing.T) {
		err := repo.SetArtifactURL(ctx, "missing", "x")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestListOptions_Limit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ListOptions{}.limit())
	assert.Equal(t, DefaultListLimit, ListOptions{Limit: -1}.limit())
	assert.Equal(t, 5, ListOptions{Limit: 5}.limit())
}
