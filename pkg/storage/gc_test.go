package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedRuns(t *testing.T, store RunStore, namespace string, now time.Time, ages ...int) {
	t.Helper()
	for i, days := range ages {
		run := newRun(fmt.Sprintf("%s-%d", namespace, i))
		run.Output = namespace + ":d.t"
		run.Status = string(StatusCompleted)
		run.StartedAt = now.AddDate(0, 0, -days)
		require.NoError(t, store.Create(context.Background(), namespace, run))
	}
}

func TestGarbageCollect_Disabled(t *testing.T) {
	backend := setupTestBackend(t)
	now := time.Now()
	seedRuns(t, backend.Runs(), "proj", now, 100, 200)

	res, err := backend.GarbageCollect(context.Background(), GCOptions{})
	require.NoError(t, err)
	require.Zero(t, res.RunsDeleted)
}

func TestGarbageCollect_MaxAge(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	seedRuns(t, backend.Runs(), "proj", now, 1, 5, 40, 90)

	res, err := backend.GarbageCollect(ctx, GCOptions{
		Retention: &RetentionConfig{MaxAgeDays: 30},
		Now:       now,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.RunsDeleted)
	require.ElementsMatch(t, []string{"proj-2", "proj-3"}, res.DeletedRunIDs)

	runs, err := backend.Runs().List(ctx, "proj", RunFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"proj-0", "proj-1"}, runIDs(runs))
}

func TestGarbageCollect_MaxRunsAcrossNamespaces(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	now := time.Now()
	seedRuns(t, backend.Runs(), "a", now, 1, 2, 3)
	seedRuns(t, backend.Runs(), "b", now, 1, 2)

	res, err := backend.GarbageCollect(ctx, GCOptions{Retention: &RetentionConfig{MaxRuns: 1}})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a-1", "a-2", "b-1"}, res.DeletedRunIDs)
	require.Empty(t, res.Errors)
}

func TestGarbageCollect_DryRun(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	now := time.Now()
	seedRuns(t, backend.Runs(), "proj", now, 1, 2, 3)

	res, err := backend.GarbageCollect(ctx, GCOptions{
		DryRun:    true,
		Namespace: "proj",
		Retention: &RetentionConfig{MaxRuns: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.RunsDeleted)

	runs, err := backend.Runs().List(ctx, "proj", RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
}

func TestGarbageCollect_SkipsRunningRuns(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)

	run := newRun("live")
	run.Status = string(StatusRunning)
	run.StartedAt = time.Now().AddDate(-1, 0, 0)
	require.NoError(t, backend.Runs().Create(ctx, "proj", run))

	res, err := backend.GarbageCollect(ctx, GCOptions{Retention: &RetentionConfig{MaxAgeDays: 1}})
	require.NoError(t, err)
	require.Zero(t, res.RunsDeleted)
}

func TestGarbageCollect_UsesConfiguredRetention(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(ctx, &Config{Root: t.TempDir(), Retention: RetentionConfig{MaxRuns: 2}})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))
	seedRuns(t, backend.Runs(), "proj", time.Now(), 1, 2, 3, 4)

	res, err := backend.GarbageCollect(ctx, GCOptions{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"proj-2", "proj-3"}, res.DeletedRunIDs)
}
