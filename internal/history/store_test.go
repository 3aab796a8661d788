package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.StartRun(ctx, Run{RunID: "run-1", Agent: "claude", MaxIterations: 8, StartedAt: start}))

	require.NoError(t, store.Record(ctx, Iteration{
		RunID: "run-1", Iteration: 1, Phase: "DISCOVERY", PhaseAfter: "DISCOVERY",
		ExitCode: 1, Category: "rate_limited", Action: "retry", Delay: 30 * time.Second,
		Duration: 1500 * time.Millisecond, Excerpt: "429", StartedAt: start,
	}))
	require.NoError(t, store.Record(ctx, Iteration{
		RunID: "run-1", Iteration: 2, Phase: "DISCOVERY", PhaseAfter: "ANALYSIS",
		Verdict: "not-claimed", Analyzed: 0, StartedAt: start.Add(time.Minute),
	}))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].Iteration, "newest first")
	assert.Equal(t, "ANALYSIS", recent[0].PhaseAfter)
	assert.Equal(t, 30*time.Second, recent[1].Delay)
	assert.Equal(t, 1500*time.Millisecond, recent[1].Duration)
	assert.True(t, recent[1].StartedAt.Equal(start))

	counts, err := store.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"rate_limited": 1}, counts)

	require.NoError(t, store.FinishRun(ctx, "run-1", "budget_exhausted", "max iterations reached", start.Add(time.Hour)))
	runs, err := store.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "budget_exhausted", runs[0].Outcome)
	assert.Equal(t, 8, runs[0].MaxIterations)
	assert.True(t, runs[0].EndedAt.Equal(start.Add(time.Hour)))
}

func TestFinishUnknownRun(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.FinishRun(context.Background(), "missing", "completed", "", time.Now())
	assert.Error(t, err)
}

func TestOpenForProjectPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenForProject(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
	require.NoError(t, store.StartRun(ctx, Run{RunID: "r", Agent: "amp", MaxIterations: 1, StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	reopened, err := OpenForProject(dir)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
