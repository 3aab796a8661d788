package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/types"
)

const sampleDoc = `{
  "project": "agent-memory",
  "branchName": "research/agent-memory",
  "mission": {"blue_ocean_scoring": true, "min_combined_score": 25},
  "requirements": {"focus_area": "agent memory", "target_papers": 3, "keywords": ["rag", "memory"]},
  "phase": "Analysis",
  "papers_pool": [
    {"id": "arxiv_1", "title": "One", "status": "presented", "priority": 5, "score": 31, "score_breakdown": {"novelty": 4}},
    {"id": "arxiv_2", "title": "Two", "status": "analyzing", "priority": 3},
    {"id": "arxiv_3", "title": "Three", "status": "extract_insights", "notes": "keep"}
  ],
  "insights": [{"id": "i1", "paper_id": "arxiv_1", "insight": "x", "weight": 1.50}],
  "statistics": {"total_discovered": 3, "total_analyzed": 9, "analysis_metrics": {"avg_combined_score": 27.5}},
  "timing": {"research_started_at": "2025-01-02T10:00:00.123456", "analysis": {"started_at": "2025-01-02T11:00:00", "custom": true}},
  "handoff": {"product_ideation": {"enabled": false, "min_ideas": 3}},
  "visited_urls": ["https://arxiv.org/abs/1"]
}`

func writeDoc(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DocumentFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeDoc(t, t.TempDir(), sampleDoc)

	st, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "agent-memory", st.Project)
	assert.Equal(t, 3, st.Target())
	assert.Equal(t, types.PhaseAnalysis, st.Phase)
	require.Len(t, st.PapersPool, 3)
	assert.Equal(t, types.StatusInsightsExtracted, st.PapersPool[2].Status)
	require.NotNil(t, st.PapersPool[0].Score)
	assert.Equal(t, 31, *st.PapersPool[0].Score)
	assert.Nil(t, st.PapersPool[2].Priority)
	assert.False(t, st.IdeationEnabled())
	assert.Equal(t, DefaultIdeationArtifact, st.IdeationArtifact())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "invalid json", content: `{"project": `, want: ErrMalformed},
		{name: "not an object", content: `[1, 2]`, want: ErrMalformed},
		{name: "missing project", content: `{"requirements": {"target_papers": 2}}`, want: ErrMissingRequiredField},
		{name: "missing requirements", content: `{"project": "p"}`, want: ErrMissingRequiredField},
		{name: "missing target", content: `{"project": "p", "requirements": {"focus_area": "x"}}`, want: ErrMissingRequiredField},
		{name: "unknown phase", content: `{"project": "p", "requirements": {"target_papers": 2}, "phase": "REVIEW"}`, want: ErrMalformed},
		{name: "unknown status", content: `{"project": "p", "requirements": {"target_papers": 2}, "papers_pool": [{"id": "a", "status": "done"}]}`, want: ErrMalformed},
		{name: "wrong type", content: `{"project": "p", "requirements": {"target_papers": "two"}}`, want: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDoc(t, t.TempDir(), tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), DocumentFile))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("missing field is not a parse error", func(t *testing.T) {
		path := writeDoc(t, t.TempDir(), `{"requirements": {"target_papers": 2}}`)
		_, err := Load(path)
		assert.False(t, errors.Is(err, ErrMalformed))
	})
}

func TestPhaseDefaultsToDiscovery(t *testing.T) {
	path := writeDoc(t, t.TempDir(), `{"project": "p", "requirements": {"target_papers": 2}}`)
	st, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDiscovery, st.Phase)
	assert.Empty(t, st.PapersPool)
}

func TestSaveRoundTripPreservesOpaqueFields(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, sampleDoc)

	st, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(st, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "research/agent-memory", doc["branchName"])
	assert.Equal(t, []any{"https://arxiv.org/abs/1"}, doc["visited_urls"])
	assert.Equal(t, "ANALYSIS", doc["phase"], "phase is written in canonical case")

	req := doc["requirements"].(map[string]any)
	assert.Equal(t, "agent memory", req["focus_area"])
	assert.Equal(t, []any{"rag", "memory"}, req["keywords"])

	pool := doc["papers_pool"].([]any)
	first := pool[0].(map[string]any)
	assert.Equal(t, "One", first["title"])
	assert.Equal(t, map[string]any{"novelty": float64(4)}, first["score_breakdown"])
	third := pool[2].(map[string]any)
	assert.Equal(t, "insights_extracted", third["status"], "legacy alias saved canonically")
	assert.Equal(t, "keep", third["notes"])
	_, hasPriority := third["priority"]
	assert.False(t, hasPriority, "absent optional fields stay absent")

	stats := doc["statistics"].(map[string]any)
	assert.Equal(t, map[string]any{"avg_combined_score": 27.5}, stats["analysis_metrics"])

	timing := doc["timing"].(map[string]any)
	assert.Equal(t, "2025-01-02T10:00:00.123456", timing["research_started_at"])
	analysis := timing["analysis"].(map[string]any)
	assert.Equal(t, true, analysis["custom"])

	handoff := doc["handoff"].(map[string]any)["product_ideation"].(map[string]any)
	assert.Equal(t, float64(3), handoff["min_ideas"])
	assert.Equal(t, false, handoff["enabled"])

	assert.Contains(t, string(data), `"weight": 1.50`, "opaque numbers keep their original text")

	// A second round trip is stable.
	again, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(again, path))
	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(data2))
}

func TestSaveKeepsMemberOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, sampleDoc)

	st, err := Load(path)
	require.NoError(t, err)
	st.PapersPool[1].Status = types.StatusPending
	require.NoError(t, st.SetField("description", "added later"))
	require.NoError(t, Save(st, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"project", "branchName", "mission", "requirements", "phase", "papers_pool",
		"insights", "statistics", "timing", "handoff", "visited_urls",
		"description",
	}, objectKeys(data), "original order first, new members after")

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"focus_area", "target_papers", "keywords"}, objectKeys(doc["requirements"]))

	var pool []json.RawMessage
	require.NoError(t, json.Unmarshal(doc["papers_pool"], &pool))
	assert.Equal(t, []string{"id", "title", "status", "priority", "score", "score_breakdown"}, objectKeys(pool[0]))
	assert.Equal(t, []string{"id", "title", "status", "notes"}, objectKeys(pool[2]))
}

func TestStoreLock(t *testing.T) {
	store := NewStore(t.TempDir())

	lock, err := store.Lock()
	require.NoError(t, err)

	_, err = store.Lock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, filelock.ErrLocked))

	require.NoError(t, lock.Unlock())
	lock, err = store.Lock()
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}

func TestStoreValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "valid",
			content: `{"project": "p", "requirements": {"target_papers": 2}, "phase": "DISCOVERY"}`,
		},
		{
			name:    "zero target",
			content: `{"project": "p", "requirements": {"target_papers": 0}}`,
		},
		{
			name:    "invalid json",
			content: `{`,
			want:    []string{"Invalid JSON"},
		},
		{
			name:    "missing fields",
			content: `{"requirements": {}}`,
			want:    []string{"project: missing required field", "requirements.target_papers: missing required field"},
		},
		{
			name:    "bad values",
			content: `{"project": "p", "requirements": {"target_papers": -1}, "phase": "DONE", "papers_pool": [{"id": "a", "status": "done"}, {"id": "a"}]}`,
			want:    []string{"invalid target", "unknown phase", "unknown status", "duplicate of papers_pool[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, tt.content)
			problems := NewStore(dir).Validate()
			require.Len(t, problems, len(tt.want), "problems: %v", problems)
			for i, want := range tt.want {
				assert.Contains(t, problems[i], want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		problems := NewStore(t.TempDir()).Validate()
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "RRD file not found")
	})
}

func TestUpdateTarget(t *testing.T) {
	t.Run("allowed during discovery", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, `{"project": "p", "requirements": {"target_papers": 2}}`)
		store := NewStore(dir)

		changed, err := store.UpdateTarget(5, false, NewSnapshotter(dir, ""))
		require.NoError(t, err)
		assert.True(t, changed)

		st, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, 5, st.Target())

		snaps, err := ListSnapshots(dir)
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})

	t.Run("refused when in progress", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, sampleDoc)
		store := NewStore(dir)

		changed, err := store.UpdateTarget(10, false, NewSnapshotter(dir, ""))
		require.NoError(t, err)
		assert.False(t, changed)

		st, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, 3, st.Target())
	})

	t.Run("forced change snapshots first", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, sampleDoc)
		store := NewStore(dir)

		changed, err := store.UpdateTarget(10, true, NewSnapshotter(dir, "run-1"))
		require.NoError(t, err)
		assert.True(t, changed)

		snaps, err := ListSnapshots(dir)
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, "target-change", snaps[0].Manifest.Reason)
	})

	t.Run("rejects non-positive", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, sampleDoc)
		_, err := NewStore(dir).UpdateTarget(0, true, NewSnapshotter(dir, ""))
		assert.Error(t, err)
	})
}
