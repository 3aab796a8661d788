package state

import (
	"testing"
	"time"

	"github.com/daydemir/research-ralph/internal/types"
)

func poolOf(statuses ...types.PaperStatus) []Paper {
	pool := make([]Paper, len(statuses))
	for i, s := range statuses {
		pool[i] = Paper{ID: string(rune('a' + i)), Status: s}
	}
	return pool
}

func TestCounts(t *testing.T) {
	st := &State{PapersPool: poolOf(
		types.StatusPending, types.StatusAnalyzing, types.StatusPresented,
		types.StatusRejected, types.StatusRejected, types.StatusInsightsExtracted,
	)}

	c := st.Counts()
	if c.Discovered != 6 || c.Pending != 1 || c.Analyzing != 1 {
		t.Errorf("unexpected counts %+v", c)
	}
	if c.Analyzed() != 4 {
		t.Errorf("Analyzed() = %d, want 4", c.Analyzed())
	}
}

func TestAllTerminal(t *testing.T) {
	tests := []struct {
		name string
		pool []Paper
		want bool
	}{
		{"empty pool", nil, false},
		{"all done", poolOf(types.StatusPresented, types.StatusRejected), true},
		{"one pending", poolOf(types.StatusPresented, types.StatusPending), false},
		{"one analyzing", poolOf(types.StatusAnalyzing), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &State{PapersPool: tt.pool}
			if got := st.AllTerminal(); got != tt.want {
				t.Errorf("AllTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconcileStatistics(t *testing.T) {
	st := &State{PapersPool: poolOf(types.StatusPresented, types.StatusPending)}
	st.Statistics.TotalAnalyzed = 7

	if drift := st.StatisticsDrift(); len(drift) != 3 {
		t.Errorf("expected drift in discovered, analyzed, presented; got %v", drift)
	}
	if !st.ReconcileStatistics() {
		t.Fatal("expected a change")
	}
	if st.Statistics.TotalDiscovered != 2 || st.Statistics.TotalAnalyzed != 1 || st.Statistics.TotalPresented != 1 {
		t.Errorf("unexpected statistics %+v", st.Statistics)
	}
	if st.ReconcileStatistics() {
		t.Error("second reconcile should be a no-op")
	}
	if drift := st.StatisticsDrift(); len(drift) != 0 {
		t.Errorf("unexpected drift %v", drift)
	}
}

func TestRecover(t *testing.T) {
	st := &State{PapersPool: poolOf(
		types.StatusAnalyzing, types.StatusPresented, types.StatusAnalyzing, types.StatusPending,
	)}

	reset := Recover(st)
	if len(reset) != 2 || reset[0] != "a" || reset[1] != "c" {
		t.Fatalf("Recover() = %v, want [a c]", reset)
	}
	for _, p := range st.PapersPool {
		if p.Status == types.StatusAnalyzing {
			t.Errorf("paper %s still analyzing", p.ID)
		}
	}
	if st.PapersPool[1].Status != types.StatusPresented {
		t.Error("terminal papers must not change")
	}
	if again := Recover(st); len(again) != 0 {
		t.Errorf("second Recover() = %v, want none", again)
	}
}

func TestMarkPhaseTiming(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	st := &State{Phase: types.PhaseDiscovery, PapersPool: poolOf(types.StatusPending, types.StatusPending)}

	MarkPhase(st, types.PhaseAnalysis, start)
	if st.Phase != types.PhaseAnalysis {
		t.Fatalf("phase = %s", st.Phase)
	}
	if st.Timing.ResearchStartedAt != "2026-01-01T10:00:00Z" {
		t.Errorf("research_started_at = %q", st.Timing.ResearchStartedAt)
	}
	if st.Timing.Analysis.StartedAt != "2026-01-01T10:00:00Z" {
		t.Errorf("analysis started_at = %q", st.Timing.Analysis.StartedAt)
	}

	st.PapersPool[0].Status = types.StatusPresented
	st.PapersPool[1].Status = types.StatusRejected
	MarkPhase(st, types.PhaseComplete, start.Add(10*time.Minute))

	a := st.Timing.Analysis
	if a.DurationSeconds == nil || *a.DurationSeconds != 600 {
		t.Errorf("analysis duration = %v, want 600", a.DurationSeconds)
	}
	if a.AvgSecondsPerPaper == nil || *a.AvgSecondsPerPaper != 300 {
		t.Errorf("avg seconds per paper = %v, want 300", a.AvgSecondsPerPaper)
	}
	if a.PapersAnalyzed == nil || *a.PapersAnalyzed != 2 {
		t.Errorf("papers analyzed = %v, want 2", a.PapersAnalyzed)
	}
	if st.Timing.Complete.StartedAt == "" {
		t.Error("complete phase should be started")
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2025-01-02T10:00:00Z", "2025-01-02T10:00:00.123456", "2025-01-02T10:00:00+02:00"} {
		if _, ok := ParseTimestamp(s); !ok {
			t.Errorf("ParseTimestamp(%q) failed", s)
		}
	}
	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Error("ParseTimestamp(yesterday) should fail")
	}
}

func TestIllegalTransitions(t *testing.T) {
	before := &State{PapersPool: poolOf(
		types.StatusPresented, types.StatusRejected, types.StatusPending, types.StatusAnalyzing,
	)}
	after := &State{PapersPool: poolOf(
		types.StatusPending, types.StatusInsightsExtracted, types.StatusPresented, types.StatusPending,
	)}
	after.PapersPool = append(after.PapersPool, Paper{ID: "new", Status: types.StatusPresented})

	got := IllegalTransitions(before, after)
	want := []string{"a: presented -> pending", "b: rejected -> insights_extracted"}
	if len(got) != len(want) {
		t.Fatalf("IllegalTransitions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IllegalTransitions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if again := IllegalTransitions(after, after); len(again) != 0 {
		t.Errorf("unchanged pool reported %v", again)
	}
}

func TestUnfinished(t *testing.T) {
	tests := []struct {
		name string
		pool []Paper
		want int
	}{
		{"empty pool", nil, 1},
		{"all done", poolOf(types.StatusPresented, types.StatusRejected), 0},
		{"pending and analyzing", poolOf(types.StatusPresented, types.StatusPending, types.StatusAnalyzing), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &State{PapersPool: tt.pool}
			if got := st.Unfinished(); len(got) != tt.want {
				t.Errorf("Unfinished() = %v, want %d gaps", got, tt.want)
			}
		})
	}
}
