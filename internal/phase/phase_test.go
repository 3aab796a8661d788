package phase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
)

type fakeProbe map[string]bool

func (f fakeProbe) Exists(name string) bool { return f[name] }

func newState(phase types.Phase, target int, statuses ...types.PaperStatus) *state.State {
	st := state.New("p", target, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st.Phase = phase
	for i, s := range statuses {
		st.PapersPool = append(st.PapersPool, state.Paper{ID: string(rune('a' + i)), Status: s})
	}
	return st
}

func TestNext(t *testing.T) {
	done := types.StatusPresented
	pending := types.StatusPending

	disabled := newState(types.PhaseAnalysis, 2, done, types.StatusRejected)
	off := false
	disabled.Handoff.ProductIdeation.Enabled = &off

	tests := []struct {
		name     string
		st       *state.State
		probe    fakeProbe
		want     types.Phase
		reverted bool
	}{
		{"discovery below target", newState(types.PhaseDiscovery, 3, pending, pending), nil, types.PhaseDiscovery, false},
		{"discovery reaches target", newState(types.PhaseDiscovery, 2, pending, pending), nil, types.PhaseAnalysis, false},
		{"discovery over target", newState(types.PhaseDiscovery, 1, pending, pending), nil, types.PhaseAnalysis, false},
		{"analysis pool shrank", newState(types.PhaseAnalysis, 3, done, done), nil, types.PhaseDiscovery, true},
		{"analysis in progress", newState(types.PhaseAnalysis, 2, done, pending), nil, types.PhaseAnalysis, false},
		{"analysis with analyzing paper", newState(types.PhaseAnalysis, 2, done, types.StatusAnalyzing), nil, types.PhaseAnalysis, false},
		{"analysis done ideation enabled", newState(types.PhaseAnalysis, 2, done, types.StatusInsightsExtracted), nil, types.PhaseIdeation, false},
		{"analysis done ideation disabled", disabled, nil, types.PhaseComplete, false},
		{"ideation waiting for artifact", newState(types.PhaseIdeation, 1, done), fakeProbe{}, types.PhaseIdeation, false},
		{"ideation artifact written", newState(types.PhaseIdeation, 1, done), fakeProbe{"product-ideas.json": true}, types.PhaseComplete, false},
		{"complete is terminal", newState(types.PhaseComplete, 1, done), nil, types.PhaseComplete, false},
		{"complete with pending papers", newState(types.PhaseComplete, 2, done, pending), nil, types.PhaseAnalysis, true},
		{"complete with analyzing paper", newState(types.PhaseComplete, 1, types.StatusAnalyzing), nil, types.PhaseAnalysis, true},
		{"complete below target", newState(types.PhaseComplete, 3, pending), nil, types.PhaseDiscovery, true},
		{"complete with empty pool", newState(types.PhaseComplete, 1), nil, types.PhaseDiscovery, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Next(tt.st, tt.probe)
			if tr.To != tt.want {
				t.Errorf("Next() = %s, want %s", tr.To, tt.want)
			}
			if tr.Reverted != tt.reverted {
				t.Errorf("Reverted = %v, want %v", tr.Reverted, tt.reverted)
			}
			if tr.From != tt.st.Phase {
				t.Errorf("From = %s, want %s", tr.From, tt.st.Phase)
			}
		})
	}
}

func TestNextTakesOneStep(t *testing.T) {
	// pool full and every paper done: DISCOVERY only advances to ANALYSIS this iteration
	st := newState(types.PhaseDiscovery, 1, types.StatusPresented)
	if got := Next(st, fakeProbe{}).To; got != types.PhaseAnalysis {
		t.Errorf("Next() = %s, want ANALYSIS", got)
	}
}

func TestApply(t *testing.T) {
	st := newState(types.PhaseDiscovery, 1, types.StatusPending)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	tr := Next(st, nil)
	Apply(st, tr, now)
	if st.Phase != types.PhaseAnalysis {
		t.Fatalf("phase = %s", st.Phase)
	}
	if st.Timing.Analysis.StartedAt != "2026-01-02T00:00:00Z" {
		t.Errorf("analysis started_at = %q", st.Timing.Analysis.StartedAt)
	}

	before := st.Timing
	Apply(st, Transition{From: types.PhaseAnalysis, To: types.PhaseAnalysis}, now.Add(time.Hour))
	if st.Timing.Analysis.StartedAt != before.Analysis.StartedAt {
		t.Error("unchanged transition must not touch timing")
	}
}

func TestDirProbe(t *testing.T) {
	dir := t.TempDir()
	probe := DirProbe(dir)
	if probe.Exists("product-ideas.json") {
		t.Error("artifact should not exist yet")
	}
	if err := os.WriteFile(filepath.Join(dir, "product-ideas.json"), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	if !probe.Exists("product-ideas.json") {
		t.Error("artifact should exist")
	}
	if err := os.Mkdir(filepath.Join(dir, "ideas"), 0755); err != nil {
		t.Fatal(err)
	}
	if probe.Exists("ideas") {
		t.Error("directories are not artifacts")
	}
}
