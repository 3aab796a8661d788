// Package phase implements the guarded transitions between research phases.
package phase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
)

// ArtifactProbe reports whether a named output artifact exists
type ArtifactProbe interface {
	Exists(name string) bool
}

// DirProbe looks for artifacts in a project directory
type DirProbe string

// Exists implements ArtifactProbe
func (d DirProbe) Exists(name string) bool {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(string(d), name)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Transition is the result of evaluating the guards once
type Transition struct {
	From     types.Phase
	To       types.Phase
	Reverted bool
	Reason   string
}

// Changed reports whether the transition moves to another phase
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Next evaluates the guards for the current phase and returns at most one step.
func Next(st *state.State, probe ArtifactProbe) Transition {
	c := st.Counts()
	target := st.Target()
	t := Transition{From: st.Phase, To: st.Phase}

	switch st.Phase {
	case types.PhaseDiscovery:
		if c.Discovered >= target {
			t.To = types.PhaseAnalysis
			t.Reason = fmt.Sprintf("pool has %d/%d papers", c.Discovered, target)
		}
	case types.PhaseAnalysis:
		switch {
		case c.Discovered < target:
			t.To = types.PhaseDiscovery
			t.Reverted = true
			t.Reason = fmt.Sprintf("pool has %d papers but target is %d", c.Discovered, target)
		case st.AllTerminal():
			t.To = types.PhaseComplete
			if st.IdeationEnabled() {
				t.To = types.PhaseIdeation
			}
			t.Reason = fmt.Sprintf("all %d papers analyzed", c.Discovered)
		}
	case types.PhaseIdeation:
		if artifact := st.IdeationArtifact(); probe.Exists(artifact) {
			t.To = types.PhaseComplete
			t.Reason = fmt.Sprintf("%s written", artifact)
		}
	case types.PhaseComplete:
		if gaps := st.Unfinished(); len(gaps) > 0 {
			t.To = types.PhaseAnalysis
			if c.Discovered < target {
				t.To = types.PhaseDiscovery
			}
			t.Reverted = true
			t.Reason = "stored COMPLETE not supported by the pool: " + strings.Join(gaps, ", ")
		}
	}
	return t
}

// Apply moves st to t.To and updates phase timing. It is a no-op for an
// unchanged transition.
func Apply(st *state.State, t Transition, now time.Time) {
	if !t.Changed() {
		return
	}
	state.MarkPhase(st, t.To, now)
}
