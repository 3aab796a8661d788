package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daydemir/research-ralph/internal/progress"
	"github.com/daydemir/research-ralph/internal/types"
)

// Reset returns the project to DISCOVERY with an empty pool. A snapshot is
// taken first; if it fails nothing is modified. Returns the snapshot path.
func Reset(store *Store, snap *Snapshotter) (string, error) {
	st, err := store.Load()
	if err != nil {
		return "", err
	}

	snapshotPath, err := snap.Take("reset")
	if err != nil {
		return "", fmt.Errorf("snapshot before reset failed, nothing was changed: %w", err)
	}

	st.Phase = types.PhaseDiscovery
	st.PapersPool = []Paper{}
	st.Insights = json.RawMessage("[]")
	st.Statistics.ResetCounters()
	st.Timing.Clear()

	if err := store.Save(st); err != nil {
		return snapshotPath, err
	}
	if err := progress.Init(store.ProgressPath(), "Reset", snap.now()); err != nil {
		return snapshotPath, err
	}
	return snapshotPath, nil
}

// SetPhase forces the project into phase, bypassing the transition guards.
// A snapshot is taken first. Timing for the old phase is closed and the new
// one is opened.
func SetPhase(store *Store, snap *Snapshotter, phase types.Phase) (string, error) {
	if !phase.IsValid() {
		return "", fmt.Errorf("invalid phase %q", phase)
	}
	st, err := store.Load()
	if err != nil {
		return "", err
	}
	if st.Phase == phase {
		return "", nil
	}

	snapshotPath, err := snap.Take("phase-" + string(phase))
	if err != nil {
		return "", fmt.Errorf("snapshot before phase change failed, nothing was changed: %w", err)
	}

	MarkPhase(st, phase, snap.now())
	if err := store.Save(st); err != nil {
		return snapshotPath, err
	}
	return snapshotPath, nil
}

// MarkPhase moves st into next and updates timing: the old phase is ended,
// the new one started, research_started_at is set on the first transition
// and the analysis average is recomputed.
func MarkPhase(st *State, next types.Phase, now time.Time) {
	prev := st.Phase
	stamp := FormatTimestamp(now)

	if st.Timing.ResearchStartedAt == "" {
		st.Timing.ResearchStartedAt = stamp
		if start, ok := ParseTimestamp(st.CreatedAt); ok && start.Before(now) {
			st.Timing.ResearchStartedAt = FormatTimestamp(start)
		}
	}

	if old := st.Timing.For(prev); old != nil && prev != next {
		if old.StartedAt == "" {
			old.StartedAt = st.Timing.ResearchStartedAt
		}
		old.EndedAt = stamp
		if start, ok := ParseTimestamp(old.StartedAt); ok {
			secs := int64(now.Sub(start).Seconds())
			if secs < 0 {
				secs = 0
			}
			old.DurationSeconds = &secs
		}
	}

	if cur := st.Timing.For(next); cur != nil && prev != next {
		cur.StartedAt = stamp
		cur.EndedAt = ""
		cur.DurationSeconds = nil
	}

	UpdateAnalysisTiming(st, now)
	st.Phase = next
}

// UpdateAnalysisTiming recomputes analysis.papers_analyzed and
// analysis.avg_seconds_per_paper from the analysis start time
func UpdateAnalysisTiming(st *State, now time.Time) {
	analyzed := st.Counts().Analyzed()
	a := &st.Timing.Analysis
	a.PapersAnalyzed = &analyzed

	start, ok := ParseTimestamp(a.StartedAt)
	if !ok || analyzed == 0 {
		return
	}
	end := now
	if e, ok := ParseTimestamp(a.EndedAt); ok {
		end = e
	}
	avg := end.Sub(start).Seconds() / float64(analyzed)
	if avg < 0 {
		return
	}
	a.AvgSecondsPerPaper = &avg
}
