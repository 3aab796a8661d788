// Package report summarizes a research project for the status command and
// for the run summary written on completion.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
)

// NotApplicable is reported as the percentage when the target is zero
const NotApplicable = "N/A"

// Summary is a read-only view of a project's state
type Summary struct {
	Project   string       `json:"project"`
	Path      string       `json:"path,omitempty"`
	Phase     types.Phase  `json:"phase"`
	Target    int          `json:"target_papers"`
	PoolSize  int          `json:"pool_size"`
	Analyzed  int          `json:"analyzed"`
	Presented int          `json:"presented"`
	Rejected  int          `json:"rejected"`
	Extracted int          `json:"insights_extracted"`
	Pending   int          `json:"pending"`
	Analyzing int          `json:"analyzing"`
	Insights  int          `json:"insights"`
	Percent   string       `json:"completion"`
	Warnings  []string     `json:"warnings"`
	Timing    TimingReport `json:"timing"`
}

// TimingReport holds elapsed time and, during analysis, the projection
type TimingReport struct {
	StartedAt          string        `json:"started_at,omitempty"`
	ElapsedSeconds     int64         `json:"elapsed_seconds,omitempty"`
	AvgSecondsPerPaper float64       `json:"avg_seconds_per_paper,omitempty"`
	ETASeconds         int64         `json:"eta_seconds,omitempty"`
	Remaining          int           `json:"remaining,omitempty"`
	Phases             []PhaseReport `json:"phases,omitempty"`
}

// PhaseReport is one row of the per-phase timing table
type PhaseReport struct {
	Phase           types.Phase `json:"phase"`
	StartedAt       string      `json:"started_at,omitempty"`
	DurationSeconds int64       `json:"duration_seconds,omitempty"`
}

// Percent returns floor(100*analyzed/target) formatted as "35%", or N/A
// when target is not positive
func Percent(analyzed, target int) string {
	if target <= 0 {
		return NotApplicable
	}
	return fmt.Sprintf("%d%%", 100*analyzed/target)
}

// Summarize computes the summary for st without modifying it
func Summarize(st *state.State, now time.Time) Summary {
	counts := st.Counts()
	s := Summary{
		Project:   st.Project,
		Phase:     st.Phase,
		Target:    st.Target(),
		PoolSize:  counts.Discovered,
		Analyzed:  counts.Analyzed(),
		Presented: counts.Presented,
		Rejected:  counts.Rejected,
		Extracted: counts.InsightsExtracted,
		Pending:   counts.Pending,
		Analyzing: counts.Analyzing,
		Insights:  countInsights(st.Insights),
		Warnings:  []string{},
	}
	s.Percent = Percent(s.Analyzed, s.Target)

	if s.Analyzing > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d paper(s) stuck in 'analyzing' will be re-analyzed on next run", s.Analyzing))
	}
	if st.Phase == types.PhaseAnalysis && s.PoolSize < s.Target {
		s.Warnings = append(s.Warnings, fmt.Sprintf("Pool (%d) < Target (%d) - will revert to DISCOVERY", s.PoolSize, s.Target))
	}
	for _, d := range st.StatisticsDrift() {
		s.Warnings = append(s.Warnings, "statistics out of date: "+d)
	}

	s.Timing = summarizeTiming(st, s, now)
	return s
}

func summarizeTiming(st *state.State, s Summary, now time.Time) TimingReport {
	var t TimingReport
	t.StartedAt = st.Timing.ResearchStartedAt
	if start, ok := state.ParseTimestamp(t.StartedAt); ok {
		if elapsed := now.Sub(start); elapsed > 0 {
			t.ElapsedSeconds = int64(elapsed.Seconds())
		}
	}

	for _, p := range []types.Phase{types.PhaseDiscovery, types.PhaseAnalysis, types.PhaseIdeation} {
		pt := st.Timing.For(p)
		if pt == nil || pt.StartedAt == "" {
			continue
		}
		row := PhaseReport{Phase: p, StartedAt: pt.StartedAt}
		if pt.DurationSeconds != nil {
			row.DurationSeconds = *pt.DurationSeconds
		}
		t.Phases = append(t.Phases, row)
	}

	if st.Phase != types.PhaseAnalysis {
		return t
	}
	avg := st.Timing.Analysis.AvgSecondsPerPaper
	remaining := s.Target - s.Analyzed
	if avg != nil && *avg > 0 && remaining > 0 {
		t.AvgSecondsPerPaper = *avg
		t.Remaining = remaining
		t.ETASeconds = int64(float64(remaining) * *avg)
	}
	return t
}

// countInsights returns the length of the insights array, or 0 when it is
// absent or not an array
func countInsights(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}

// FormatDuration renders seconds as "45s", "3m 5s" or "2h 4m"
func FormatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
