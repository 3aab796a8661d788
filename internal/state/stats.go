package state

import (
	"fmt"

	"github.com/daydemir/research-ralph/internal/types"
)

// Counts are paper tallies derived from statuses
type Counts struct {
	Discovered        int
	Pending           int
	Analyzing         int
	Presented         int
	Rejected          int
	InsightsExtracted int
}

// Analyzed is the number of papers in a terminal status
func (c Counts) Analyzed() int {
	return c.Presented + c.Rejected + c.InsightsExtracted
}

// Counts tallies the pool by status
func (s *State) Counts() Counts {
	c := Counts{Discovered: len(s.PapersPool)}
	for _, p := range s.PapersPool {
		switch p.Status {
		case types.StatusPending:
			c.Pending++
		case types.StatusAnalyzing:
			c.Analyzing++
		case types.StatusPresented:
			c.Presented++
		case types.StatusRejected:
			c.Rejected++
		case types.StatusInsightsExtracted:
			c.InsightsExtracted++
		}
	}
	return c
}

// Target returns requirements.target_papers
func (s *State) Target() int {
	return s.Requirements.TargetPapers
}

// AllTerminal reports whether the pool is non-empty and every paper is done
func (s *State) AllTerminal() bool {
	if len(s.PapersPool) == 0 {
		return false
	}
	for _, p := range s.PapersPool {
		if !p.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Unfinished lists why the pool does not yet support a completion: pending
// or analyzing papers, or nothing analyzed at all. Empty means complete.
func (s *State) Unfinished() []string {
	c := s.Counts()
	var gaps []string
	if c.Pending > 0 {
		gaps = append(gaps, fmt.Sprintf("%d pending", c.Pending))
	}
	if c.Analyzing > 0 {
		gaps = append(gaps, fmt.Sprintf("%d analyzing", c.Analyzing))
	}
	if c.Analyzed() == 0 {
		gaps = append(gaps, "no analyzed papers")
	}
	return gaps
}

// IllegalTransitions compares paper statuses between two versions of the
// document and describes every change the status rules forbid, such as a
// terminal paper moving back to pending. Papers new in after are ignored.
func IllegalTransitions(before, after *State) []string {
	prev := make(map[string]types.PaperStatus, len(before.PapersPool))
	for _, p := range before.PapersPool {
		prev[p.ID] = p.Status
	}
	var bad []string
	for _, p := range after.PapersPool {
		old, ok := prev[p.ID]
		if ok && !old.CanTransition(p.Status) {
			bad = append(bad, fmt.Sprintf("%s: %s -> %s", p.ID, old, p.Status))
		}
	}
	return bad
}

// PaperIDs returns the ids of papers with the given status, in pool order
func (s *State) PaperIDs(status types.PaperStatus) []string {
	var ids []string
	for _, p := range s.PapersPool {
		if p.Status == status {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// StatisticsDrift lists stored counters that disagree with the pool
func (s *State) StatisticsDrift() []string {
	c := s.Counts()
	var drift []string
	check := func(name string, stored, actual int) {
		if stored != actual {
			drift = append(drift, fmt.Sprintf("%s is %d but pool has %d", name, stored, actual))
		}
	}
	check("total_discovered", s.Statistics.TotalDiscovered, c.Discovered)
	check("total_analyzed", s.Statistics.TotalAnalyzed, c.Analyzed())
	check("total_presented", s.Statistics.TotalPresented, c.Presented)
	check("total_rejected", s.Statistics.TotalRejected, c.Rejected)
	check("total_insights_extracted", s.Statistics.TotalInsightsExtracted, c.InsightsExtracted)
	return drift
}

// ReconcileStatistics rewrites stored counters from the pool and reports
// whether any of them changed
func (s *State) ReconcileStatistics() bool {
	c := s.Counts()
	before := s.Statistics
	s.Statistics.TotalDiscovered = c.Discovered
	s.Statistics.TotalAnalyzed = c.Analyzed()
	s.Statistics.TotalPresented = c.Presented
	s.Statistics.TotalRejected = c.Rejected
	s.Statistics.TotalInsightsExtracted = c.InsightsExtracted

	return before.TotalDiscovered != s.Statistics.TotalDiscovered ||
		before.TotalAnalyzed != s.Statistics.TotalAnalyzed ||
		before.TotalPresented != s.Statistics.TotalPresented ||
		before.TotalRejected != s.Statistics.TotalRejected ||
		before.TotalInsightsExtracted != s.Statistics.TotalInsightsExtracted
}

// ResetCounters zeroes the stored counters, keeping unknown statistics members
func (st *Statistics) ResetCounters() {
	*st = Statistics{extra: st.extra, keys: st.keys}
}

// Recover moves every paper left in "analyzing" by an interrupted
// invocation back to "pending" and returns the ids it reset.
func Recover(s *State) []string {
	var reset []string
	for i := range s.PapersPool {
		p := &s.PapersPool[i]
		if p.Status == types.StatusAnalyzing {
			p.Status = types.StatusPending
			reset = append(reset, p.ID)
		}
	}
	return reset
}
