package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/state"
)

// SummaryFile is written into the project directory when a run completes
const SummaryFile = "run-summary.md"

// Markdown renders s as the run summary document
func Markdown(s Summary, runID string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Summary: %s\n\n", s.Project)
	fmt.Fprintf(&b, "Completed: %s\n", state.FormatTimestamp(at))
	if runID != "" {
		fmt.Fprintf(&b, "Run: %s\n", runID)
	}
	b.WriteString("\n## Papers\n\n")
	fmt.Fprintf(&b, "- Target: %d\n", s.Target)
	fmt.Fprintf(&b, "- In pool: %d\n", s.PoolSize)
	fmt.Fprintf(&b, "- Analyzed: %d (%s)\n", s.Analyzed, s.Percent)
	fmt.Fprintf(&b, "- Presented: %d\n", s.Presented)
	fmt.Fprintf(&b, "- Rejected: %d\n", s.Rejected)
	fmt.Fprintf(&b, "- Insights: %d\n", s.Insights)

	if len(s.Timing.Phases) > 0 || s.Timing.ElapsedSeconds > 0 {
		b.WriteString("\n## Timing\n\n")
		if s.Timing.StartedAt != "" {
			fmt.Fprintf(&b, "- Started: %s\n", s.Timing.StartedAt)
			fmt.Fprintf(&b, "- Elapsed: %s\n", FormatDuration(s.Timing.ElapsedSeconds))
		}
		for _, p := range s.Timing.Phases {
			if p.DurationSeconds > 0 {
				fmt.Fprintf(&b, "- %s: %s\n", p.Phase, FormatDuration(p.DurationSeconds))
			}
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// WriteSummaryFile writes run-summary.md into dir, replacing any previous one
func WriteSummaryFile(dir string, s Summary, runID string, at time.Time) (string, error) {
	path := filepath.Join(dir, SummaryFile)
	if err := filelock.AtomicWrite(path, []byte(Markdown(s, runID, at)), 0644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	return path, nil
}
