package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/daydemir/research-ralph/internal/progress"
	"github.com/daydemir/research-ralph/internal/report"
	"github.com/daydemir/research-ralph/internal/state"
)

// CompletionSection is the progress log heading appended on completion
const CompletionSection = "Research Complete"

// Finalizer runs once when a run completes
type Finalizer interface {
	Finalize(ctx context.Context, st *state.State, res Result) error
}

// SummaryFinalizer writes run-summary.md and appends a completion section to
// the progress log
type SummaryFinalizer struct {
	Dir string
	Now func() time.Time
}

// Finalize implements Finalizer
func (f SummaryFinalizer) Finalize(_ context.Context, st *state.State, res Result) error {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	at := now()

	summary := report.Summarize(st, at)
	summary.Path = f.Dir
	path, err := report.WriteSummaryFile(f.Dir, summary, res.RunID, at)
	if err != nil {
		return err
	}

	bullets := []string{
		"completed: " + state.FormatTimestamp(at),
		fmt.Sprintf("analyzed: %d/%d (%s)", summary.Analyzed, summary.Target, summary.Percent),
		fmt.Sprintf("presented: %d, rejected: %d", summary.Presented, summary.Rejected),
		"summary: " + path,
	}
	if res.RunID != "" {
		bullets = append([]string{"run: " + res.RunID}, bullets...)
	}
	return progress.AppendSection(state.NewStore(f.Dir).ProgressPath(), CompletionSection, bullets)
}
