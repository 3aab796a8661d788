package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/history"
	"github.com/daydemir/research-ralph/internal/progress"
	"github.com/daydemir/research-ralph/internal/report"
	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/utils"
)

var statusJSON bool

// statusView is the status report plus what the progress log and history add
type statusView struct {
	report.Summary
	Log      *logView       `json:"progress_log,omitempty"`
	LastRun  *history.Run   `json:"last_run,omitempty"`
	Failures map[string]int `json:"failures,omitempty"`
}

type logView struct {
	Path       string `json:"path"`
	Iterations int    `json:"iterations"`
	Patterns   int    `json:"patterns"`
	Insights   int    `json:"insights"`
}

var statusCmd = &cobra.Command{
	Use:   "status <project>",
	Short: "Show the state of a research project",
	Long: `Show phase, paper counts, completion percentage, timing and warnings.

Warnings are reported without changing anything:
  - papers stuck in 'analyzing' (reset on the next run)
  - ANALYSIS with fewer papers than the target (reverts to DISCOVERY)
  - stored statistics that disagree with the paper statuses

Use --json for machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d := newDisplay(cmd, cfg)

		dir, err := resolveProject(args[0], cfg)
		if err != nil {
			return err
		}
		store := state.NewStore(dir)

		if problems := store.Validate(); len(problems) > 0 {
			printProblems(d, "Invalid RRD file:", problems)
			fmt.Fprintln(d.Writer(), "\nUse 'research-ralph reset' to reset the project")
			return &ExitError{Code: ExitFailure}
		}

		st, err := store.Load()
		if err != nil {
			return err
		}

		view := statusView{Summary: report.Summarize(st, time.Now())}
		view.Path = dir
		view.Log = readLog(store.ProgressPath())
		view.LastRun, view.Failures = readHistory(cmd.Context(), dir)

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		report.Format(d.Writer(), view.Summary, d.Theme())
		if view.Log != nil {
			d.Info("Progress log", fmt.Sprintf("%s (%d iterations, %d patterns, %d insights)",
				view.Log.Path, view.Log.Iterations, view.Log.Patterns, view.Log.Insights))
		}
		if view.LastRun != nil {
			d.Info("Last run", fmt.Sprintf("%s %s", view.LastRun.RunID, orDash(view.LastRun.Outcome)))
		}
		for category, n := range view.Failures {
			d.Info("Failures", fmt.Sprintf("%s x%d", category, n))
		}
		if summary := filepath.Join(dir, report.SummaryFile); utils.FileExists(summary) {
			d.Info("Summary", summary)
		}
		return nil
	},
}

// readLog summarizes progress.txt; nil when it is missing or unreadable
func readLog(path string) *logView {
	log, err := progress.ParseFile(path)
	if err != nil {
		return nil
	}
	v := &logView{Path: path, Iterations: log.Iterations}
	if s, ok := log.Section(progress.PatternsSection); ok {
		v.Patterns = s.Items
	}
	if s, ok := log.Section(progress.InsightsSection); ok {
		v.Insights = s.Items
	}
	return v
}

// readHistory returns the latest run and failure tallies when a history
// database exists. It never creates one.
func readHistory(ctx context.Context, dir string) (*history.Run, map[string]int) {
	if !utils.FileExists(filepath.Join(dir, history.FileName)) {
		return nil, nil
	}
	hist, err := history.OpenForProject(dir)
	if err != nil {
		return nil, nil
	}
	defer hist.Close()

	var last *history.Run
	if runs, err := hist.Runs(ctx, 1); err == nil && len(runs) > 0 {
		last = &runs[0]
	}
	counts, err := hist.CategoryCounts(ctx)
	if err != nil || len(counts) == 0 {
		counts = nil
	}
	return last, counts
}

func orDash(s string) string {
	if s == "" {
		return "(running or ended abruptly)"
	}
	return s
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output JSON")
	rootCmd.AddCommand(statusCmd)
}
