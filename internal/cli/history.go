package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/history"
	"github.com/daydemir/research-ralph/internal/utils"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <project>",
	Short: "Show recent iterations",
	Long: `Show recent iterations recorded in the project's history.db, newest first.

Each line shows the iteration, phase change, exit code, failure category and
backoff action, and the change in analyzed papers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := resolveProject(args[0], cfg)
		if err != nil {
			return err
		}

		if !utils.FileExists(filepath.Join(dir, history.FileName)) {
			fmt.Println("No history recorded yet. Run 'research-ralph run' first.")
			return nil
		}
		hist, err := history.OpenForProject(dir)
		if err != nil {
			return err
		}
		defer hist.Close()

		iterations, err := hist.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if noColor {
			color.NoColor = true
		}
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		dim := color.New(color.FgHiBlack).SprintFunc()

		for _, it := range iterations {
			symbol := green("✓")
			outcome := it.Verdict
			if it.ExitCode != 0 {
				symbol = red("✗")
				outcome = fmt.Sprintf("exit %d %s -> %s", it.ExitCode, it.Category, it.Action)
				if it.Delay > 0 {
					outcome += " in " + it.Delay.String()
				}
			}
			phase := it.Phase
			if it.PhaseAfter != it.Phase {
				phase += "->" + it.PhaseAfter
			}
			fmt.Printf("%s %s #%-3d %-22s %-40s %+d %s\n",
				dim(it.StartedAt.Local().Format("2006-01-02 15:04")),
				symbol, it.Iteration, phase, outcome, it.AnalyzedDelta,
				dim(it.Duration.Round(time.Second).String()))
			if it.Excerpt != "" {
				fmt.Printf("    %s\n", dim(display.Truncate(it.Excerpt, 120)))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of iterations to show")
	rootCmd.AddCommand(historyCmd)
}
