package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/state"
)

var resetYes bool

// isInteractive is replaced in tests
var isInteractive = display.IsInteractive

var resetCmd = &cobra.Command{
	Use:   "reset <project>",
	Short: "Snapshot and reset a project to DISCOVERY",
	Long: `Reset a research project: the paper pool, insights, statistics and timing
are cleared and the phase returns to DISCOVERY. The requirements are kept.

A snapshot of rrd.json and progress.txt is written to snapshots/ first. If the
snapshot fails nothing is changed.

Asks for confirmation unless --yes is given. Without a terminal, --yes is required.`,
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
		st, err := store.Load()
		if err != nil {
			return err
		}

		if !resetYes {
			if !isInteractive() {
				return errors.New("refusing to reset without confirmation; pass --yes in non-interactive sessions")
			}
			question := fmt.Sprintf("Reset %s? %d papers and all insights will be cleared", st.Project, len(st.PapersPool))
			if !confirm(cmd.InOrStdin(), d, question) {
				d.Info("Reset", "cancelled")
				return nil
			}
		}

		lock, err := store.Lock()
		if err != nil {
			return err
		}
		defer lock.Unlock()

		snapshotPath, err := state.Reset(store, state.NewSnapshotter(dir, ""))
		if err != nil {
			d.Error(err.Error())
			return &ExitError{Code: ExitFailure}
		}
		d.Success("Project reset to DISCOVERY")
		d.Info("Snapshot", snapshotPath)
		return nil
	},
}

// confirm asks a yes/no question; anything but y/yes is no
func confirm(in io.Reader, d *display.Display, question string) bool {
	fmt.Fprintf(d.Writer(), "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}
