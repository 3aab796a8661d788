package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
)

var phaseForce bool

var phaseCmd = &cobra.Command{
	Use:   "phase <project> <PHASE>",
	Short: "Force a project into a phase",
	Long: `Override the phase of a research project, bypassing the transition guards.

PHASE is one of DISCOVERY, ANALYSIS, IDEATION, COMPLETE. A snapshot is taken
first and phase timing is updated. Requires --force.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d := newDisplay(cmd, cfg)

		target, err := types.ParsePhase(args[1])
		if err != nil {
			return err
		}
		if !phaseForce {
			return errors.New("overriding the phase bypasses its guards; pass --force to continue")
		}

		dir, err := resolveProject(args[0], cfg)
		if err != nil {
			return err
		}
		store := state.NewStore(dir)

		lock, err := store.Lock()
		if err != nil {
			return err
		}
		defer lock.Unlock()

		snapshotPath, err := state.SetPhase(store, state.NewSnapshotter(dir, ""), target)
		if err != nil {
			return err
		}
		if snapshotPath == "" {
			d.Info("Phase", "already "+string(target))
			return nil
		}
		d.Success("Phase set to " + string(target))
		d.Info("Snapshot", snapshotPath)
		return nil
	},
}

func init() {
	phaseCmd.Flags().BoolVar(&phaseForce, "force", false, "confirm the override")
	rootCmd.AddCommand(phaseCmd)
}
