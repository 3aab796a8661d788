package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/report"
	"github.com/daydemir/research-ralph/internal/workspace"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List research projects",
	Long: `List research projects in the current directory and in research_dir.

Projects whose rrd.json cannot be read are still listed, labelled
INVALID JSON, MISSING FIELD, NO RRD or NO ACCESS.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		projects := workspace.List(cwd, cfg.ResearchDir)

		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(projects)
		}

		d := newDisplay(cmd, cfg)
		if len(projects) == 0 {
			d.Info("Projects", "none found in "+cwd+" or "+cfg.ResearchDir)
			fmt.Println("\nCreate one with: research-ralph init \"Your topic\"")
			return nil
		}

		report.ProjectTable(d.Writer(), projects)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output JSON")
	rootCmd.AddCommand(listCmd)
}
