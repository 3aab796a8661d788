package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/workspace"
)

var (
	initTopic  string
	initPapers int
	initDir    string
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new research project",
	Long: `Create a research project directory with a fresh rrd.json and progress.txt.

The project is created under research_dir unless --dir is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d := newDisplay(cmd, cfg)

		parent := initDir
		if parent == "" {
			parent = cfg.ResearchDir
		}
		papers := initPapers
		if papers <= 0 {
			papers = cfg.DefaultPapers
		}
		topic := initTopic
		if topic == "" {
			topic = args[0]
		}

		dir, err := workspace.Create(parent, args[0], topic, papers, time.Now())
		if err != nil {
			return err
		}

		d.Success("Created research project in " + dir)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Printf("  research-ralph run %s\n", dir)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initTopic, "topic", "t", "", "research topic (default: the name)")
	initCmd.Flags().IntVarP(&initPapers, "papers", "p", 0, "target number of papers (default from config)")
	initCmd.Flags().StringVar(&initDir, "dir", "", "parent directory (default: research_dir)")
	rootCmd.AddCommand(initCmd)
}
