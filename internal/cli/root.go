package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "research-ralph",
	Short: "Autonomous research loop for coding agents",
	Long: `research-ralph drives a coding agent (Claude Code, Amp or Codex) through
repeated iterations until a research project is verifiably complete.

Each iteration the agent reads rrd.json, discovers or analyzes papers and
records its findings. research-ralph owns the loop: it recovers stuck papers,
advances the phase, classifies failures and checks completion claims.

Get started:
  research-ralph init "agent memory" --topic "memory for LLM agents"
  research-ralph run agent-memory
  research-ralph status agent-memory`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. The returned error carries the process
// exit code; see ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ralph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf("research-ralph version %s\n", version))
}
