package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/config"
	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/llm"
	"github.com/daydemir/research-ralph/internal/workspace"
)

// loadConfig reads the config selected by --config
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// configPath returns the file that config get/set operate on
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.Path()
}

// newDisplay builds the console from the config and the root flags, writing
// to the command's output
func newDisplay(cmd *cobra.Command, cfg *config.Config) *display.Display {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return display.NewWithOptions(display.Options{
		Out:     cmd.OutOrStdout(),
		NoColor: noColor,
		Level:   display.ParseLevel(level),
	})
}

// resolveProject finds a project directory from a command argument
func resolveProject(arg string, cfg *config.Config) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir, err := workspace.Resolve(arg, cwd, cfg.ResearchDir)
	if err != nil {
		return "", fmt.Errorf("%w\n\nUse 'research-ralph list' to see available projects", err)
	}
	return dir, nil
}

// newBackend builds the named executor backend from its config section
func newBackend(cfg *config.Config, name string) (llm.Backend, error) {
	agent, ok := cfg.Agent(name)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (available: claude, amp, codex)", name)
	}
	return llm.New(name, llm.Options{
		Binary:       agent.Binary,
		Model:        agent.Model,
		AllowedTools: agent.AllowedTools,
	})
}

// printProblems lists validation problems under a heading
func printProblems(d *display.Display, heading string, problems []string) {
	d.Error(heading)
	for _, p := range problems {
		fmt.Fprintf(d.Writer(), "  - %s\n", p)
	}
}
