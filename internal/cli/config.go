package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daydemir/research-ralph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or modify configuration",
	Long: `View or modify research-ralph configuration (~/.ralph/config.yaml).

Values can also be set through RALPH_* environment variables, for example
RALPH_DEFAULT_AGENT=codex. GITHUB_TOKEN is read without the prefix.

Examples:
  research-ralph config                          Show effective config
  research-ralph config default_agent            Get a specific value
  research-ralph config default_agent codex      Set a value
  research-ralph config agents.claude.allowed_tools Bash,Read,WebFetch`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}

		switch len(args) {
		case 0:
			return showConfig(path)
		case 1:
			return getConfigValue(path, args[0])
		default:
			return setConfigValue(path, args[0], args[1])
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig(path string) error {
	v, err := config.NewViper(path)
	if err != nil {
		return err
	}
	settings := v.AllSettings()
	if _, ok := settings["github_token"]; ok {
		settings["github_token"] = "********"
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Printf("# %s\n%s", path, out)
	return nil
}

func getConfigValue(path, key string) error {
	v, err := config.NewViper(path)
	if err != nil {
		return err
	}
	if !v.IsSet(key) {
		return fmt.Errorf("key not found: %s", key)
	}
	fmt.Println(v.Get(key))
	return nil
}

func setConfigValue(path, key, value string) error {
	if err := config.Set(path, key, value); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}
