package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/daydemir/research-ralph/internal/utils"
)

const (
	// EnvPrefix is prepended to every environment override (RALPH_DEFAULT_AGENT, ...)
	EnvPrefix = "RALPH"
	dirName   = ".ralph"
	fileName  = "config.yaml"
)

// Config represents the research-ralph configuration
type Config struct {
	ResearchDir            string        `mapstructure:"research_dir"`
	DefaultAgent           string        `mapstructure:"default_agent"`
	DefaultPapers          int           `mapstructure:"default_papers"`
	LiveOutput             bool          `mapstructure:"live_output"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	IterationDelay         time.Duration `mapstructure:"iteration_delay"`
	LogLevel               string        `mapstructure:"log_level"`
	PromptFile             string        `mapstructure:"prompt_file"`
	GitHubToken            string        `mapstructure:"github_token"`
	History                HistoryConfig `mapstructure:"history"`
	Agents                 AgentsConfig  `mapstructure:"agents"`
}

// HistoryConfig controls the per-project iteration history database
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AgentsConfig contains per-backend settings
type AgentsConfig struct {
	Claude AgentConfig `mapstructure:"claude"`
	Amp    AgentConfig `mapstructure:"amp"`
	Codex  AgentConfig `mapstructure:"codex"`
}

// AgentConfig contains settings for one executor backend
type AgentConfig struct {
	Binary       string   `mapstructure:"binary"`
	Model        string   `mapstructure:"model"`
	AllowedTools []string `mapstructure:"allowed_tools"`
}

// Path returns the global config file location, ~/.ralph/config.yaml
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// NewViper returns a viper instance with defaults and environment bindings
// applied. configPath is read only if the file exists.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// GITHUB_TOKEN is honoured without the prefix
	if err := v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, err
	}

	if configPath == "" {
		return v, nil
	}
	v.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// Load reads the config from configPath, or from the global location when
// configPath is empty. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing or out-of-range values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		ResearchDir:            "~/research",
		DefaultAgent:           "claude",
		DefaultPapers:          20,
		LiveOutput:             true,
		MaxConsecutiveFailures: 3,
		IterationDelay:         2 * time.Second,
		LogLevel:               "info",
		History:                HistoryConfig{Enabled: true},
		Agents: AgentsConfig{
			Claude: AgentConfig{Binary: "claude"},
			Amp:    AgentConfig{Binary: "amp"},
			Codex:  AgentConfig{Binary: "codex"},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("research_dir", d.ResearchDir)
	v.SetDefault("default_agent", d.DefaultAgent)
	v.SetDefault("default_papers", d.DefaultPapers)
	v.SetDefault("live_output", d.LiveOutput)
	v.SetDefault("max_consecutive_failures", d.MaxConsecutiveFailures)
	v.SetDefault("iteration_delay", d.IterationDelay)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("prompt_file", "")
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("agents.claude.binary", d.Agents.Claude.Binary)
	v.SetDefault("agents.claude.model", "")
	v.SetDefault("agents.claude.allowed_tools", []string{})
	v.SetDefault("agents.amp.binary", d.Agents.Amp.Binary)
	v.SetDefault("agents.amp.model", "")
	v.SetDefault("agents.codex.binary", d.Agents.Codex.Binary)
	v.SetDefault("agents.codex.model", "")
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ResearchDir == "" {
		cfg.ResearchDir = defaults.ResearchDir
	}
	cfg.ResearchDir = utils.ExpandHome(cfg.ResearchDir)
	if cfg.DefaultAgent == "" {
		cfg.DefaultAgent = defaults.DefaultAgent
	}
	if cfg.DefaultPapers < 1 {
		cfg.DefaultPapers = defaults.DefaultPapers
	}
	if cfg.MaxConsecutiveFailures < 1 {
		cfg.MaxConsecutiveFailures = defaults.MaxConsecutiveFailures
	}
	if cfg.IterationDelay < 0 {
		cfg.IterationDelay = defaults.IterationDelay
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.PromptFile != "" {
		cfg.PromptFile = utils.ExpandHome(cfg.PromptFile)
	}
	if cfg.Agents.Claude.Binary == "" {
		cfg.Agents.Claude.Binary = defaults.Agents.Claude.Binary
	}
	if cfg.Agents.Amp.Binary == "" {
		cfg.Agents.Amp.Binary = defaults.Agents.Amp.Binary
	}
	if cfg.Agents.Codex.Binary == "" {
		cfg.Agents.Codex.Binary = defaults.Agents.Codex.Binary
	}
}

// Agent returns the settings for the named backend
func (c *Config) Agent(name string) (AgentConfig, bool) {
	switch name {
	case "claude":
		return c.Agents.Claude, true
	case "amp":
		return c.Agents.Amp, true
	case "codex":
		return c.Agents.Codex, true
	}
	return AgentConfig{}, false
}

// ExecutorEnv returns the extra environment forwarded to the executor
func (c *Config) ExecutorEnv() []string {
	if c.GitHubToken == "" {
		return nil
	}
	return []string{"GITHUB_TOKEN=" + c.GitHubToken}
}

// Set writes key=value into the config file at configPath, creating the file
// when needed. Comma-separated values are stored as lists.
func Set(configPath, key, value string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Handle array values (comma-separated)
	if strings.Contains(value, ",") {
		v.Set(key, strings.Split(value, ","))
	} else {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
