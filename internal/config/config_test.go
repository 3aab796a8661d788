package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.DefaultAgent)
	assert.Equal(t, 20, cfg.DefaultPapers)
	assert.True(t, cfg.LiveOutput)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.Equal(t, 2*time.Second, cfg.IterationDelay)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "codex", cfg.Agents.Codex.Binary)
	assert.True(t, filepath.IsAbs(cfg.ResearchDir), "~ is expanded: %s", cfg.ResearchDir)
	assert.Nil(t, cfg.ExecutorEnv())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `research_dir: /srv/research
default_agent: amp
default_papers: 12
live_output: false
iteration_delay: 500ms
history:
  enabled: false
agents:
  claude:
    model: opus
    allowed_tools: [Bash, Read]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/research", cfg.ResearchDir)
	assert.Equal(t, "amp", cfg.DefaultAgent)
	assert.Equal(t, 12, cfg.DefaultPapers)
	assert.False(t, cfg.LiveOutput)
	assert.Equal(t, 500*time.Millisecond, cfg.IterationDelay)
	assert.False(t, cfg.History.Enabled)

	claude, ok := cfg.Agent("claude")
	require.True(t, ok)
	assert.Equal(t, "opus", claude.Model)
	assert.Equal(t, "claude", claude.Binary, "binary falls back to the default")
	assert.Equal(t, []string{"Bash", "Read"}, claude.AllowedTools)

	_, ok = cfg.Agent("gemini")
	assert.False(t, ok)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("RALPH_DEFAULT_PAPERS", "7")
	t.Setenv("RALPH_AGENTS_AMP_BINARY", "/opt/amp")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.DefaultPapers)
	assert.Equal(t, "/opt/amp", cfg.Agents.Amp.Binary)
	assert.Equal(t, []string{"GITHUB_TOKEN=ghp_test"}, cfg.ExecutorEnv())
}

func TestOutOfRangeValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_papers: 0\nmax_consecutive_failures: -1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.DefaultPapers)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
}

func TestSet(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	path := filepath.Join(t.TempDir(), ".ralph", "config.yaml")

	require.NoError(t, Set(path, "default_agent", "codex"))
	require.NoError(t, Set(path, "agents.claude.allowed_tools", "Bash,Read"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "codex", cfg.DefaultAgent)
	assert.Equal(t, []string{"Bash", "Read"}, cfg.Agents.Claude.AllowedTools)
	assert.Equal(t, 20, cfg.DefaultPapers, "unrelated keys keep defaults")
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_papers: [\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
