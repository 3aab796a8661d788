package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// commonLocations lists install paths checked when a binary is not on PATH
var commonLocations = map[string][]string{
	"claude": {"~/.claude/local/claude", "/usr/local/bin/claude", "/opt/homebrew/bin/claude"},
	"amp":    {"~/.local/bin/amp", "/usr/local/bin/amp", "/opt/homebrew/bin/amp"},
	"codex":  {"~/.local/bin/codex", "/usr/local/bin/codex", "/opt/homebrew/bin/codex"},
}

// installHints are shown when an agent binary cannot be found
var installHints = map[string]string{
	"claude": "npm install -g @anthropic-ai/claude-code",
	"amp":    "npm install -g @sourcegraph/amp",
	"codex":  "npm install -g @openai/codex",
}

// ResolveBinaryPath finds a binary, checking common locations
func ResolveBinaryPath(binaryPath string) string {
	// If it's an absolute path, use it directly
	if filepath.IsAbs(binaryPath) {
		return binaryPath
	}

	if strings.HasPrefix(binaryPath, "~") {
		return ExpandHome(binaryPath)
	}

	if path, err := exec.LookPath(binaryPath); err == nil {
		return path
	}

	for _, p := range commonLocations[filepath.Base(binaryPath)] {
		p = ExpandHome(p)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Return original, will fail with helpful error later
	return binaryPath
}

// CheckBinary verifies that a resolved binary exists and is executable
func CheckBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if _, lookErr := exec.LookPath(path); lookErr == nil {
			return nil
		}
		return err
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return fmt.Errorf("%s is not an executable file", path)
	}
	return nil
}

// BinaryNotFoundError returns a helpful error message when an agent CLI is not found
func BinaryNotFoundError(name string) error {
	hint, ok := installHints[name]
	if !ok {
		return fmt.Errorf("%s not found in PATH", name)
	}
	return fmt.Errorf(`%s not found in PATH

To install:
  %s

Alternatively, set the full path in ~/.ralph/config.yaml:
  agents:
    %s:
      binary: /path/to/%s`, name, hint, name, name)
}
