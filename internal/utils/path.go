package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// Slugify converts a name to a directory-safe slug
// Example: "Agentic Memory Systems" -> "agentic-memory-systems"
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	var result strings.Builder
	result.Grow(len(slug))
	for _, c := range slug {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// FileExists checks if a file exists at the given path
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Excerpt returns the last non-empty line of output, cut to max runes.
// Used to show why an executor invocation failed.
func Excerpt(output string, max int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	line := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			line = l
			break
		}
	}
	runes := []rune(line)
	if max > 3 && len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return line
}
