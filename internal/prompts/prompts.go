// Package prompts locates the iteration prompt and fills in its placeholders.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daydemir/research-ralph/internal/utils"
)

//go:embed templates/*.md
var embeddedPrompts embed.FS

// ResearchDirPlaceholder is replaced with the absolute project path
const ResearchDirPlaceholder = "{{RESEARCH_DIR}}"

// PromptFile is the name looked up next to the project directories
const PromptFile = "prompt.md"

// Source tells where a prompt was loaded from
type Source struct {
	Path     string // empty for the embedded default
	Embedded bool
}

// String describes the source for status output
func (s Source) String() string {
	if s.Embedded {
		return "built-in prompt"
	}
	return s.Path
}

// Get returns an embedded prompt by name
func Get(name string) (string, error) {
	if !strings.HasSuffix(name, ".md") {
		name = name + ".md"
	}

	content, err := embeddedPrompts.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found: %w", name, err)
	}
	return string(content), nil
}

// Find resolves the iteration prompt for a project: prompt.md in the
// project's parent directory, then the configured file, then the built-in one.
func Find(projectDir, configured string) (string, Source, error) {
	candidates := []string{filepath.Join(filepath.Dir(projectDir), PromptFile)}
	if configured != "" {
		candidates = append(candidates, utils.ExpandHome(configured))
	}

	for _, path := range candidates {
		content, err := os.ReadFile(path)
		if err == nil {
			return string(content), Source{Path: path}, nil
		}
		if !os.IsNotExist(err) {
			return "", Source{}, fmt.Errorf("cannot read prompt %s: %w", path, err)
		}
	}

	if configured != "" {
		return "", Source{}, fmt.Errorf("prompt file not found: %s", configured)
	}

	content, err := Get("research")
	if err != nil {
		return "", Source{}, err
	}
	return content, Source{Embedded: true}, nil
}

// Render substitutes the research directory into the prompt
func Render(prompt, projectDir string) string {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		abs = projectDir
	}
	return strings.ReplaceAll(prompt, ResearchDirPlaceholder, abs)
}

// Load finds and renders the prompt for a project
func Load(projectDir, configured string) (string, Source, error) {
	content, src, err := Find(projectDir, configured)
	if err != nil {
		return "", src, err
	}
	return Render(content, projectDir), src, nil
}
