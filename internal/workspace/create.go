package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daydemir/research-ralph/internal/progress"
	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/utils"
)

// Create makes a new project directory parent/<slug(name)> holding a fresh
// state document and progress log. Returns the project directory.
func Create(parent, name, topic string, target int, at time.Time) (string, error) {
	slug := utils.Slugify(name)
	if slug == "" {
		return "", fmt.Errorf("project name %q has no usable characters", name)
	}
	if target < 1 {
		return "", fmt.Errorf("target papers must be at least 1, got %d", target)
	}

	dir := filepath.Join(parent, slug)
	if hasDocument(dir) {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	st := state.New(slug, target, at)
	if topic != "" {
		if err := st.Requirements.Set("focus_area", topic); err != nil {
			return "", err
		}
		if err := st.SetField("description", topic); err != nil {
			return "", err
		}
	}

	store := state.NewStore(dir)
	if err := store.Save(st); err != nil {
		return "", err
	}
	if err := progress.Init(store.ProgressPath(), "Started", at); err != nil {
		return "", err
	}
	return dir, nil
}
