// Package workspace locates research projects on disk.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/daydemir/research-ralph/internal/state"
)

var ErrProjectNotFound = errors.New("research project not found")
var ErrProjectExists = errors.New("research project already exists")

// Labels shown in place of a phase when a project cannot be read
const (
	LabelInvalidJSON  = "INVALID JSON"
	LabelNoDocument   = "NO RRD"
	LabelNoAccess     = "NO ACCESS"
	LabelMissingField = "MISSING FIELD"
	LabelError        = "ERROR"
)

// Resolve finds a project directory. It checks, in order: the current
// directory for "." or "", the path itself, a subdirectory of cwd holding a
// state document, then researchDir/<path>.
func Resolve(path, cwd, researchDir string) (string, error) {
	if path == "." || path == "" {
		if isProject(cwd) {
			return cwd, nil
		}
		return "", fmt.Errorf("%w: %s has no %s", ErrProjectNotFound, cwd, state.DocumentFile)
	}

	if filepath.IsAbs(path) {
		if dirExists(path) {
			return path, nil
		}
	} else if candidate := filepath.Join(cwd, path); dirExists(candidate) {
		return candidate, nil
	}

	if researchDir != "" && !filepath.IsAbs(path) {
		candidate := filepath.Join(researchDir, path)
		if dirExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProjectNotFound, path)
}

// Project is one row of the project listing
type Project struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Phase    string `json:"phase"`
	Target   int    `json:"target"`
	Analyzed int    `json:"analyzed"`
	Pending  int    `json:"pending"`
	Readable bool   `json:"readable"`
}

// List returns the projects in cwd (itself or its subdirectories) and in
// researchDir, de-duplicated by name. Unreadable projects are labelled
// rather than failing the listing.
func List(cwd, researchDir string) []Project {
	var dirs []string
	seen := map[string]bool{}
	add := func(dir string) {
		name := filepath.Base(dir)
		if seen[name] {
			return
		}
		seen[name] = true
		dirs = append(dirs, dir)
	}

	if isProject(cwd) {
		add(cwd)
	}
	for _, dir := range subprojects(cwd) {
		add(dir)
	}
	if researchDir != "" && dirExists(researchDir) && !samePath(researchDir, cwd) {
		for _, dir := range subprojects(researchDir) {
			add(dir)
		}
	}

	projects := make([]Project, 0, len(dirs))
	for _, dir := range dirs {
		projects = append(projects, Describe(dir))
	}
	return projects
}

// Describe loads the summary row for one project directory
func Describe(dir string) Project {
	p := Project{Name: filepath.Base(dir), Path: dir}

	st, err := state.Load(filepath.Join(dir, state.DocumentFile))
	if err != nil {
		p.Phase = Label(err)
		return p
	}

	counts := st.Counts()
	p.Phase = string(st.Phase)
	p.Target = st.Target()
	p.Analyzed = counts.Analyzed()
	p.Pending = counts.Pending + counts.Analyzing
	p.Readable = true
	return p
}

// Label maps a load error to the listing label
func Label(err error) string {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return LabelNoDocument
	case errors.Is(err, os.ErrPermission):
		return LabelNoAccess
	case errors.Is(err, state.ErrMissingRequiredField):
		return LabelMissingField
	case errors.Is(err, state.ErrMalformed):
		return LabelInvalidJSON
	default:
		return LabelError
	}
}

// subprojects lists the immediate subdirectories of dir holding a state document
func subprojects(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if hasDocument(sub) {
			out = append(out, sub)
		}
	}
	sort.Strings(out)
	return out
}

// isProject reports whether dir holds a state document
func isProject(dir string) bool {
	return hasDocument(dir)
}

// hasDocument is true even when the document is unreadable, so that
// permission problems surface as a label.
func hasDocument(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, state.DocumentFile))
	return err == nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func samePath(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}
