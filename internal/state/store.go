package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/types"
)

// File names inside a project directory
const (
	DocumentFile = "rrd.json"
	ProgressFile = "progress.txt"
	LockFile     = ".ralph.lock"
)

// Load reads and validates the state document at path.
// Errors wrap ErrNotFound, ErrMalformed or ErrMissingRequiredField.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	root, err := decodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if err := checkRequired(root); err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return &st, nil
}

// checkRequired reports the first missing required member
func checkRequired(root fields) error {
	if _, ok := root["project"]; !ok {
		return fmt.Errorf("%w: project", ErrMissingRequiredField)
	}
	rawReq, ok := root["requirements"]
	if !ok {
		return fmt.Errorf("%w: requirements.target_papers", ErrMissingRequiredField)
	}
	req, err := decodeFields(rawReq)
	if err != nil {
		return fmt.Errorf("%w: requirements: %v", ErrMalformed, err)
	}
	if _, ok := req["target_papers"]; !ok {
		return fmt.Errorf("%w: requirements.target_papers", ErrMissingRequiredField)
	}
	return nil
}

// Save writes the document atomically; the original survives any failure
// before the final rename.
func Save(st *State, path string) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal state: %w", err)
	}
	data = append(data, '\n')
	if err := filelock.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("cannot save state: %w", err)
	}
	return nil
}

// Store binds the state operations to one project directory
type Store struct {
	dir string
}

// NewStore returns a store for the project at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the project directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of rrd.json
func (s *Store) Path() string {
	return filepath.Join(s.dir, DocumentFile)
}

// ProgressPath returns the path of progress.txt
func (s *Store) ProgressPath() string {
	return filepath.Join(s.dir, ProgressFile)
}

// Exists reports whether rrd.json is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Load reads the project's document
func (s *Store) Load() (*State, error) {
	return Load(s.Path())
}

// Save persists the project's document
func (s *Store) Save(st *State) error {
	return Save(st, s.Path())
}

// Lock takes the per-project run lock without blocking.
// The caller must Unlock the returned lock.
func (s *Store) Lock() (*filelock.FileLock, error) {
	lock := filelock.NewFileLock(filepath.Join(s.dir, LockFile))
	if err := lock.TryAcquire(); err != nil {
		return nil, err
	}
	return lock, nil
}

// Validate returns human-readable problems with the document; empty means
// valid. A zero target is valid here: status reports it as N/A and run
// refuses it separately.
func (s *Store) Validate() []string {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{fmt.Sprintf("RRD file not found: %s", s.Path())}
		}
		return []string{fmt.Sprintf("Cannot read RRD file: %v", err)}
	}
	root, err := decodeFields(data)
	if err != nil {
		return []string{fmt.Sprintf("Invalid JSON: %v", err)}
	}

	var problems types.ValidationErrors
	if _, ok := root["project"]; !ok {
		problems.Missing("project")
	}
	if rawReq, ok := root["requirements"]; !ok {
		problems.Missing("requirements")
	} else if req, err := decodeFields(rawReq); err != nil {
		problems.Invalid("requirements", "not a JSON object", "an object", string(rawReq))
	} else if rawTarget, ok := req["target_papers"]; !ok {
		problems.Missing("requirements.target_papers")
	} else {
		var target int
		if err := json.Unmarshal(rawTarget, &target); err != nil || target < 0 {
			problems.Invalid("requirements.target_papers", "invalid target", "a non-negative integer", string(rawTarget))
		}
	}

	if rawPhase, ok := root["phase"]; ok {
		var phase string
		if err := json.Unmarshal(rawPhase, &phase); err != nil {
			problems.Invalid("phase", "invalid phase", "a string", string(rawPhase))
		} else if _, err := types.ParsePhase(phase); err != nil {
			problems.Invalid("phase", "unknown phase", types.OneOf(types.AllPhases()), phase)
		}
	}

	if rawPool, ok := root["papers_pool"]; ok {
		validatePool(rawPool, &problems)
	}

	return problems.Messages()
}

func validatePool(rawPool json.RawMessage, problems *types.ValidationErrors) {
	var papers []fields
	if err := json.Unmarshal(rawPool, &papers); err != nil {
		problems.Invalid("papers_pool", "invalid papers_pool", "an array of objects", nil)
		return
	}
	seen := make(map[string]int)
	for i, p := range papers {
		var id string
		if raw, ok := p["id"]; !ok || json.Unmarshal(raw, &id) != nil || id == "" {
			problems.Missing(fmt.Sprintf("papers_pool[%d].id", i))
		} else if first, dup := seen[id]; dup {
			problems.Invalid(fmt.Sprintf("papers_pool[%d].id", i), fmt.Sprintf("duplicate of papers_pool[%d]", first), "a unique id", id)
		} else {
			seen[id] = i
		}

		if raw, ok := p["status"]; ok {
			var status string
			if err := json.Unmarshal(raw, &status); err != nil {
				problems.Invalid(fmt.Sprintf("papers_pool[%d].status", i), "invalid status", "a string", string(raw))
			} else if _, err := types.ParsePaperStatus(status); err != nil {
				problems.Invalid(fmt.Sprintf("papers_pool[%d].status", i), "unknown status",
					types.OneOf(types.AllPaperStatuses()), status)
			}
		}
	}
}

// UpdateTarget changes requirements.target_papers. Once research is under way
// (phase past DISCOVERY or any paper analyzed) the change is refused unless
// force is set, in which case a snapshot is taken first. It reports whether
// the target was changed.
func (s *Store) UpdateTarget(target int, force bool, snap *Snapshotter) (bool, error) {
	if target < 1 {
		return false, fmt.Errorf("target papers must be at least 1, got %d", target)
	}
	st, err := s.Load()
	if err != nil {
		return false, err
	}
	if st.Target() == target {
		return true, nil
	}

	inProgress := st.Phase != types.PhaseDiscovery || st.Counts().Analyzed() > 0
	if inProgress {
		if !force {
			return false, nil
		}
		if _, err := snap.Take("target-change"); err != nil {
			return false, fmt.Errorf("snapshot before target change failed: %w", err)
		}
	}

	st.Requirements.TargetPapers = target
	if err := s.Save(st); err != nil {
		return false, err
	}
	return true, nil
}
