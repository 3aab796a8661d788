package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/utils"
)

// ManifestName is written last into every snapshot directory
const ManifestName = "manifest.yaml"

// Manifest describes one snapshot
type Manifest struct {
	Reason    string      `yaml:"reason"`
	CreatedAt string      `yaml:"created_at"`
	RunID     string      `yaml:"run_id,omitempty"`
	Files     []FileEntry `yaml:"files"`
}

// FileEntry records size and checksum of a copied file
type FileEntry struct {
	Name   string `yaml:"name"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// Snapshotter writes write-once copies of the project state
type Snapshotter struct {
	dir   string
	runID string
	now   func() time.Time
}

// NewSnapshotter creates a snapshotter for the project at dir
func NewSnapshotter(dir, runID string) *Snapshotter {
	return &Snapshotter{dir: dir, runID: runID, now: time.Now}
}

// Take copies rrd.json, and progress.txt when present, into a new snapshot
// directory and returns its path. Nothing in an existing snapshot is ever
// modified; a name collision gets a numeric suffix. An incomplete snapshot
// is removed.
func (s *Snapshotter) Take(reason string) (path string, err error) {
	now := s.now()
	base := utils.BuildSnapshotPath(s.dir, now, reason)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return "", fmt.Errorf("cannot create snapshots directory: %w", err)
	}

	target := base
	for n := 2; ; n++ {
		err := os.Mkdir(target, 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || n > 99 {
			return "", fmt.Errorf("cannot create snapshot directory: %w", err)
		}
		target = fmt.Sprintf("%s-%d", base, n)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(target)
		}
	}()

	manifest := Manifest{
		Reason:    reason,
		CreatedAt: FormatTimestamp(now),
		RunID:     s.runID,
	}

	sources := []struct {
		name     string
		required bool
	}{
		{DocumentFile, true},
		{ProgressFile, false},
	}
	for _, src := range sources {
		entry, err := copyOnce(filepath.Join(s.dir, src.name), filepath.Join(target, src.name))
		if err != nil {
			if !src.required && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("cannot snapshot %s: %w", src.name, err)
		}
		manifest.Files = append(manifest.Files, entry)
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return "", fmt.Errorf("cannot marshal snapshot manifest: %w", err)
	}
	if err := filelock.WriteOnce(filepath.Join(target, ManifestName), data); err != nil {
		return "", err
	}
	return target, nil
}

func copyOnce(src, dst string) (FileEntry, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return FileEntry{}, err
	}
	if err := filelock.WriteOnce(dst, data); err != nil {
		return FileEntry{}, err
	}
	sum := sha256.Sum256(data)
	return FileEntry{
		Name:   filepath.Base(src),
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// Snapshot is a snapshot directory and its manifest
type Snapshot struct {
	Path     string
	Manifest Manifest
}

// ListSnapshots returns the project's snapshots, oldest first
func ListSnapshots(dir string) ([]Snapshot, error) {
	root := filepath.Join(dir, "snapshots")
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read snapshots: %w", err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, ManifestName))
		if err != nil {
			continue
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{Path: dir, Manifest: m})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Path < snaps[j].Path })
	return snaps, nil
}
