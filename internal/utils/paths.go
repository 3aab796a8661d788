package utils

import (
	"fmt"
	"path/filepath"
	"time"
)

// SnapshotTimeFormat is sortable and safe in file names
const SnapshotTimeFormat = "20060102T150405Z"

// BuildSnapshotPath builds the directory for one snapshot
// Format: {projectDir}/snapshots/{UTC timestamp}-{slugified-reason}
func BuildSnapshotPath(projectDir string, at time.Time, reason string) string {
	name := at.UTC().Format(SnapshotTimeFormat)
	if slug := Slugify(reason); slug != "" {
		name = fmt.Sprintf("%s-%s", name, slug)
	}
	return filepath.Join(projectDir, "snapshots", name)
}
