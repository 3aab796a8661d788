package state

import "errors"

// Sentinel errors for state integrity failures. They are never retried.
var (
	// ErrNotFound is returned when rrd.json does not exist
	ErrNotFound = errors.New("state document not found")

	// ErrMalformed is returned for invalid JSON or an unknown phase or paper status
	ErrMalformed = errors.New("state document malformed")

	// ErrMissingRequiredField is returned when project or requirements.target_papers is absent
	ErrMissingRequiredField = errors.New("state document missing required field")
)
