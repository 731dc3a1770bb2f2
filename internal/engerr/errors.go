// Package engerr defines the sentinel error taxonomy shared by every layer
// of the engine, so callers can use errors.Is regardless of which package
// produced the failure.
package engerr

import "errors"

var (
	// ErrNotFound is returned when an id does not reference an extant memory.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when caller input fails validation
	// before any mutation is attempted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned when a reference (e.g. contradicts) points at
	// a memory that does not exist or has been deleted.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when the underlying storage fails; callers
	// may retry.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrConfigurationError names a non-fatal adaptive-tuner condition:
	// every rule in adapt() clamped to a no-op. No code path in this module
	// returns it; Tuner.Adapt reports such a pass as an empty change map.
	ErrConfigurationError = errors.New("configuration error")
)
