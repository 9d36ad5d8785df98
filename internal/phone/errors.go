package phone

import "errors"

// Domain-specific errors.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidRingPattern is returned when a ring pattern string fails to parse.
	ErrInvalidRingPattern = errors.New("phone: invalid ring pattern")

	// ErrUnknownAction is returned for action names the device does not accept.
	ErrUnknownAction = errors.New("phone: unknown action")

	// ErrSnapshotNotFound is returned by the repository when no snapshot is stored.
	ErrSnapshotNotFound = errors.New("phone: snapshot not found")
)
