package coordinator

import "errors"

// Domain-specific errors for the coordinator.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownAction is returned when an action name is not recognised.
	ErrUnknownAction = errors.New("coordinator: unknown action")

	// ErrNoDevice is returned when a coordinator is built without a device.
	ErrNoDevice = errors.New("coordinator: device is required")
)
