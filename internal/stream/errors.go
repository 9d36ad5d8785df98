package stream

import "errors"

// Domain-specific errors for the stream listener.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("stream: listener already started")

	// ErrClosed is returned when operating on a closed listener.
	ErrClosed = errors.New("stream: listener closed")

	// ErrInvalidURL is returned when the device URL cannot be parsed.
	ErrInvalidURL = errors.New("stream: invalid device URL")
)
