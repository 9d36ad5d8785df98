package device

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Domain-specific errors for device HTTP operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("device: request timed out")

	// ErrConnect is returned when the device cannot be reached at all
	// (refused, unreachable, DNS failure).
	ErrConnect = errors.New("device: connection failed")

	// ErrProtocol is returned when the device responds with something the
	// adapter cannot interpret (bad JSON, unexpected status on a GET).
	ErrProtocol = errors.New("device: protocol error")

	// ErrDeviceRejected is returned when the device actively refuses an
	// action (non-2xx on POST /action). The device is reachable; the
	// request itself was bad or inapplicable.
	ErrDeviceRejected = errors.New("device: action rejected")
)

// ErrorClass categorises a device error for health accounting and logging.
type ErrorClass int

const (
	// ClassUnknown is an unclassified error.
	ClassUnknown ErrorClass = iota

	// ClassTimeout covers deadline exceeded.
	ClassTimeout

	// ClassConnect covers dial and routing failures.
	ClassConnect

	// ClassProtocol covers malformed responses.
	ClassProtocol

	// ClassRejected covers device-side action refusals.
	ClassRejected
)

// String returns the class name for logging.
func (c ErrorClass) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassConnect:
		return "connect"
	case ClassProtocol:
		return "protocol"
	case ClassRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by this package to its class.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case errors.Is(err, ErrConnect):
		return ClassConnect
	case errors.Is(err, ErrProtocol):
		return ClassProtocol
	case errors.Is(err, ErrDeviceRejected):
		return ClassRejected
	default:
		return ClassUnknown
	}
}

// wrapTransportError converts low-level net/http errors into the package's
// sentinel errors. Timeouts take precedence over generic connection failures.
func wrapTransportError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return errors.Join(ErrTimeout, err)
		}
		return errors.Join(ErrConnect, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Join(ErrTimeout, err)
		}
		return errors.Join(ErrConnect, err)
	}

	return errors.Join(ErrConnect, err)
}
