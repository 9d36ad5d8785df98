package platform

import "time"

// CommandMessage is received on the command topic to request an action.
// Topic: tsuryphone/{device}/command
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated by
	// the bridge when the caller omits it.
	ID string `json:"id,omitempty"`

	// Action is the device action name (e.g. "dial", "hangup").
	Action string `json:"action"`

	// Params contains action-specific values, e.g. {"number": "5551234"}.
	Params map[string]any `json:"params,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the action was delivered to the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the action could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on the ack topic for every command received.
// Topic: tsuryphone/{device}/ack
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError carries details when a command fails.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for failed commands.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownAction  = "UNKNOWN_ACTION"
	ErrCodeRejected       = "DEVICE_REJECTED"
	ErrCodeUnreachable    = "DEVICE_UNREACHABLE"
)

// StateMessage is the retained snapshot published on state changes.
// Topic: tsuryphone/{device}/state
// QoS: configured, Retained: yes
type StateMessage struct {
	Device    string         `json:"device"`
	Timestamp time.Time      `json:"timestamp"`
	Available bool           `json:"available"`
	State     map[string]any `json:"state"`
}

// EventMessage is published when the device fires a webhook event.
// Topic: tsuryphone/{device}/event/{name}
type EventMessage struct {
	Device    string         `json:"device"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Availability payloads for the retained availability topic.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)
