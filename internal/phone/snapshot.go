package phone

import "time"

// Well-known top-level sections of a snapshot.
//
// SectionStatus and SectionStats come from polling; the on-demand sections
// (dnd, phonebook, blocked, webhooks) are fetched explicitly and merged in
// when requested.
const (
	SectionStatus    = "status"
	SectionStats     = "stats"
	SectionDND       = "dnd"
	SectionPhonebook = "phonebook"
	SectionBlocked   = "blocked"
	SectionWebhooks  = "webhooks"
)

// Phone states reported by the device in the status section.
const (
	StateStartup          = "Startup"
	StateCheckHardware    = "CheckHardware"
	StateCheckLine        = "CheckLine"
	StateIdle             = "Idle"
	StateInvalidNumber    = "InvalidNumber"
	StateIncomingCall     = "IncomingCall"
	StateIncomingCallRing = "IncomingCallRing"
	StateInCall           = "InCall"
	StateDialing          = "Dialing"
)

// Snapshot is an immutable point-in-time view of device state.
//
// A zero Snapshot represents "no data yet" (IsZero reports true). All
// transitions produce new snapshots; the receiver is never mutated.
type Snapshot struct {
	fields    Fields
	updatedAt time.Time
}

// NewSnapshot creates a snapshot from a fields document.
// The fields are deep-copied so the caller keeps ownership of its map.
func NewSnapshot(fields Fields, at time.Time) Snapshot {
	return Snapshot{
		fields:    fields.Clone(),
		updatedAt: at,
	}
}

// IsZero reports whether the snapshot holds no data.
func (s Snapshot) IsZero() bool {
	return s.fields == nil
}

// UpdatedAt returns when this snapshot was produced.
func (s Snapshot) UpdatedAt() time.Time {
	return s.updatedAt
}

// Fields returns a deep copy of the full state document.
func (s Snapshot) Fields() Fields {
	return s.fields.Clone()
}

// Section returns a deep copy of one top-level section, or nil if absent.
func (s Snapshot) Section(name string) Fields {
	v, ok := s.fields.lookup(name)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return Fields(m).Clone()
}

// Overlay merges a delta into the named section and returns a new snapshot.
//
// Nested maps within the delta merge key-by-key; other values replace.
// If the section does not exist yet it is created.
func (s Snapshot) Overlay(section string, delta Fields, at time.Time) Snapshot {
	fields := s.fields.Clone()
	if fields == nil {
		fields = make(Fields, 1)
	}

	current, _ := fields[section].(map[string]any)
	fields[section] = map[string]any(Fields(current).Overlay(delta))

	return Snapshot{
		fields:    fields,
		updatedAt: at,
	}
}

// ReplaceSection swaps out an entire top-level section and returns a new
// snapshot. Used for poll results, which carry the complete section.
func (s Snapshot) ReplaceSection(section string, content Fields, at time.Time) Snapshot {
	fields := s.fields.Clone()
	if fields == nil {
		fields = make(Fields, 1)
	}
	fields[section] = map[string]any(content.Clone())

	return Snapshot{
		fields:    fields,
		updatedAt: at,
	}
}

// PhoneState returns the device's state machine position (Idle, InCall, ...).
func (s Snapshot) PhoneState() string {
	return s.fields.getString(SectionStatus, "state")
}

// CallActive reports whether a call is in progress.
func (s Snapshot) CallActive() bool {
	return s.fields.getBool(SectionStatus, "call", "active")
}

// CallNumber returns the remote number of the active call, or "".
func (s Snapshot) CallNumber() string {
	return s.fields.getString(SectionStatus, "call", "number")
}

// CallID returns the identifier of the active call, or "".
func (s Snapshot) CallID() string {
	return s.fields.getString(SectionStatus, "call", "id")
}

// CallHasWaiting reports whether a second call is waiting.
func (s Snapshot) CallHasWaiting() bool {
	return s.fields.getBool(SectionStatus, "call", "has_waiting")
}

// WiFiConnected reports the device's WiFi link state.
func (s Snapshot) WiFiConnected() bool {
	return s.fields.getBool(SectionStatus, "wifi", "connected")
}

// WiFiRSSI returns the WiFi signal strength in dBm.
func (s Snapshot) WiFiRSSI() int {
	return s.fields.getInt(SectionStatus, "wifi", "rssi")
}

// WiFiSSID returns the connected network name.
func (s Snapshot) WiFiSSID() string {
	return s.fields.getString(SectionStatus, "wifi", "ssid")
}

// WiFiIP returns the device's IP address as reported by the device.
func (s Snapshot) WiFiIP() string {
	return s.fields.getString(SectionStatus, "wifi", "ip")
}

// DNDEnabled reports whether do-not-disturb is configured on.
func (s Snapshot) DNDEnabled() bool {
	return s.fields.getBool(SectionStatus, "dnd_enabled")
}

// FreeHeap returns the device's free heap in bytes.
func (s Snapshot) FreeHeap() int {
	return s.fields.getInt(SectionStatus, "free_heap")
}

// Uptime returns the device uptime in seconds.
func (s Snapshot) Uptime() int {
	return s.fields.getInt(SectionStatus, "uptime")
}

// TotalCalls returns the lifetime call count.
func (s Snapshot) TotalCalls() int {
	return s.fields.getInt(SectionStats, "total_calls")
}

// TotalTalkTimeSeconds returns lifetime talk time in seconds.
func (s Snapshot) TotalTalkTimeSeconds() int {
	return s.fields.getInt(SectionStats, "total_talk_time_seconds")
}
