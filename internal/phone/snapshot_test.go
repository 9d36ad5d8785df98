package phone

import (
	"testing"
	"time"
)

func testStatusFields() Fields {
	return Fields{
		SectionStatus: map[string]any{
			"state":       StateIdle,
			"uptime":      float64(3600),
			"free_heap":   float64(150000),
			"dnd_enabled": false,
			"call": map[string]any{
				"active":      false,
				"number":      "",
				"id":          "",
				"has_waiting": false,
			},
			"wifi": map[string]any{
				"connected": true,
				"rssi":      float64(-58),
				"ssid":      "home",
				"ip":        "192.168.1.50",
			},
		},
		SectionStats: map[string]any{
			"total_calls":             float64(42),
			"total_talk_time_seconds": float64(1234),
		},
	}
}

func TestSnapshot_Zero(t *testing.T) {
	var s Snapshot

	if !s.IsZero() {
		t.Error("zero snapshot should report IsZero")
	}
	if s.Fields() != nil {
		t.Error("zero snapshot Fields() should be nil")
	}
	if s.PhoneState() != "" {
		t.Errorf("zero snapshot PhoneState() = %q, want empty", s.PhoneState())
	}
}

func TestSnapshot_Immutability(t *testing.T) {
	fields := testStatusFields()
	snap := NewSnapshot(fields, time.Now())

	// Mutating the source map after construction must not affect the snapshot
	fields[SectionStatus].(map[string]any)["state"] = StateInCall
	if snap.PhoneState() != StateIdle {
		t.Error("snapshot shares storage with the constructor argument")
	}

	// Mutating a returned copy must not affect the snapshot
	out := snap.Fields()
	out[SectionStatus].(map[string]any)["state"] = StateDialing
	if snap.PhoneState() != StateIdle {
		t.Error("snapshot shares storage with Fields() result")
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := NewSnapshot(testStatusFields(), time.Now())

	if got := snap.PhoneState(); got != StateIdle {
		t.Errorf("PhoneState() = %q, want %q", got, StateIdle)
	}
	if snap.CallActive() {
		t.Error("CallActive() = true, want false")
	}
	if !snap.WiFiConnected() {
		t.Error("WiFiConnected() = false, want true")
	}
	if got := snap.WiFiRSSI(); got != -58 {
		t.Errorf("WiFiRSSI() = %d, want -58", got)
	}
	if got := snap.WiFiSSID(); got != "home" {
		t.Errorf("WiFiSSID() = %q, want home", got)
	}
	if got := snap.WiFiIP(); got != "192.168.1.50" {
		t.Errorf("WiFiIP() = %q, want 192.168.1.50", got)
	}
	if got := snap.Uptime(); got != 3600 {
		t.Errorf("Uptime() = %d, want 3600", got)
	}
	if got := snap.FreeHeap(); got != 150000 {
		t.Errorf("FreeHeap() = %d, want 150000", got)
	}
	if got := snap.TotalCalls(); got != 42 {
		t.Errorf("TotalCalls() = %d, want 42", got)
	}
	if got := snap.TotalTalkTimeSeconds(); got != 1234 {
		t.Errorf("TotalTalkTimeSeconds() = %d, want 1234", got)
	}
}

func TestSnapshot_Overlay(t *testing.T) {
	base := NewSnapshot(testStatusFields(), time.Unix(1000, 0))

	at := time.Unix(2000, 0)
	next := base.Overlay(SectionStatus, Fields{
		"state": StateIncomingCallRing,
		"call": map[string]any{
			"active": true,
			"number": "5551234",
		},
	}, at)

	// New snapshot carries the delta
	if got := next.PhoneState(); got != StateIncomingCallRing {
		t.Errorf("PhoneState() = %q, want %q", got, StateIncomingCallRing)
	}
	if !next.CallActive() {
		t.Error("CallActive() = false after overlay")
	}
	if got := next.CallNumber(); got != "5551234" {
		t.Errorf("CallNumber() = %q, want 5551234", got)
	}

	// Untouched nested keys survive the merge
	if !next.WiFiConnected() {
		t.Error("wifi section lost during status overlay")
	}
	if next.CallHasWaiting() {
		t.Error("call.has_waiting should still be false")
	}

	// Base snapshot is untouched
	if base.PhoneState() != StateIdle {
		t.Error("overlay mutated the base snapshot")
	}
	if !next.UpdatedAt().Equal(at) {
		t.Errorf("UpdatedAt() = %v, want %v", next.UpdatedAt(), at)
	}
}

func TestSnapshot_OverlayOnZero(t *testing.T) {
	var base Snapshot
	next := base.Overlay(SectionStatus, Fields{"state": StateStartup}, time.Now())

	if next.IsZero() {
		t.Error("overlay on zero snapshot should produce data")
	}
	if got := next.PhoneState(); got != StateStartup {
		t.Errorf("PhoneState() = %q, want %q", got, StateStartup)
	}
}

func TestSnapshot_ReplaceSection(t *testing.T) {
	base := NewSnapshot(testStatusFields(), time.Unix(1000, 0))

	next := base.ReplaceSection(SectionStats, Fields{
		"total_calls": float64(43),
	}, time.Unix(2000, 0))

	if got := next.TotalCalls(); got != 43 {
		t.Errorf("TotalCalls() = %d, want 43", got)
	}
	// Replacement drops keys not present in the new section
	if got := next.TotalTalkTimeSeconds(); got != 0 {
		t.Errorf("TotalTalkTimeSeconds() = %d, want 0 after replace", got)
	}
	// Other sections survive
	if next.PhoneState() != StateIdle {
		t.Error("status section lost during stats replace")
	}
	// Base untouched
	if base.TotalCalls() != 42 {
		t.Error("replace mutated the base snapshot")
	}
}

func TestSnapshot_Section(t *testing.T) {
	snap := NewSnapshot(testStatusFields(), time.Now())

	stats := snap.Section(SectionStats)
	if stats == nil {
		t.Fatal("Section(stats) = nil")
	}
	if stats["total_calls"] != float64(42) {
		t.Errorf("total_calls = %v, want 42", stats["total_calls"])
	}

	// Returned section is a copy
	stats["total_calls"] = float64(0)
	if snap.TotalCalls() != 42 {
		t.Error("Section() result shares storage with the snapshot")
	}

	if snap.Section("missing") != nil {
		t.Error("Section(missing) should be nil")
	}
}
