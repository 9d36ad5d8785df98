package phone

import (
	"testing"
)

func TestFields_Clone(t *testing.T) {
	original := Fields{
		"state": "Idle",
		"call": map[string]any{
			"active": true,
			"number": "5551234",
		},
		"tags": []any{"a", "b"},
	}

	clone := original.Clone()

	// Mutating the clone must not affect the original
	clone["state"] = "InCall"
	clone["call"].(map[string]any)["number"] = "changed"
	clone["tags"].([]any)[0] = "changed"

	if original["state"] != "Idle" {
		t.Errorf("original state = %v, want Idle", original["state"])
	}
	if original["call"].(map[string]any)["number"] != "5551234" {
		t.Error("nested map was shared between original and clone")
	}
	if original["tags"].([]any)[0] != "a" {
		t.Error("slice was shared between original and clone")
	}
}

func TestFields_CloneNil(t *testing.T) {
	var f Fields
	if f.Clone() != nil {
		t.Error("Clone() of nil fields should be nil")
	}
}

func TestFields_Overlay(t *testing.T) {
	t.Run("scalar replaces", func(t *testing.T) {
		base := Fields{"state": "Idle", "uptime": float64(100)}
		out := base.Overlay(Fields{"state": "InCall"})

		if out["state"] != "InCall" {
			t.Errorf("state = %v, want InCall", out["state"])
		}
		if out["uptime"] != float64(100) {
			t.Errorf("uptime = %v, want 100", out["uptime"])
		}
	})

	t.Run("nested map merges key-by-key", func(t *testing.T) {
		base := Fields{
			"wifi": map[string]any{
				"connected": true,
				"rssi":      float64(-60),
				"ssid":      "home",
			},
		}
		out := base.Overlay(Fields{
			"wifi": map[string]any{"rssi": float64(-45)},
		})

		wifi := out["wifi"].(map[string]any)
		if wifi["rssi"] != float64(-45) {
			t.Errorf("rssi = %v, want -45", wifi["rssi"])
		}
		if wifi["ssid"] != "home" {
			t.Error("untouched sibling key was lost in merge")
		}
		if wifi["connected"] != true {
			t.Error("untouched sibling key was lost in merge")
		}
	})

	t.Run("merged subtree stays reachable by path", func(t *testing.T) {
		base := Fields{
			"call": map[string]any{"active": false, "number": ""},
		}
		out := base.Overlay(Fields{
			"call": map[string]any{"active": true, "number": "5551234"},
		})

		if !out.getBool("call", "active") {
			t.Error("getBool(call, active) = false, want true")
		}
		if got := out.getString("call", "number"); got != "5551234" {
			t.Errorf("getString(call, number) = %q, want 5551234", got)
		}
	})

	t.Run("type mismatch replaces outright", func(t *testing.T) {
		base := Fields{"call": "none"}
		out := base.Overlay(Fields{
			"call": map[string]any{"active": true},
		})

		call, ok := out["call"].(map[string]any)
		if !ok {
			t.Fatalf("call = %T, want map", out["call"])
		}
		if call["active"] != true {
			t.Errorf("call.active = %v, want true", call["active"])
		}
	})

	t.Run("never removes keys", func(t *testing.T) {
		base := Fields{"a": 1, "b": 2}
		out := base.Overlay(Fields{"a": 10})

		if _, ok := out["b"]; !ok {
			t.Error("key b was removed by overlay")
		}
	})

	t.Run("overlay on nil base", func(t *testing.T) {
		var base Fields
		out := base.Overlay(Fields{"state": "Idle"})

		if out["state"] != "Idle" {
			t.Errorf("state = %v, want Idle", out["state"])
		}
	})

	t.Run("base is not mutated", func(t *testing.T) {
		base := Fields{
			"wifi": map[string]any{"rssi": float64(-60)},
		}
		_ = base.Overlay(Fields{
			"wifi": map[string]any{"rssi": float64(-45)},
		})

		if base["wifi"].(map[string]any)["rssi"] != float64(-60) {
			t.Error("overlay mutated the base fields")
		}
	})
}

func TestFields_Getters(t *testing.T) {
	f := Fields{
		"status": map[string]any{
			"state": "Idle",
			"wifi": map[string]any{
				"connected": true,
				"rssi":      float64(-52),
			},
		},
	}

	if got := f.getString("status", "state"); got != "Idle" {
		t.Errorf("getString = %q, want Idle", got)
	}
	if got := f.getBool("status", "wifi", "connected"); !got {
		t.Error("getBool = false, want true")
	}
	if got := f.getInt("status", "wifi", "rssi"); got != -52 {
		t.Errorf("getInt = %d, want -52", got)
	}

	// Missing and mistyped paths return zero values
	if got := f.getString("status", "missing"); got != "" {
		t.Errorf("getString on missing = %q, want empty", got)
	}
	if got := f.getInt("status", "state"); got != 0 {
		t.Errorf("getInt on string = %d, want 0", got)
	}
	if got := f.getBool("status", "wifi", "rssi", "deeper"); got {
		t.Error("getBool through scalar = true, want false")
	}
}
