package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("hallway-phone"), "tsuryphone/hallway-phone/state"},
		{"device availability", topics.DeviceAvailability("hallway-phone"), "tsuryphone/hallway-phone/availability"},
		{"device command", topics.DeviceCommand("hallway-phone"), "tsuryphone/hallway-phone/command"},
		{"device ack", topics.DeviceAck("hallway-phone"), "tsuryphone/hallway-phone/ack"},
		{"device event", topics.DeviceEvent("hallway-phone", "incoming_call"), "tsuryphone/hallway-phone/event/incoming_call"},
		{"system status", topics.SystemStatus(), "tsuryphone/system/status"},
		{"all device commands", topics.AllDeviceCommands(), "tsuryphone/+/command"},
		{"all device states", topics.AllDeviceStates(), "tsuryphone/+/state"},
		{"all device events", topics.AllDeviceEvents("hallway-phone"), "tsuryphone/hallway-phone/event/+"},
		{"all topics", topics.AllTopics(), "tsuryphone/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
