package mqtt

import "fmt"

// Topic prefixes for the adapter's MQTT surface.
//
// All device topics use the scheme: tsuryphone/{device}/{category}[/...]
const (
	// TopicPrefix is the base for all adapter topics.
	TopicPrefix = "tsuryphone"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "tsuryphone/system"
)

// Topics provides builders for the adapter's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("hallway-phone")
//	// Returns: "tsuryphone/hallway-phone/state"
type Topics struct{}

// DeviceState returns the retained topic carrying the device's full state snapshot.
//
// Example: tsuryphone/hallway-phone/state
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefix, device)
}

// DeviceAvailability returns the retained topic carrying "online"/"offline".
//
// Example: tsuryphone/hallway-phone/availability
func (Topics) DeviceAvailability(device string) string {
	return fmt.Sprintf("%s/%s/availability", TopicPrefix, device)
}

// DeviceCommand returns the topic the adapter subscribes to for action requests.
//
// Example: tsuryphone/hallway-phone/command
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefix, device)
}

// DeviceAck returns the topic for command acknowledgements.
//
// Example: tsuryphone/hallway-phone/ack
func (Topics) DeviceAck(device string) string {
	return fmt.Sprintf("%s/%s/ack", TopicPrefix, device)
}

// DeviceEvent returns the topic for device-originated events (webhooks).
//
// Example: tsuryphone/hallway-phone/event/incoming_call
func (Topics) DeviceEvent(device, event string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, device, event)
}

// SystemStatus returns the adapter's own status topic (LWT target).
//
// Example: tsuryphone/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceCommands returns a pattern matching commands for any device.
//
// Pattern: tsuryphone/+/command
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefix)
}

// AllDeviceStates returns a pattern matching state snapshots for any device.
//
// Pattern: tsuryphone/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefix)
}

// AllDeviceEvents returns a pattern matching all events for one device.
//
// Pattern: tsuryphone/hallway-phone/event/+
func (Topics) AllDeviceEvents(device string) string {
	return fmt.Sprintf("%s/%s/event/+", TopicPrefix, device)
}

// AllTopics returns a pattern matching all adapter topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: tsuryphone/#
func (Topics) AllTopics() string {
	return "tsuryphone/#"
}
