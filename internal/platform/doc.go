// Package platform bridges the coordinator onto MQTT so home-automation
// platforms can consume phone state and send actions without speaking the
// device's HTTP protocol.
//
// # Topics
//
// Per device (see internal/infrastructure/mqtt for the builders):
//
//   - tsuryphone/{device}/state         retained full snapshot
//   - tsuryphone/{device}/availability  retained "online"/"offline"
//   - tsuryphone/{device}/command       inbound action requests
//   - tsuryphone/{device}/ack           command acknowledgements
//   - tsuryphone/{device}/event/{name}  device-originated events
//
// # Commands
//
// A command is a JSON object {"id", "action", "params"}. The bridge hands
// it to the coordinator and answers on the ack topic with the command's
// id, so callers can correlate. A missing id gets one generated.
//
// # State Fan-Out
//
// The bridge subscribes to coordinator snapshots and republishes each one
// retained, so late joiners immediately see current state. Availability is
// tracked separately and only published on transitions.
package platform
