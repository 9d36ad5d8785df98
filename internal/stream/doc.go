// Package stream maintains the WebSocket connection to a phone device and
// delivers the JSON delta frames the firmware pushes when its state changes.
//
// # Connection Lifecycle
//
// A Listener moves through four states:
//
//   - Disconnected: initial state, or after Close
//   - Connecting: first dial in progress
//   - Connected: frames are flowing
//   - Reconnecting: connection lost, retrying with backoff
//
// Reconnection uses exponential backoff (doubling from the initial interval
// up to a cap) and never gives up; only Close or context cancellation stops
// it. The backoff resets after every successful connect.
//
// # Frames
//
// Each text frame is a JSON object describing a partial state change. Frames
// that fail to decode are logged and dropped; the connection stays up. A
// decoded delta is handed to the OnDelta callback; panics in the callback
// are recovered and logged so a misbehaving consumer cannot kill the read
// loop.
//
// # Liveness
//
// The listener pings the device at a fixed interval and extends the read
// deadline on every pong. A missed pong surfaces as a read error, which
// triggers reconnection.
package stream
