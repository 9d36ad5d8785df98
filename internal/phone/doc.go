// Package phone defines the domain model for the tsuryphone device.
//
// This package manages:
//   - Fields: the raw JSON state document with deep-copy and overlay merge
//   - Snapshot: an immutable point-in-time view of device state
//   - Typed accessors for well-known status and stats fields
//   - Action names accepted by the device's /action endpoint
//   - Ring pattern parsing and validation
//   - The snapshot repository backed by SQLite
//
// Snapshots are immutable: every merge produces a new Snapshot and the
// previous one remains valid for any reader still holding it. This is what
// lets the coordinator hand out state without locking readers.
package phone
