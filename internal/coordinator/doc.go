// Package coordinator owns the in-memory picture of a phone device and
// decides when to refresh it.
//
// # Data Flow
//
// Two sources feed the snapshot: periodic HTTP polls of the device's
// status and stats endpoints, and JSON deltas pushed over the device's
// WebSocket. Both funnel through a single mutex so merges never interleave;
// readers always see a complete snapshot from some point in time.
//
// # Refresh Scheduling
//
// Run drives the poll loop. The normal cadence is Policy.PollInterval.
// After an action succeeds the coordinator switches to Policy.FastInterval
// for Policy.FastCycles polls, so the UI catches the device's reaction
// quickly, then falls back to the normal cadence. A new action while the
// fast window is open re-arms the full window.
//
// # Availability
//
// The device counts as available while the WebSocket stream is connected,
// or while consecutive poll failures stay below Policy.FailureThreshold.
// An unavailable device keeps its last snapshot; stale data is better than
// no data. Poll and merge failures never propagate to callers reading
// state; only action errors do.
package coordinator
