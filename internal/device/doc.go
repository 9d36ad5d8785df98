// Package device provides the HTTP client for the tsuryphone device's REST API.
//
// The device exposes a small HTTP surface on the local network:
//
//	GET  /status     current phone state (call, wifi, dnd flags)
//	GET  /stats      lifetime counters (calls, talk time, resets)
//	GET  /dnd        do-not-disturb configuration
//	GET  /phonebook  quick dial entries
//	GET  /blocked    blocked numbers
//	GET  /webhooks   configured webhook shortcuts
//	POST /action     invoke an action ({"action": name, ...params})
//	POST /webhooks   register this adapter's callback URL
//
// Fetch retrieves /status and /stats in parallel and degrades gracefully:
// it fails only when both requests fail, and flags partial results so the
// caller can merge what arrived.
//
// Errors are classified (Classify) so callers can distinguish timeouts and
// connection failures from protocol problems and device-side rejections.
package device
