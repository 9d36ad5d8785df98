package phone

// Action names accepted by the device's POST /action endpoint.
const (
	ActionCall            = "call"
	ActionCallCustom      = "call_custom"
	ActionHangup          = "hangup"
	ActionRingPattern     = "ring_pattern"
	ActionDND             = "dnd"
	ActionDNDSchedule     = "dnd_schedule"
	ActionQuickDialAdd    = "quick_dial_add"
	ActionQuickDialRemove = "quick_dial_remove"
	ActionBlockedAdd      = "blocked_add"
	ActionBlockedRemove   = "blocked_remove"
	ActionWebhookAdd      = "webhook_add"
	ActionWebhookRemove   = "webhook_remove"
	ActionCallWaiting     = "call_waiting"
	ActionRefresh         = "refresh"
	ActionMaintenance     = "maintenance"
	ActionReset           = "reset"
	ActionClearLogs       = "clear_logs"
)

// knownActions is the set of action names the device accepts.
var knownActions = map[string]struct{}{
	ActionCall:            {},
	ActionCallCustom:      {},
	ActionHangup:          {},
	ActionRingPattern:     {},
	ActionDND:             {},
	ActionDNDSchedule:     {},
	ActionQuickDialAdd:    {},
	ActionQuickDialRemove: {},
	ActionBlockedAdd:      {},
	ActionBlockedRemove:   {},
	ActionWebhookAdd:      {},
	ActionWebhookRemove:   {},
	ActionCallWaiting:     {},
	ActionRefresh:         {},
	ActionMaintenance:     {},
	ActionReset:           {},
	ActionClearLogs:       {},
}

// KnownAction reports whether name is an action the device accepts.
// Unknown names are rejected before reaching the device.
func KnownAction(name string) bool {
	_, ok := knownActions[name]
	return ok
}
