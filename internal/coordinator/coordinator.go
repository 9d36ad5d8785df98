package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tsury/ha-tsuryphone/internal/device"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

// Default scheduling policy values.
const (
	defaultPollInterval     = 60 * time.Second
	defaultFastInterval     = time.Second
	defaultFastCycles       = 3
	defaultFailureThreshold = 3
	defaultActionTimeout    = 10 * time.Second

	// persistTimeout bounds each best-effort snapshot save.
	persistTimeout = 5 * time.Second

	// subscriberBuffer is the channel depth per subscriber. Slow consumers
	// miss intermediate snapshots rather than blocking merges.
	subscriberBuffer = 8
)

// Policy controls refresh scheduling and availability accounting.
type Policy struct {
	// PollInterval is the normal cadence. Default: 60 seconds.
	PollInterval time.Duration

	// FastInterval is the cadence inside the post-action window.
	// Default: 1 second.
	FastInterval time.Duration

	// FastCycles is how many fast polls follow an action. Default: 3.
	FastCycles int

	// FailureThreshold is how many consecutive poll failures mark the
	// device unavailable when the stream is down. Default: 3.
	FailureThreshold int

	// ActionTimeout bounds a single action request. Default: 10 seconds.
	ActionTimeout time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.PollInterval <= 0 {
		p.PollInterval = defaultPollInterval
	}
	if p.FastInterval <= 0 {
		p.FastInterval = defaultFastInterval
	}
	if p.FastCycles <= 0 {
		p.FastCycles = defaultFastCycles
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = defaultFailureThreshold
	}
	if p.ActionTimeout <= 0 {
		p.ActionTimeout = defaultActionTimeout
	}
	return p
}

// Device is the subset of the device client the coordinator needs.
type Device interface {
	Fetch(ctx context.Context) (device.FetchResult, error)
	FetchSection(ctx context.Context, name string) (phone.Fields, error)
	Invoke(ctx context.Context, action string, params map[string]any) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Health reports the coordinator's view of device availability.
type Health struct {
	Available       bool      `json:"available"`
	StreamConnected bool      `json:"stream_connected"`
	PollFailures    int       `json:"poll_failures"`
	LastPoll        time.Time `json:"last_poll,omitempty"`
	LastPollError   string    `json:"last_poll_error,omitempty"`
	FastCyclesLeft  int       `json:"fast_cycles_left"`
}

// PendingAction identifies an action sent to the device. The ID correlates
// command requests with acknowledgements on the MQTT bridge.
type PendingAction struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
	IssuedAt time.Time      `json:"issued_at"`
}

// Coordinator merges device state from polls and stream deltas, schedules
// refreshes, and fans updated snapshots out to subscribers.
//
// All merges run under one mutex; readers get deep-copied snapshots and
// can hold them indefinitely.
type Coordinator struct {
	dev    Device
	policy Policy

	mu            sync.Mutex
	snapshot      phone.Snapshot
	streamUp      bool
	pollFailures  int
	lastPoll      time.Time
	lastPollErr   string
	fastRemaining int

	refreshCh chan struct{}

	notifyMu    sync.Mutex
	subscribers map[int]chan phone.Snapshot
	nextSubID   int

	repoMu     sync.RWMutex
	repo       phone.SnapshotRepository
	deviceName string

	pendingMu sync.Mutex
	pending   map[string]PendingAction

	loggerMu sync.RWMutex
	logger   Logger
}

// New creates a coordinator for the given device. Zero policy fields fall
// back to defaults.
func New(dev Device, policy Policy) (*Coordinator, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	return &Coordinator{
		dev:         dev,
		policy:      policy.withDefaults(),
		refreshCh:   make(chan struct{}, 1),
		subscribers: make(map[int]chan phone.Snapshot),
		pending:     make(map[string]PendingAction),
	}, nil
}

// SetLogger sets the logger for this coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SetRepository enables snapshot persistence. Saves are best-effort; a
// failing repository degrades to in-memory operation.
func (c *Coordinator) SetRepository(repo phone.SnapshotRepository, deviceName string) {
	c.repoMu.Lock()
	c.repo = repo
	c.deviceName = deviceName
	c.repoMu.Unlock()
}

// CurrentState returns the latest snapshot. The snapshot may be stale when
// the device is unavailable; check Health for freshness.
func (c *Coordinator) CurrentState() phone.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Health returns current availability accounting.
func (c *Coordinator) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Health{
		Available:       c.availableLocked(),
		StreamConnected: c.streamUp,
		PollFailures:    c.pollFailures,
		LastPoll:        c.lastPoll,
		LastPollError:   c.lastPollErr,
		FastCyclesLeft:  c.fastRemaining,
	}
}

// Available reports whether the device currently counts as reachable.
func (c *Coordinator) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked()
}

func (c *Coordinator) availableLocked() bool {
	return c.streamUp || c.pollFailures < c.policy.FailureThreshold
}

// LoadStored restores the last persisted snapshot, if any. A missing or
// unreadable snapshot is not an error worth failing startup for; callers
// log the returned error and continue with an empty snapshot.
func (c *Coordinator) LoadStored(ctx context.Context) error {
	c.repoMu.RLock()
	repo, name := c.repo, c.deviceName
	c.repoMu.RUnlock()

	if repo == nil {
		return nil
	}

	snap, err := repo.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load stored snapshot: %w", err)
	}

	c.mu.Lock()
	if c.snapshot.IsZero() {
		c.snapshot = snap
	}
	c.mu.Unlock()

	c.logInfo("restored stored snapshot", "device", name, "updated_at", snap.UpdatedAt())
	return nil
}

// RefreshCycle polls the device once and merges the result. A partial
// result updates only the sections that arrived. Failures bump the
// consecutive failure count; the previous snapshot survives untouched.
func (c *Coordinator) RefreshCycle(ctx context.Context) error {
	result, err := c.dev.Fetch(ctx)
	now := time.Now()

	if err != nil {
		c.mu.Lock()
		c.pollFailures++
		c.lastPoll = now
		c.lastPollErr = err.Error()
		failures, available := c.pollFailures, c.availableLocked()
		c.mu.Unlock()

		c.logWarn("poll failed",
			"failures", failures,
			"available", available,
			"class", device.Classify(err),
			"error", err)
		return err
	}

	c.mu.Lock()
	if result.Status != nil {
		c.snapshot = c.snapshot.ReplaceSection(phone.SectionStatus, result.Status, now)
	}
	if result.Stats != nil {
		c.snapshot = c.snapshot.ReplaceSection(phone.SectionStats, result.Stats, now)
	}
	c.pollFailures = 0
	c.lastPoll = now
	c.lastPollErr = ""
	snap := c.snapshot
	c.mu.Unlock()

	if result.Partial {
		c.logDebug("partial poll merged")
	}

	c.persist(snap)
	c.notify(snap)
	return nil
}

// RefreshSection polls one on-demand section (dnd, phonebook, blocked,
// webhooks) and merges it as a top-level section of the snapshot.
func (c *Coordinator) RefreshSection(ctx context.Context, name string) error {
	fields, err := c.dev.FetchSection(ctx, name)
	if err != nil {
		c.logWarn("section poll failed", "section", name, "error", err)
		return err
	}

	now := time.Now()
	c.mu.Lock()
	c.snapshot = c.snapshot.ReplaceSection(name, fields, now)
	snap := c.snapshot
	c.mu.Unlock()

	c.persist(snap)
	c.notify(snap)
	return nil
}

// MergeDelta merges a pushed delta into the status section. Deltas only
// ever describe status changes; stats arrive via polls.
func (c *Coordinator) MergeDelta(delta phone.Fields) {
	if len(delta) == 0 {
		return
	}

	now := time.Now()
	c.mu.Lock()
	c.snapshot = c.snapshot.Overlay(phone.SectionStatus, delta, now)
	snap := c.snapshot
	c.mu.Unlock()

	c.persist(snap)
	c.notify(snap)
}

// SetStreamHealth records whether the WebSocket stream is connected. A
// freshly connected stream clears the poll failure count: the device is
// demonstrably reachable.
func (c *Coordinator) SetStreamHealth(connected bool) {
	c.mu.Lock()
	changed := c.streamUp != connected
	c.streamUp = connected
	if connected {
		c.pollFailures = 0
	}
	available := c.availableLocked()
	c.mu.Unlock()

	if changed {
		c.logInfo("stream health changed", "connected", connected, "available", available)
	}
}

// RequestAction validates and sends an action to the device. The action is
// registered as pending for the duration of the device call and removed on
// completion, success or not. On success the fast refresh window is
// (re-)armed and an immediate poll is queued. Action errors propagate to
// the caller; they are the only errors that do.
func (c *Coordinator) RequestAction(ctx context.Context, action string, params map[string]any) (PendingAction, error) {
	if !phone.KnownAction(action) {
		return PendingAction{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	pending := PendingAction{
		ID:       uuid.New().String(),
		Action:   action,
		Params:   params,
		IssuedAt: time.Now(),
	}

	c.pendingMu.Lock()
	c.pending[pending.ID] = pending
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, pending.ID)
		c.pendingMu.Unlock()
	}()

	actionCtx, cancel := context.WithTimeout(ctx, c.policy.ActionTimeout)
	defer cancel()

	if err := c.dev.Invoke(actionCtx, action, params); err != nil {
		c.logWarn("action failed", "action", action, "id", pending.ID, "error", err)
		return pending, err
	}

	c.logInfo("action sent", "action", action, "id", pending.ID)
	c.TriggerFastRefresh()
	return pending, nil
}

// PendingActions returns a copy of the actions currently in flight.
// Concurrent requests for the same action class are all listed; the
// coordinator never deduplicates.
func (c *Coordinator) PendingActions() []PendingAction {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	out := make([]PendingAction, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	return out
}

// TriggerFastRefresh arms the fast polling window and queues an immediate
// refresh. Safe to call from any goroutine; redundant triggers coalesce.
func (c *Coordinator) TriggerFastRefresh() {
	c.mu.Lock()
	c.fastRemaining = c.policy.FastCycles
	c.mu.Unlock()

	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Subscribe registers for snapshot updates. The returned cancel function
// must be called to release the subscription. Slow consumers miss
// intermediate snapshots; the latest state is always available via
// CurrentState.
func (c *Coordinator) Subscribe() (<-chan phone.Snapshot, func()) {
	ch := make(chan phone.Snapshot, subscriberBuffer)

	c.notifyMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.notifyMu.Unlock()

	cancel := func() {
		c.notifyMu.Lock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
		c.notifyMu.Unlock()
	}
	return ch, cancel
}

// Run drives the poll loop until ctx is cancelled. Each tick runs one
// refresh cycle; the interval is FastInterval while the fast window is
// open and PollInterval otherwise.
func (c *Coordinator) Run(ctx context.Context) error {
	timer := time.NewTimer(c.nextInterval())
	defer timer.Stop()

	for {
		fromTimer := false
		select {
		case <-ctx.Done():
			return nil
		case <-c.refreshCh:
		case <-timer.C:
			fromTimer = true
		}

		if err := c.RefreshCycle(ctx); err != nil && ctx.Err() != nil {
			return nil
		}

		if fromTimer {
			c.consumeFastCycle()
		}

		if !fromTimer && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.nextInterval())
	}
}

func (c *Coordinator) nextInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fastRemaining > 0 {
		return c.policy.FastInterval
	}
	return c.policy.PollInterval
}

func (c *Coordinator) consumeFastCycle() {
	c.mu.Lock()
	if c.fastRemaining > 0 {
		c.fastRemaining--
	}
	c.mu.Unlock()
}

// notify fans the snapshot out to subscribers without blocking merges.
func (c *Coordinator) notify(snap phone.Snapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// persist saves the snapshot if a repository is configured. Failures are
// logged and swallowed; persistence never blocks state flow.
func (c *Coordinator) persist(snap phone.Snapshot) {
	c.repoMu.RLock()
	repo, name := c.repo, c.deviceName
	c.repoMu.RUnlock()

	if repo == nil || snap.IsZero() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := repo.Save(ctx, name, snap); err != nil {
		c.logWarn("snapshot save failed", "device", name, "error", err)
	}
}

func (c *Coordinator) logDebug(msg string, keysAndValues ...any) {
	if logger := c.log(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Coordinator) logInfo(msg string, keysAndValues ...any) {
	if logger := c.log(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Coordinator) logWarn(msg string, keysAndValues ...any) {
	if logger := c.log(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Coordinator) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
