package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tsury/ha-tsuryphone/internal/coordinator"
	"github.com/Tsury/ha-tsuryphone/internal/device"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/mqtt"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single action invocation triggered over MQTT.
	commandTimeout = 10 * time.Second

	// availabilityPollInterval is how often the bridge re-checks device
	// availability between snapshot updates.
	availabilityPollInterval = 5 * time.Second

	defaultQoS byte = 1
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Coordinator is the subset of the coordinator the bridge needs.
type Coordinator interface {
	CurrentState() phone.Snapshot
	Health() coordinator.Health
	RequestAction(ctx context.Context, action string, params map[string]any) (coordinator.PendingAction, error)
	Subscribe() (<-chan phone.Snapshot, func())
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// DeviceName identifies the device in topic paths.
	DeviceName string

	// MQTT is the broker client.
	MQTT MQTTClient

	// Coordinator supplies state and executes actions.
	Coordinator Coordinator

	// QoS for all publishes and the command subscription. Default: 1.
	QoS byte

	// Logger is optional structured logging.
	Logger Logger
}

// Bridge publishes device state to MQTT and executes commands received
// from it.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	deviceName string
	mqttClient MQTTClient
	coord      Coordinator
	qos        byte
	topics     mqtt.Topics

	// lastAvailability caches the last published availability payload so
	// transitions publish exactly once.
	availMu          sync.Mutex
	lastAvailability string

	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.DeviceName == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	qos := opts.QoS
	if qos == 0 {
		qos = defaultQoS
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		deviceName: opts.DeviceName,
		mqttClient: opts.MQTT,
		coord:      opts.Coordinator,
		qos:        qos,
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}, nil
}

// Start subscribes to the command topic and begins state fan-out.
func (b *Bridge) Start(ctx context.Context) error {
	commandTopic := b.topics.DeviceCommand(b.deviceName)
	if err := b.mqttClient.Subscribe(commandTopic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	// Seed the retained topics so late joiners see something immediately.
	b.publishAvailability(b.coord.Health().Available)
	if snap := b.coord.CurrentState(); !snap.IsZero() {
		b.publishState(snap)
	}

	snapshots, cancel := b.coord.Subscribe()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		b.fanOut(ctx, snapshots)
	}()

	b.logInfo("platform bridge started", "device", b.deviceName)
	return nil
}

// Stop gracefully shuts down the bridge and marks the device offline.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()

		if b.mqttClient.IsConnected() {
			topic := b.topics.DeviceAvailability(b.deviceName)
			if err := b.mqttClient.Publish(topic, []byte(AvailabilityOffline), b.qos, true); err != nil {
				b.logWarn("offline publish failed", "error", err)
			}
		}

		b.logInfo("platform bridge stopped")
	})
}

// PublishEvent publishes a device-originated event. The api package calls
// this when the device delivers a webhook.
func (b *Bridge) PublishEvent(event string, payload map[string]any) error {
	msg := EventMessage{
		Device:    b.deviceName,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	topic := b.topics.DeviceEvent(b.deviceName, event)
	if err := b.mqttClient.Publish(topic, data, b.qos, false); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	b.logDebug("event published", "event", event, "topic", topic)
	return nil
}

// fanOut republishes every snapshot and tracks availability transitions.
func (b *Bridge) fanOut(ctx context.Context, snapshots <-chan phone.Snapshot) {
	ticker := time.NewTicker(availabilityPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			b.publishAvailability(b.coord.Health().Available)
			b.publishState(snap)
		case <-ticker.C:
			// Availability can flip without a snapshot arriving, e.g.
			// when polls start failing.
			b.publishAvailability(b.coord.Health().Available)
		}
	}
}

func (b *Bridge) publishState(snap phone.Snapshot) {
	msg := StateMessage{
		Device:    b.deviceName,
		Timestamp: snap.UpdatedAt().UTC(),
		Available: b.coord.Health().Available,
		State:     snap.Fields(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.logError("encode state failed", err)
		return
	}

	topic := b.topics.DeviceState(b.deviceName)
	if err := b.mqttClient.Publish(topic, data, b.qos, true); err != nil {
		b.logWarn("state publish failed", "topic", topic, "error", err)
	}
}

func (b *Bridge) publishAvailability(available bool) {
	payload := AvailabilityOffline
	if available {
		payload = AvailabilityOnline
	}

	b.availMu.Lock()
	if b.lastAvailability == payload {
		b.availMu.Unlock()
		return
	}
	b.lastAvailability = payload
	b.availMu.Unlock()

	topic := b.topics.DeviceAvailability(b.deviceName)
	if err := b.mqttClient.Publish(topic, []byte(payload), b.qos, true); err != nil {
		b.logWarn("availability publish failed", "topic", topic, "error", err)
		// Unpublished transition must retry on the next check.
		b.availMu.Lock()
		b.lastAvailability = ""
		b.availMu.Unlock()
		return
	}

	b.logInfo("availability changed", "device", b.deviceName, "availability", payload)
}

// handleCommand decodes and executes a command, always answering on the
// ack topic.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logWarn("malformed command dropped", "topic", topic, "error", err)
		b.publishAck(AckMessage{
			CommandID: uuid.New().String(),
			Timestamp: time.Now().UTC(),
			Status:    AckFailed,
			Error:     &AckError{Code: ErrCodeInvalidPayload, Message: err.Error()},
		})
		return nil
	}

	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	pending, err := b.coord.RequestAction(ctx, cmd.Action, cmd.Params)
	ack := AckMessage{
		CommandID: cmd.ID,
		Action:    cmd.Action,
		Timestamp: time.Now().UTC(),
		Status:    AckAccepted,
	}

	if err != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: errorCode(err), Message: err.Error()}
		b.logWarn("command failed", "id", cmd.ID, "action", cmd.Action, "error", err)
	} else {
		b.logInfo("command executed", "id", cmd.ID, "action", cmd.Action, "pending_id", pending.ID)
	}

	b.publishAck(ack)
	return nil
}

func (b *Bridge) publishAck(ack AckMessage) {
	data, err := json.Marshal(ack)
	if err != nil {
		b.logError("encode ack failed", err)
		return
	}

	topic := b.topics.DeviceAck(b.deviceName)
	if err := b.mqttClient.Publish(topic, data, b.qos, false); err != nil {
		b.logWarn("ack publish failed", "topic", topic, "error", err)
	}
}

// errorCode maps an action error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrUnknownAction):
		return ErrCodeUnknownAction
	case errors.Is(err, device.ErrDeviceRejected):
		return ErrCodeRejected
	case errors.Is(err, device.ErrTimeout), errors.Is(err, device.ErrConnect):
		return ErrCodeUnreachable
	default:
		return ErrCodeUnreachable
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.log(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.log(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.log(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.log(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}
