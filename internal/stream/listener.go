package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for the device WebSocket.
const (
	// defaultDialTimeout is the maximum time for a single dial attempt.
	defaultDialTimeout = 10 * time.Second

	// defaultInitialBackoff is the delay before the first reconnect attempt.
	defaultInitialBackoff = time.Second

	// defaultMaxBackoff caps the reconnect delay.
	defaultMaxBackoff = 30 * time.Second

	// defaultPingInterval is how often the listener pings the device.
	defaultPingInterval = 20 * time.Second

	// defaultPongTimeout is how long to wait for frames or pongs before the
	// connection is considered dead.
	defaultPongTimeout = 45 * time.Second

	// maxFrameSize bounds a single delta frame. The firmware sends small
	// JSON objects; anything larger indicates a broken peer.
	maxFrameSize = 1 << 16
)

// State describes the listener's connection state.
type State int

const (
	// StateDisconnected is the initial state, and the state after Close.
	StateDisconnected State = iota

	// StateConnecting is the first dial.
	StateConnecting

	// StateConnected means frames are flowing.
	StateConnected

	// StateReconnecting means the connection was lost and retries are in
	// progress.
	StateReconnecting
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds listener configuration.
type Config struct {
	// URL is the full WebSocket URL, e.g. "ws://192.168.1.50/ws".
	URL string

	// InitialBackoff is the delay before the first reconnect attempt.
	// Default: 1 second.
	InitialBackoff time.Duration

	// MaxBackoff caps the reconnect delay. Default: 30 seconds.
	MaxBackoff time.Duration

	// PingInterval is how often to ping the device. Default: 20 seconds.
	PingInterval time.Duration

	// PongTimeout is the read deadline extension granted per pong.
	// Default: 45 seconds.
	PongTimeout time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	FramesRx        uint64
	FramesDropped   uint64 // Frames dropped because they failed to decode
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	State           State
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Listener maintains a WebSocket connection to the device and delivers
// decoded delta frames.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks are invoked from the read goroutine; keep them short or
//     hand off to another goroutine.
type Listener struct {
	cfg Config

	connMu sync.RWMutex
	conn   *websocket.Conn
	state  State

	started atomic.Bool

	callbackMu    sync.RWMutex
	onDelta       func(phone.Fields)
	onStateChange func(State)

	done *closeOnce
	wg   sync.WaitGroup

	loggerMu sync.RWMutex
	logger   Logger

	framesRx        atomic.Uint64
	framesDropped   atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// NewListener creates a listener for the given device URL. The connection
// is not opened until Start.
func NewListener(cfg Config) (*Listener, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q (use ws or wss)", ErrInvalidURL, u.Scheme)
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}

	return &Listener{
		cfg:   cfg,
		state: StateDisconnected,
		done:  newCloseOnce(),
	}, nil
}

// SetOnDelta sets the callback for decoded delta frames.
func (l *Listener) SetOnDelta(callback func(phone.Fields)) {
	l.callbackMu.Lock()
	l.onDelta = callback
	l.callbackMu.Unlock()
}

// SetOnStateChange sets the callback for connection state transitions.
// It fires once per transition, after the new state is visible via State().
func (l *Listener) SetOnStateChange(callback func(State)) {
	l.callbackMu.Lock()
	l.onStateChange = callback
	l.callbackMu.Unlock()
}

// SetLogger sets the logger for this listener.
func (l *Listener) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// State returns the current connection state.
func (l *Listener) State() State {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.state
}

// IsConnected returns true if frames are currently flowing.
func (l *Listener) IsConnected() bool {
	return l.State() == StateConnected
}

// Stats returns current operational statistics.
func (l *Listener) Stats() Stats {
	return Stats{
		FramesRx:        l.framesRx.Load(),
		FramesDropped:   l.framesDropped.Load(),
		ErrorsTotal:     l.errorsTotal.Load(),
		ReconnectsTotal: l.reconnectsTotal.Load(),
		LastActivity:    time.Unix(l.lastActivity.Load(), 0),
		State:           l.State(),
	}
}

// Start connects to the device and begins the receive loop. It returns
// once the loop goroutine is running; the first dial happens inside the
// loop so a dead device does not block startup. Reconnection continues
// until Close or ctx cancellation.
func (l *Listener) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if l.isClosed() {
		return ErrClosed
	}

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Close stops the listener and closes the connection. Safe to call
// multiple times.
func (l *Listener) Close() error {
	l.done.Close()

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close() //nolint:errcheck
		l.conn = nil
	}
	l.connMu.Unlock()

	l.wg.Wait()
	l.setState(StateDisconnected)
	l.logDebug("listener closed")
	return nil
}

// run is the connection lifecycle loop: dial, read until failure, back off,
// repeat.
func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	backoff := l.cfg.InitialBackoff
	first := true

	for {
		if l.isClosed() || ctx.Err() != nil {
			return
		}

		if first {
			l.setState(StateConnecting)
		} else {
			l.setState(StateReconnecting)
		}

		conn, err := l.dial(ctx)
		if err != nil {
			l.errorsTotal.Add(1)
			l.logWarn("dial failed", "url", l.cfg.URL, "backoff", backoff.String(), "error", err)
			if !l.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, l.cfg.MaxBackoff)
			first = false
			continue
		}

		l.connMu.Lock()
		l.conn = conn
		l.connMu.Unlock()

		if !first {
			l.reconnectsTotal.Add(1)
		}
		backoff = l.cfg.InitialBackoff
		first = false
		l.lastActivity.Store(time.Now().Unix())
		l.setState(StateConnected)
		l.logInfo("device stream connected", "url", l.cfg.URL)

		l.readLoop(ctx, conn)

		l.connMu.Lock()
		if l.conn == conn {
			l.conn = nil
		}
		l.connMu.Unlock()
		conn.Close() //nolint:errcheck

		if l.isClosed() || ctx.Err() != nil {
			return
		}
		l.logInfo("device stream lost, will reconnect")
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: defaultDialTimeout,
	}
	conn, resp, err := dialer.DialContext(dialCtx, l.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", l.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", l.cfg.URL, err)
	}
	return conn, nil
}

// readLoop reads frames until the connection fails or shutdown is
// signalled. A ping ticker keeps the connection alive; pongs extend the
// read deadline.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.PongTimeout)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		l.lastActivity.Store(time.Now().Unix())
		return conn.SetReadDeadline(time.Now().Add(l.cfg.PongTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-l.done.Done():
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(l.cfg.PingInterval)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					// Read loop will fail shortly; nothing more to do here.
					return
				}
			}
		}
	}()

	for {
		if l.isClosed() || ctx.Err() != nil {
			return
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !l.isClosed() && ctx.Err() == nil {
				l.errorsTotal.Add(1)
				l.logWarn("read failed", "error", err)
			}
			return
		}

		l.lastActivity.Store(time.Now().Unix())

		if msgType != websocket.TextMessage {
			continue
		}

		var delta phone.Fields
		if err := json.Unmarshal(data, &delta); err != nil {
			l.framesDropped.Add(1)
			l.logWarn("malformed delta frame dropped", "error", err, "bytes", len(data))
			continue
		}

		l.framesRx.Add(1)
		l.deliver(delta)
	}
}

// deliver hands a decoded delta to the callback, recovering panics so a
// misbehaving consumer cannot kill the read loop.
func (l *Listener) deliver(delta phone.Fields) {
	l.callbackMu.RLock()
	callback := l.onDelta
	l.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.errorsTotal.Add(1)
			l.logError("delta callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(delta)
}

// setState updates the state and notifies the state change callback when
// the state actually changed.
func (l *Listener) setState(next State) {
	l.connMu.Lock()
	prev := l.state
	l.state = next
	l.connMu.Unlock()

	if prev == next {
		return
	}

	l.callbackMu.RLock()
	callback := l.onStateChange
	l.callbackMu.RUnlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logError("state change callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(next)
}

// sleep waits for the given duration and returns false if shutdown or
// context cancellation interrupted the wait.
func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.done.Done():
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *Listener) isClosed() bool {
	select {
	case <-l.done.Done():
		return true
	default:
		return false
	}
}

// nextBackoff doubles the backoff up to the cap.
func nextBackoff(current, maximum time.Duration) time.Duration {
	next := current * 2
	if next > maximum {
		next = maximum
	}
	return next
}

func (l *Listener) logDebug(msg string, keysAndValues ...any) {
	if logger := l.log(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (l *Listener) logInfo(msg string, keysAndValues ...any) {
	if logger := l.log(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (l *Listener) logWarn(msg string, keysAndValues ...any) {
	if logger := l.log(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (l *Listener) logError(msg string, err error) {
	if logger := l.log(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (l *Listener) log() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}
