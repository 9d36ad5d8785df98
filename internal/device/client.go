package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/logging"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

const (
	defaultPort    = 80
	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds response reads from the device. The firmware
	// never sends more than a few KB; a corrupt length should not allocate
	// unbounded memory.
	maxResponseBytes = 1 << 20
)

// Config describes how to reach a device on the local network.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client is an HTTP client for a single phone device. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	loggerMu sync.RWMutex
	logger   *logging.Logger
}

// FetchResult holds the outcome of a combined status and stats fetch.
// Partial is set when exactly one of the two endpoints failed; the
// surviving section is still usable.
type FetchResult struct {
	Status  phone.Fields
	Stats   phone.Fields
	Partial bool
}

// New creates a device client. Host is required; port and timeout fall
// back to defaults when unset.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrConnect)
	}

	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, port),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.Default(),
	}, nil
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger *logging.Logger) {
	if logger == nil {
		return
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) log() *logging.Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// BaseURL returns the device's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch retrieves /status and /stats in parallel. It fails only when both
// endpoints fail; a single failure yields a partial result so that stale
// or half-fresh data keeps flowing.
func (c *Client) Fetch(ctx context.Context) (FetchResult, error) {
	var (
		wg        sync.WaitGroup
		status    phone.Fields
		stats     phone.Fields
		statusErr error
		statsErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		status, statusErr = c.getSection(ctx, "/status")
	}()
	go func() {
		defer wg.Done()
		stats, statsErr = c.getSection(ctx, "/stats")
	}()
	wg.Wait()

	if statusErr != nil && statsErr != nil {
		return FetchResult{}, fmt.Errorf("fetch status: %w (stats: %v)", statusErr, statsErr)
	}

	result := FetchResult{Status: status, Stats: stats}
	if statusErr != nil || statsErr != nil {
		result.Partial = true
		failed, err := "/status", statusErr
		if statsErr != nil {
			failed, err = "/stats", statsErr
		}
		c.log().Warn("partial device fetch",
			"endpoint", failed,
			"error", err)
	}
	return result, nil
}

// FetchStatus retrieves the /status section alone.
func (c *Client) FetchStatus(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/status")
}

// FetchStats retrieves the /stats section alone.
func (c *Client) FetchStats(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/stats")
}

// FetchDND retrieves the do-not-disturb configuration.
func (c *Client) FetchDND(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/dnd")
}

// FetchPhonebook retrieves the stored phonebook entries.
func (c *Client) FetchPhonebook(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/phonebook")
}

// FetchBlocked retrieves the blocked number list.
func (c *Client) FetchBlocked(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/blocked")
}

// FetchWebhooks retrieves the webhook configuration.
func (c *Client) FetchWebhooks(ctx context.Context) (phone.Fields, error) {
	return c.getSection(ctx, "/webhooks")
}

// onDemandSections are the sections the device serves on request rather
// than through the combined poll.
var onDemandSections = map[string]struct{}{
	"dnd":       {},
	"phonebook": {},
	"blocked":   {},
	"webhooks":  {},
}

// FetchSection retrieves a named on-demand section. Valid names are dnd,
// phonebook, blocked and webhooks.
func (c *Client) FetchSection(ctx context.Context, name string) (phone.Fields, error) {
	if _, ok := onDemandSections[name]; !ok {
		return nil, fmt.Errorf("%w: unknown section %q", ErrProtocol, name)
	}
	return c.getSection(ctx, "/"+name)
}

// Invoke sends an action to the device. Params may be nil. Actions are
// never retried; the caller decides how to react to a failure. A non-2xx
// response maps to ErrDeviceRejected with the device's message attached.
func (c *Client) Invoke(ctx context.Context, action string, params map[string]any) error {
	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["action"] = action

	resp, err := c.postJSON(ctx, "/action", body)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", action, err)
	}
	if resp != nil {
		c.log().Debug("action accepted", "action", action)
	}
	return nil
}

// ConfigureWebhookServer tells the device where to deliver webhook events.
func (c *Client) ConfigureWebhookServer(ctx context.Context, serverURL string) error {
	if serverURL == "" {
		return fmt.Errorf("%w: server url is required", ErrDeviceRejected)
	}

	_, err := c.postJSON(ctx, "/webhooks", map[string]any{
		"server_url": serverURL,
	})
	if err != nil {
		return fmt.Errorf("configure webhook server: %w", err)
	}

	c.log().Info("webhook server configured", "server_url", serverURL)
	return nil
}

func (c *Client) getSection(ctx context.Context, path string) (phone.Fields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrConnect, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, wrapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrProtocol, path, resp.StatusCode)
	}

	var fields phone.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrProtocol, path, err)
	}
	return fields, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body map[string]any) (phone.Fields, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrConnect, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, wrapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := deviceMessage(data)
		if msg != "" {
			return nil, fmt.Errorf("%w: POST %s returned %d: %s", ErrDeviceRejected, path, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: POST %s returned %d", ErrDeviceRejected, path, resp.StatusCode)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var fields phone.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		// The device acknowledged the request; a garbled body is not
		// worth failing the action over.
		return nil, nil
	}
	return fields, nil
}

// deviceMessage extracts a human-readable error from a device response body.
func deviceMessage(data []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ""
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return parsed.Message
}
