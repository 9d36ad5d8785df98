package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the tsuryphone adapter.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Polling  PollingConfig  `yaml:"polling"`
	Stream   StreamConfig   `yaml:"stream"`
	Action   ActionConfig   `yaml:"action"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the phone device this instance synchronises with.
type DeviceConfig struct {
	// Host is the device's IP address or hostname on the local network.
	Host string `yaml:"host"`

	// Port is the device's HTTP port.
	Port int `yaml:"port"`

	// Name is the identifier used in MQTT topics and the snapshot store.
	Name string `yaml:"name"`

	// Timeout is the per-request HTTP timeout for device calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig controls the pull side of state synchronisation.
type PollingConfig struct {
	// Interval is the normal refresh cadence.
	// Default: 60s
	Interval time.Duration `yaml:"interval"`

	// FastInterval is the refresh cadence immediately after an action.
	// Default: 1s
	FastInterval time.Duration `yaml:"fast_interval"`

	// FastCycles is how many fast refreshes run after an action before
	// the cadence returns to Interval.
	// Default: 3
	FastCycles int `yaml:"fast_cycles"`

	// FailureThreshold is the number of consecutive poll failures after
	// which polling is considered down.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold"`
}

// StreamConfig controls the WebSocket event stream.
type StreamConfig struct {
	// Path is the WebSocket endpoint path on the device.
	Path string `yaml:"path"`

	// InitialBackoff is the first reconnect delay after a stream failure.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the reconnect delay.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// PingInterval is how often pings are sent on an idle connection.
	// Default: 20s
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongTimeout is the read deadline granted per pong. It must exceed
	// PingInterval or an idle connection dies before its first ping.
	// Default: 45s
	PongTimeout time.Duration `yaml:"pong_timeout"`
}

// ActionConfig controls action requests sent to the device.
type ActionConfig struct {
	// Timeout bounds a single action POST. Actions are never retried.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// WebhookConfig controls device-to-adapter event delivery.
type WebhookConfig struct {
	// ServerURL is the externally reachable base URL of this adapter's API.
	// When set, it is pushed to the device at startup so the device can
	// deliver webhook events. Leave empty to skip registration.
	ServerURL string `yaml:"server_url"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains local HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite snapshot store settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TSURYPHONE_SECTION_KEY
// For example: TSURYPHONE_DEVICE_HOST, TSURYPHONE_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:    80,
			Name:    "tsuryphone",
			Timeout: 10 * time.Second,
		},
		Polling: PollingConfig{
			Interval:         60 * time.Second,
			FastInterval:     time.Second,
			FastCycles:       3,
			FailureThreshold: 3,
		},
		Stream: StreamConfig{
			Path:           "/ws",
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			PingInterval:   20 * time.Second,
			PongTimeout:    45 * time.Second,
		},
		Action: ActionConfig{
			Timeout: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tsuryphone-adapter",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8098,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/tsuryphone.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TSURYPHONE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("TSURYPHONE_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}
	if v := os.Getenv("TSURYPHONE_DEVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Device.Port = port
		}
	}
	if v := os.Getenv("TSURYPHONE_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}

	// Webhook
	if v := os.Getenv("TSURYPHONE_WEBHOOK_SERVER_URL"); v != "" {
		cfg.Webhook.ServerURL = v
	}

	// MQTT
	if v := os.Getenv("TSURYPHONE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TSURYPHONE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TSURYPHONE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("TSURYPHONE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Database
	if v := os.Getenv("TSURYPHONE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.Host == "" {
		errs = append(errs, "device.host is required")
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.Device.Name == "" {
		errs = append(errs, "device.name is required")
	}

	// Polling validation
	if c.Polling.Interval <= 0 {
		errs = append(errs, "polling.interval must be positive")
	}
	if c.Polling.FastInterval <= 0 {
		errs = append(errs, "polling.fast_interval must be positive")
	}
	if c.Polling.FastInterval > c.Polling.Interval {
		errs = append(errs, "polling.fast_interval must not exceed polling.interval")
	}
	if c.Polling.FastCycles < 0 {
		errs = append(errs, "polling.fast_cycles must not be negative")
	}
	if c.Polling.FailureThreshold < 1 {
		errs = append(errs, "polling.failure_threshold must be at least 1")
	}

	// Stream validation
	if !strings.HasPrefix(c.Stream.Path, "/") {
		errs = append(errs, "stream.path must start with /")
	}
	if c.Stream.InitialBackoff <= 0 {
		errs = append(errs, "stream.initial_backoff must be positive")
	}
	if c.Stream.MaxBackoff < c.Stream.InitialBackoff {
		errs = append(errs, "stream.max_backoff must be >= stream.initial_backoff")
	}
	if c.Stream.PongTimeout <= c.Stream.PingInterval {
		errs = append(errs, "stream.pong_timeout must exceed stream.ping_interval")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
