// ha-tsuryphone - Home Assistant adapter for the TsuryPhone device
//
// This is the main entry point for the adapter. It keeps a live copy of
// the phone's state by combining a WebSocket delta stream with periodic
// HTTP polling, persists snapshots across restarts, and exposes the
// result over MQTT and a local HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/Tsury/ha-tsuryphone/migrations"

	"github.com/Tsury/ha-tsuryphone/internal/api"
	"github.com/Tsury/ha-tsuryphone/internal/coordinator"
	"github.com/Tsury/ha-tsuryphone/internal/device"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/config"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/database"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/logging"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/mqtt"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
	"github.com/Tsury/ha-tsuryphone/internal/platform"
	"github.com/Tsury/ha-tsuryphone/internal/stream"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ha-tsuryphone",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open snapshot database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device HTTP client
	dev, err := device.New(device.Config{
		Host:    cfg.Device.Host,
		Port:    cfg.Device.Port,
		Timeout: cfg.Device.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating device client: %w", err)
	}
	dev.SetLogger(log)
	log.Info("device client ready", "base_url", dev.BaseURL())

	// State coordinator
	coord, err := coordinator.New(dev, coordinator.Policy{
		PollInterval:     cfg.Polling.Interval,
		FastInterval:     cfg.Polling.FastInterval,
		FastCycles:       cfg.Polling.FastCycles,
		FailureThreshold: cfg.Polling.FailureThreshold,
		ActionTimeout:    cfg.Action.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	coord.SetLogger(log)
	coord.SetRepository(phone.NewSQLiteSnapshotRepository(db.DB), cfg.Device.Name)

	// Restore the last persisted snapshot so consumers see state before
	// the first successful poll. A restore failure is not fatal: the
	// first poll rebuilds everything.
	if loadErr := coord.LoadStored(ctx); loadErr != nil {
		log.Warn("stored snapshot not restored", "error", loadErr)
	} else {
		log.Info("stored snapshot restored", "device", cfg.Device.Name)
	}

	// WebSocket delta stream
	listener, err := stream.NewListener(stream.Config{
		URL:            fmt.Sprintf("ws://%s:%d%s", cfg.Device.Host, cfg.Device.Port, cfg.Stream.Path),
		InitialBackoff: cfg.Stream.InitialBackoff,
		MaxBackoff:     cfg.Stream.MaxBackoff,
		PingInterval:   cfg.Stream.PingInterval,
		PongTimeout:    cfg.Stream.PongTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating stream listener: %w", err)
	}
	listener.SetLogger(log)
	listener.SetOnDelta(coord.MergeDelta)
	listener.SetOnStateChange(func(s stream.State) {
		coord.SetStreamHealth(s == stream.StateConnected)
	})
	if startErr := listener.Start(ctx); startErr != nil {
		return fmt.Errorf("starting stream listener: %w", startErr)
	}
	defer func() {
		log.Info("stopping stream listener")
		if closeErr := listener.Close(); closeErr != nil {
			log.Error("error closing stream listener", "error", closeErr)
		}
	}()
	log.Info("stream listener started", "path", cfg.Stream.Path)

	// Register this adapter's URL with the device so it can deliver
	// webhook events. Failure is not fatal: polling still covers state.
	if cfg.Webhook.ServerURL != "" {
		if hookErr := dev.ConfigureWebhookServer(ctx, cfg.Webhook.ServerURL); hookErr != nil {
			log.Warn("webhook registration failed", "server_url", cfg.Webhook.ServerURL, "error", hookErr)
		} else {
			log.Info("webhook server registered", "server_url", cfg.Webhook.ServerURL)
		}
	}

	// MQTT bridge (optional)
	var bridge *platform.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		bridge, err = platform.NewBridge(platform.Options{
			DeviceName:  cfg.Device.Name,
			MQTT:        mqttClient,
			Coordinator: coord,
			QoS:         byte(cfg.MQTT.QoS),
			Logger:      log,
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		log.Info("MQTT bridge started", "device", cfg.Device.Name)
	} else {
		log.Info("MQTT bridge disabled")
	}

	// Local HTTP API (optional)
	if cfg.API.Enabled {
		// An untyped nil keeps the optional sink truly absent when MQTT
		// is disabled.
		var events api.EventSink
		if bridge != nil {
			events = bridge
		}

		server, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			Logger:      log,
			Coordinator: coord,
			Events:      events,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	// Prime the snapshot before entering the refresh loop. A failed
	// first poll is tolerated: the device may simply be offline.
	if refreshErr := coord.RefreshCycle(ctx); refreshErr != nil {
		log.Warn("initial refresh failed", "error", refreshErr)
	}

	log.Info("initialisation complete, entering refresh loop")

	// Run blocks until ctx is cancelled, driving the poll schedule.
	if runErr := coord.Run(ctx); runErr != nil {
		return fmt.Errorf("refresh loop: %w", runErr)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (if enabled)
	// 2. MQTT bridge, then MQTT client (if enabled)
	// 3. Stream listener
	// 4. Database

	log.Info("ha-tsuryphone stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TSURYPHONE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TSURYPHONE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
