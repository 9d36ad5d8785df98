package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("TSURYPHONE_CONFIG")
	defer os.Setenv("TSURYPHONE_CONFIG", originalEnv)

	os.Setenv("TSURYPHONE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDeviceHost verifies run fails when the device host is unset.
func TestRun_MissingDeviceHost(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
device:
  host: ""
  name: test-phone

mqtt:
  enabled: false

api:
  enabled: false

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("TSURYPHONE_CONFIG")
	defer os.Setenv("TSURYPHONE_CONFIG", originalEnv)
	os.Setenv("TSURYPHONE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty device host")
	}
}

// TestRun_StartupAndShutdown runs the adapter with MQTT and the API
// disabled against an unreachable device, then cancels. Polling failures
// are tolerated, so run should exit cleanly on cancellation.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
device:
  host: "127.0.0.1"
  port: 18099
  name: test-phone
  timeout: 500ms

polling:
  interval: 60s

mqtt:
  enabled: false

api:
  enabled: false

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("TSURYPHONE_CONFIG")
	defer os.Setenv("TSURYPHONE_CONFIG", originalEnv)
	os.Setenv("TSURYPHONE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() = %v, want clean shutdown", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("TSURYPHONE_CONFIG")
	defer os.Setenv("TSURYPHONE_CONFIG", originalEnv)

	os.Unsetenv("TSURYPHONE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("TSURYPHONE_CONFIG")
	defer os.Setenv("TSURYPHONE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("TSURYPHONE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
