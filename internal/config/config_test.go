package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !strings.HasSuffix(cfg.StatePath, filepath.Join("qardioctl", "state.json")) {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: debug
state_path: ~/measurements/state.json
devices:
  arm:
    address: "5C:D6:1F:00:AA:01"
    adapter: hci1
    scan_timeout: 10
    measure_timeout: 120
    poll_interval: 30
    retry_attempts: 5
    retry_max_wait: 60
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if strings.HasPrefix(cfg.StatePath, "~") {
		t.Errorf("StatePath tilde not expanded: %q", cfg.StatePath)
	}

	arm := cfg.Device("arm")
	if arm.Address != "5C:D6:1F:00:AA:01" {
		t.Errorf("arm.Address = %q", arm.Address)
	}
	if arm.Adapter != "hci1" {
		t.Errorf("arm.Adapter = %q", arm.Adapter)
	}
	if got := arm.ScanTimeoutDuration(); got != 10*time.Second {
		t.Errorf("ScanTimeoutDuration() = %v", got)
	}
	if got := arm.MeasureTimeoutDuration(); got != 120*time.Second {
		t.Errorf("MeasureTimeoutDuration() = %v", got)
	}
	if got := arm.PollIntervalDuration(); got != 30*time.Second {
		t.Errorf("PollIntervalDuration() = %v", got)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.StatePath == "" {
		t.Error("StatePath default not applied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Load() on missing file should fail")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"empty state path", func(c *Config) { c.StatePath = "" }},
		{"device without address", func(c *Config) {
			c.Devices["arm"] = DeviceConfig{}
		}},
		{"negative scan timeout", func(c *Config) {
			c.Devices["arm"] = DeviceConfig{Address: "AA:BB:CC:DD:EE:FF", ScanTimeout: -1}
		}},
		{"negative retry attempts", func(c *Config) {
			c.Devices["arm"] = DeviceConfig{Address: "AA:BB:CC:DD:EE:FF", RetryAttempts: -1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestDeviceUnknownType(t *testing.T) {
	cfg := Default()
	dev := cfg.Device("core")
	if dev.Address != "" {
		t.Errorf("Device(core) = %+v, want zero value", dev)
	}
}
