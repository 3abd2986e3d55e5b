package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string                  `yaml:"log_level"`
	StatePath string                  `yaml:"state_path"`
	Devices   map[string]DeviceConfig `yaml:"devices"`
}

// DeviceConfig holds per-device settings, keyed by device type in the
// config file ("arm", "core").
type DeviceConfig struct {
	Address        string `yaml:"address"`
	Adapter        string `yaml:"adapter"`
	ScanTimeout    int    `yaml:"scan_timeout"`    // seconds
	MeasureTimeout int    `yaml:"measure_timeout"` // seconds
	PollInterval   int    `yaml:"poll_interval"`   // seconds, keep-alive cadence
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryMaxWait   int    `yaml:"retry_max_wait"` // seconds, backoff cap
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "qardioctl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		StatePath: filepath.Join(DefaultConfigDir(), "state.json"),
		Devices:   map[string]DeviceConfig{},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in state_path is expanded to the user's
// home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.StatePath = expandTilde(cfg.StatePath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.StatePath == "" {
		return fmt.Errorf("state_path must not be empty")
	}

	for name, dev := range c.Devices {
		if dev.Address == "" {
			return fmt.Errorf("devices.%s.address must not be empty", name)
		}
		if dev.ScanTimeout < 0 {
			return fmt.Errorf("devices.%s.scan_timeout must be >= 0", name)
		}
		if dev.MeasureTimeout < 0 {
			return fmt.Errorf("devices.%s.measure_timeout must be >= 0", name)
		}
		if dev.PollInterval < 0 {
			return fmt.Errorf("devices.%s.poll_interval must be >= 0", name)
		}
		if dev.RetryAttempts < 0 {
			return fmt.Errorf("devices.%s.retry_attempts must be >= 0", name)
		}
		if dev.RetryMaxWait < 0 {
			return fmt.Errorf("devices.%s.retry_max_wait must be >= 0", name)
		}
	}

	return nil
}

// Device returns the settings for a device type, zero-valued when the
// config file does not mention it.
func (c *Config) Device(name string) DeviceConfig {
	return c.Devices[name]
}

// ScanTimeoutDuration returns the scan timeout, or zero when unset.
func (d DeviceConfig) ScanTimeoutDuration() time.Duration {
	return time.Duration(d.ScanTimeout) * time.Second
}

// MeasureTimeoutDuration returns the measure timeout, or zero when unset.
func (d DeviceConfig) MeasureTimeoutDuration() time.Duration {
	return time.Duration(d.MeasureTimeout) * time.Second
}

// PollIntervalDuration returns the keep-alive cadence, or zero when unset.
func (d DeviceConfig) PollIntervalDuration() time.Duration {
	return time.Duration(d.PollInterval) * time.Second
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
