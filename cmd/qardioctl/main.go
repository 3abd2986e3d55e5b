package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"qardioctl/internal/ble"
	"qardioctl/internal/config"
	"qardioctl/internal/device"
	"qardioctl/internal/shell"
	"qardioctl/internal/store"

	// Device plugins register themselves at init.
	_ "qardioctl/internal/device/arm"
	_ "qardioctl/internal/device/core"
)

func main() {
	os.Exit(run())
}

func run() int {
	address := flag.String("address", "", "device MAC address (overrides config)")
	adapterName := flag.String("adapter", "", "bluetooth adapter, e.g. hci0 (overrides config)")
	configPath := flag.String("config", "", "path to config file (default: ~/.config/qardioctl/config.yaml)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return 2
	}
	devType := flag.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config validation", "error", err)
		return 1
	}
	setupLogging(cfg.LogLevel)

	devCfg := cfg.Device(devType)
	if *address != "" {
		devCfg.Address = *address
	}
	if *adapterName != "" {
		devCfg.Adapter = *adapterName
	}
	if devCfg.Address == "" {
		slog.Error("no device address: pass --address or configure devices." + devType + ".address")
		return 1
	}

	st, err := store.Load(cfg.StatePath)
	if err != nil {
		slog.Error("state", "error", err)
		return 1
	}

	retry := ble.DefaultRetryPolicy()
	if devCfg.RetryAttempts > 0 {
		retry.Attempts = devCfg.RetryAttempts
	}
	if devCfg.RetryMaxWait > 0 {
		retry.MaxBackoff = time.Duration(devCfg.RetryMaxWait) * time.Second
	}

	manager := ble.NewManager(ble.NewStackAdapter(devCfg.Adapter))
	plugin, err := device.New(devType, device.Deps{
		Manager:        manager,
		Device:         ble.Device{Name: devType, Address: devCfg.Address, Adapter: devCfg.Adapter},
		ScanTimeout:    devCfg.ScanTimeoutDuration(),
		MeasureTimeout: devCfg.MeasureTimeoutDuration(),
		Retry:          retry,
	})
	if err != nil {
		slog.Error("device", "error", err)
		return 1
	}
	defer plugin.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("connecting", "type", devType, "address", devCfg.Address)
	if _, err := plugin.Discover(ctx); err != nil {
		slog.Error("device unreachable", "address", devCfg.Address, "error", err)
		return 1
	}
	if interval := devCfg.PollIntervalDuration(); interval > 0 {
		plugin.StartKeepAlive(interval)
	}

	sh, closeShell := newShell(plugin, st)
	defer closeShell()
	if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("shell", "error", err)
		return 1
	}

	if err := st.Save(); err != nil {
		slog.Warn("saving state", "error", err)
	}
	return 0
}

// newShell builds the interactive shell on a readline editor with a
// persistent history file; a terminal that cannot enter raw mode falls
// back to plain line reading without history.
func newShell(plugin device.Plugin, st *store.Store) (*shell.Shell, func()) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      shell.Prompt,
		HistoryFile: filepath.Join(config.DefaultConfigDir(), "history"),
	})
	if err != nil {
		slog.Debug("readline unavailable", "error", err)
		return shell.New(plugin, st, os.Stdin, os.Stdout), func() {}
	}
	return shell.NewWithSource(plugin, st, readlineSource{rl}, os.Stdout), func() { rl.Close() }
}

// readlineSource adapts a readline instance to the shell's line
// source. Ctrl-C at the prompt ends the session like EOF.
type readlineSource struct {
	rl *readline.Instance
}

func (s readlineSource) ReadLine() (string, error) {
	line, err := s.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

// loadConfig loads the config from the specified path, or falls back
// to the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Info("config loaded", "path", defaultPath)
		return cfg, nil
	}

	return config.Default(), nil
}

func setupLogging(level string) {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: qardioctl [flags] <device-type>

device types: %v

flags:
`, device.Types())
	flag.PrintDefaults()
}
