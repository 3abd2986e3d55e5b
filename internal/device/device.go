// Package device defines the capability contract every supported
// Qardio device type implements, plus the static registry that maps a
// device-type name to its constructor. Adding a device type means
// registering a new plugin; the shared engine does not change.
package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"qardioctl/internal/ble"
	"qardioctl/internal/gatt"
	"qardioctl/internal/measure"
)

var (
	// ErrUnsupported means the device type cannot perform the operation.
	ErrUnsupported = errors.New("device: operation not supported")
	// ErrUnknownType means no plugin is registered under the name.
	ErrUnknownType = errors.New("device: unknown device type")
)

// Plugin is the capability set of one device module.
type Plugin interface {
	// Discover connects if needed and returns the GATT catalog.
	Discover(ctx context.Context) (*gatt.Catalog, error)
	// Read reads a characteristic by UUID (short or 128-bit form).
	Read(ctx context.Context, uuid string) ([]byte, error)
	// Write writes raw bytes to a characteristic.
	Write(ctx context.Context, uuid string, data []byte) error
	// Measure performs one measurement cycle and returns its record.
	Measure(ctx context.Context, opts measure.Options) (*measure.Record, error)
	// Battery returns the battery percentage.
	Battery(ctx context.Context) (int, error)
	// DeviceInfo reads the Device Information Service fields.
	DeviceInfo(ctx context.Context) (map[string]string, error)
	// Features returns the device's supported-feature description.
	Features(ctx context.Context) (map[string]any, error)
	// StartKeepAlive begins periodic link-keeping reads.
	StartKeepAlive(interval time.Duration)
	// Close releases the device session.
	Close() error
}

// Deps carries everything a plugin needs from its environment.
type Deps struct {
	Manager        *ble.Manager
	Device         ble.Device
	ScanTimeout    time.Duration
	MeasureTimeout time.Duration
	Retry          ble.RetryPolicy
}

// Factory builds a plugin instance for one configured device.
type Factory func(Deps) Plugin

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a device-type constructor under name. Called from
// plugin package init; duplicate names are a programmer error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("device: Register called twice for %q", name))
	}
	registry[name] = factory
}

// New resolves a device-type name to a plugin instance.
func New(name string, deps Deps) (Plugin, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownType, name, Types())
	}
	return factory(deps), nil
}

// Types lists the registered device-type names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
