// Package core implements the QardioCore ECG strap plugin. Discovery,
// raw characteristic access, battery, and device info work through the
// shared engine; the real-time streaming characteristic and the USB
// dump mode are not reverse engineered, so measurement is unsupported.
package core

import (
	"context"
	"fmt"

	"qardioctl/internal/device"
	"qardioctl/internal/measure"
)

func init() {
	device.Register("core", New)
}

// Plugin exposes the engine-backed operations for a QardioCore strap.
type Plugin struct {
	*device.Base
}

// New builds the core plugin.
func New(deps device.Deps) device.Plugin {
	return &Plugin{Base: device.NewBase(deps)}
}

// Measure is unsupported: the strap's streaming protocol is unknown.
func (p *Plugin) Measure(ctx context.Context, opts measure.Options) (*measure.Record, error) {
	return nil, fmt.Errorf("qardio core: ecg streaming protocol is not reverse engineered: %w", device.ErrUnsupported)
}
