//go:build !linux

package ble

import (
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// systemAdapter returns the platform default adapter. Named adapter
// selection is a BlueZ feature.
func systemAdapter(name string) *bluetooth.Adapter {
	if name != "" {
		slog.Warn("adapter selection is only supported on Linux, using default", "adapter", name)
	}
	return bluetooth.DefaultAdapter
}
