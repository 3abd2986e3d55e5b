//go:build linux

package ble

import "tinygo.org/x/bluetooth"

// systemAdapter selects the named BlueZ adapter, or hci0 when unset.
func systemAdapter(name string) *bluetooth.Adapter {
	if name == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(name)
}
