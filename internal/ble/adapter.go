// Package ble provides the transport abstraction and connection
// management for Qardio BLE peripherals. The concrete backend wraps
// tinygo.org/x/bluetooth; tests substitute mock implementations.
package ble

import (
	"context"
	"strings"
)

// Property is a bitmask of the GATT operations a characteristic allows.
type Property uint8

const (
	PropertyRead Property = 1 << iota
	PropertyWrite
	PropertyWriteWithoutResponse
	PropertyNotify
	PropertyIndicate
)

// Has reports whether all bits of q are set.
func (p Property) Has(q Property) bool { return p&q == q }

// Notifiable reports whether the characteristic can push value changes.
func (p Property) Notifiable() bool { return p&(PropertyNotify|PropertyIndicate) != 0 }

func (p Property) String() string {
	var parts []string
	for _, f := range []struct {
		bit  Property
		name string
	}{
		{PropertyRead, "read"},
		{PropertyWrite, "write"},
		{PropertyWriteWithoutResponse, "write-without-response"},
		{PropertyNotify, "notify"},
		{PropertyIndicate, "indicate"},
	} {
		if p.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ",")
}

// Device identifies one configured peripheral. Identity is the
// address plus the host adapter it is reached through.
type Device struct {
	Name    string // display name, e.g. "arm"
	Address string // MAC address (BlueZ) or platform UUID (CoreBluetooth)
	Adapter string // host adapter, e.g. "hci0"; empty for the default
}

// Characteristic is one GATT characteristic on a live connection.
type Characteristic interface {
	// UUID returns the characteristic UUID in canonical 128-bit form.
	UUID() string
	// Properties returns the allowed operations, or zero when the
	// backend cannot report them.
	Properties() Property
	// Read performs a GATT read and returns the value bytes.
	Read() ([]byte, error)
	// Write sends data to the characteristic.
	Write(data []byte) error
	// EnableNotifications registers cb for value-changed events.
	// A nil cb disables notifications.
	EnableNotifications(cb func(data []byte)) error
}

// Service is a GATT service and its characteristics in discovery order.
type Service struct {
	UUID            string
	Characteristics []Characteristic
}

// Connection is an open GATT client session with a peripheral.
type Connection interface {
	// DiscoverServices enumerates the full GATT table.
	DiscoverServices() ([]Service, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the link drops.
	OnDisconnect(cb func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan looks for an advertisement from the given address until it
	// is seen or ctx expires. It returns true when the address was
	// observed; false with a nil error means the scan window elapsed
	// without seeing it.
	Scan(ctx context.Context, address string) (bool, error)
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
