package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// StackAdapter wraps tinygo.org/x/bluetooth. On Linux it talks to
// BlueZ over D-Bus; device addresses are MACs. On macOS the address
// field holds the CoreBluetooth peripheral UUID instead.
type StackAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*stackConnection // keyed by normalized address
}

// NewStackAdapter creates a BLE adapter bound to the named host
// adapter (e.g. "hci0"); an empty name selects the platform default.
func NewStackAdapter(name string) *StackAdapter {
	return &StackAdapter{
		adapter:     systemAdapter(name),
		connections: make(map[string]*stackConnection),
	}
}

func (a *StackAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// The stack fires this with connected=false when a peripheral
	// drops; route it to the matching connection's OnDisconnect.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := strings.ToLower(device.Address.String())
		a.mu.Lock()
		conn, ok := a.connections[id]
		a.mu.Unlock()
		if ok {
			conn.disconnected()
		}
	})

	return nil
}

func (a *StackAdapter) Scan(ctx context.Context, address string) (bool, error) {
	var (
		mu    sync.Mutex
		found bool
	)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !strings.EqualFold(result.Address.String(), address) {
			return
		}
		mu.Lock()
		found = true
		mu.Unlock()
		adapter.StopScan()
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return false, fmt.Errorf("ble: scan: %w", err)
	}
	return found, nil
}

func (a *StackAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// The stack's Connect blocks with its own timeout; wrap it so our
	// ctx deadline is also respected.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		conn := &stackConnection{device: result.device}

		a.mu.Lock()
		a.connections[strings.ToLower(address)] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that StackAdapter implements Adapter.
var _ Adapter = (*StackAdapter)(nil)

type stackConnection struct {
	device bluetooth.Device

	// mu protects disconnectCb: the connect handler fires on the
	// stack's event goroutine while OnDisconnect runs on ours.
	mu           sync.Mutex
	disconnectCb func()
}

func (c *stackConnection) disconnected() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *stackConnection) DiscoverServices() ([]Service, error) {
	svcs, err := c.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}

	out := make([]Service, 0, len(svcs))
	for _, svc := range svcs {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("ble: discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		s := Service{UUID: strings.ToLower(svc.UUID().String())}
		for i := range chars {
			s.Characteristics = append(s.Characteristics, &stackCharacteristic{char: chars[i]})
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *stackConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *stackConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	c.disconnectCb = cb
	c.mu.Unlock()
}

type stackCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *stackCharacteristic) UUID() string {
	return strings.ToLower(c.char.UUID().String())
}

// Properties returns zero: the stack does not surface GATT property
// flags, so the registry fills them in from its known-UUID table.
func (c *stackCharacteristic) Properties() Property { return 0 }

func (c *stackCharacteristic) Read() ([]byte, error) {
	var buf [512]byte
	n, err := c.char.Read(buf[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

func (c *stackCharacteristic) Write(data []byte) error {
	if _, err := c.char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}
	return nil
}

func (c *stackCharacteristic) EnableNotifications(cb func([]byte)) error {
	if cb == nil {
		return c.char.EnableNotifications(nil)
	}
	return c.char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}
