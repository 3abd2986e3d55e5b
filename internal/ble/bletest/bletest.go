// Package bletest provides in-memory fakes for the ble transport
// interfaces, used by engine tests across packages.
package bletest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"qardioctl/internal/ble"
)

// Characteristic is a scriptable fake GATT characteristic.
type Characteristic struct {
	CharUUID string
	Props    ble.Property

	mu         sync.Mutex
	value      []byte
	readErr    error
	writeErr   error
	notifyErr  error
	reads      int
	writes     [][]byte
	callback   func([]byte)
	subscribes int
}

// NewCharacteristic creates a fake characteristic with the given UUID
// and property set.
func NewCharacteristic(uuid string, props ble.Property) *Characteristic {
	return &Characteristic{CharUUID: strings.ToLower(uuid), Props: props}
}

func (c *Characteristic) UUID() string             { return c.CharUUID }
func (c *Characteristic) Properties() ble.Property { return c.Props }

func (c *Characteristic) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.readErr != nil {
		return nil, c.readErr
	}
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out, nil
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *Characteristic) EnableNotifications(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.callback = cb
	if cb != nil {
		c.subscribes++
	}
	return nil
}

// SetValue sets the bytes returned by Read.
func (c *Characteristic) SetValue(v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = append([]byte(nil), v...)
}

// FailReads makes Read return err.
func (c *Characteristic) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailWrites makes Write return err.
func (c *Characteristic) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// FailSubscribes makes EnableNotifications return err.
func (c *Characteristic) FailSubscribes(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyErr = err
}

// Reads returns the number of Read calls the characteristic has served.
func (c *Characteristic) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Writes returns a copy of everything written to the characteristic.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Notifying reports whether a notification callback is registered.
func (c *Characteristic) Notifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Notify delivers a notification to the current subscriber, if any.
func (c *Characteristic) Notify(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Connection is a fake GATT connection built from fake characteristics.
type Connection struct {
	Services []ble.Service

	mu           sync.Mutex
	discoverErr  error
	disconnectCb func()
	disconnected bool
}

// NewConnection groups characteristics into a single service per call.
func NewConnection(services ...ble.Service) *Connection {
	return &Connection{Services: services}
}

// Svc is a convenience constructor for a fake service.
func Svc(uuid string, chars ...*Characteristic) ble.Service {
	s := ble.Service{UUID: strings.ToLower(uuid)}
	for _, c := range chars {
		s.Characteristics = append(s.Characteristics, c)
	}
	return s
}

func (c *Connection) DiscoverServices() ([]ble.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	return c.Services, nil
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// FailDiscovery makes DiscoverServices return err.
func (c *Connection) FailDiscovery(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverErr = err
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// DropLink triggers the registered disconnect callback.
func (c *Connection) DropLink() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Adapter is a fake BLE adapter hosting one known device.
type Adapter struct {
	Address string

	mu         sync.Mutex
	conn       *Connection
	enableErr  error
	scanErr    error
	connectErr error
	absent     bool
	connects   int
}

// NewAdapter creates a fake adapter that reports the given address as
// present and hands out conn on Connect.
func NewAdapter(address string, conn *Connection) *Adapter {
	return &Adapter{Address: address, conn: conn}
}

func (a *Adapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enableErr
}

func (a *Adapter) Scan(ctx context.Context, address string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scanErr != nil {
		return false, a.scanErr
	}
	if a.absent || !strings.EqualFold(address, a.Address) {
		return false, nil
	}
	return true, nil
}

func (a *Adapter) Connect(ctx context.Context, address string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	if !strings.EqualFold(address, a.Address) {
		return nil, fmt.Errorf("bletest: unknown address %q", address)
	}
	a.connects++
	return a.conn, nil
}

// SetConnection replaces the connection handed out by Connect.
func (a *Adapter) SetConnection(conn *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = conn
}

// SetAbsent controls whether scans observe the device.
func (a *Adapter) SetAbsent(absent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.absent = absent
}

// FailEnable makes Enable return err.
func (a *Adapter) FailEnable(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enableErr = err
}

// FailConnects makes Connect return err.
func (a *Adapter) FailConnects(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

// Connects returns how many connections were handed out.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// Compile-time interface checks.
var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
