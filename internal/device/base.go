package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"qardioctl/internal/ble"
	"qardioctl/internal/gatt"
	"qardioctl/internal/measure"
)

// disFields are the Device Information Service characteristics read by
// DeviceInfo, in presentation order.
var disFields = []struct {
	uuid  string
	label string
}{
	{gatt.UUIDManufacturerName, "manufacturer"},
	{gatt.UUIDModelNumber, "model"},
	{gatt.UUIDSerialNumber, "serial"},
	{gatt.UUIDFirmwareRevision, "firmware"},
	{gatt.UUIDSoftwareRevision, "software"},
	{gatt.UUIDHardwareRevision, "hardware"},
	{gatt.UUIDSystemID, "system_id"},
	{gatt.UUIDPnPID, "pnp_id"},
}

// Base implements the engine-backed operations shared by all device
// types. Plugins embed it and override what differs.
type Base struct {
	deps Deps

	// mu protects the session state: the keep-alive goroutine is alive
	// while Ensure swaps sessions on reconnect.
	mu        sync.Mutex
	session   *ble.Session
	catalog   *gatt.Catalog
	disp      *gatt.Dispatcher
	keepAlive time.Duration
}

// NewBase wires a Base for the given dependencies.
func NewBase(deps Deps) *Base {
	if deps.ScanTimeout <= 0 {
		deps.ScanTimeout = 5 * time.Second
	}
	if deps.MeasureTimeout <= 0 {
		deps.MeasureTimeout = measure.DefaultTimeout
	}
	return &Base{deps: deps}
}

// Ensure opens a session and discovers the GATT catalog if there is no
// live session. A lost link discards the stale catalog and dispatcher
// before reconnecting; characteristic handles never outlive their
// connection. Keep-alive, once requested, is re-armed on every new
// session.
func (b *Base) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil && b.session.Alive() {
		return nil
	}
	if b.session != nil {
		b.session.Close()
		b.session = nil
		b.catalog = nil
		b.disp = nil
	}

	session, err := b.deps.Manager.Connect(ctx, b.deps.Device, b.deps.ScanTimeout, b.deps.Retry)
	if err != nil {
		return err
	}
	catalog, err := gatt.Discover(session.Conn())
	if err != nil {
		session.Close()
		return err
	}
	b.session = session
	b.catalog = catalog
	b.disp = gatt.NewDispatcher(0)
	armKeepAlive(session, catalog, b.keepAlive)
	return nil
}

// Session returns the live session; valid only after Ensure.
func (b *Base) Session() *ble.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Catalog returns the current GATT catalog; valid only after Ensure.
func (b *Base) Catalog() *gatt.Catalog {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.catalog
}

// Dispatcher returns the notification dispatcher for the current
// session; valid only after Ensure.
func (b *Base) Dispatcher() *gatt.Dispatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disp
}

// Deps returns the plugin's environment.
func (b *Base) Deps() Deps { return b.deps }

func (b *Base) Discover(ctx context.Context) (*gatt.Catalog, error) {
	if err := b.Ensure(ctx); err != nil {
		return nil, err
	}
	return b.Catalog(), nil
}

func (b *Base) Read(ctx context.Context, uuid string) ([]byte, error) {
	if err := b.Ensure(ctx); err != nil {
		return nil, err
	}
	ch, err := b.Catalog().Characteristic(uuid)
	if err != nil {
		return nil, err
	}
	return ch.Read()
}

func (b *Base) Write(ctx context.Context, uuid string, data []byte) error {
	if err := b.Ensure(ctx); err != nil {
		return err
	}
	ch, err := b.Catalog().Characteristic(uuid)
	if err != nil {
		return err
	}
	return ch.Write(data)
}

// Measure is unsupported unless the device type overrides it.
func (b *Base) Measure(ctx context.Context, opts measure.Options) (*measure.Record, error) {
	return nil, fmt.Errorf("%s: measure: %w", b.deps.Device.Name, ErrUnsupported)
}

func (b *Base) Battery(ctx context.Context) (int, error) {
	data, err := b.Read(ctx, gatt.UUIDBatteryLevel)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("battery level: empty value")
	}
	return int(data[0]), nil
}

func (b *Base) DeviceInfo(ctx context.Context) (map[string]string, error) {
	if err := b.Ensure(ctx); err != nil {
		return nil, err
	}
	info := make(map[string]string, len(disFields))
	for _, f := range disFields {
		ch, err := b.Catalog().Characteristic(f.uuid)
		if err != nil {
			continue // not every firmware exposes the full DIS
		}
		raw, err := ch.Read()
		if err != nil {
			return nil, fmt.Errorf("device info %s: %w", f.label, err)
		}
		info[f.label] = formatInfoValue(raw)
	}
	return info, nil
}

// Features is unsupported unless the device type overrides it.
func (b *Base) Features(ctx context.Context) (map[string]any, error) {
	return nil, fmt.Errorf("%s: features: %w", b.deps.Device.Name, ErrUnsupported)
}

// StartKeepAlive keeps the link warm with periodic battery reads, the
// lightest stable characteristic the device exposes. The interval is
// remembered so Ensure re-arms keep-alive on every reconnect.
func (b *Base) StartKeepAlive(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keepAlive = interval
	if b.session != nil {
		armKeepAlive(b.session, b.catalog, interval)
	}
}

// armKeepAlive starts the session's keep-alive ticker. The ping
// captures the session's own catalog: it must never chase the live
// field, which Ensure rewrites during a concurrent reconnect.
func armKeepAlive(session *ble.Session, catalog *gatt.Catalog, interval time.Duration) {
	if interval <= 0 {
		return
	}
	session.StartKeepAlive(interval, func() error {
		ch, err := catalog.Characteristic(gatt.UUIDBatteryLevel)
		if err != nil {
			return err
		}
		_, err = ch.Read()
		return err
	})
}

func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	b.catalog = nil
	b.disp = nil
	return err
}

// formatInfoValue renders a DIS value: printable strings verbatim,
// binary fields (System ID, PnP ID) as hex.
func formatInfoValue(raw []byte) string {
	s := strings.TrimRight(string(raw), "\x00")
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return fmt.Sprintf("%x", raw)
		}
	}
	if s == "" {
		return fmt.Sprintf("%x", raw)
	}
	return strings.TrimSpace(s)
}
