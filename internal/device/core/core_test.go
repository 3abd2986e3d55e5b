package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"qardioctl/internal/ble"
	"qardioctl/internal/ble/bletest"
	"qardioctl/internal/device"
	_ "qardioctl/internal/device/core"
	"qardioctl/internal/gatt"
	"qardioctl/internal/measure"
)

func TestCoreMeasureUnsupported(t *testing.T) {
	batt := bletest.NewCharacteristic(gatt.UUIDBatteryLevel, 0)
	batt.SetValue([]byte{0x64})
	conn := bletest.NewConnection(bletest.Svc("180f", batt))
	adapter := bletest.NewAdapter("AA:BB:CC:DD:EE:01", conn)

	p, err := device.New("core", device.Deps{
		Manager:     ble.NewManager(adapter),
		Device:      ble.Device{Name: "core", Address: "AA:BB:CC:DD:EE:01"},
		ScanTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New(core) error = %v", err)
	}
	defer p.Close()

	if _, err := p.Measure(context.Background(), measure.Options{}); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("Measure() error = %v, want ErrUnsupported", err)
	}
	// The shared engine still serves the standard services.
	level, err := p.Battery(context.Background())
	if err != nil {
		t.Fatalf("Battery() error = %v", err)
	}
	if level != 100 {
		t.Errorf("Battery() = %d, want 100", level)
	}
}
