// Package arm implements the QardioArm blood-pressure cuff plugin.
package arm

import (
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"

	"qardioctl/internal/codec"
	"qardioctl/internal/device"
	"qardioctl/internal/gatt"
	"qardioctl/internal/measure"
)

// ControlPointUUID is the vendor characteristic used to start a
// measurement and receive phase notifications.
const ControlPointUUID = "583cb5b3-875d-40ed-9098-c39eb0c1983d"

//go:embed uuids.yaml
var vendorTable []byte

func init() {
	if err := gatt.RegisterVendorTable(vendorTable); err != nil {
		panic("arm: vendor uuid table invalid: " + err.Error())
	}
	device.Register("arm", New)
}

// Plugin drives a QardioArm cuff through the shared engine.
type Plugin struct {
	*device.Base
}

// New builds the arm plugin.
func New(deps device.Deps) device.Plugin {
	return &Plugin{Base: device.NewBase(deps)}
}

// Measure runs one full cuff cycle and returns its record.
func (p *Plugin) Measure(ctx context.Context, opts measure.Options) (*measure.Record, error) {
	if err := p.Ensure(ctx); err != nil {
		return nil, err
	}
	opts.ControlUUID = ControlPointUUID
	if opts.Timeout <= 0 {
		opts.Timeout = p.Deps().MeasureTimeout
	}
	if opts.Battery == nil {
		opts.Battery = func() (int, error) { return p.Battery(ctx) }
	}
	return measure.Run(ctx, p.Session(), p.Catalog(), p.Dispatcher(), opts)
}

// Features reads the Blood Pressure Feature bitmask and expands it.
func (p *Plugin) Features(ctx context.Context) (map[string]any, error) {
	raw, err := p.Read(ctx, gatt.UUIDBloodPressureFeature)
	if err != nil {
		return nil, err
	}
	var mask uint16
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("blood pressure feature: empty value")
	case 1:
		mask = uint16(raw[0])
	default:
		mask = binary.LittleEndian.Uint16(raw)
	}
	return map[string]any{
		"bitmask":   mask,
		"supported": codec.FeatureNames(mask),
	}, nil
}
