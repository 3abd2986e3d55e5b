package measure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qardioctl/internal/ble"
	"qardioctl/internal/codec"
	"qardioctl/internal/gatt"
)

// DefaultTimeout is the inactivity budget: the cycle aborts when no
// frame of any subscribed kind arrives within it.
const DefaultTimeout = 90 * time.Second

// Options configures one measurement run.
type Options struct {
	// ControlUUID is the vendor control point characteristic.
	ControlUUID string
	// Timeout is the per-frame inactivity budget; DefaultTimeout when zero.
	Timeout time.Duration
	// Progress, when set, is invoked with each new phase. It runs on
	// the run loop, never on the transport callback.
	Progress func(Phase)
	// OnReading, when set, receives intermediate cuff readings as they
	// stream in during the cycle.
	OnReading func(codec.Measurement)
	// Battery reads the battery percentage for the final record.
	Battery func() (int, error)
}

// machine holds the single in-flight phase value. Nothing else writes it.
type machine struct {
	phase    Phase
	progress func(Phase)
}

func (m *machine) to(next Phase) bool {
	p, ok := transition(m.phase, next)
	if !ok || p == m.phase {
		return false
	}
	m.phase = p
	if m.progress != nil {
		m.progress(p)
	}
	return true
}

// Run executes one measurement cycle on an established session. It
// subscribes the measurement and control characteristics, writes the
// activation command, and consumes notifications until the cycle
// reaches a terminal phase. Decode failures and timeouts resolve to an
// aborted record rather than an error: a physical measurement in
// flight must end in a reportable outcome. Run returns an error only
// when the cycle could not be started at all.
func Run(ctx context.Context, session *ble.Session, catalog *gatt.Catalog, disp *gatt.Dispatcher, opts Options) (*Record, error) {
	if opts.ControlUUID == "" {
		return nil, fmt.Errorf("measure: control point UUID not set")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	measChar, err := catalog.Characteristic(gatt.UUIDBloodPressureMeasurement)
	if err != nil {
		return nil, err
	}
	ctrlChar, err := catalog.Characteristic(opts.ControlUUID)
	if err != nil {
		return nil, err
	}

	measSub, err := disp.Subscribe(measChar)
	if err != nil {
		return nil, fmt.Errorf("measure: subscribe measurement: %w", err)
	}
	ctrlSub, err := disp.Subscribe(ctrlChar)
	if err != nil {
		if uerr := disp.Unsubscribe(measSub); uerr != nil {
			slog.Warn("unsubscribe measurement failed", "error", uerr)
		}
		return nil, fmt.Errorf("measure: subscribe control: %w", err)
	}

	// Both unsubscribes run on every exit path, each attempted even if
	// the other fails. Leaked subscriptions outlive the cycle silently;
	// a failed unsubscribe at least gets logged.
	cleanedUp := false
	cleanup := func() {
		if cleanedUp {
			return
		}
		cleanedUp = true
		if err := disp.Unsubscribe(measSub); err != nil {
			slog.Warn("unsubscribe measurement failed", "error", err)
		}
		if err := disp.Unsubscribe(ctrlSub); err != nil {
			slog.Warn("unsubscribe control failed", "error", err)
		}
	}
	defer cleanup()

	if err := ctrlChar.Write(codec.StartMeasurement); err != nil {
		return nil, fmt.Errorf("measure: activate: %w", err)
	}

	dev := session.Device()
	m := &machine{phase: PhaseIdle, progress: opts.Progress}
	m.to(PhaseInflating)

	abort := func(reason AbortReason) *Record {
		m.to(PhaseAborted)
		cleanup()
		slog.Info("measurement aborted", "device", dev.Address, "reason", reason)
		return assembleAborted(dev, reason)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(timeout)
	}

	for {
		select {
		case <-ctx.Done():
			return abort(AbortCanceled), nil

		case <-session.Lost():
			return abort(AbortLinkLost), nil

		case <-timer.C:
			return abort(AbortTimeout), nil

		case frame, ok := <-ctrlSub.Frames():
			if !ok {
				return abort(AbortOverrun), nil
			}
			rearm()
			ev := codec.DecodeVendorFrame(frame.Data)
			if ev.Kind != codec.EventPhaseChange {
				slog.Debug("unrecognized control frame", "device", dev.Address, "raw", fmt.Sprintf("% x", ev.Raw))
				continue
			}
			switch ev.Phase {
			case codec.VendorInflating:
				m.to(PhaseInflating)
			case codec.VendorMeasuring:
				m.to(PhaseMeasuring)
			case codec.VendorDeflating:
				m.to(PhaseDeflating)
			case codec.VendorAborted:
				return abort(AbortVendor), nil
			case codec.VendorCompleted:
				// Confirmation only: the cycle completes on the
				// status-flagged measurement frame, which carries the
				// values this frame lacks.
				slog.Debug("vendor completion frame", "device", dev.Address, "phase", m.phase)
			}

		case frame, ok := <-measSub.Frames():
			if !ok {
				return abort(AbortOverrun), nil
			}
			rearm()
			if isImplicitAbort(frame.Data) {
				// The cuff reports arm movement on the measurement
				// characteristic instead of the control point.
				return abort(AbortVendor), nil
			}
			values, err := codec.DecodeBloodPressure(frame.Data)
			if err != nil {
				slog.Warn("measurement frame decode failed", "device", dev.Address, "error", err)
				return abort(AbortDecode), nil
			}
			if values.HasStatus() {
				if m.to(PhaseCompleted) {
					cleanup()
					slog.Info("measurement completed", "device", dev.Address,
						"systolic", values.Systolic.Value, "diastolic", values.Diastolic.Value)
					return assembleCompleted(dev, values, opts.Battery), nil
				}
				continue
			}
			if opts.OnReading != nil {
				opts.OnReading(values)
			}
		}
	}
}

// isImplicitAbort matches the firmware's arm-movement abort frame,
// which arrives on the measurement characteristic with a 0x04 0xFF
// prefix instead of a valid flags byte.
func isImplicitAbort(data []byte) bool {
	return len(data) >= 5 && data[0] == 0x04 && data[1] == 0xFF
}
