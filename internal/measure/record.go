package measure

import (
	"log/slog"
	"time"

	"qardioctl/internal/ble"
	"qardioctl/internal/codec"
)

// Outcome is the terminal result of one measurement attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// AbortReason explains an aborted measurement.
type AbortReason string

const (
	AbortVendor   AbortReason = "vendor-signaled"
	AbortTimeout  AbortReason = "timeout"
	AbortDecode   AbortReason = "decode-error"
	AbortOverrun  AbortReason = "overrun"
	AbortLinkLost AbortReason = "link-lost"
	AbortCanceled AbortReason = "canceled"
)

// Record is the final outcome of one measurement attempt. The engine
// hands it to the caller and keeps no reference; persisting it is the
// caller's business.
type Record struct {
	Device      ble.Device         `json:"device"`
	Outcome     Outcome            `json:"outcome"`
	AbortReason AbortReason        `json:"abort_reason,omitempty"`
	Values      *codec.Measurement `json:"values,omitempty"`
	Conditions  []string           `json:"conditions,omitempty"`
	Battery     int                `json:"battery,omitempty"`
	Taken       time.Time          `json:"taken"`
}

// assembleCompleted builds the record for a finished cycle: battery
// read, full decode of the final measurement frame, capture timestamp.
func assembleCompleted(dev ble.Device, values codec.Measurement, battery func() (int, error)) *Record {
	rec := &Record{
		Device:  dev,
		Outcome: OutcomeCompleted,
		Values:  &values,
		Taken:   time.Now(),
	}
	if values.Status != nil {
		rec.Conditions = codec.StatusConditions(*values.Status)
	}
	if battery != nil {
		if level, err := battery(); err == nil {
			rec.Battery = level
		} else {
			slog.Warn("battery read failed", "device", dev.Address, "error", err)
		}
	}
	return rec
}

// assembleAborted builds the record for an aborted cycle. Values stay
// empty; the reason is the only payload.
func assembleAborted(dev ble.Device, reason AbortReason) *Record {
	return &Record{
		Device:      dev,
		Outcome:     OutcomeAborted,
		AbortReason: reason,
		Taken:       time.Now(),
	}
}
