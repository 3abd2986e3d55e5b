package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Flag bits of the Blood Pressure Measurement characteristic (2a35).
const (
	flagUnitKPa    = 0x01
	flagTimestamp  = 0x02
	flagPulseRate  = 0x04
	flagMeasStatus = 0x10
)

// ErrTruncated reports a payload shorter than its flags byte implies.
var ErrTruncated = errors.New("codec: truncated payload")

// Measurement is a fully decoded Blood Pressure Measurement value.
// Optional fields are nil when the corresponding flag bit is clear.
type Measurement struct {
	Flags        byte
	Unit         string // "mmHg" or "kPa"
	Systolic     SFloat
	Diastolic    SFloat
	MeanArterial SFloat
	Timestamp    *time.Time
	PulseRate    *SFloat
	Status       *uint16
}

// HasStatus reports whether the measurement-status field was present.
// The device sends the status field only on its final frame of a
// measurement cycle.
func (m Measurement) HasStatus() bool { return m.Flags&flagMeasStatus != 0 }

// DecodeBloodPressure decodes a Blood Pressure Measurement payload.
// Fields follow the flags byte positionally: systolic, diastolic, mean
// arterial pressure, then timestamp, pulse rate, and measurement status
// as selected by the flags. A payload shorter than the flags imply
// yields ErrTruncated, never a partial Measurement.
func DecodeBloodPressure(data []byte) (Measurement, error) {
	if len(data) < 1 {
		return Measurement{}, fmt.Errorf("%w: missing flags byte", ErrTruncated)
	}
	flags := data[0]
	offset := 1

	take := func(n int, field string) ([]byte, error) {
		if len(data) < offset+n {
			return nil, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, field, n, len(data)-offset)
		}
		b := data[offset : offset+n]
		offset += n
		return b, nil
	}

	m := Measurement{Flags: flags, Unit: "mmHg"}
	if flags&flagUnitKPa != 0 {
		m.Unit = "kPa"
	}

	for _, f := range []struct {
		name string
		dst  *SFloat
	}{
		{"systolic", &m.Systolic},
		{"diastolic", &m.Diastolic},
		{"mean arterial pressure", &m.MeanArterial},
	} {
		b, err := take(2, f.name)
		if err != nil {
			return Measurement{}, err
		}
		*f.dst = DecodeSFloat(binary.LittleEndian.Uint16(b))
	}

	if flags&flagTimestamp != 0 {
		b, err := take(7, "timestamp")
		if err != nil {
			return Measurement{}, err
		}
		ts := decodeDateTime(b)
		m.Timestamp = &ts
	}

	if flags&flagPulseRate != 0 {
		b, err := take(2, "pulse rate")
		if err != nil {
			return Measurement{}, err
		}
		pulse := DecodeSFloat(binary.LittleEndian.Uint16(b))
		m.PulseRate = &pulse
	}

	if flags&flagMeasStatus != 0 {
		b, err := take(2, "measurement status")
		if err != nil {
			return Measurement{}, err
		}
		status := binary.LittleEndian.Uint16(b)
		m.Status = &status
	}

	return m, nil
}

// decodeDateTime decodes the 7-byte BLE Date Time structure.
func decodeDateTime(b []byte) time.Time {
	year := int(binary.LittleEndian.Uint16(b[0:2]))
	return time.Date(year, time.Month(b[2]), int(b[3]), int(b[4]), int(b[5]), int(b[6]), 0, time.Local)
}

// Measurement status bits, per the Blood Pressure Profile.
var statusConditions = []struct {
	bit  uint16
	name string
}{
	{0, "body movement"},
	{1, "cuff too loose"},
	{2, "irregular pulse"},
	{3, "pulse rate out of range"},
}

// StatusConditions expands a measurement-status bitmask into the names
// of the conditions the device flagged.
func StatusConditions(status uint16) []string {
	var out []string
	for _, c := range statusConditions {
		if status&(1<<c.bit) != 0 {
			out = append(out, c.name)
		}
	}
	return out
}
