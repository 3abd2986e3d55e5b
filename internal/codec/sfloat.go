// Package codec decodes the binary value formats spoken by Qardio BLE
// devices: IEEE-11073 SFLOAT fields, the standard Blood Pressure
// Measurement characteristic, and the vendor control-point frames.
// All decoders are pure functions.
package codec

import "math"

// Special identifies the reserved IEEE-11073 SFLOAT mantissa patterns.
type Special int

const (
	SpecialNone Special = iota
	SpecialNaN
	SpecialNRes // "not at this time"
	SpecialPosInfinity
	SpecialNegInfinity
)

func (s Special) String() string {
	switch s {
	case SpecialNone:
		return "none"
	case SpecialNaN:
		return "NaN"
	case SpecialNRes:
		return "NRes"
	case SpecialPosInfinity:
		return "+Inf"
	case SpecialNegInfinity:
		return "-Inf"
	default:
		return "invalid"
	}
}

// SFloat is a decoded IEEE-11073 16-bit short float. When Special is
// anything other than SpecialNone, Value carries no meaning.
type SFloat struct {
	Value   float64
	Special Special
}

// IsSpecial reports whether the SFloat holds a reserved pattern rather
// than a numeric value.
func (f SFloat) IsSpecial() bool { return f.Special != SpecialNone }

// DecodeSFloat decodes a little-endian IEEE-11073 SFLOAT: a 4-bit
// two's-complement exponent over a 12-bit two's-complement mantissa,
// base 10. The reserved mantissa patterns decode to their special
// values instead of numbers; DecodeSFloat never fails.
func DecodeSFloat(raw uint16) SFloat {
	mantissa := int(raw & 0x0fff)

	switch mantissa {
	case 0x07ff, 0x0801: // NaN and the reserved pattern next to it
		return SFloat{Special: SpecialNaN}
	case 0x0800:
		return SFloat{Special: SpecialNRes}
	case 0x07fe:
		return SFloat{Special: SpecialPosInfinity}
	case 0x0802:
		return SFloat{Special: SpecialNegInfinity}
	}

	if mantissa >= 0x0800 {
		mantissa -= 0x1000
	}
	exponent := int(raw >> 12)
	if exponent >= 0x0008 {
		exponent -= 0x0010
	}
	return SFloat{Value: float64(mantissa) * math.Pow(10, float64(exponent))}
}
