package codec

import (
	"math"
	"testing"
)

func TestDecodeSFloatValues(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		{"zero", 0x0000, 0},
		{"positive integer", 0x0078, 120}, // mantissa 120, exponent 0
		{"eighty", 0x0050, 80},
		{"ninety-three", 0x005d, 93},
		{"negative mantissa", 0x0ffb, -5},
		{"exponent -1", 0xf4b0, 120},                         // 1200 * 10^-1
		{"exponent 1", 0x100c, 120},                          // 12 * 10^1
		{"max positive mantissa", 0x07fd, 2045},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeSFloat(tt.raw)
			if got.IsSpecial() {
				t.Fatalf("DecodeSFloat(%#04x) special = %v, want numeric", tt.raw, got.Special)
			}
			if math.Abs(got.Value-tt.want) > 1e-9 {
				t.Errorf("DecodeSFloat(%#04x) = %v, want %v", tt.raw, got.Value, tt.want)
			}
		})
	}
}

func TestDecodeSFloatSpecials(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want Special
	}{
		{"NaN", 0x07ff, SpecialNaN},
		{"NRes", 0x0800, SpecialNRes},
		{"+Inf", 0x07fe, SpecialPosInfinity},
		{"-Inf", 0x0802, SpecialNegInfinity},
		{"reserved maps to NaN", 0x0801, SpecialNaN},
		// Exponent bits must not affect special detection.
		{"NaN with exponent", 0x37ff, SpecialNaN},
		{"NRes with exponent", 0xf800, SpecialNRes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeSFloat(tt.raw)
			if got.Special != tt.want {
				t.Errorf("DecodeSFloat(%#04x).Special = %v, want %v", tt.raw, got.Special, tt.want)
			}
		})
	}
}

func TestDecodeSFloatIsPure(t *testing.T) {
	for _, raw := range []uint16{0x0000, 0x0078, 0x07ff, 0x0800, 0xffff} {
		a := DecodeSFloat(raw)
		b := DecodeSFloat(raw)
		if a != b {
			t.Errorf("DecodeSFloat(%#04x) not deterministic: %v vs %v", raw, a, b)
		}
	}
}
