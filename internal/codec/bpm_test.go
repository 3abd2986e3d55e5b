package codec

import (
	"errors"
	"testing"
	"time"
)

// bp builds a payload from flags plus little-endian SFLOAT fields.
func bp(flags byte, fields ...uint16) []byte {
	out := []byte{flags}
	for _, f := range fields {
		out = append(out, byte(f), byte(f>>8))
	}
	return out
}

func TestDecodeBloodPressureMinimal(t *testing.T) {
	m, err := DecodeBloodPressure(bp(0x00, 0x0078, 0x0050, 0x005d))
	if err != nil {
		t.Fatalf("DecodeBloodPressure() error = %v", err)
	}
	if m.Unit != "mmHg" {
		t.Errorf("Unit = %q, want mmHg", m.Unit)
	}
	if m.Systolic.Value != 120 || m.Diastolic.Value != 80 || m.MeanArterial.Value != 93 {
		t.Errorf("values = %v/%v/%v, want 120/80/93", m.Systolic.Value, m.Diastolic.Value, m.MeanArterial.Value)
	}
	if m.Timestamp != nil || m.PulseRate != nil || m.Status != nil {
		t.Error("optional fields should be nil when flags are clear")
	}
}

func TestDecodeBloodPressureKPaUnit(t *testing.T) {
	m, err := DecodeBloodPressure(bp(0x01, 0x0010, 0x000b, 0x000d))
	if err != nil {
		t.Fatalf("DecodeBloodPressure() error = %v", err)
	}
	if m.Unit != "kPa" {
		t.Errorf("Unit = %q, want kPa", m.Unit)
	}
}

func TestDecodeBloodPressurePulseAndStatus(t *testing.T) {
	m, err := DecodeBloodPressure(bp(0x14, 0x0078, 0x0050, 0x005d, 0x0048, 0x0005))
	if err != nil {
		t.Fatalf("DecodeBloodPressure() error = %v", err)
	}
	if m.PulseRate == nil || m.PulseRate.Value != 72 {
		t.Errorf("PulseRate = %v, want 72", m.PulseRate)
	}
	if m.Status == nil || *m.Status != 0x0005 {
		t.Errorf("Status = %v, want 0x0005", m.Status)
	}
	if !m.HasStatus() {
		t.Error("HasStatus() = false, want true")
	}
}

func TestDecodeBloodPressureTimestamp(t *testing.T) {
	payload := bp(0x02, 0x0078, 0x0050, 0x005d)
	// 2024-03-15 09:30:00
	payload = append(payload, 0xe8, 0x07, 3, 15, 9, 30, 0)

	m, err := DecodeBloodPressure(payload)
	if err != nil {
		t.Fatalf("DecodeBloodPressure() error = %v", err)
	}
	want := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.Local)
	if m.Timestamp == nil || !m.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", m.Timestamp, want)
	}
}

func TestDecodeBloodPressureFieldOrder(t *testing.T) {
	// Timestamp precedes pulse rate when both flags are set.
	payload := bp(0x06, 0x0078, 0x0050, 0x005d)
	payload = append(payload, 0xe8, 0x07, 1, 2, 3, 4, 5) // timestamp
	payload = append(payload, 0x48, 0x00)                // pulse 72

	m, err := DecodeBloodPressure(payload)
	if err != nil {
		t.Fatalf("DecodeBloodPressure() error = %v", err)
	}
	if m.Timestamp == nil || m.Timestamp.Year() != 2024 {
		t.Errorf("Timestamp = %v, want year 2024", m.Timestamp)
	}
	if m.PulseRate == nil || m.PulseRate.Value != 72 {
		t.Errorf("PulseRate = %v, want 72", m.PulseRate)
	}
}

func TestDecodeBloodPressureTruncated(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"flags only", []byte{0x00}},
		{"missing diastolic", bp(0x00, 0x0078)},
		{"missing map", bp(0x00, 0x0078, 0x0050)},
		{"pulse flagged but absent", bp(0x04, 0x0078, 0x0050, 0x005d)},
		{"status flagged but absent", bp(0x10, 0x0078, 0x0050, 0x005d)},
		{"short timestamp", append(bp(0x02, 0x0078, 0x0050, 0x005d), 0xe8, 0x07, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBloodPressure(tt.payload)
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("DecodeBloodPressure() error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestStatusConditions(t *testing.T) {
	got := StatusConditions(0x0005)
	want := []string{"body movement", "irregular pulse"}
	if len(got) != len(want) {
		t.Fatalf("StatusConditions(0x0005) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StatusConditions(0x0005)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if StatusConditions(0) != nil {
		t.Error("StatusConditions(0) should be empty")
	}
}
