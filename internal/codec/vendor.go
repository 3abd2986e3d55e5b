package codec

import "fmt"

// StartMeasurement is the fixed activation command written to the
// vendor control point to begin a measurement cycle.
var StartMeasurement = []byte{0xF1, 0x01}

// framePhaseChange is the control-point discriminator for phase events.
const framePhaseChange = 0xF2

// VendorPhase is the phase byte carried by a 0xF2 control frame.
type VendorPhase byte

const (
	VendorInflating VendorPhase = 0x00
	VendorMeasuring VendorPhase = 0x01
	VendorDeflating VendorPhase = 0x02
	VendorAborted   VendorPhase = 0x03
	VendorCompleted VendorPhase = 0x04
)

func (p VendorPhase) String() string {
	switch p {
	case VendorInflating:
		return "inflating"
	case VendorMeasuring:
		return "measuring"
	case VendorDeflating:
		return "deflating"
	case VendorAborted:
		return "aborted"
	case VendorCompleted:
		return "completed"
	default:
		return fmt.Sprintf("vendor-phase(0x%02x)", byte(p))
	}
}

// VendorEventKind discriminates decoded control-point frames.
type VendorEventKind int

const (
	// EventUnknown carries a frame this decoder does not recognize.
	// Unknown frames are reported, never silently discarded.
	EventUnknown VendorEventKind = iota
	EventPhaseChange
)

// VendorEvent is one decoded control-point notification.
type VendorEvent struct {
	Kind  VendorEventKind
	Phase VendorPhase // valid only for EventPhaseChange
	Raw   []byte
}

// DecodeVendorFrame decodes a vendor control-point frame. A 0xF2
// discriminator with a known phase byte yields a phase-change event;
// anything else yields an Unknown event carrying the raw bytes.
func DecodeVendorFrame(data []byte) VendorEvent {
	if len(data) == 2 && data[0] == framePhaseChange {
		phase := VendorPhase(data[1])
		switch phase {
		case VendorInflating, VendorMeasuring, VendorDeflating, VendorAborted, VendorCompleted:
			return VendorEvent{Kind: EventPhaseChange, Phase: phase, Raw: data}
		}
	}
	return VendorEvent{Kind: EventUnknown, Raw: data}
}
