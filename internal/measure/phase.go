// Package measure drives the Qardio measurement cycle: it subscribes
// to the measurement and vendor control characteristics, activates the
// cuff, walks the notification-driven phase sequence, and assembles
// the final record.
package measure

// Phase is the stage of an in-progress measurement cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInflating
	PhaseMeasuring
	PhaseDeflating
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInflating:
		return "inflating"
	case PhaseMeasuring:
		return "measuring"
	case PhaseDeflating:
		return "deflating"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool { return p == PhaseCompleted || p == PhaseAborted }

// transition reports whether moving from cur to next is legal and, if
// so, returns the new phase. The forward sequence is
// Idle→Inflating→Measuring→Deflating→Completed; Aborted is reachable
// from any non-terminal phase. Skipping forward is allowed because the
// machine reasons from frame content, not from notification
// interleaving: a missed intermediate control frame must not wedge the
// cycle. Backward moves and transitions out of a terminal phase are
// rejected.
func transition(cur, next Phase) (Phase, bool) {
	if cur.Terminal() {
		return cur, false
	}
	switch next {
	case PhaseAborted:
		return PhaseAborted, true
	case PhaseInflating, PhaseMeasuring, PhaseDeflating, PhaseCompleted:
		if next > cur {
			return next, true
		}
		return cur, false
	default:
		return cur, false
	}
}
