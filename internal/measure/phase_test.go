package measure

import "testing"

func TestTransitionForwardPath(t *testing.T) {
	steps := []Phase{PhaseInflating, PhaseMeasuring, PhaseDeflating, PhaseCompleted}
	cur := PhaseIdle
	for _, next := range steps {
		got, ok := transition(cur, next)
		if !ok || got != next {
			t.Fatalf("transition(%v, %v) = %v, %v; want %v, true", cur, next, got, ok, next)
		}
		cur = got
	}
}

func TestTransitionAbortFromAnyNonTerminal(t *testing.T) {
	for _, cur := range []Phase{PhaseIdle, PhaseInflating, PhaseMeasuring, PhaseDeflating} {
		got, ok := transition(cur, PhaseAborted)
		if !ok || got != PhaseAborted {
			t.Errorf("transition(%v, Aborted) = %v, %v; want Aborted, true", cur, got, ok)
		}
	}
}

func TestTransitionTerminalPhasesAreFinal(t *testing.T) {
	for _, cur := range []Phase{PhaseCompleted, PhaseAborted} {
		for _, next := range []Phase{PhaseIdle, PhaseInflating, PhaseMeasuring, PhaseDeflating, PhaseCompleted, PhaseAborted} {
			if got, ok := transition(cur, next); ok {
				t.Errorf("transition(%v, %v) = %v, true; terminal phases admit no transitions", cur, next, got)
			}
		}
	}
}

func TestTransitionNoBackwardMoves(t *testing.T) {
	tests := []struct{ cur, next Phase }{
		{PhaseMeasuring, PhaseInflating},
		{PhaseDeflating, PhaseMeasuring},
		{PhaseInflating, PhaseInflating},
	}
	for _, tt := range tests {
		if _, ok := transition(tt.cur, tt.next); ok {
			t.Errorf("transition(%v, %v) allowed, want rejected", tt.cur, tt.next)
		}
	}
}

func TestTransitionAllowsSkippingForward(t *testing.T) {
	// A missed intermediate control frame must not wedge the cycle.
	if got, ok := transition(PhaseInflating, PhaseDeflating); !ok || got != PhaseDeflating {
		t.Errorf("transition(Inflating, Deflating) = %v, %v; want Deflating, true", got, ok)
	}
	if got, ok := transition(PhaseMeasuring, PhaseCompleted); !ok || got != PhaseCompleted {
		t.Errorf("transition(Measuring, Completed) = %v, %v; want Completed, true", got, ok)
	}
}
