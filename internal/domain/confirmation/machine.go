// internal/domain/confirmation/machine.go
package confirmation

// Status is the current node in a placement's confirmation lifecycle.
type Status string

const (
	StatusUnconfirmed     Status = "UNCONFIRMED"
	StatusSoftConfirmed   Status = "SOFT_CONFIRMED"
	StatusLikelyConfirmed Status = "LIKELY_CONFIRMED"
	StatusConfirmed       Status = "CONFIRMED"
	StatusDeclined        Status = "DECLINED"
)

// Signal is an inbound classification that may drive a transition.
type Signal string

const (
	SignalConfirm Signal = "CONFIRM"
	SignalDecline Signal = "DECLINE"
)

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusDeclined
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusUnconfirmed, StatusSoftConfirmed, StatusLikelyConfirmed, StatusConfirmed, StatusDeclined:
		return true
	}
	return false
}

// Transition is the outcome of applying a signal to a status. Applied is false
// when the signal produced no change (terminal state or unrecognized input);
// callers must not persist anything in that case.
type Transition struct {
	From    Status
	To      Status
	Applied bool
}

// Apply computes the transition for an inbound signal. A confirm advances the
// status exactly one step along the escalation ladder
// (UNCONFIRMED -> SOFT_CONFIRMED -> LIKELY_CONFIRMED -> CONFIRMED); reminder
// counters never drive this ladder. A decline moves any non-terminal status
// directly to DECLINED. Terminal states and unknown signals are no-ops.
func Apply(current Status, sig Signal) Transition {
	t := Transition{From: current, To: current}
	if current.Terminal() || !current.Valid() {
		return t
	}
	switch sig {
	case SignalConfirm:
		t.To = nextOnLadder(current)
		t.Applied = t.To != current
	case SignalDecline:
		t.To = StatusDeclined
		t.Applied = true
	}
	return t
}

func nextOnLadder(s Status) Status {
	switch s {
	case StatusUnconfirmed:
		return StatusSoftConfirmed
	case StatusSoftConfirmed:
		return StatusLikelyConfirmed
	case StatusLikelyConfirmed:
		return StatusConfirmed
	default:
		return s
	}
}
