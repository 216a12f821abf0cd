package confirmation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyConfirmAdvancesOneStep(t *testing.T) {
	cases := []struct {
		from Status
		want Status
	}{
		{StatusUnconfirmed, StatusSoftConfirmed},
		{StatusSoftConfirmed, StatusLikelyConfirmed},
		{StatusLikelyConfirmed, StatusConfirmed},
	}
	for _, tc := range cases {
		tr := Apply(tc.from, SignalConfirm)
		assert.True(t, tr.Applied, "confirm from %s should apply", tc.from)
		assert.Equal(t, tc.from, tr.From)
		assert.Equal(t, tc.want, tr.To)
	}
}

func TestApplyDeclineFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusUnconfirmed, StatusSoftConfirmed, StatusLikelyConfirmed} {
		tr := Apply(from, SignalDecline)
		assert.True(t, tr.Applied, "decline from %s should apply", from)
		assert.Equal(t, StatusDeclined, tr.To)
	}
}

func TestApplyTerminalStatesAreNoOps(t *testing.T) {
	for _, terminal := range []Status{StatusConfirmed, StatusDeclined} {
		for _, sig := range []Signal{SignalConfirm, SignalDecline} {
			tr := Apply(terminal, sig)
			assert.False(t, tr.Applied, "%s on %s must be a no-op", sig, terminal)
			assert.Equal(t, terminal, tr.To)
		}
	}
}

func TestApplyUnrecognizedSignalNeverMutates(t *testing.T) {
	tr := Apply(StatusUnconfirmed, Signal("SHRUG"))
	assert.False(t, tr.Applied)
	assert.Equal(t, StatusUnconfirmed, tr.To)
}

func TestApplyUnknownStatusIsNoOp(t *testing.T) {
	tr := Apply(Status("GARBAGE"), SignalConfirm)
	assert.False(t, tr.Applied)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusDeclined.Terminal())
	assert.False(t, StatusUnconfirmed.Terminal())
	assert.False(t, StatusSoftConfirmed.Terminal())
	assert.False(t, StatusLikelyConfirmed.Terminal())
}
