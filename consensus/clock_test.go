package consensus

import "testing"

func TestCurrentRoundAdvancesByRoundDuration(t *testing.T) {
	const lastBlockTS, roundDuration = 1000, uint32(10)

	cases := []struct {
		now  uint32
		want uint32
	}{
		{1000, 1},
		{1005, 1},
		{1009, 1},
		{1010, 2},
		{1025, 3},
	}
	for _, c := range cases {
		if got := CurrentRound(lastBlockTS, c.now, roundDuration); got != c.want {
			t.Errorf("CurrentRound(now=%d): got %d want %d", c.now, got, c.want)
		}
	}
}

func TestPhaseOffsetWrapsWithinRound(t *testing.T) {
	const lastBlockTS, roundDuration = 1000, uint32(10)
	if got := PhaseOffset(lastBlockTS, 1023, roundDuration); got != 3 {
		t.Errorf("PhaseOffset: got %d want 3", got)
	}
}

func TestIsClearingPhaseHoldsOnlyAtRoundStart(t *testing.T) {
	const lastBlockTS, roundDuration, clearingPhase = 1000, uint32(10), uint32(2)

	if !IsClearingPhase(lastBlockTS, 1010, roundDuration, clearingPhase) {
		t.Error("expected clearing phase at the start of a round")
	}
	if !IsClearingPhase(lastBlockTS, 1011, roundDuration, clearingPhase) {
		t.Error("expected clearing phase one second into a round")
	}
	if IsClearingPhase(lastBlockTS, 1012, roundDuration, clearingPhase) {
		t.Error("expected clearing phase to have ended by the second second")
	}
	if IsClearingPhase(lastBlockTS, 1019, roundDuration, clearingPhase) {
		t.Error("expected no clearing phase near the end of a round")
	}
}
