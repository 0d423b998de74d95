// Package consensus implements the round-based leader-election and
// block-commitment protocol: who proposes each round, how commitments
// accumulate into a winner, and how chain splits resolve at equal height.
package consensus

// Round clock and phase function (§4.1). Time is measured in unix seconds.
// Given the timestamp of the most recently committed block, a round is a
// fixed-length window; its first CLEARING_PHASE seconds are a clearing
// phase during which no commitments or proposals are emitted.

// CurrentRound returns the 1-based round number that now falls in, given
// the last committed block's timestamp.
func CurrentRound(lastBlockTS, now uint32, roundDuration uint32) uint32 {
	elapsed := now - lastBlockTS
	return elapsed/roundDuration + 1
}

// PhaseOffset returns how many seconds into the current round now is.
func PhaseOffset(lastBlockTS, now uint32, roundDuration uint32) uint32 {
	elapsed := now - lastBlockTS
	return elapsed % roundDuration
}

// IsClearingPhase reports whether now falls within the clearing phase of
// its round: the first clearingPhase seconds of every round, during which
// consensus state is reinitialized and nothing is emitted.
func IsClearingPhase(lastBlockTS, now uint32, roundDuration, clearingPhase uint32) bool {
	return PhaseOffset(lastBlockTS, now, roundDuration) < clearingPhase
}
