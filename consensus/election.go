package consensus

import (
	"github.com/tolelom/diseq/crypto"
	"github.com/tolelom/diseq/vrf"
)

// CommittingValidator returns the validator authorized to emit a
// ConsensusCommitment for the round now falls in (§4.2): strict
// round-robin over the fixed validator list.
func CommittingValidator(lastBlockTS, now uint32, roundDuration uint32, validators []crypto.PublicKey) crypto.PublicKey {
	round := CurrentRound(lastBlockTS, now, roundDuration)
	idx := int((round - 1) % uint32(len(validators)))
	return validators[idx]
}

// EvaluateCommitment derives the round winner from a validator's VRF
// receipt (§4.3): the winner may be any validator, including the
// committer itself, chosen by the receipt's journal modulo the validator
// count. Because the committer cannot bias a deterministic-signature VRF
// before signing, this is an unpredictable but verifiable choice.
func EvaluateCommitment(receipt vrf.Receipt, validators []crypto.PublicKey) crypto.PublicKey {
	idx := int(receipt.Journal % uint64(len(validators)))
	return validators[idx]
}
