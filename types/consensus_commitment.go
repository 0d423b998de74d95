package types

import "github.com/tolelom/diseq/vrf"

// ConsensusCommitment is the round's committing validator's VRF receipt
// over the next height; every node derives the round winner from it, and
// the winner may be any validator.
type ConsensusCommitment struct {
	Validator []byte      `json:"validator"`
	Receipt   vrf.Receipt `json:"receipt"`
}
