package consensus

import (
	"sync"

	"github.com/tolelom/diseq/crypto"
	"github.com/tolelom/diseq/types"
)

// Round is the in-memory, per-node consensus state for the current round
// (spec.md §3's InMemoryConsensus). Its mutex is the only lock held across
// calls into BlockStore, MessagePool and Trie, which lock their own mutexes
// only inside each method. Locks are not taken in a fixed block → pool →
// consensus → trie order: the round lock is taken first, and the others
// are taken and released inside it one call at a time.
type Round struct {
	mu sync.Mutex

	validators     []crypto.PublicKey
	localValidator crypto.PublicKey
	localSigning   crypto.PrivateKey

	commitments []types.ConsensusCommitment
	roundWinner *crypto.PublicKey

	proposed  bool
	committed bool
	signed    bool

	lowestBlock []byte
}

// NewRound creates fresh round state for a node identified by localSigning,
// running with the given fixed validator committee.
func NewRound(validators []crypto.PublicKey, localSigning crypto.PrivateKey) *Round {
	return &Round{
		validators:     validators,
		localValidator: localSigning.Public(),
		localSigning:   localSigning,
	}
}

// Validators returns the fixed committee, in committee order. Callers must
// hold the lock.
func (r *Round) Validators() []crypto.PublicKey {
	return r.validators
}

// Local returns this node's own validator identity.
func (r *Round) Local() crypto.PublicKey {
	return r.localValidator
}

// SigningKey returns this node's signing key.
func (r *Round) SigningKey() crypto.PrivateKey {
	return r.localSigning
}

// Lock acquires the round mutex. Callers must Unlock.
func (r *Round) Lock() { r.mu.Lock() }

// Unlock releases the round mutex.
func (r *Round) Unlock() { r.mu.Unlock() }

// TryLock attempts to acquire the round mutex without blocking, used by
// the commitment handler's non-blocking-lock backpressure policy (§5).
func (r *Round) TryLock() bool { return r.mu.TryLock() }

// Reinitialize clears all round-scoped state: called at the start of a
// round's clearing phase, or after a successful block append (§3
// "Lifecycles"). Callers must hold the lock.
func (r *Round) Reinitialize() {
	r.commitments = nil
	r.roundWinner = nil
	r.proposed = false
	r.committed = false
	r.signed = false
	r.lowestBlock = nil
}

// Committed reports whether this round has already recorded a commitment
// from the local node. Callers must hold the lock.
func (r *Round) Committed() bool { return r.committed }

// SetCommitted marks the round as committed by the local node. Callers
// must hold the lock.
func (r *Round) SetCommitted(v bool) { r.committed = v }

// Proposed reports whether the local node has already emitted a proposal
// this round. Callers must hold the lock.
func (r *Round) Proposed() bool { return r.proposed }

// SetProposed marks the round as proposed by the local node. Callers must
// hold the lock.
func (r *Round) SetProposed(v bool) { r.proposed = v }

// Signed reports whether the local node has already countersigned the
// round's proposal. Callers must hold the lock.
func (r *Round) Signed() bool { return r.signed }

// SetSigned marks the round as signed by the local node. Callers must
// hold the lock.
func (r *Round) SetSigned(v bool) { r.signed = v }

// RoundWinner returns the elected proposer for this round, if any.
// Callers must hold the lock.
func (r *Round) RoundWinner() (crypto.PublicKey, bool) {
	if r.roundWinner == nil {
		return crypto.PublicKey{}, false
	}
	return *r.roundWinner, true
}

// SetRoundWinner records the elected proposer for this round. Per
// invariant I4, at most one round_winner is ever set per round; callers
// are expected to check RoundWinner first. Callers must hold the lock.
func (r *Round) SetRoundWinner(pub crypto.PublicKey) {
	r.roundWinner = &pub
}

// LowestBlock returns the canonical bytes of the lowest proposal seen so
// far at the current height, if any. Callers must hold the lock.
func (r *Round) LowestBlock() ([]byte, bool) {
	if r.lowestBlock == nil {
		return nil, false
	}
	return r.lowestBlock, true
}

// SetLowestBlock records candidate as the new lowest-known proposal.
// Callers must hold the lock.
func (r *Round) SetLowestBlock(candidate []byte) {
	r.lowestBlock = candidate
}

// Commitments returns the ConsensusCommitments accepted so far this round,
// for the /get/commitments debug dump. Callers must hold the lock.
func (r *Round) Commitments() []types.ConsensusCommitment {
	return r.commitments
}

// AppendCommitment records an accepted ConsensusCommitment. Callers must
// hold the lock.
func (r *Round) AppendCommitment(c types.ConsensusCommitment) {
	r.commitments = append(r.commitments, c)
}

// IsValidator reports whether pub is a member of the fixed committee.
func (r *Round) IsValidator(pub crypto.PublicKey) bool {
	for _, v := range r.validators {
		if v.Equal(pub) {
			return true
		}
	}
	return false
}
