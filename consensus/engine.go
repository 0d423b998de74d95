package consensus

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/tolelom/diseq/crypto"
	"github.com/tolelom/diseq/events"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/types"
	"github.com/tolelom/diseq/vrf"
)

// Gossiper fans proposals and commitments out to peers. Implemented by
// package gossip; declared here to avoid an import cycle (gossip never
// needs to import consensus).
type Gossiper interface {
	BroadcastProposal(block *types.Block, lastBlockTS uint32)
	BroadcastCommitment(c types.ConsensusCommitment)
}

// Engine drives one node's consensus round: the periodic tick (§4.4),
// commitment ingress (§4.5), and proposal ingress (§4.6).
type Engine struct {
	round  *Round
	blocks *store.BlockStore
	pool   *store.MessagePool
	trie   *trie.Trie
	gossip Gossiper
	events *events.Emitter

	roundDuration      uint32
	clearingPhase      uint32
	consensusThreshold int
}

// SetEmitter attaches an events.Emitter the Engine notifies whenever it
// commits a block locally. Optional: a nil or never-set emitter just
// means nothing observes these events.
func (e *Engine) SetEmitter(emitter *events.Emitter) {
	e.events = emitter
}

// NewEngine wires together the state an Engine needs to run.
func NewEngine(
	round *Round,
	blocks *store.BlockStore,
	pool *store.MessagePool,
	tr *trie.Trie,
	gossip Gossiper,
	roundDuration, clearingPhase uint32,
	consensusThreshold int,
) *Engine {
	return &Engine{
		round:              round,
		blocks:             blocks,
		pool:               pool,
		trie:               tr,
		gossip:             gossip,
		roundDuration:      roundDuration,
		clearingPhase:      clearingPhase,
		consensusThreshold: consensusThreshold,
	}
}

func now() uint32 { return uint32(time.Now().Unix()) }

// lastBlockTimestamp returns the timestamp of the most recently committed
// block (genesis counts).
func (e *Engine) lastBlockTimestamp() (uint32, uint32, error) {
	height, err := e.blocks.Height()
	if err != nil {
		return 0, 0, err
	}
	last, err := e.blocks.Get(height - 1)
	if err != nil {
		return 0, 0, err
	}
	return last.Timestamp, height, nil
}

// Run starts the consensus tick loop with the given interval. It blocks
// until done is closed, matching the top-level three-task select (§5).
func (e *Engine) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick implements one consensus-loop iteration (§4.4).
func (e *Engine) tick() {
	unixNow := now()

	lastBlockTS, height, err := e.lastBlockTimestamp()
	if err != nil {
		log.Printf("[consensus] tick: read last block timestamp: %v", err)
		return
	}
	nextHeight := height

	e.round.Lock()
	defer e.round.Unlock()

	if IsClearingPhase(lastBlockTS, unixNow, e.roundDuration, e.clearingPhase) {
		e.round.Reinitialize()
		return
	}

	log.Printf("[consensus] current round: %d", CurrentRound(lastBlockTS, unixNow, e.roundDuration))

	committer := CommittingValidator(lastBlockTS, unixNow, e.roundDuration, e.round.Validators())
	if e.round.Local().Equal(committer) && !e.round.Committed() {
		receipt := vrf.Generate(e.round.SigningKey(), vrf.HeightBytes(nextHeight))
		commitment := types.ConsensusCommitment{
			Validator: e.round.Local().Bytes(),
			Receipt:   receipt,
		}
		e.gossip.BroadcastCommitment(commitment)

		winner := EvaluateCommitment(receipt, e.round.Validators())
		e.round.SetRoundWinner(winner)
		e.round.SetCommitted(true)
	}

	winner, ok := e.round.RoundWinner()
	if !ok {
		return
	}

	if e.round.Local().Equal(winner) && !e.round.Proposed() {
		msgs, err := e.pool.All()
		if err != nil {
			log.Printf("[consensus] tick: read pending messages: %v", err)
			return
		}
		block := &types.Block{
			Height:    nextHeight,
			Messages:  msgs,
			Timestamp: unixNow,
		}
		block.Sign(e.round.SigningKey())

		log.Print("[Info] Gossipping proposed Block")
		e.gossip.BroadcastProposal(block, lastBlockTS)

		e.round.SetProposed(true)
		if err := e.pool.Reinitialize(); err != nil {
			log.Printf("[consensus] tick: reinitialize pool: %v", err)
		}
	}
}

// HandleCommitment processes an inbound ConsensusCommitment (§4.5).
// Returns the literal response string for the /commit handler.
func (e *Engine) HandleCommitment(c types.ConsensusCommitment) string {
	if !e.round.TryLock() {
		return "[Error] Failed to obtain locks"
	}
	defer e.round.Unlock()

	lastBlockTS, nextHeight, err := e.lastBlockTimestamp()
	if err != nil {
		log.Printf("[consensus] commit: read last block timestamp: %v", err)
		return "[Error] Failed to obtain locks"
	}

	ack := fmt.Sprintf("[Ok] Commitment was accepted: %+v", c)

	if _, ok := e.round.RoundWinner(); ok {
		log.Print("[Warning] Winner was already chosen, or not re-set!")
		return ack
	}

	expected := CommittingValidator(lastBlockTS, now(), e.roundDuration, e.round.Validators())
	validatorPub, err := crypto.PubKeyFromBytes(c.Validator)
	if err != nil {
		log.Printf("[Warning] Commitment from undecodable validator: %v", err)
		return ack
	}
	if !validatorPub.Equal(expected) {
		return ack
	}

	if err := vrf.Verify(c.Receipt, validatorPub, vrf.HeightBytes(nextHeight)); err != nil {
		log.Printf("[Warning] Commitment VRF receipt failed verification: %v", err)
		return ack
	}

	winner := EvaluateCommitment(c.Receipt, e.round.Validators())
	log.Print("[Info] Winner chosen!")
	e.round.SetRoundWinner(winner)
	e.round.AppendCommitment(c)

	return ack
}

// HandleProposal processes an inbound Block proposal (§4.6), the
// block-proposal state machine: validate, track split resolution,
// accumulate commitments, sign or append. Returns the literal response
// string for the /propose handler.
func (e *Engine) HandleProposal(proposal *types.Block) string {
	e.round.Lock()
	defer e.round.Unlock()

	lastBlockTS, nextHeight, err := e.lastBlockTimestamp()
	if err != nil {
		log.Printf("[consensus] propose: read last block timestamp: %v", err)
		return fmt.Sprintf("Block was rejected: %+v", proposal)
	}
	rejected := fmt.Sprintf("Block was rejected: %+v", proposal)

	round := CurrentRound(lastBlockTS, now(), e.roundDuration)
	if proposal.Timestamp < lastBlockTS+(round-1)*e.roundDuration {
		log.Printf("[Warning] Invalid Proposal Timestamp: %d", proposal.Timestamp)
		return rejected
	}

	winner, ok := e.round.RoundWinner()
	if !ok {
		return "[Warning] Awaiting consensus evaluation"
	}

	if e.blocks.Exists(proposal.Height) {
		return "[Ok] Block was processed"
	}

	if err := proposal.VerifySignature(winner); err != nil {
		log.Print("[Warning] Invalid Signature for Round Winner, Proposal rejected")
		return rejected
	}

	if rejectReason := e.applySplitResolution(proposal); rejectReason != "" {
		log.Print("[Warning] Block rejected, lower block known!")
		return rejectReason
	}

	isSigned := false
	validCount := 0
	for _, c := range proposal.Commitments {
		pub, err := crypto.PubKeyFromBytes(c.Validator)
		if err != nil || !e.round.IsValidator(pub) {
			log.Print("[Error] Invalid Proposal found with invalid VK")
			continue
		}
		if err := types.VerifyCommitment(c, proposal); err != nil {
			log.Print("[Warning] Invalid Commitment was Ignored")
			continue
		}
		validCount++
		if pub.Equal(e.round.Local()) {
			isSigned = true
		}
	}
	log.Printf("[Info] Commitment count for proposal: %d", validCount)

	if proposal.Height != nextHeight {
		return rejected
	}

	switch {
	case validCount >= e.consensusThreshold:
		log.Print("[Info] Received Valid Block")
		if err := e.commitBlock(proposal); err != nil {
			log.Printf("[consensus] propose: commit block: %v", err)
			return rejected
		}
		log.Printf("[Info] Block was stored: %d", proposal.Height)
		if e.events != nil {
			e.events.Emit(events.Event{Type: events.EventBlockCommitted, Height: proposal.Height})
		}
		// A successful append always starts the next round fresh (§3
		// Lifecycles): without this, a node that both committed and signed
		// this round's block would carry stale proposed/committed/signed
		// flags into the round for the next height.
		e.round.Reinitialize()

	case !isSigned:
		if err := e.signAndGossip(proposal, lastBlockTS); err != nil {
			log.Printf("[consensus] propose: sign and gossip: %v", err)
			return rejected
		}

	default:
		log.Print("[Warning] Block is signed but lacks commitments")
	}

	return "[Ok] Block was processed"
}

// applySplitResolution implements the chain-split tiebreak (§4.6,
// invariant I6): among competing proposals at the same height, the one
// with lexicographically lowest canonical bytes wins. Returns a non-empty
// rejection string if proposal loses the tiebreak.
func (e *Engine) applySplitResolution(proposal *types.Block) string {
	candidate := proposal.CanonicalBytes()
	lowest, ok := e.round.LowestBlock()
	switch {
	case !ok:
		e.round.SetLowestBlock(candidate)
	case bytes.Compare(candidate, lowest) < 0:
		e.round.SetLowestBlock(candidate)
	case bytes.Equal(candidate, lowest):
		// Re-gossip echo of the same proposal: no-op.
	default:
		return fmt.Sprintf("Block was rejected: %+v", proposal)
	}
	return ""
}

// commitBlock appends proposal to the block store and applies its
// messages to the trie (§4.8), atomically with the append.
func (e *Engine) commitBlock(proposal *types.Block) error {
	if err := e.blocks.Put(proposal); err != nil {
		return err
	}
	for _, msg := range proposal.Messages {
		root, _, err := e.trie.Insert(msg.Data)
		if err != nil {
			return fmt.Errorf("insert leaf: %w", err)
		}
		if err := e.pool.MarkCommitted(msg.Data); err != nil {
			return fmt.Errorf("mark leaf committed: %w", err)
		}
		log.Printf("[Info] New Trie Root: %x", root)
	}
	return nil
}

// signAndGossip countersigns proposal with the local validator's key and
// fans the augmented proposal back out to peers.
func (e *Engine) signAndGossip(proposal *types.Block, lastBlockTS uint32) error {
	commitment := types.NewCommitment(e.round.SigningKey(), proposal, now())
	proposal.Commitments = append(proposal.Commitments, commitment)
	e.round.SetSigned(true)

	log.Print("[Info] Signed Block is being gossipped")
	e.gossip.BroadcastProposal(proposal, lastBlockTS)
	return nil
}
