// Package syncer periodically pulls missing blocks from peers by height
// to catch a node up to the rest of the committee (spec.md §4.9).
package syncer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tolelom/diseq/consensus"
	"github.com/tolelom/diseq/events"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/types"
)

// blockMissingResponse is the literal GET /get/block/{h} body a peer sends
// back when it has nothing at that height yet.
const blockMissingResponse = "[Warning] Requested Block that does not exist"

// Syncer is the periodic catch-up loop.
type Syncer struct {
	self  string
	peers []string

	blocks *store.BlockStore
	trie   *trie.Trie
	round  *consensus.Round
	events *events.Emitter

	client *http.Client
}

// SetEmitter attaches an events.Emitter the Syncer notifies whenever it
// pulls in a block from a peer. Optional.
func (s *Syncer) SetEmitter(emitter *events.Emitter) {
	s.events = emitter
}

// New creates a Syncer advertising as self, pulling from the given static
// peer list.
func New(self string, peers []string, blocks *store.BlockStore, tr *trie.Trie, round *consensus.Round) *Syncer {
	return &Syncer{
		self:   self,
		peers:  peers,
		blocks: blocks,
		trie:   tr,
		round:  round,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Run starts the sync tick loop with the given interval. It blocks until
// done is closed, matching the top-level three-task select (§5).
func (s *Syncer) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one sync cycle: one block fetched per peer at most, gated on
// being able to acquire round state without contention with the
// consensus loop.
func (s *Syncer) tick() {
	nextHeight, err := s.blocks.Height()
	if err != nil {
		log.Printf("[sync] read height: %v", err)
		return
	}

	for _, peer := range s.peers {
		if peer == s.self {
			continue
		}
		block, err := s.fetchBlock(peer, nextHeight)
		if err != nil {
			continue // best-effort: a failed fetch simply ends the cycle for this peer
		}
		if block == nil {
			continue
		}
		s.applyBlock(nextHeight, block)
	}
}

func (s *Syncer) fetchBlock(peer string, height uint32) (*types.Block, error) {
	url := fmt.Sprintf("http://%s/get/block/%d", peer, height)
	resp, err := s.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if string(data) == blockMissingResponse {
		return nil, nil
	}

	var block types.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (s *Syncer) applyBlock(height uint32, block *types.Block) {
	if !s.round.TryLock() {
		log.Printf("[sync] skipping height %d, consensus round contended", height)
		return
	}
	defer s.round.Unlock()

	if err := s.blocks.Put(block); err != nil {
		log.Printf("[sync] append block %d: %v", height, err)
		return
	}
	for _, msg := range block.Messages {
		if _, _, err := s.trie.Insert(msg.Data); err != nil {
			log.Printf("[sync] insert leaf at height %d: %v", height, err)
			return
		}
	}
	s.round.Reinitialize()
	if s.events != nil {
		s.events.Emit(events.Event{Type: events.EventBlockSynced, Height: height})
	}
	log.Printf("[Info] Synchronized Block: %d", height)
}
