package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/types"
)

// blockMissingResponse is the literal body returned by GET /get/block/{h}
// when nothing is stored at that height (spec.md §6).
const blockMissingResponse = "[Warning] Requested Block that does not exist"

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// handleSchedule admits a Message into the pending pool (spec.md §6,
// §4.3). The ack echoes the server-side debug formatting of the accepted
// message, matching the literal scenario-1 fixture string exactly.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.pool.Append(msg); err != nil {
		if err == store.ErrDuplicateMessage {
			writeText(w, http.StatusOK, fmt.Sprintf("[Warning] Message already committed: %+v", msg))
			return
		}
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("[Ok] Transaction is being sequenced: %+v", msg))
}

// handleCommit processes an inbound ConsensusCommitment (spec.md §4.5).
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var c types.ConsensusCommitment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Print("[Info] Received Commitment (API)!")
	writeText(w, http.StatusOK, s.engine.HandleCommitment(c))
}

// handlePropose processes an inbound Block proposal (spec.md §4.6).
func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var block types.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Print("[Info] Received Block Proposal!")
	writeText(w, http.StatusOK, s.engine.HandleProposal(&block))
}

// merkleProofRequest carries the raw message payload a caller wants a
// membership proof for; the trie key is derived from it the same way
// Insert derives it (spec.md §4.8).
type merkleProofRequest struct {
	Data []byte `json:"data"`
}

// handleMerkleProof looks up the Merkle proof for a message payload
// (spec.md §6, scenario 1).
func (s *Server) handleMerkleProof(w http.ResponseWriter, r *http.Request) {
	var req merkleProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	proof, err := s.trieRoot.GenerateProof(req.Data)
	if err == trie.ErrLeafNotFound {
		writeText(w, http.StatusNotFound, "[Warning] No proof available for the requested key")
		return
	}
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, proof)
}

// handleGetPool dumps every pending message, Rust-{:?}-style (spec.md §6).
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.pool.All()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeText(w, http.StatusOK, debugSliceString(msgs))
}

// handleGetCommitments dumps the commitments accepted so far this round.
func (s *Server) handleGetCommitments(w http.ResponseWriter, r *http.Request) {
	s.round.Lock()
	defer s.round.Unlock()
	writeText(w, http.StatusOK, fmt.Sprintf("%+v", s.round.Commitments()))
}

// handleGetBlock returns the stored block at the path height, or the
// literal missing-block response (spec.md §6; syncer.blockMissingResponse
// mirrors this exact string).
func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["h"]
	var height uint32
	if _, err := fmt.Sscanf(raw, "%d", &height); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("[Info] Peer Requested Block #%d", height)

	currentHeight, err := s.blocks.Height()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	if currentHeight < height+1 {
		writeText(w, http.StatusOK, blockMissingResponse)
		return
	}

	block, err := s.blocks.Get(height)
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, block)
}

// handleGetHeight returns current_block_height as JSON (spec.md §6).
func (s *Server) handleGetHeight(w http.ResponseWriter, r *http.Request) {
	height, err := s.blocks.Height()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, height)
}

// handleGetStateRootHash returns the current trie root as JSON (spec.md
// §6).
func (s *Server) handleGetStateRootHash(w http.ResponseWriter, r *http.Request) {
	root, err := s.trieRoot.Root()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, root)
}

// debugSliceString renders a []types.Message the way Rust's derived
// Vec<T> Debug would: "[Message { ... }, Message { ... }]".
func debugSliceString(msgs []types.Message) string {
	out := "["
	for i, m := range msgs {
		if i > 0 {
			out += ", "
		}
		out += m.String()
	}
	return out + "]"
}
