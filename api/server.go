// Package api is the HTTP surface of a node (spec.md §6): schedule,
// commit, propose, merkle_proof, and the plain GET debug/query endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tolelom/diseq/consensus"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/trie"
)

// Server holds everything an HTTP handler needs to reach shared node
// state. Apart from handleGetCommitments, which holds the round lock while
// reading commitments, handlers take no lock themselves: the store, trie
// and engine methods they call do their own locking.
type Server struct {
	blocks   *store.BlockStore
	pool     *store.MessagePool
	engine   *consensus.Engine
	round    *consensus.Round
	trieRoot *trie.Trie
}

// New builds a Server and its gorilla/mux router.
func New(blocks *store.BlockStore, pool *store.MessagePool, engine *consensus.Engine, round *consensus.Round, tr *trie.Trie) *Server {
	return &Server{blocks: blocks, pool: pool, engine: engine, round: round, trieRoot: tr}
}

// Router builds the route table (spec.md §6's HTTP API table).
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	r.HandleFunc("/commit", s.handleCommit).Methods(http.MethodPost)
	r.HandleFunc("/propose", s.handlePropose).Methods(http.MethodPost)
	r.HandleFunc("/merkle_proof", s.handleMerkleProof).Methods(http.MethodPost)
	r.HandleFunc("/get/pool", s.handleGetPool).Methods(http.MethodGet)
	r.HandleFunc("/get/commitments", s.handleGetCommitments).Methods(http.MethodGet)
	r.HandleFunc("/get/block/{h}", s.handleGetBlock).Methods(http.MethodGet)
	r.HandleFunc("/get/height", s.handleGetHeight).Methods(http.MethodGet)
	r.HandleFunc("/get/state_root_hash", s.handleGetStateRootHash).Methods(http.MethodGet)
	return r
}

// ListenAndServe starts the HTTP server bound to addr. It blocks until
// the listener fails, matching the top-level three-task select (§5).
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Router())
}
