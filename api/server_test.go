package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tolelom/diseq/consensus"
	"github.com/tolelom/diseq/crypto"
	"github.com/tolelom/diseq/gossip"
	"github.com/tolelom/diseq/storage"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/types"
)

// newTestServer builds a Server backed by a fresh LevelDB instance in a
// test temp directory and a single-validator committee.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := storage.NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	blocks := store.NewBlockStore(db)
	genesis := &types.Block{Height: 0, Timestamp: 1}
	if err := blocks.Put(genesis); err != nil {
		t.Fatalf("Put genesis: %v", err)
	}
	pool := store.NewMessagePool(db)
	tr := trie.New(trie.NewNodeStore(db))

	round := consensus.NewRound([]crypto.PublicKey{pub}, priv)
	g := gossip.New("self:0", nil, 0)
	engine := consensus.NewEngine(round, blocks, pool, tr, g, 10, 2, 1)

	return New(blocks, pool, engine, round, tr)
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleScheduleAcceptsMessage(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(types.Message{Data: []byte{1, 2, 3}, Timestamp: 42})

	rec := doRequest(t, s, http.MethodPost, "/schedule", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	want := "[Ok] Transaction is being sequenced: Message { data: [1, 2, 3], timestamp: 42 }"
	if rec.Body.String() != want {
		t.Errorf("body: got %q want %q", rec.Body.String(), want)
	}

	msgs, err := s.pool.All()
	if err != nil {
		t.Fatalf("pool.All: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Equal(types.Message{Data: []byte{1, 2, 3}, Timestamp: 42}) {
		t.Errorf("pool contents: got %+v", msgs)
	}
}

func TestHandleGetHeightReflectsGenesis(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/get/height", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var height uint32
	if err := json.Unmarshal(rec.Body.Bytes(), &height); err != nil {
		t.Fatalf("decode height: %v", err)
	}
	if height != 1 {
		t.Errorf("height: got %d want 1", height)
	}
}

func TestHandleGetBlockMissingHeight(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/get/block/5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if rec.Body.String() != blockMissingResponse {
		t.Errorf("body: got %q want %q", rec.Body.String(), blockMissingResponse)
	}
}

func TestHandleGetBlockExistingHeight(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/get/block/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var block types.Block
	if err := json.Unmarshal(rec.Body.Bytes(), &block); err != nil {
		t.Fatalf("decode block: %v", err)
	}
	if block.Height != 0 {
		t.Errorf("height: got %d want 0", block.Height)
	}
}

func TestHandleMerkleProofRoundTrip(t *testing.T) {
	s := newTestServer(t)
	value := []byte{1, 2, 3, 4, 5}
	if _, _, err := s.trieRoot.Insert(value); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reqBody, _ := json.Marshal(merkleProofRequest{Data: value})
	rec := doRequest(t, s, http.MethodPost, "/merkle_proof", reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body: %s", rec.Code, rec.Body.String())
	}

	var proof trie.Proof
	if err := json.Unmarshal(rec.Body.Bytes(), &proof); err != nil {
		t.Fatalf("decode proof: %v", err)
	}

	root, err := s.trieRoot.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	ok, err := trie.Verify(root, value, &proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("proof did not verify against the current root")
	}
}

func TestHandleMerkleProofMissingValue(t *testing.T) {
	s := newTestServer(t)
	reqBody, _ := json.Marshal(merkleProofRequest{Data: []byte{9, 9, 9}})
	rec := doRequest(t, s, http.MethodPost, "/merkle_proof", reqBody)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleCommitRejectsUnknownValidator(t *testing.T) {
	s := newTestServer(t)
	_, stranger, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	commitment := types.ConsensusCommitment{Validator: stranger.Bytes()}
	body, _ := json.Marshal(commitment)

	rec := doRequest(t, s, http.MethodPost, "/commit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	s.round.Lock()
	_, ok := s.round.RoundWinner()
	s.round.Unlock()
	if ok {
		t.Error("round winner should not be set for a commitment from a non-committer")
	}
}
