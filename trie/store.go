package trie

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tolelom/diseq/storage"
)

// NodeStore persists trie nodes by their content hash and tracks the
// current root. It is a thin adapter over storage.DB, the same generic
// LevelDB-backed key-value interface the block and message stores use.
type NodeStore struct {
	db storage.DB
}

const (
	nodePrefix = "trie:node:"
	rootKey    = "trie:root"
)

// NewNodeStore wraps db as a trie node store.
func NewNodeStore(db storage.DB) *NodeStore {
	return &NodeStore{db: db}
}

func (s *NodeStore) getNode(h []byte) (*node, error) {
	data, err := s.db.Get(nodeDBKey(h))
	if err != nil {
		return nil, err
	}
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("trie: decode node: %w", err)
	}
	return &n, nil
}

func (s *NodeStore) putNode(n *node) ([]byte, error) {
	h, err := n.hash()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("trie: encode node: %w", err)
	}
	if err := s.db.Set(nodeDBKey(h), data); err != nil {
		return nil, err
	}
	return h, nil
}

// Root returns the current root hash, or nil if the trie is still empty.
func (s *NodeStore) Root() ([]byte, error) {
	data, err := s.db.Get([]byte(rootKey))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetRoot persists root as the current authoritative trie root.
func (s *NodeStore) SetRoot(root []byte) error {
	return s.db.Set([]byte(rootKey), root)
}

func nodeDBKey(h []byte) []byte {
	return []byte(nodePrefix + hex.EncodeToString(h))
}
