package trie

import (
	"sync"
)

// Trie is the authenticated state commitment over accepted message
// payloads. Its mutex is held only inside each of its own methods and
// never while taking another lock.
type Trie struct {
	mu    sync.Mutex
	store *NodeStore
}

// New loads a Trie backed by store, picking up whatever root was last
// persisted (nil if this is a fresh database).
func New(store *NodeStore) *Trie {
	return &Trie{store: store}
}

// Root returns the current root hash, or nil if no message has ever been
// inserted.
func (t *Trie) Root() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Root()
}

// Insert adds value as a new leaf, deriving its key per §4.8 (hash the
// value, then hash again to produce the bitwise-BE key path). Re-inserting
// a value already present in the trie is a no-op: inserted reports false
// and root is unchanged. This is the redesigned behavior from §9 — the
// original implementation treated a duplicate leaf as a fatal error;
// here, rejecting duplicates is pushed upstream to message-pool admission,
// and a duplicate that does slip through here simply does nothing instead
// of crashing the node.
func (t *Trie) Insert(value []byte) (root []byte, inserted bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := leafKey(value)
	current, err := t.store.Root()
	if err != nil {
		return nil, false, err
	}

	newRoot, created, err := t.insert(current, key, value)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return current, false, nil
	}
	if err := t.store.SetRoot(newRoot); err != nil {
		return nil, false, err
	}
	return newRoot, true, nil
}

// insert recursively descends the subtree rooted at nodeHash, inserting
// (key, value) and returning the (possibly new) subtree root hash. A nil
// nodeHash represents an empty subtree.
func (t *Trie) insert(nodeHash []byte, key []bool, value []byte) ([]byte, bool, error) {
	if nodeHash == nil {
		leaf := &node{Prefix: key, Value: value}
		h, err := t.store.putNode(leaf)
		return h, true, err
	}

	n, err := t.store.getNode(nodeHash)
	if err != nil {
		return nil, false, err
	}

	common := commonPrefixLen(n.Prefix, key)

	switch {
	case common == len(n.Prefix) && common == len(key):
		// Exact match: same full key.
		if n.isLeaf() && equalBytes(n.Value, value) {
			return nodeHash, false, nil
		}
		updated := &node{Prefix: n.Prefix, Value: value, Children: n.Children}
		h, err := t.store.putNode(updated)
		return h, true, err

	case common == len(n.Prefix):
		// This node's prefix is consumed; descend into the matching child.
		bit := key[common]
		idx := bitIndex(bit)
		childHash, created, err := t.insert(n.Children[idx], key[common+1:], value)
		if err != nil {
			return nil, false, err
		}
		if !created {
			return nodeHash, false, nil
		}
		updated := &node{Prefix: n.Prefix, Value: n.Value, Children: n.Children}
		updated.Children[idx] = childHash
		h, err := t.store.putNode(updated)
		return h, true, err

	default:
		// Prefixes diverge at common: split into a branch with two children.
		branch := &node{Prefix: n.Prefix[:common]}

		existingChild := &node{Prefix: n.Prefix[common+1:], Value: n.Value, Children: n.Children}
		existingHash, err := t.store.putNode(existingChild)
		if err != nil {
			return nil, false, err
		}
		branch.Children[bitIndex(n.Prefix[common])] = existingHash

		newLeaf := &node{Prefix: key[common+1:], Value: value}
		newHash, err := t.store.putNode(newLeaf)
		if err != nil {
			return nil, false, err
		}
		branch.Children[bitIndex(key[common])] = newHash

		h, err := t.store.putNode(branch)
		return h, true, err
	}
}
