// Package trie implements a binary Patricia (radix) trie over 256-bit
// SHA-256 keys: the authenticated state commitment for every message
// accepted into a block (spec.md §4.8). There is no off-the-shelf Go
// library for this shape of trie in the surrounding stack, so it is built
// here directly from the algorithm description, persisted the way
// storage.LevelDB persists everything else: content-addressed nodes keyed
// by their own hash.
package trie

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tolelom/diseq/crypto"
)

// keyBits is the number of bits in a trie key (one SHA-256 digest).
const keyBits = 256

// node is a trie node. Every node carries a compressed bit-prefix relative
// to its parent. Only nodes at full key depth (leaves) carry a non-nil
// Value; internal branch nodes exist purely to fan out on a single bit.
type node struct {
	Prefix   []bool    `json:"prefix"`
	Value    []byte    `json:"value,omitempty"`
	Children [2][]byte `json:"children"`
}

func (n *node) isLeaf() bool {
	return n.Value != nil
}

// hash returns the content address of n: the SHA-256 hash of its
// deterministic JSON encoding. Collisions would require a SHA-256 preimage,
// which is the same assumption the rest of the system already rests on.
func (n *node) hash() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("trie: encode node: %w", err)
	}
	h := crypto.Hash32(data)
	return h[:], nil
}

// bitsFromDigest expands a 32-byte digest into its 256 bits, MSB-first,
// the "bitwise-big-endian expansion" the spec keys leaves on.
func bitsFromDigest(digest [32]byte) []bool {
	bits := make([]bool, 0, keyBits)
	for _, b := range digest {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>uint(i))&1 == 1)
		}
	}
	return bits
}

// leafKey derives the trie key for a message payload: the payload is
// hashed once to form the leaf digest, then hashed again (the
// "key-then-value hash" of §4.8) to form the key path itself. This matches
// scenario 1's Merkle-proof key: bitwise-BE of hash(hash(data)).
func leafKey(value []byte) []bool {
	leafDigest := crypto.Hash32(value)
	keyDigest := crypto.Hash32(leafDigest[:])
	return bitsFromDigest(keyDigest)
}

// LeafKeyHex returns the hex-encoded trie key that Insert would derive for
// value, without touching a trie. Message-pool admission uses this to
// reject duplicate payloads before they ever reach the trie (§9 redesign:
// pushing duplicate rejection upstream instead of crashing on insert).
func LeafKeyHex(value []byte) string {
	digest := bitsToDigestBytes(leafKey(value))
	return hex.EncodeToString(digest)
}

func commonPrefixLen(a, b []bool) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func bitIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}

func equalBytes(a, b []byte) bool {
	return bytes.Equal(a, b)
}
