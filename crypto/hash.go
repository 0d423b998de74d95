// Package crypto wraps secp256k1 key handling, ECDSA signing, and the
// SHA-256 hashing used throughout block and trie-leaf commitments.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Hash32 returns the raw 32-byte SHA-256 digest of data.
func Hash32(data []byte) [32]byte {
	return sha256.Sum256(data)
}
