package types

import (
	"bytes"
	"encoding/binary"

	"github.com/tolelom/diseq/crypto"
)

// BlockCommitment is a single validator's signature over a proposed block's
// canonical bytes, added by each validator that countersigns the proposal
// as it is gossiped between nodes.
type BlockCommitment struct {
	Signature []byte `json:"signature"`
	Validator []byte `json:"validator"`
	Timestamp uint32 `json:"timestamp"`
}

// Block is a batch of messages sealed by the round winner and countersigned
// by a threshold of committing validators.
type Block struct {
	Height      uint32            `json:"height"`
	Messages    []Message         `json:"messages"`
	Signature   []byte            `json:"signature"`
	Commitments []BlockCommitment `json:"commitments"`
	Timestamp   uint32            `json:"timestamp"`
}

// CanonicalBytes returns the deterministic, length-prefixed encoding of b
// used as the signature preimage for both the winner's Signature and every
// BlockCommitment.Signature. Signature and Commitments are excluded so that
// collecting commitments never changes the bytes being committed to.
// Length-prefixing each message's data (4-byte big-endian) prevents boundary
// ambiguity across different message sets, the same idiom used for
// transaction roots.
func (b *Block) CanonicalBytes() []byte {
	var buf bytes.Buffer
	var u32 [4]byte

	binary.BigEndian.PutUint32(u32[:], b.Height)
	buf.Write(u32[:])

	binary.BigEndian.PutUint32(u32[:], uint32(len(b.Messages)))
	buf.Write(u32[:])

	for _, msg := range b.Messages {
		binary.BigEndian.PutUint32(u32[:], uint32(len(msg.Data)))
		buf.Write(u32[:])
		buf.Write(msg.Data)
		binary.BigEndian.PutUint32(u32[:], msg.Timestamp)
		buf.Write(u32[:])
	}

	binary.BigEndian.PutUint32(u32[:], b.Timestamp)
	buf.Write(u32[:])

	return buf.Bytes()
}

// Hash returns the SHA-256 hash of b's canonical bytes, hex-encoded.
func (b *Block) Hash() string {
	return crypto.Hash(b.CanonicalBytes())
}

// Sign sets Signature to priv's deterministic ECDSA signature over b's
// canonical bytes. Called by the round winner when sealing a proposal.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Signature = crypto.Sign(priv, b.CanonicalBytes())
}

// VerifySignature checks that b.Signature is a valid signature over b's
// canonical bytes under pub, the round winner's public key.
func (b *Block) VerifySignature(pub crypto.PublicKey) error {
	return crypto.Verify(pub, b.CanonicalBytes(), b.Signature)
}

// NewCommitment produces a BlockCommitment from priv over b's canonical
// bytes, stamped with the given timestamp.
func NewCommitment(priv crypto.PrivateKey, b *Block, timestamp uint32) BlockCommitment {
	return BlockCommitment{
		Signature: crypto.Sign(priv, b.CanonicalBytes()),
		Validator: priv.Public().Bytes(),
		Timestamp: timestamp,
	}
}

// VerifyCommitment checks that c is a valid signature over b's canonical
// bytes under the public key embedded in c.Validator.
func VerifyCommitment(c BlockCommitment, b *Block) error {
	pub, err := crypto.PubKeyFromBytes(c.Validator)
	if err != nil {
		return err
	}
	return crypto.Verify(pub, b.CanonicalBytes(), c.Signature)
}
