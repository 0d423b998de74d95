package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PrivateKey wraps a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 verifying key, serialized canonically as SEC1
// uncompressed bytes wherever it crosses a wire or signature boundary (§3).
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GenerateKeyPair generates a new secp256k1 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return PrivateKey{}, PublicKey{}, err
	}
	return PrivateKey{key: priv}, PublicKey{key: priv.PubKey()}, nil
}

// Bytes returns the raw 32-byte scalar of the private key.
func (priv PrivateKey) Bytes() []byte {
	return priv.key.Serialize()
}

// Public derives the public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey{key: priv.key.PubKey()}
}

// Raw exposes the underlying decred key for the signature package.
func (priv PrivateKey) Raw() *secp256k1.PrivateKey {
	return priv.key
}

// IsZero reports whether priv has not been initialized.
func (priv PrivateKey) IsZero() bool {
	return priv.key == nil
}

// PrivKeyFromBytes decodes a raw 32-byte secp256k1 scalar.
func PrivKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != 32 {
		return PrivateKey{}, fmt.Errorf("privkey must be 32 bytes, got %d", len(b))
	}
	return PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Bytes returns the SEC1 uncompressed encoding of the public key (65 bytes:
// 0x04 prefix + 32-byte X + 32-byte Y). This is the canonical serialization
// used for validator identity (§3) and for BlockCommitment.Validator /
// ConsensusCommitment.Validator on the wire.
func (pub PublicKey) Bytes() []byte {
	return pub.key.SerializeUncompressed()
}

// Hex returns the hex-encoded SEC1 uncompressed public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub.Bytes())
}

// Address returns a 40-char hex address derived from the public key: the
// first 20 bytes of SHA-256(uncompressed pubkey bytes).
func (pub PublicKey) Address() string {
	h := HashBytes(pub.Bytes())
	return hex.EncodeToString(h[:20])
}

// Equal reports whether two public keys are the same point.
func (pub PublicKey) Equal(other PublicKey) bool {
	if pub.key == nil || other.key == nil {
		return pub.key == other.key
	}
	return pub.key.IsEqual(other.key)
}

// IsZero reports whether pub has not been initialized.
func (pub PublicKey) IsZero() bool {
	return pub.key == nil
}

// Raw exposes the underlying decred key for the signature package.
func (pub PublicKey) Raw() *secp256k1.PublicKey {
	return pub.key
}

// PubKeyFromBytes parses a SEC1-encoded (compressed or uncompressed) public
// key, the Go equivalent of the original sequencer's deserialize_vk.
func PubKeyFromBytes(b []byte) (PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key bytes: %w", err)
	}
	return PublicKey{key: key}, nil
}

// PubKeyFromHex decodes a hex-encoded public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	return PubKeyFromBytes(b)
}

// PrivKeyFromHex decodes a hex-encoded 32-byte private key scalar.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("invalid privkey hex: %w", err)
	}
	return PrivKeyFromBytes(b)
}
