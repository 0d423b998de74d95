// Package vrf stands in for the sequencer's external randomness oracle
// (spec §6: "generate_random_number(validator_pubkey_bytes,
// height_big_endian_bytes) -> Receipt whose journal yields a deterministic
// integer keyed on those inputs"). The original implementation treats the
// receipt as an opaque zkVM journal; this substitutes a deterministic ECDSA
// signature (RFC 6979, see crypto.Sign) over the encoded height as the
// verifiable random output. Because the signature is deterministic, the
// committer cannot bias the derived integer by resigning with different
// nonces — the output is fixed the moment (validator key, height) is fixed,
// which is the property §9's open question asks a correct VRF to have.
package vrf

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tolelom/diseq/crypto"
)

// Receipt is a verifiable random output binding (validator, height) to a
// selection integer.
type Receipt struct {
	Signature []byte `json:"signature"`
	Journal   uint64 `json:"journal"`
}

// Generate produces a Receipt for the committer identified by priv at the
// given height. heightBE must be the big-endian encoding of the next block
// height, matching the committing validator's own next-height computation.
func Generate(priv crypto.PrivateKey, heightBE []byte) Receipt {
	sig := crypto.Sign(priv, heightBE)
	return Receipt{
		Signature: sig,
		Journal:   journalFromSignature(sig),
	}
}

// Verify checks that receipt was genuinely produced by pub for heightBE,
// and that its Journal is the value actually derived from the signature
// (not separately forged). This is the verification step spec.md §9 flags
// as missing from the original's /commit handler.
func Verify(receipt Receipt, pub crypto.PublicKey, heightBE []byte) error {
	if len(receipt.Signature) == 0 {
		return errors.New("vrf: empty receipt signature")
	}
	if err := crypto.Verify(pub, heightBE, receipt.Signature); err != nil {
		return fmt.Errorf("vrf: receipt signature invalid: %w", err)
	}
	if want := journalFromSignature(receipt.Signature); want != receipt.Journal {
		return errors.New("vrf: journal does not match signature digest")
	}
	return nil
}

func journalFromSignature(sig []byte) uint64 {
	digest := crypto.Hash32(sig)
	return binary.BigEndian.Uint64(digest[:8])
}

// HeightBytes encodes height as the big-endian 4-byte value the VRF is
// keyed on, matching the original's (next_height).to_be_bytes().
func HeightBytes(height uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], height)
	return buf[:]
}
