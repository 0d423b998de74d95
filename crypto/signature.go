package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Sign signs the SHA-256 hash of data with priv and returns the DER-encoded
// ECDSA signature. decred's ecdsa.Sign is deterministic (RFC 6979): the same
// (priv, data) pair always yields the same signature, which is what lets
// the VRF receipt in package vrf treat a signature as a verifiable random
// output the signer cannot grind (see vrf.Generate).
func Sign(priv PrivateKey, data []byte) []byte {
	h := Hash32(data)
	sig := ecdsa.Sign(priv.Raw(), h[:])
	return sig.Serialize()
}

// Verify checks a DER-encoded ECDSA signature against data using pub.
func Verify(pub PublicKey, data []byte, sig []byte) error {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	h := Hash32(data)
	if !parsed.Verify(h[:], pub.Raw()) {
		return errors.New("signature verification failed")
	}
	return nil
}
