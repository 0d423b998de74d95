package crypto

import (
	"encoding/hex"
	"testing"
)

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 130 {
		t.Errorf("pubkey hex length: got %d want 130", len(pub.Hex()))
	}
	addr := pub.Address()
	if len(addr) != 40 {
		t.Errorf("address length: got %d want 40", len(addr))
	}
	derived := priv.Public()
	if !derived.Equal(pub) {
		t.Error("derived public key does not match")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello diseq")
	sig := Sign(priv, data)
	if err := Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("same input every time")
	sig1 := Sign(priv, data)
	sig2 := Sign(priv, data)
	if string(sig1) != string(sig2) {
		t.Error("expected deterministic ECDSA signatures to match across calls")
	}
}

func TestPrivKeyHexRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := PrivKeyFromHex(hex.EncodeToString(priv.Bytes()))
	if err != nil {
		t.Fatalf("PrivKeyFromHex: %v", err)
	}
	if !decoded.Public().Equal(pub) {
		t.Error("round-tripped private key derives a different public key")
	}
}
