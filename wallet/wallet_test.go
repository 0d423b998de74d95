package wallet

import (
	"path/filepath"
	"testing"
)

func TestKeystoreSaveLoadRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "validator.json")
	if err := SaveKey(path, "hunter2", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	loaded, err := LoadKey(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if loaded.Public().Hex() != w.PubKey() {
		t.Error("decrypted key does not match the original")
	}
}

func TestKeystoreWrongPasswordFails(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "validator.json")
	if err := SaveKey(path, "correct", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	if _, err := LoadKey(path, "wrong"); err == nil {
		t.Error("expected an error decrypting with the wrong password")
	}
}
