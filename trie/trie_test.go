package trie

import (
	"testing"

	"github.com/tolelom/diseq/storage"
)

func newTestTrie(t *testing.T) (*Trie, func()) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	tr := New(NewNodeStore(db))
	return tr, func() { db.Close() }
}

func TestInsertAndProof(t *testing.T) {
	tr, closeDB := newTestTrie(t)
	defer closeDB()

	value := []byte{1, 2, 3, 4, 5}
	root, inserted, err := tr.Insert(value)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}
	if root == nil {
		t.Fatal("expected non-nil root after insert")
	}

	proof, err := tr.GenerateProof(value)
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	ok, err := Verify(root, value, proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("expected proof to verify against root")
	}
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	tr, closeDB := newTestTrie(t)
	defer closeDB()

	value := []byte("repeat me")
	root1, inserted1, err := tr.Insert(value)
	if err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if !inserted1 {
		t.Fatal("expected first insert to report inserted=true")
	}

	root2, inserted2, err := tr.Insert(value)
	if err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if inserted2 {
		t.Error("duplicate insert should report inserted=false")
	}
	if string(root1) != string(root2) {
		t.Error("duplicate insert should not change the root")
	}
}

func TestMultipleLeavesShareTrie(t *testing.T) {
	tr, closeDB := newTestTrie(t)
	defer closeDB()

	values := [][]byte{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	var root []byte
	for _, v := range values {
		r, inserted, err := tr.Insert(v)
		if err != nil {
			t.Fatalf("Insert(%v): %v", v, err)
		}
		if !inserted {
			t.Fatalf("Insert(%v): expected inserted=true", v)
		}
		root = r
	}

	for _, v := range values {
		proof, err := tr.GenerateProof(v)
		if err != nil {
			t.Fatalf("GenerateProof(%v): %v", v, err)
		}
		ok, err := Verify(root, v, proof)
		if err != nil {
			t.Fatalf("Verify(%v): %v", v, err)
		}
		if !ok {
			t.Errorf("Verify(%v): expected proof to hold against final root", v)
		}
	}
}

func TestProofFailsForMissingValue(t *testing.T) {
	tr, closeDB := newTestTrie(t)
	defer closeDB()

	if _, _, err := tr.Insert([]byte("present")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := tr.GenerateProof([]byte("absent")); err != ErrLeafNotFound {
		t.Errorf("expected ErrLeafNotFound, got %v", err)
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	tr, closeDB := newTestTrie(t)
	defer closeDB()

	value := []byte("anchor")
	_, _, err := tr.Insert(value)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	proof, err := tr.GenerateProof(value)
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}

	wrongRoot := []byte("not the real root, wrong length even")
	ok, err := Verify(wrongRoot, value, proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("expected verification against a wrong root to fail")
	}
}
