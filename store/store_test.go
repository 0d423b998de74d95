package store

import (
	"testing"

	"github.com/tolelom/diseq/storage"
	"github.com/tolelom/diseq/types"
)

func newTestDB(t *testing.T) (storage.DB, func()) {
	t.Helper()
	db, err := storage.NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	return db, func() { db.Close() }
}

func TestBlockStorePutGetHeight(t *testing.T) {
	db, closeDB := newTestDB(t)
	defer closeDB()
	bs := NewBlockStore(db)

	h, err := bs.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if h != 0 {
		t.Fatalf("expected height 0 on empty store, got %d", h)
	}

	genesis := &types.Block{Height: 0, Timestamp: 1}
	if err := bs.Put(genesis); err != nil {
		t.Fatalf("Put(genesis): %v", err)
	}
	block1 := &types.Block{Height: 1, Timestamp: 2}
	if err := bs.Put(block1); err != nil {
		t.Fatalf("Put(block1): %v", err)
	}

	h, err = bs.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if h != 2 {
		t.Fatalf("expected height 2 after two puts, got %d", h)
	}

	got, err := bs.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if got.Height != 1 {
		t.Errorf("Get(1).Height = %d, want 1", got.Height)
	}

	if !bs.Exists(0) || !bs.Exists(1) {
		t.Error("expected heights 0 and 1 to exist")
	}
	if bs.Exists(2) {
		t.Error("expected height 2 to not exist")
	}
}

func TestBlockStoreRejectsOverwrite(t *testing.T) {
	db, closeDB := newTestDB(t)
	defer closeDB()
	bs := NewBlockStore(db)

	b := &types.Block{Height: 0, Timestamp: 1}
	if err := bs.Put(b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := bs.Put(b); err == nil {
		t.Error("expected re-putting the same height to fail")
	}
}

func TestMessagePoolAppendAllReinitialize(t *testing.T) {
	db, closeDB := newTestDB(t)
	defer closeDB()
	pool := NewMessagePool(db)

	msgs := []types.Message{
		{Data: []byte("first"), Timestamp: 1},
		{Data: []byte("second"), Timestamp: 2},
		{Data: []byte("third"), Timestamp: 3},
	}
	for _, m := range msgs {
		if err := pool.Append(m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := pool.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != len(msgs) {
		t.Fatalf("All() returned %d messages, want %d", len(all), len(msgs))
	}
	for i, m := range msgs {
		if !all[i].Equal(m) {
			t.Errorf("message %d out of order or altered: got %+v want %+v", i, all[i], m)
		}
	}

	if err := pool.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	all, err = pool.All()
	if err != nil {
		t.Fatalf("All after Reinitialize: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty pool after Reinitialize, got %d messages", len(all))
	}
}

func TestMessagePoolAppendAloneDoesNotBlockResubmission(t *testing.T) {
	db, closeDB := newTestDB(t)
	defer closeDB()
	pool := NewMessagePool(db)

	// Admission alone (no MarkCommitted) must never poison the leaf key:
	// a proposal carrying this message may still lose split resolution and
	// never reach the trie, in which case the message has to stay
	// resubmittable.
	msg := types.Message{Data: []byte{1, 2, 3, 4, 5}, Timestamp: 0}
	if err := pool.Append(msg); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := pool.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	if err := pool.Append(msg); err != nil {
		t.Errorf("expected re-append to succeed when the message was never committed, got %v", err)
	}
}

func TestMessagePoolRejectsDuplicatePayloadAfterCommit(t *testing.T) {
	db, closeDB := newTestDB(t)
	defer closeDB()
	pool := NewMessagePool(db)

	msg := types.Message{Data: []byte{1, 2, 3, 4, 5}, Timestamp: 0}
	if err := pool.Append(msg); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := pool.MarkCommitted(msg.Data); err != nil {
		t.Fatalf("MarkCommitted: %v", err)
	}
	if err := pool.Append(msg); err != ErrDuplicateMessage {
		t.Errorf("expected ErrDuplicateMessage once the payload has been committed, got %v", err)
	}

	// Duplicate rejection survives a pool clear: the leaf has actually
	// been committed once and must not be accepted again.
	if err := pool.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	if err := pool.Append(msg); err != ErrDuplicateMessage {
		t.Errorf("expected ErrDuplicateMessage to survive Reinitialize, got %v", err)
	}
}
