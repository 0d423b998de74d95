package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tolelom/diseq/storage"
	"github.com/tolelom/diseq/types"
)

const (
	blockPrefix = "block:height:"
	heightKey   = "block:count"
)

// BlockStore is the height-indexed block KV store. Its mutex is held only
// inside each of its own methods and never while taking another lock.
type BlockStore struct {
	mu sync.Mutex
	db storage.DB
}

// NewBlockStore wraps db as a BlockStore.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// Put appends b at b.Height, provided no block is already stored there,
// and bumps the stored block count. Callers are expected to append only
// at Height() (the next free height); Put itself just enforces that
// a height is never silently overwritten.
func (s *BlockStore) Put(b *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(b.Height); err == nil {
		return fmt.Errorf("store: block at height %d already exists", b.Height)
	} else if err != ErrNotFound {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("store: encode block: %w", err)
	}
	if err := s.db.Set(heightDBKey(b.Height), data); err != nil {
		return err
	}

	count, err := s.height()
	if err != nil {
		return err
	}
	if b.Height >= count {
		return s.setHeight(b.Height + 1)
	}
	return nil
}

// Get returns the block stored at height.
func (s *BlockStore) Get(height uint32) (*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(height)
}

func (s *BlockStore) get(height uint32) (*types.Block, error) {
	data, err := s.db.Get(heightDBKey(height))
	if err == storage.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b types.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("store: decode block: %w", err)
	}
	return &b, nil
}

// Exists reports whether a block is stored at height.
func (s *BlockStore) Exists(height uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.get(height)
	return err == nil
}

// Height returns current_block_height: the count of stored blocks, i.e.
// one past the highest stored height.
func (s *BlockStore) Height() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height()
}

func (s *BlockStore) height() (uint32, error) {
	data, err := s.db.Get([]byte(heightKey))
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

func (s *BlockStore) setHeight(h uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], h)
	return s.db.Set([]byte(heightKey), buf[:])
}

func heightDBKey(height uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], height)
	return append([]byte(blockPrefix), buf[:]...)
}
