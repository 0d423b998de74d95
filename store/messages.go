package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tolelom/diseq/storage"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/types"
)

const (
	messagePrefix = "pool:msg:"
	seqKey        = "pool:seq"
	leafSeenKey   = "pool:seen:"
)

// MessagePool is the pending-message queue awaiting the next proposed
// block. Its mutex is held only inside each of its own methods and never
// while taking another lock.
type MessagePool struct {
	mu sync.Mutex
	db storage.DB
}

// NewMessagePool wraps db as a MessagePool.
func NewMessagePool(db storage.DB) *MessagePool {
	return &MessagePool{db: db}
}

// ErrDuplicateMessage is returned when a message's payload leaf key has
// been marked by MarkCommitted, which the consensus engine calls for each
// message of a block it commits. Duplicate rejection happens here at
// admission time, not as a fatal trie-insert error. Blocks applied by the
// syncer do not mark their payloads, so those payloads are still admitted.
var ErrDuplicateMessage = fmt.Errorf("store: duplicate message payload")

// Append admits msg into the pool with the next autoincrement key, unless
// its payload's trie leaf key has already been marked committed (via
// MarkCommitted), in which case it is rejected with ErrDuplicateMessage.
// Admission itself never marks a key as seen: a message only becomes
// unresubmittable once it actually lands in the trie (§4.8), so a proposal
// that loses split resolution (§4.6) leaves its messages resubmittable.
func (p *MessagePool) Append(msg types.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := trie.LeafKeyHex(msg.Data)
	seen, err := p.db.Get([]byte(leafSeenKey + key))
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if seen != nil {
		return ErrDuplicateMessage
	}

	seq, err := p.nextSeq()
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: encode message: %w", err)
	}
	return p.db.Set(messageDBKey(seq), data)
}

// MarkCommitted records payload's trie leaf key as seen. Called once per
// message actually inserted into the trie during block commit (§4.8), so
// that only messages which truly reached the trie become unresubmittable.
func (p *MessagePool) MarkCommitted(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := trie.LeafKeyHex(payload)
	return p.db.Set([]byte(leafSeenKey+key), []byte{1})
}

// All returns every pending message in insertion order.
func (p *MessagePool) All() ([]types.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it := p.db.NewIterator([]byte(messagePrefix))
	defer it.Release()

	var msgs []types.Message
	for it.Next() {
		var m types.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("store: decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Reinitialize drops every pending message. The leaf-seen index is left
// intact: a message already committed to the trie must stay rejected even
// after the pool that held it is cleared.
func (p *MessagePool) Reinitialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it := p.db.NewIterator([]byte(messagePrefix))
	defer it.Release()

	batch := p.db.NewBatch()
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		batch.Delete(key)
	}
	if err := it.Error(); err != nil {
		return err
	}
	return batch.Write()
}

func (p *MessagePool) nextSeq() (uint64, error) {
	data, err := p.db.Get([]byte(seqKey))
	if err == storage.ErrNotFound {
		return 0, p.db.Set([]byte(seqKey), encodeSeq(1))
	}
	if err != nil {
		return 0, err
	}
	seq := binary.BigEndian.Uint64(data)
	if err := p.db.Set([]byte(seqKey), encodeSeq(seq+1)); err != nil {
		return 0, err
	}
	return seq, nil
}

func encodeSeq(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}

func messageDBKey(seq uint64) []byte {
	return append([]byte(messagePrefix), encodeSeq(seq)...)
}
