package chain

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory block store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks []*Block
}

// NewMemoryStore creates a new in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make([]*Block, 0)}
}

func (m *MemoryStore) Append(ctx context.Context, block *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *block
	m.blocks = append(m.blocks, &cp)
	return nil
}

func (m *MemoryStore) Tail(ctx context.Context) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.blocks) == 0 {
		return nil, ErrBlockNotFound
	}
	cp := *m.blocks[len(m.blocks)-1]
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Block, len(m.blocks))
	for i, b := range m.blocks {
		cp := *b
		result[i] = &cp
	}
	return result, nil
}

func (m *MemoryStore) GetByTransaction(ctx context.Context, txID string) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.blocks {
		if strings.EqualFold(b.TransactionID, txID) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBlockNotFound
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks), nil
}

// Corrupt overwrites the previousHash of the block at index. Test helper for
// exercising validation; never used by production code paths.
func (m *MemoryStore) Corrupt(index int, previousHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= 0 && index < len(m.blocks) {
		m.blocks[index].PreviousHash = previousHash
	}
}
