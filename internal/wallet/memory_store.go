package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory wallet store for demo/development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet // by wallet ID
	byOwner map[string]string  // owner ID -> wallet ID
	byEmail map[string]string  // owner email -> wallet ID
}

// NewMemoryStore creates a new in-memory wallet store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]*Wallet),
		byOwner: make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, w *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.wallets[w.ID]; exists {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	cp := *w
	m.wallets[w.ID] = &cp
	m.byOwner[w.OwnerID] = w.ID
	m.byEmail[w.OwnerEmail] = w.ID
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) GetByOwner(ctx context.Context, ownerID string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[ownerID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *m.wallets[id]
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *m.wallets[id]
	return &cp, nil
}

func (m *MemoryStore) Credit(ctx context.Context, id string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditLocked(id, amount)
}

func (m *MemoryStore) Debit(ctx context.Context, id string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(id, amount)
}

func (m *MemoryStore) Transfer(ctx context.Context, senderID, receiverID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[receiverID]; !ok {
		return ErrWalletNotFound
	}
	if err := m.debitLocked(senderID, amount); err != nil {
		return err
	}
	if err := m.creditLocked(receiverID, amount); err != nil {
		// Undo the debit so the pair stays all-or-nothing.
		_ = m.creditLocked(senderID, amount)
		return err
	}
	return nil
}

func (m *MemoryStore) creditLocked(id string, amount float64) error {
	w, ok := m.wallets[id]
	if !ok {
		return ErrWalletNotFound
	}
	w.Balance += amount
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) debitLocked(id string, amount float64) error {
	w, ok := m.wallets[id]
	if !ok {
		return ErrWalletNotFound
	}
	if w.Balance < amount {
		return insufficientErr(w.Balance)
	}
	w.Balance -= amount
	w.UpdatedAt = time.Now().UTC()
	return nil
}
