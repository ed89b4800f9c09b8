package transactions

import (
	"context"
	"strings"
	"sync"

	"github.com/securechain/securechain/internal/pagination"
)

// MemoryStore is an in-memory record store for demo/development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record // insertion order, oldest first
	byID    map[string]*Record
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Record)}
}

func (m *MemoryStore) Insert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records = append(m.records, &cp)
	m.byID[strings.ToLower(cp.ID)] = &cp
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[strings.ToLower(rec.ID)]
	if !ok {
		return ErrNotFound
	}
	*stored = *rec
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[strings.ToLower(id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]*Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*Record, 0, len(m.records))
	// Newest first.
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if !matches(rec, f) {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}

	total := len(matched)
	if f.Page > 0 && f.PerPage > 0 {
		matched = pagination.Slice(matched, f.Page, f.PerPage)
	}
	return matched, total, nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, len(m.records))
	for i, rec := range m.records {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) ListByIdentity(ctx context.Context, identity string, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := m.records[i]
		if strings.EqualFold(rec.Sender, identity) || strings.EqualFold(rec.Receiver, identity) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountBySender(ctx context.Context, identity string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if strings.EqualFold(rec.Sender, identity) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountByReceiver(ctx context.Context, identity string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if strings.EqualFold(rec.Receiver, identity) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func matches(rec *Record, f Filter) bool {
	if f.Status != "" && !strings.EqualFold(rec.Status, f.Status) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rec.Sender), q) &&
			!strings.Contains(strings.ToLower(rec.Receiver), q) &&
			!strings.Contains(strings.ToLower(rec.ID), q) {
			return false
		}
	}
	return true
}
