package syncutil

import "sync"

// KeyedPermit is a non-blocking mutual-exclusion permit keyed by string.
// TryAcquire either takes the permit for a key immediately or reports that
// another holder has it; it never queues. Used to reject duplicate in-flight
// operations (e.g. a second deposit from the same user) instead of
// serializing them.
type KeyedPermit struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedPermit creates an empty permit set.
func NewKeyedPermit() *KeyedPermit {
	return &KeyedPermit{held: make(map[string]struct{})}
}

// TryAcquire takes the permit for key. Returns false if it is already held.
func (p *KeyedPermit) TryAcquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.held[key]; busy {
		return false
	}
	p.held[key] = struct{}{}
	return true
}

// Release returns the permit for key. Safe to call for a key that is not held.
func (p *KeyedPermit) Release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.held, key)
}

// Held reports whether the permit for key is currently taken.
func (p *KeyedPermit) Held(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.held[key]
	return busy
}
