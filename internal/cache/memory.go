package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is a process-local TTL cache guarding the cross-run global
// prechecks (provider health, change history) against repeated lookups.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]entry)}
}

// Get returns the cached bytes or ErrCacheMiss when absent or expired.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	e, ok := p.data[key]
	p.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		p.mu.Lock()
		delete(p.data, key)
		p.mu.Unlock()
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores bytes with an optional TTL; ttl <= 0 means no expiry.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	p.mu.Lock()
	p.data[key] = entry{value: stored, expiresAt: expires}
	p.mu.Unlock()
	return nil
}

// Del removes the key if present.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.data, key)
	p.mu.Unlock()
	return nil
}

// Close releases the backing map.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	p.data = make(map[string]entry)
	p.mu.Unlock()
	return nil
}
