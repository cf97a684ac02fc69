package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend with TTL bookkeeping. It backs tests
// and small single-node deployments that do not want Redis at all.
type MemoryBackend struct {
	entries   map[string]memoryEntry
	available bool
	now       func() time.Time
	mu        sync.RWMutex
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryBackend creates an available in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries:   make(map[string]memoryEntry),
		available: true,
		now:       time.Now,
	}
}

// SetAvailable toggles the simulated reachability of the backend
func (b *MemoryBackend) SetAvailable(available bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available = available
}

// SetClock overrides the time source, for TTL tests
func (b *MemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Available reports the simulated reachability
func (b *MemoryBackend) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

func (b *MemoryBackend) live(key string) (memoryEntry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		delete(b.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// Get reads a key
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return nil, ErrUnavailable
	}
	e, ok := b.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Put writes a key with a TTL
func (b *MemoryBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return ErrUnavailable
	}
	var expires time.Time
	if ttl > 0 {
		expires = b.now().Add(ttl)
	}
	b.entries[key] = memoryEntry{value: value, expiresAt: expires}
	return nil
}

// Delete removes a key
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return ErrUnavailable
	}
	delete(b.entries, key)
	return nil
}

// List returns all live keys under a prefix
func (b *MemoryBackend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return nil, ErrUnavailable
	}
	var keys []string
	for k := range b.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := b.live(k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Touch slides the TTL of an existing key
func (b *MemoryBackend) Touch(ctx context.Context, key string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return ErrUnavailable
	}
	e, ok := b.live(key)
	if !ok {
		return ErrNotFound
	}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	b.entries[key] = e
	return nil
}

// TTL returns the remaining lifetime of a key
func (b *MemoryBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return 0, ErrUnavailable
	}
	e, ok := b.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(b.now()), nil
}
