package handoff

import (
	"context"
	"sync"
	"time"
)

// MemoryChannel is the in-process Channel used when no Redis is configured.
type MemoryChannel struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   *Payload
	expiresAt time.Time
}

func NewMemoryChannel(ttl time.Duration) *MemoryChannel {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryChannel{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryChannel) Put(_ context.Context, key string, p *Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictExpiredLocked()
	if _, ok := m.entries[key]; ok {
		return ErrKeyExists
	}
	m.entries[key] = memoryEntry{payload: p, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryChannel) Take(_ context.Context, key string) (*Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictExpiredLocked()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.entries, key)
	return entry.payload, nil
}

func (m *MemoryChannel) evictExpiredLocked() {
	now := m.now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
