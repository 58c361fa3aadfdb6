package counter

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process [Store]. Expiry is evaluated lazily against Now,
// which tests replace to move time forward.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	Now func() time.Time
}

// NewMemory returns an empty in-memory store using the wall clock.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
		Now:     time.Now,
	}
}

// live returns the entry for key, dropping it first if it has expired.
// Callers must hold m.mu.
func (m *Memory) live(key string) *memoryEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) IncrFixed(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.incr(key)
	if e.expiresAt.IsZero() && ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	return e.value, nil
}

func (m *Memory) IncrSliding(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.incr(key)
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	return e.value, nil
}

// Callers must hold m.mu.
func (m *Memory) incr(key string) *memoryEntry {
	e := m.live(key)
	if e == nil {
		e = &memoryEntry{}
		m.entries[key] = e
	}
	e.value++
	return e
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.live(key); e != nil {
		return e.value, nil
	}
	return 0, nil
}

func (m *Memory) SetNX(_ context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live(key) != nil {
		return false, nil
	}
	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.entries[key] = e
	return true, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.Now()), nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}
