package prefstore

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local SessionStore.
type Memory struct {
	mu      sync.Mutex
	entries map[string]map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value   string
	expires time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]map[string]memEntry), now: time.Now}
}

// Get implements SessionStore.
func (m *Memory) Get(_ context.Context, session, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[session][key]
	if !ok || !m.now().Before(e.expires) {
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set implements SessionStore.
func (m *Memory) Set(_ context.Context, session, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[session] == nil {
		m.entries[session] = make(map[string]memEntry)
	}
	m.entries[session][key] = memEntry{value: value, expires: m.now().Add(ttl)}
	return nil
}

// Delete implements SessionStore.
func (m *Memory) Delete(_ context.Context, session string) error {
	m.mu.Lock()
	delete(m.entries, session)
	m.mu.Unlock()
	return nil
}

// Ping implements SessionStore.
func (m *Memory) Ping(context.Context) error { return nil }
