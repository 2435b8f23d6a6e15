// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/neuralliquid/portal/internal/store"
)

// NewStore opens a SQLite database in a temp dir, closed on cleanup.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "portal.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ErrMissing is returned by PrefMap for absent keys.
var ErrMissing = errors.New("testutil: key not set")

// PrefMap is an in-memory theme.Store that records writes.
type PrefMap struct {
	mu     sync.Mutex
	Values map[string]string
	TTLs   map[string]time.Duration
}

// NewPrefMap returns a PrefMap seeded with key/value pairs.
func NewPrefMap(kv ...string) *PrefMap {
	p := &PrefMap{Values: map[string]string{}, TTLs: map[string]time.Duration{}}
	for i := 0; i+1 < len(kv); i += 2 {
		p.Values[kv[i]] = kv[i+1]
	}
	return p
}

// Get implements theme.Store.
func (p *PrefMap) Get(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.Values[key]
	if !ok {
		return "", ErrMissing
	}
	return v, nil
}

// Set implements theme.Store.
func (p *PrefMap) Set(key, value string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Values[key] = value
	p.TTLs[key] = ttl
	return nil
}

// FailingStore is a theme.Store whose every call fails.
type FailingStore struct{ Err error }

// Get implements theme.Store.
func (f FailingStore) Get(string) (string, error) { return "", f.Err }

// Set implements theme.Store.
func (f FailingStore) Set(string, string, time.Duration) error { return f.Err }
