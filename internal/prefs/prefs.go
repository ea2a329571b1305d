// Package prefs persists scalar preferences and the cached lock snapshot as
// string key/value pairs.
package prefs

import (
	"strconv"
	"sync"
)

// Store is a generic key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// String reads key, returning def when absent or unreadable.
func String(s Store, key, def string) string {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def
	}
	return v
}

// Bool reads a boolean, returning def when absent or malformed.
func Bool(s Store, key string, def bool) bool {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int64 reads an integer, returning def when absent or malformed.
func Int64(s Store, key string, def int64) int64 {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func SetBool(s Store, key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}

func SetInt64(s Store, key string, v int64) error {
	return s.Set(key, strconv.FormatInt(v, 10))
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
