// Package securestore persists the ledger counters so that they survive
// restarts and cannot be edited in place without detection.
package securestore

import (
	"context"
	"errors"
	"sync"
)

const (
	KeyCreditBalance = "ruya_credit_balance"
	KeyDemoUsage     = "ruya_demo_usage_count"
)

var (
	// ErrTampered is returned when a sealed value fails authentication.
	ErrTampered = errors.New("sealed value failed authentication")
	// ErrKeyMismatch is returned when the device secret differs from the one
	// the store was created with.
	ErrKeyMismatch = errors.New("device secret does not match sealed store")
)

// CounterStore is an integer key/value store.
type CounterStore interface {
	// Int returns the value under key; found is false when it was never set.
	Int(ctx context.Context, key string) (value int, found bool, err error)
	SetInt(ctx context.Context, key string, value int) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps counters in memory. It is used by tests and by
// ephemeral runs that do not need persistence.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int)}
}

func (m *MemoryStore) Int(_ context.Context, key string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetInt(_ context.Context, key string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
