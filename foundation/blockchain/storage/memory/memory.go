// Package memory implements the key-value store in memory using maps. It is
// used by tests and by nodes that don't need the chain to survive a restart.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
)

// Memory represents the key-value store implementation for keeping ledger
// data in memory. This implements the storage.KV interface.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	sets   map[string]map[string]struct{}
	closed bool
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

// Get returns the value for the specified key.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("get", key); err != nil {
		return "", err
	}

	v, exists := m.values[key]
	if !exists {
		return "", storage.ErrNotFound
	}

	return v, nil
}

// Set stores the value under the key, overwriting any previous value.
func (m *Memory) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("set", key); err != nil {
		return err
	}

	m.values[key] = value
	return nil
}

// SetNX stores the value only if the key does not exist yet. It reports
// whether the value was stored.
func (m *Memory) SetNX(ctx context.Context, key string, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("setnx", key); err != nil {
		return false, err
	}

	if _, exists := m.values[key]; exists {
		return false, nil
	}

	m.values[key] = value
	return true, nil
}

// Exists reports whether the key holds a value.
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("exists", key); err != nil {
		return false, err
	}

	_, exists := m.values[key]
	return exists, nil
}

// KeysWithSuffix returns every key ending with the suffix in sorted order.
func (m *Memory) KeysWithSuffix(ctx context.Context, suffix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("keys", suffix); err != nil {
		return nil, err
	}

	var keys []string
	for k := range m.values {
		if strings.HasSuffix(k, suffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// SAdd adds the member to the set. It reports whether the member is new.
func (m *Memory) SAdd(ctx context.Context, set string, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("sadd", set); err != nil {
		return false, err
	}

	members, exists := m.sets[set]
	if !exists {
		members = make(map[string]struct{})
		m.sets[set] = members
	}

	if _, exists := members[member]; exists {
		return false, nil
	}

	members[member] = struct{}{}
	return true, nil
}

// SIsMember reports whether the member belongs to the set.
func (m *Memory) SIsMember(ctx context.Context, set string, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("sismember", set); err != nil {
		return false, err
	}

	_, exists := m.sets[set][member]
	return exists, nil
}

// SMembers returns the members of the set in sorted order.
func (m *Memory) SMembers(ctx context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("smembers", set); err != nil {
		return nil, err
	}

	members := make([]string, 0, len(m.sets[set]))
	for member := range m.sets[set] {
		members = append(members, member)
	}
	sort.Strings(members)

	return members, nil
}

// Ping reports whether the store is usable.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.check("ping", "")
}

// Close marks the store as closed. Every later call fails with
// storage.ErrUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// =============================================================================

// check must be called while holding the lock.
func (m *Memory) check(op string, key string) error {
	if m.closed {
		return storage.Unavailable(op, key, errClosed)
	}
	return nil
}

var errClosed = errors.New("memory store closed")
