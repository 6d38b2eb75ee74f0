// Package memory provides an in-memory implementation of the KVStore
// contract. It is the default backend for tests and for ephemeral CLI
// sessions where nothing should survive process exit.
package memory

import (
	"context"
	"sync"

	"github.com/chainvault/walletgate/internal/domain/repository"
)

var _ repository.KVStore = (*Store)(nil)

// Store is a mutex-guarded map store. All values are copied on the way
// in and out so callers can never mutate the stored bytes.
type Store struct {
	mu sync.RWMutex
	db map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		db: make(map[string][]byte),
	}
}

// RawGet returns the value stored under key, or repository.ErrKeyNotFound
// when the key is absent.
func (s *Store) RawGet(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.db[key]
	if !ok {
		return nil, repository.ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// RawSet stores value under key, overwriting any previous value.
func (s *Store) RawSet(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.db[key] = stored
	return nil
}

// RawRemove deletes key. Removing an absent key is not an error.
func (s *Store) RawRemove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.db, key)
	return nil
}

// RawKeys returns a snapshot of all keys currently stored.
func (s *Store) RawKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.db))
	for key := range s.db {
		keys = append(keys, key)
	}
	return keys, nil
}

// Close releases the backing map.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db = make(map[string][]byte)
	return nil
}
