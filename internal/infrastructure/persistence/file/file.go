// Package file provides a file-backed implementation of the KVStore
// contract. The whole store is a single JSON document on disk, loaded
// once at startup and rewritten atomically on every mutation. It is
// meant for single-host deployments and the CLI, where durability
// matters but a Redis dependency would be overkill.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chainvault/walletgate/internal/domain/repository"
)

var _ repository.KVStore = (*Store)(nil)

// Store persists a string-to-bytes map as a JSON file. Mutations are
// written via a temp file and rename so a crash mid-write never leaves
// a truncated store behind.
type Store struct {
	mu   sync.RWMutex
	path string
	db   map[string][]byte
}

// NewStore opens or creates the store file at path. Parent directories
// are created as needed. The file is written with 0600 permissions
// since it holds encrypted key material alongside regular records.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store file path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		path: path,
		db:   make(map[string][]byte),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the JSON document from disk into the in-memory map.
// A missing file is treated as an empty store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var raw map[string][]byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse store file %s: %w", s.path, err)
	}
	s.db = raw
	return nil
}

// flush writes the current map to disk atomically. Callers must hold
// the write lock.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
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

// RawSet stores value under key and flushes the store to disk.
func (s *Store) RawSet(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	previous, existed := s.db[key]
	s.db[key] = stored

	if err := s.flush(); err != nil {
		// Roll back the in-memory change so memory and disk stay in step.
		if existed {
			s.db[key] = previous
		} else {
			delete(s.db, key)
		}
		return err
	}
	return nil
}

// RawRemove deletes key and flushes the store. Removing an absent key
// is not an error and does not touch the disk.
func (s *Store) RawRemove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.db[key]
	if !existed {
		return nil
	}

	delete(s.db, key)
	if err := s.flush(); err != nil {
		s.db[key] = previous
		return err
	}
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

// Close flushes any in-memory state to disk one final time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}
