// Package repository defines the domain persistence contracts.
// The secure store and key vault depend only on these interfaces; drivers live
// under internal/infrastructure/persistence.
package repository

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by RawGet when no value exists under the key.
var ErrKeyNotFound = errors.New("store does not have a value associated with this key")

// KVStore is the raw string key-value backend beneath the secure store. It is
// the only non-volatile dependency of the whole subsystem. Values are opaque
// strings; encryption happens above this interface.
//
// Implementations: internal/infrastructure/persistence/memory,
// internal/infrastructure/persistence/file,
// internal/infrastructure/persistence/redis.
type KVStore interface {
	// RawGet returns the value stored under key, or ErrKeyNotFound.
	RawGet(ctx context.Context, key string) ([]byte, error)

	// RawSet stores value under key, replacing any previous value.
	RawSet(ctx context.Context, key string, value []byte) error

	// RawRemove deletes the value under key. Removing an absent key is not an
	// error.
	RawRemove(ctx context.Context, key string) error

	// RawKeys lists every key currently stored.
	RawKeys(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
