// Package securestore layers encryption and namespacing on top of a raw
// key-value backend. Every record is serialized to JSON, sealed by the
// key vault, and stored under a namespaced key so encrypted records are
// distinguishable from the vault's own bookkeeping entries.
package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/chainvault/walletgate/internal/domain/repository"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// Cipher is the encryption dependency of the store. The key vault
// satisfies it.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(blob string) ([]byte, error)
	IsReady() bool
}

// Store reads and writes encrypted records. A record that cannot be
// decrypted or parsed is reported as absent, not as an error: losing
// one corrupted record must never wedge the features built on top.
type Store struct {
	raw    repository.KVStore
	cipher Cipher
	logger logger.Logger
}

// NewStore creates a secure store over the given backend and cipher.
func NewStore(raw repository.KVStore, cipher Cipher, log logger.Logger) *Store {
	return &Store{
		raw:    raw,
		cipher: cipher,
		logger: log.WithComponent("secure_store"),
	}
}

func storageKey(key string) string {
	return constants.StoreKeyPrefix + key
}

// canaryKey marks a record whose only purpose is proving the cipher
// key matches the records already in the store.
const canaryKey = "vault_canary"

// reservedKey reports whether a backend key belongs to the vault or
// migration bookkeeping rather than to a user record.
func reservedKey(key string) bool {
	switch key {
	case constants.StoreKeySalt, constants.StoreKeyAnonKey, constants.StoreKeyAuditSecret, constants.StoreKeyMigrationDone:
		return true
	}
	return false
}

// Set serializes value to JSON, encrypts it, and stores it under the
// namespaced key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return wgerrors.ErrStoreSerialization(key).WithCause(err)
	}

	blob, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}

	if err := s.raw.RawSet(ctx, storageKey(key), []byte(blob)); err != nil {
		return wgerrors.ErrStoreBackend("set", err)
	}
	return nil
}

// Get decrypts the record under key into out and reports whether a
// usable record was found. A missing, undecryptable, or unparseable
// record yields (false, nil); only backend failures are errors.
func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.raw.RawGet(ctx, storageKey(key))
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return false, nil
		}
		return false, wgerrors.ErrStoreBackend("get", err)
	}

	plaintext, err := s.cipher.Decrypt(string(raw))
	if err != nil {
		s.logger.Warn(ctx, "Dropping record that failed decryption",
			logger.String("key", key),
			logger.Error(err),
		)
		return false, nil
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		s.logger.Warn(ctx, "Dropping record that failed deserialization",
			logger.String("key", key),
			logger.Error(err),
		)
		return false, nil
	}
	return true, nil
}

// VerifyCanary round-trips a marker record, writing it on first use.
// A marker that exists raw but does not decrypt means the cipher key
// does not match the store, and any write under the mismatched key
// would orphan every existing record. Callers should refuse to
// proceed on error.
func (s *Store) VerifyCanary(ctx context.Context) error {
	var marker string
	found, err := s.Get(ctx, canaryKey, &marker)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	if _, err := s.raw.RawGet(ctx, storageKey(canaryKey)); err == nil {
		return wgerrors.ErrKeyDecryptionFailed()
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		return wgerrors.ErrStoreBackend("get", err)
	}

	return s.Set(ctx, canaryKey, "ok")
}

// Remove deletes the record under key. Removing an absent record is
// not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.raw.RawRemove(ctx, storageKey(key)); err != nil {
		return wgerrors.ErrStoreBackend("remove", err)
	}
	return nil
}

// ClearAll removes every namespaced record. Vault bookkeeping entries
// (salt, anonymous key, migration marker) are left untouched so the
// installation keeps its identity.
func (s *Store) ClearAll(ctx context.Context) error {
	keys, err := s.raw.RawKeys(ctx)
	if err != nil {
		return wgerrors.ErrStoreBackend("keys", err)
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, constants.StoreKeyPrefix) {
			continue
		}
		if err := s.raw.RawRemove(ctx, key); err != nil {
			return wgerrors.ErrStoreBackend("remove", err)
		}
	}
	return nil
}

// MigrateLegacy upgrades records written by releases that stored
// plaintext JSON under un-namespaced keys. Each legacy record is
// encrypted, moved under the namespaced key, and the plaintext copy
// removed. The run is recorded under a marker key so later calls are
// no-ops; a failed run leaves the marker unset and can be retried.
func (s *Store) MigrateLegacy(ctx context.Context) error {
	if _, err := s.raw.RawGet(ctx, constants.StoreKeyMigrationDone); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		return wgerrors.ErrStoreBackend("get", err)
	}

	keys, err := s.raw.RawKeys(ctx)
	if err != nil {
		return wgerrors.ErrStoreBackend("keys", err)
	}

	migrated := 0
	for _, key := range keys {
		if strings.HasPrefix(key, constants.StoreKeyPrefix) || reservedKey(key) {
			continue
		}

		plaintext, err := s.raw.RawGet(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrKeyNotFound) {
				continue
			}
			return wgerrors.ErrStoreBackend("get", err)
		}

		if !json.Valid(plaintext) {
			s.logger.Warn(ctx, "Skipping legacy record that is not valid JSON",
				logger.String("key", key),
			)
			continue
		}

		blob, err := s.cipher.Encrypt(plaintext)
		if err != nil {
			return err
		}
		if err := s.raw.RawSet(ctx, storageKey(key), []byte(blob)); err != nil {
			return wgerrors.ErrStoreBackend("set", err)
		}
		if err := s.raw.RawRemove(ctx, key); err != nil {
			return wgerrors.ErrStoreBackend("remove", err)
		}
		migrated++
	}

	if err := s.raw.RawSet(ctx, constants.StoreKeyMigrationDone, []byte("done")); err != nil {
		return wgerrors.ErrStoreBackend("set", err)
	}

	if migrated > 0 {
		s.logger.Info(ctx, "Migrated legacy plaintext records",
			logger.Int("count", migrated),
		)
	}
	return nil
}
