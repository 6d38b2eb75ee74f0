// Package crypto provides the encryption key vault, signature
// verification for wallet-signed challenges, and session token signing.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/chainvault/walletgate/internal/domain/repository"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// KeyVault derives and holds the AES-256 key that protects every record
// the secure store writes. It supports two provenance modes:
//
//   - password mode: the key is derived with PBKDF2-HMAC-SHA256 from a
//     user password and a random per-installation salt. Only the salt is
//     persisted; the key exists in memory only.
//   - anonymous mode: a random key is generated once and persisted in
//     the backing store, base64-encoded. Anyone who can read the store
//     can read the key, so this mode protects against casual inspection
//     and disk scraping, not against an attacker with store access.
//
// Encrypt and Decrypt operate on opaque base64 blobs laid out as
// nonce || ciphertext, with a fresh random nonce per call.
type KeyVault struct {
	store      repository.KVStore
	logger     logger.Logger
	iterations int

	mu    sync.RWMutex
	aead  cipher.AEAD
	ready bool
}

// NewKeyVault creates a vault over the given raw store. Iteration
// counts below the floor are raised to it; weaker derivation is never
// honored.
func NewKeyVault(store repository.KVStore, log logger.Logger, iterations int) *KeyVault {
	if iterations < constants.PBKDF2Iterations {
		iterations = constants.PBKDF2Iterations
	}
	return &KeyVault{
		store:      store,
		logger:     log.WithComponent("key_vault"),
		iterations: iterations,
	}
}

// Initialize derives or loads the encryption key and prepares the AEAD.
// An empty password selects anonymous mode. Initialize is idempotent;
// calling it again rebuilds the AEAD from the same persisted material.
func (v *KeyVault) Initialize(ctx context.Context, password string) error {
	var (
		key []byte
		err error
	)
	if password != "" {
		key, err = v.deriveFromPassword(ctx, password)
	} else {
		key, err = v.loadOrCreateAnonymousKey(ctx)
	}
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return wgerrors.ErrKeyUnsupportedEnvironment("cipher construction failed").WithCause(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return wgerrors.ErrKeyUnsupportedEnvironment("GCM construction failed").WithCause(err)
	}

	v.mu.Lock()
	v.aead = aead
	v.ready = true
	v.mu.Unlock()

	mode := "password"
	if password == "" {
		mode = "anonymous"
	}
	v.logger.Info(ctx, "Key vault initialized", logger.String("mode", mode))
	return nil
}

// deriveFromPassword loads the persisted salt, creating one on first
// use, and stretches the password into a 256-bit key.
func (v *KeyVault) deriveFromPassword(ctx context.Context, password string) ([]byte, error) {
	salt, err := v.loadOrCreateRandom(ctx, constants.StoreKeySalt, constants.KeySaltSize)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key([]byte(password), salt, v.iterations, constants.AESKeySize, sha256.New), nil
}

// loadOrCreateAnonymousKey returns the persisted random key, generating
// and persisting one on first use.
func (v *KeyVault) loadOrCreateAnonymousKey(ctx context.Context) ([]byte, error) {
	return v.loadOrCreateRandom(ctx, constants.StoreKeyAnonKey, constants.AESKeySize)
}

// loadOrCreateRandom fetches size random bytes persisted under key,
// creating them when absent. Values are stored base64-encoded.
func (v *KeyVault) loadOrCreateRandom(ctx context.Context, key string, size int) ([]byte, error) {
	stored, err := v.store.RawGet(ctx, key)
	if err == nil {
		decoded, decErr := base64.StdEncoding.DecodeString(string(stored))
		if decErr != nil || len(decoded) != size {
			return nil, wgerrors.ErrKeyUnsupportedEnvironment("persisted key material is malformed")
		}
		return decoded, nil
	}
	if !errors.Is(err, repository.ErrKeyNotFound) {
		return nil, wgerrors.ErrStoreBackend("get", err)
	}

	fresh := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, fresh); err != nil {
		return nil, wgerrors.ErrKeyUnsupportedEnvironment("secure random source unavailable").WithCause(err)
	}

	encoded := base64.StdEncoding.EncodeToString(fresh)
	if err := v.store.RawSet(ctx, key, []byte(encoded)); err != nil {
		return nil, wgerrors.ErrStoreBackend("set", err)
	}
	return fresh, nil
}

// IsReady reports whether Initialize has completed successfully.
func (v *KeyVault) IsReady() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

// AuditSecret returns the persisted HMAC key for the audit trail,
// base64-encoded, creating it on first use. It lives beside the other
// vault material so one store wipe revokes everything together.
func (v *KeyVault) AuditSecret(ctx context.Context) (string, error) {
	secret, err := v.loadOrCreateRandom(ctx, constants.StoreKeyAuditSecret, constants.AESKeySize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(secret), nil
}

// Encrypt seals plaintext under a fresh random nonce and returns a
// base64 blob of nonce || ciphertext.
func (v *KeyVault) Encrypt(plaintext []byte) (string, error) {
	v.mu.RLock()
	aead := v.aead
	ready := v.ready
	v.mu.RUnlock()

	if !ready {
		return "", wgerrors.ErrKeyNotInitialized()
	}

	nonce := make([]byte, constants.GCMNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", wgerrors.ErrKeyUnsupportedEnvironment("secure random source unavailable").WithCause(err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Any tampering, truncation, or key mismatch
// surfaces as a single decryption-failed error; GCM authentication
// makes the cases indistinguishable by construction.
func (v *KeyVault) Decrypt(blob string) ([]byte, error) {
	v.mu.RLock()
	aead := v.aead
	ready := v.ready
	v.mu.RUnlock()

	if !ready {
		return nil, wgerrors.ErrKeyNotInitialized()
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, wgerrors.ErrKeyDecryptionFailed().WithCause(err)
	}
	if len(raw) < constants.GCMNonceSize {
		return nil, wgerrors.ErrKeyDecryptionFailed()
	}

	nonce := raw[:constants.GCMNonceSize]
	ciphertext := raw[constants.GCMNonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, wgerrors.ErrKeyDecryptionFailed().WithCause(err)
	}
	return plaintext, nil
}
