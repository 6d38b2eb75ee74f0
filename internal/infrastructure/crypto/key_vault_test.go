package crypto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/infrastructure/persistence/memory"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

func newVault(t *testing.T, store *memory.Store, password string) *KeyVault {
	t.Helper()
	vault := NewKeyVault(store, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, vault.Initialize(context.Background(), password))
	return vault
}

func TestKeyVault_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "password mode", password: "correct horse battery staple"},
		{name: "anonymous mode", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault := newVault(t, memory.NewStore(), tt.password)

			plaintext := []byte(`{"chain":"Ethereum","balance":"12.5"}`)
			blob, err := vault.Encrypt(plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, string(plaintext), blob)

			decrypted, err := vault.Decrypt(blob)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestKeyVault_FreshNoncePerEncrypt(t *testing.T) {
	vault := newVault(t, memory.NewStore(), "pw")
	plaintext := []byte("same plaintext every time")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		blob, err := vault.Encrypt(plaintext)
		require.NoError(t, err)
		assert.False(t, seen[blob], "two encryptions produced an identical blob")
		seen[blob] = true
	}
}

func TestKeyVault_NotInitialized(t *testing.T) {
	vault := NewKeyVault(memory.NewStore(), logger.NewNoopLogger(), constants.PBKDF2Iterations)

	assert.False(t, vault.IsReady())

	_, err := vault.Encrypt([]byte("data"))
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeKeyNotInitialized))

	_, err = vault.Decrypt("AAAA")
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeKeyNotInitialized))
}

func TestKeyVault_SaltPersistsAcrossInstances(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := newVault(t, store, "pw")
	blob, err := first.Encrypt([]byte("survives restart"))
	require.NoError(t, err)

	// A second vault over the same store and password must derive the
	// same key from the persisted salt.
	second := NewKeyVault(store, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, second.Initialize(ctx, "pw"))

	decrypted, err := second.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("survives restart"), decrypted)

	// Exactly one salt record was written.
	raw, err := store.RawGet(ctx, constants.StoreKeySalt)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestKeyVault_AnonymousKeyPersistsAcrossInstances(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := newVault(t, store, "")
	blob, err := first.Encrypt([]byte("anonymous data"))
	require.NoError(t, err)

	second := NewKeyVault(store, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, second.Initialize(ctx, ""))

	decrypted, err := second.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("anonymous data"), decrypted)

	raw, err := store.RawGet(ctx, constants.StoreKeyAnonKey)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestKeyVault_WrongPasswordFailsDecrypt(t *testing.T) {
	store := memory.NewStore()

	first := newVault(t, store, "right password")
	blob, err := first.Encrypt([]byte("secret"))
	require.NoError(t, err)

	second := NewKeyVault(store, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, second.Initialize(context.Background(), "wrong password"))

	_, err = second.Decrypt(blob)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeKeyDecryptionFailed))
}

func TestKeyVault_DecryptRejectsGarbage(t *testing.T) {
	vault := newVault(t, memory.NewStore(), "pw")

	tests := []struct {
		name string
		blob string
	}{
		{name: "not base64", blob: "%%%not-base64%%%"},
		{name: "too short for nonce", blob: "AAAA"},
		{name: "tampered ciphertext", blob: func() string {
			blob, err := vault.Encrypt([]byte("data"))
			require.NoError(t, err)
			// Flip a character in the body to break GCM authentication.
			b := []byte(blob)
			if b[len(b)-5] == 'A' {
				b[len(b)-5] = 'B'
			} else {
				b[len(b)-5] = 'A'
			}
			return string(b)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vault.Decrypt(tt.blob)
			assert.True(t, wgerrors.IsCode(err, constants.ErrCodeKeyDecryptionFailed))
		})
	}
}

func TestKeyVault_IterationFloorEnforced(t *testing.T) {
	vault := NewKeyVault(memory.NewStore(), logger.NewNoopLogger(), 1000)
	assert.Equal(t, constants.PBKDF2Iterations, vault.iterations)
}
