package securestore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/memory"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/securestore"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

type record struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

func newTestStore(t *testing.T) (*securestore.Store, *memory.Store) {
	t.Helper()

	raw := memory.NewStore()
	vault := crypto.NewKeyVault(raw, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, vault.Initialize(context.Background(), "test password"))

	return securestore.NewStore(raw, vault, logger.NewNoopLogger()), raw
}

func TestStore_SetGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	in := record{Chain: "Ethereum", Address: "0xabc"}
	require.NoError(t, store.Set(ctx, "wallet", in))

	var out record
	found, err := store.Get(ctx, "wallet", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	var out record
	found, err := store.Get(context.Background(), "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RecordsAreEncryptedAndNamespaced(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "wallet", record{Chain: "Solana", Address: "abc"}))

	// The backend must hold the record under the namespaced key only.
	_, err := raw.RawGet(ctx, "wallet")
	assert.Error(t, err)

	blob, err := raw.RawGet(ctx, constants.StoreKeyPrefix+"wallet")
	require.NoError(t, err)

	// The stored blob must not be the plaintext JSON.
	assert.False(t, json.Valid(blob), "stored blob looks like plaintext JSON")
	assert.NotContains(t, string(blob), "Solana")
}

func TestStore_CorruptedRecordReportsAbsent(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "wallet", record{Chain: "Bitcoin"}))

	// Corrupt the stored blob directly in the backend.
	require.NoError(t, raw.RawSet(ctx, constants.StoreKeyPrefix+"wallet", []byte("not a valid blob")))

	var out record
	found, err := store.Get(ctx, "wallet", &out)
	require.NoError(t, err, "corruption must not surface as an error")
	assert.False(t, found)
}

func TestStore_Remove(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "wallet", record{Chain: "Bitcoin"}))
	require.NoError(t, store.Remove(ctx, "wallet"))

	var out record
	found, err := store.Get(ctx, "wallet", &out)
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent record must not fail.
	assert.NoError(t, store.Remove(ctx, "wallet"))
}

func TestStore_ClearAllKeepsVaultBookkeeping(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "wallet", record{Chain: "Bitcoin"}))
	require.NoError(t, store.Set(ctx, "permissions", record{Chain: "Ethereum"}))

	require.NoError(t, store.ClearAll(ctx))

	var out record
	for _, key := range []string{"wallet", "permissions"} {
		found, err := store.Get(ctx, key, &out)
		require.NoError(t, err)
		assert.False(t, found, "record %s survived ClearAll", key)
	}

	// The salt must survive so the same password still derives the key.
	_, err := raw.RawGet(ctx, constants.StoreKeySalt)
	assert.NoError(t, err)
}

func TestStore_VerifyCanary(t *testing.T) {
	raw := memory.NewStore()
	ctx := context.Background()

	vault := crypto.NewKeyVault(raw, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, vault.Initialize(ctx, "correct password"))
	store := securestore.NewStore(raw, vault, logger.NewNoopLogger())

	// First call writes the marker, later calls with the same key pass.
	require.NoError(t, store.VerifyCanary(ctx))
	require.NoError(t, store.Set(ctx, "wallet", record{Chain: "Ethereum"}))
	require.NoError(t, store.VerifyCanary(ctx))

	// A vault unlocked with the wrong password must be rejected before it
	// can write anything.
	wrongVault := crypto.NewKeyVault(raw, logger.NewNoopLogger(), constants.PBKDF2Iterations)
	require.NoError(t, wrongVault.Initialize(ctx, "wrong password"))
	wrongStore := securestore.NewStore(raw, wrongVault, logger.NewNoopLogger())

	err := wrongStore.VerifyCanary(ctx)
	require.Error(t, err)

	// The original key still reads its records.
	var out record
	found, err := store.Get(ctx, "wallet", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStore_MigrateLegacy(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	// A plaintext record written by a release before encryption at rest.
	legacy := []byte(`{"chain":"Polygon","address":"0x123"}`)
	require.NoError(t, raw.RawSet(ctx, "wallet", legacy))

	require.NoError(t, store.MigrateLegacy(ctx))

	// The plaintext copy is gone and the record reads back through the
	// encrypted path.
	_, err := raw.RawGet(ctx, "wallet")
	assert.Error(t, err)

	var out record
	found, err := store.Get(ctx, "wallet", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Chain: "Polygon", Address: "0x123"}, out)
}

func TestStore_MigrateLegacyIsIdempotent(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, raw.RawSet(ctx, "wallet", []byte(`{"chain":"Base"}`)))

	require.NoError(t, store.MigrateLegacy(ctx))

	blobAfterFirst, err := raw.RawGet(ctx, constants.StoreKeyPrefix+"wallet")
	require.NoError(t, err)

	// A second run must change nothing, including the stored blob.
	require.NoError(t, store.MigrateLegacy(ctx))

	blobAfterSecond, err := raw.RawGet(ctx, constants.StoreKeyPrefix+"wallet")
	require.NoError(t, err)
	assert.Equal(t, blobAfterFirst, blobAfterSecond)

	// And a legacy-looking key written after migration stays put.
	require.NoError(t, raw.RawSet(ctx, "late_arrival", []byte(`{"chain":"ICP"}`)))
	require.NoError(t, store.MigrateLegacy(ctx))
	_, err = raw.RawGet(ctx, "late_arrival")
	assert.NoError(t, err)
}

func TestStore_MigrateLegacySkipsVaultKeysAndGarbage(t *testing.T) {
	store, raw := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, raw.RawSet(ctx, "broken", []byte("not json at all")))

	require.NoError(t, store.MigrateLegacy(ctx))

	// The salt must never be treated as a legacy record.
	_, err := raw.RawGet(ctx, constants.StoreKeySalt)
	assert.NoError(t, err)

	// Garbage records are left in place rather than destroyed.
	_, err = raw.RawGet(ctx, "broken")
	assert.NoError(t, err)
}
