package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/domain/service/mocks"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/memory"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/securestore"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

const (
	testEVMAddress    = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	testSolanaAddress = "11111111111111111111111111111111"
)

func quietLogger() logger.Logger {
	return logger.NewLogger(constants.LogLevelError, io.Discard)
}

// newEncryptedStore builds a secure store over an in-memory backend
// with an anonymous vault key.
func newEncryptedStore(t *testing.T) *securestore.Store {
	t.Helper()

	log := quietLogger()
	raw := memory.NewStore()
	vault := crypto.NewKeyVault(raw, log, 0)
	require.NoError(t, vault.Initialize(context.Background(), ""))
	return securestore.NewStore(raw, vault, log)
}

type registryFixture struct {
	registry  *service.WalletRegistry
	store     *securestore.Store
	oracle    *mocks.MockBalanceOracle
	connector *mocks.MockWalletConnector
}

func newRegistryFixture(t *testing.T, opts service.WalletRegistryOptions) *registryFixture {
	t.Helper()

	store := newEncryptedStore(t)
	oracle := &mocks.MockBalanceOracle{}
	connector := &mocks.MockWalletConnector{}
	registry := service.NewWalletRegistry(
		store,
		chains.NewRegistry(),
		oracle,
		map[constants.WalletSource]service.WalletConnector{
			constants.WalletSourceExtension: connector,
		},
		quietLogger(),
		opts,
	)
	return &registryFixture{registry: registry, store: store, oracle: oracle, connector: connector}
}

func TestWalletRegistry_AddManual(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	entry, ok := wallet.Get(constants.ChainEthereum)
	require.True(t, ok)
	assert.Equal(t, testEVMAddress, entry.Address)
	assert.False(t, entry.IsConnected)
	assert.Equal(t, constants.WalletSourceManual, entry.Source)
	assert.Nil(t, wallet.Primary, "manual entries never become primary")
}

func TestWalletRegistry_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		chain    constants.ChainID
		address  string
		wantCode constants.ErrorCode
	}{
		{
			name:     "unknown chain",
			chain:    constants.ChainID("dogecoin"),
			address:  testEVMAddress,
			wantCode: constants.ErrCodeValidationUnknownChain,
		},
		{
			name:     "evm address too short",
			chain:    constants.ChainEthereum,
			address:  "0x742d35cc",
			wantCode: constants.ErrCodeValidationBadFormat,
		},
		{
			name:     "evm address without prefix",
			chain:    constants.ChainPolygon,
			address:  "742d35cc6634c0532925a3b844bc454e4438f44e00",
			wantCode: constants.ErrCodeValidationBadFormat,
		},
		{
			name:     "solana address with invalid base58",
			chain:    constants.ChainSolana,
			address:  "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl",
			wantCode: constants.ErrCodeValidationBadFormat,
		},
	}

	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.registry.AddManual(ctx, tt.chain, tt.address)
			require.Error(t, err)
			assert.True(t, wgerrors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallet.Addresses, "rejected entries must not be stored")
}

func TestWalletRegistry_ConnectVia(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	f.connector.On("Connect", mock.Anything, constants.ChainSolana).
		Return(models.WalletAddress{Address: testSolanaAddress}, nil).Once()

	entry, err := f.registry.ConnectVia(ctx, constants.ChainSolana, constants.WalletSourceExtension)
	require.NoError(t, err)
	assert.True(t, entry.IsConnected)
	assert.Equal(t, constants.WalletSourceExtension, entry.Source)

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	require.NotNil(t, wallet.Primary)
	assert.Equal(t, constants.ChainSolana, *wallet.Primary, "first connected entry becomes primary")

	f.connector.AssertExpectations(t)
}

func TestWalletRegistry_ConnectViaMissingSource(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	_, err := f.registry.ConnectVia(ctx, constants.ChainEthereum, constants.WalletSourceHardware)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeConnectSourceUnavailable), "got %v", err)
}

func TestWalletRegistry_ConnectViaRejectsInvalidProvidedAddress(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	f.connector.On("Connect", mock.Anything, constants.ChainEthereum).
		Return(models.WalletAddress{Address: "not-an-address"}, nil).Once()

	_, err := f.registry.ConnectVia(ctx, constants.ChainEthereum, constants.WalletSourceExtension)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeValidationBadFormat), "got %v", err)

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallet.Addresses)
}

// TestWalletRegistry_PrimaryInvariant walks an add, connect,
// disconnect, remove sequence and checks after every step that a set
// primary always names a present, connected entry.
func TestWalletRegistry_PrimaryInvariant(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	checkInvariant := func(wantPrimary *constants.ChainID) {
		t.Helper()
		wallet, err := f.registry.Wallet(ctx)
		require.NoError(t, err)

		if wallet.Primary != nil {
			entry, ok := wallet.Get(*wallet.Primary)
			require.True(t, ok, "primary %s has no entry", *wallet.Primary)
			require.True(t, entry.IsConnected, "primary %s is disconnected", *wallet.Primary)
		}
		if wantPrimary == nil {
			assert.Nil(t, wallet.Primary)
		} else {
			require.NotNil(t, wallet.Primary)
			assert.Equal(t, *wantPrimary, *wallet.Primary)
		}
	}
	chainPtr := func(c constants.ChainID) *constants.ChainID { return &c }

	f.connector.On("Connect", mock.Anything, constants.ChainSolana).
		Return(models.WalletAddress{Address: testSolanaAddress}, nil).Once()
	f.connector.On("Connect", mock.Anything, constants.ChainPolygon).
		Return(models.WalletAddress{Address: testEVMAddress}, nil).Once()

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	checkInvariant(nil)

	_, err := f.registry.ConnectVia(ctx, constants.ChainSolana, constants.WalletSourceExtension)
	require.NoError(t, err)
	checkInvariant(chainPtr(constants.ChainSolana))

	_, err = f.registry.ConnectVia(ctx, constants.ChainPolygon, constants.WalletSourceExtension)
	require.NoError(t, err)
	checkInvariant(chainPtr(constants.ChainSolana))

	require.NoError(t, f.registry.Disconnect(ctx, constants.ChainSolana))
	checkInvariant(chainPtr(constants.ChainPolygon))

	require.NoError(t, f.registry.Remove(ctx, constants.ChainPolygon))
	checkInvariant(nil)

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	assert.True(t, wallet.Has(constants.ChainEthereum), "manual entry survives the sequence")
	assert.True(t, wallet.Has(constants.ChainSolana), "disconnected entry keeps its address")
}

func TestWalletRegistry_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainSolana, testSolanaAddress))

	reopened := service.NewWalletRegistry(
		f.store,
		chains.NewRegistry(),
		f.oracle,
		nil,
		quietLogger(),
		service.WalletRegistryOptions{},
	)

	wallet, err := reopened.Wallet(ctx)
	require.NoError(t, err)
	assert.Len(t, wallet.Addresses, 2)
	assert.True(t, wallet.Has(constants.ChainEthereum))
	assert.True(t, wallet.Has(constants.ChainSolana))
}

func TestWalletRegistry_PersistFailureLeavesSnapshotUntouched(t *testing.T) {
	ctx := context.Background()

	store := &mocks.MockSecureStore{}
	store.On("Get", mock.Anything, constants.StoreKeyWallet, mock.Anything).
		Return(false, nil).Once()
	store.On("Set", mock.Anything, constants.StoreKeyWallet, mock.Anything).
		Return(wgerrors.ErrStoreBackend("set", errors.New("disk full"))).Once()

	registry := service.NewWalletRegistry(
		store, chains.NewRegistry(), &mocks.MockBalanceOracle{}, nil,
		quietLogger(), service.WalletRegistryOptions{},
	)

	var events []models.WalletEvent
	unsubscribe := registry.Subscribe(func(e models.WalletEvent) { events = append(events, e) })
	defer unsubscribe()

	err := registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeStoreBackend), "got %v", err)

	wallet, err := registry.Wallet(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallet.Addresses, "failed persist must not mutate the snapshot")
	assert.Empty(t, events, "failed persist must not notify subscribers")
	store.AssertExpectations(t)
}

func TestWalletRegistry_RefreshBalanceCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{BalanceTTL: time.Minute})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))

	f.oracle.On("FetchBalance", mock.Anything, constants.ChainEthereum, testEVMAddress).
		Return("1.5", nil).Once()

	for range 3 {
		balance, err := f.registry.RefreshBalance(ctx, constants.ChainEthereum)
		require.NoError(t, err)
		assert.Equal(t, "1.5", balance)
	}

	f.oracle.AssertExpectations(t)
	f.oracle.AssertNumberOfCalls(t, "FetchBalance", 1)
}

func TestWalletRegistry_RefreshFailureKeepsPreviousBalance(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{BalanceTTL: 5 * time.Millisecond})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))

	f.oracle.On("FetchBalance", mock.Anything, constants.ChainEthereum, testEVMAddress).
		Return("2.0", nil).Once()
	f.oracle.On("FetchBalance", mock.Anything, constants.ChainEthereum, testEVMAddress).
		Return("", errors.New("rpc timeout")).Once()

	balance, err := f.registry.RefreshBalance(ctx, constants.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, "2.0", balance)

	time.Sleep(10 * time.Millisecond) // let the cached balance expire

	_, err = f.registry.RefreshBalance(ctx, constants.ChainEthereum)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeFetchFailed), "got %v", err)

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	entry, ok := wallet.Get(constants.ChainEthereum)
	require.True(t, ok)
	assert.Equal(t, "2.0", entry.Balance, "failed refresh must keep the previous balance")
}

func TestWalletRegistry_RefreshBalanceUnknownEntry(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	_, err := f.registry.RefreshBalance(ctx, constants.ChainEthereum)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeInvalidRequest), "got %v", err)
}

func TestWalletRegistry_RefreshAllSkipsFailedChains(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{
		BatchSize:  2,
		BatchDelay: time.Millisecond,
	})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainPolygon, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainArbitrum, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainSolana, testSolanaAddress))

	f.oracle.On("FetchBalance", mock.Anything, constants.ChainEthereum, testEVMAddress).Return("1.0", nil).Once()
	f.oracle.On("FetchBalance", mock.Anything, constants.ChainPolygon, testEVMAddress).Return("250.0", nil).Once()
	f.oracle.On("FetchBalance", mock.Anything, constants.ChainArbitrum, testEVMAddress).Return("0.5", nil).Once()
	f.oracle.On("FetchBalance", mock.Anything, constants.ChainSolana, testSolanaAddress).
		Return("", errors.New("rpc down")).Once()

	require.NoError(t, f.registry.RefreshAll(ctx), "individual failures must not fail the sweep")

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)

	wantBalances := map[constants.ChainID]string{
		constants.ChainEthereum: "1.0",
		constants.ChainPolygon:  "250.0",
		constants.ChainArbitrum: "0.5",
		constants.ChainSolana:   "",
	}
	for chain, want := range wantBalances {
		entry, ok := wallet.Get(chain)
		require.True(t, ok)
		assert.Equal(t, want, entry.Balance, "chain %s", chain)
	}
	f.oracle.AssertExpectations(t)
}

func TestWalletRegistry_EventOrdering(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	var got []constants.WalletEventType
	unsubscribe := f.registry.Subscribe(func(e models.WalletEvent) {
		got = append(got, e.Type)
	})

	f.connector.On("Connect", mock.Anything, constants.ChainSolana).
		Return(models.WalletAddress{Address: testSolanaAddress}, nil).Once()

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	_, err := f.registry.ConnectVia(ctx, constants.ChainSolana, constants.WalletSourceExtension)
	require.NoError(t, err)
	require.NoError(t, f.registry.Disconnect(ctx, constants.ChainSolana))
	require.NoError(t, f.registry.Remove(ctx, constants.ChainSolana))
	require.NoError(t, f.registry.ClearAll(ctx))

	want := []constants.WalletEventType{
		constants.EventWalletAdded,
		constants.EventWalletUpdated,
		constants.EventWalletConnected,
		constants.EventWalletDisconnected,
		constants.EventWalletRemoved,
		constants.EventWalletCleared,
	}
	assert.Equal(t, want, got)

	unsubscribe()
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	assert.Len(t, got, len(want), "unsubscribed handler must not receive events")
}

func TestWalletRegistry_EventCarriesSnapshotCopy(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	var captured *models.MultiChainWallet
	f.registry.Subscribe(func(e models.WalletEvent) { captured = e.Wallet })

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	require.NotNil(t, captured)

	// Mutating the delivered snapshot must not leak into the registry.
	captured.Addresses[0].Address = "0x0000000000000000000000000000000000000000"

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	entry, _ := wallet.Get(constants.ChainEthereum)
	assert.Equal(t, testEVMAddress, entry.Address)
}

func TestWalletRegistry_DisconnectUnknownChain(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	err := f.registry.Disconnect(ctx, constants.ChainEthereum)
	require.Error(t, err)
	assert.True(t, wgerrors.IsCode(err, constants.ErrCodeInvalidRequest), "got %v", err)
}

func TestWalletRegistry_ClearAll(t *testing.T) {
	ctx := context.Background()
	f := newRegistryFixture(t, service.WalletRegistryOptions{})

	require.NoError(t, f.registry.AddManual(ctx, constants.ChainEthereum, testEVMAddress))
	require.NoError(t, f.registry.AddManual(ctx, constants.ChainSolana, testSolanaAddress))
	require.NoError(t, f.registry.ClearAll(ctx))

	wallet, err := f.registry.Wallet(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallet.Addresses)
	assert.Nil(t, wallet.Primary)
}
