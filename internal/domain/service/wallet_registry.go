package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// WalletRegistryOptions tunes caching and refresh behavior. Zero
// values fall back to the defaults in pkg/constants.
type WalletRegistryOptions struct {
	BalanceTTL   time.Duration
	BatchSize    int
	BatchDelay   time.Duration
	FetchTimeout time.Duration
}

func (o WalletRegistryOptions) withDefaults() WalletRegistryOptions {
	if o.BalanceTTL <= 0 {
		o.BalanceTTL = constants.BalanceCacheTTL
	}
	if o.BatchSize <= 0 {
		o.BatchSize = constants.RefreshBatchSize
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = constants.RefreshBatchDelay
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	return o
}

// WalletRegistry owns the multi-chain wallet snapshot. Every mutation
// runs as one serialized sequence: validate, mutate a copy, persist
// the copy through the secure store, swap it in, then notify
// subscribers. A persistence failure leaves the in-memory snapshot
// untouched, so memory never runs ahead of disk.
type WalletRegistry struct {
	store      SecureStore
	chains     *chains.Registry
	oracle     BalanceOracle
	connectors map[constants.WalletSource]WalletConnector
	balances   *cache.Cache
	events     *eventBroadcaster
	logger     logger.Logger
	opts       WalletRegistryOptions

	mu     sync.Mutex
	wallet *models.MultiChainWallet
	loaded bool
}

// NewWalletRegistry creates a registry over the given collaborators.
// The connectors map may be nil when only manual addresses are used.
func NewWalletRegistry(
	store SecureStore,
	chainRegistry *chains.Registry,
	oracle BalanceOracle,
	connectors map[constants.WalletSource]WalletConnector,
	log logger.Logger,
	opts WalletRegistryOptions,
) *WalletRegistry {
	opts = opts.withDefaults()
	return &WalletRegistry{
		store:      store,
		chains:     chainRegistry,
		oracle:     oracle,
		connectors: connectors,
		balances:   cache.New(opts.BalanceTTL, 2*opts.BalanceTTL),
		events:     newEventBroadcaster(log),
		logger:     log.WithComponent("wallet_registry"),
		opts:       opts,
	}
}

// Subscribe registers a wallet event handler and returns its
// unsubscribe function. Handlers run synchronously on the mutating
// goroutine, in registration order, so events always arrive in
// mutation order. A handler must not call back into the registry.
func (r *WalletRegistry) Subscribe(handler WalletEventHandler) func() {
	return r.events.Subscribe(handler)
}

// ensureLoaded populates the snapshot from the secure store on first
// access. A missing or corrupted record starts an empty wallet. Must
// be called with the lock held.
func (r *WalletRegistry) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	wallet := models.NewMultiChainWallet()
	found, err := r.store.Get(ctx, constants.StoreKeyWallet, wallet)
	if err != nil {
		return err
	}
	if !found {
		wallet = models.NewMultiChainWallet()
	}
	wallet.EnsurePrimary()

	r.wallet = wallet
	r.loaded = true
	return nil
}

// commit persists next, swaps it in, and notifies subscribers. Must be
// called with the lock held.
func (r *WalletRegistry) commit(ctx context.Context, next *models.MultiChainWallet, eventType constants.WalletEventType, chain constants.ChainID) error {
	next.LastSyncAt = time.Now().UTC()

	if err := r.store.Set(ctx, constants.StoreKeyWallet, next); err != nil {
		return err
	}
	r.wallet = next

	r.events.publish(ctx, models.WalletEvent{
		Type:   eventType,
		Chain:  chain,
		Wallet: next.Clone(),
		At:     next.LastSyncAt,
	})
	return nil
}

// validateEntry checks the chain is registered and the address passes
// its format validator.
func (r *WalletRegistry) validateEntry(chain constants.ChainID, address string) error {
	if _, ok := r.chains.Lookup(chain); !ok {
		return wgerrors.ErrUnknownChain(chain)
	}
	if !r.chains.Validate(chain, address) {
		return wgerrors.ErrBadAddressFormat(chain, address)
	}
	return nil
}

// AddOrUpdateAddress upserts the entry for entry.Chain. The first
// connected entry becomes primary when none is set.
func (r *WalletRegistry) AddOrUpdateAddress(ctx context.Context, entry models.WalletAddress) error {
	if err := r.validateEntry(entry.Chain, entry.Address); err != nil {
		return err
	}
	if entry.LastUpdated.IsZero() {
		entry.LastUpdated = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	next := r.wallet.Clone()
	added := next.Upsert(entry)

	eventType := constants.EventWalletUpdated
	if added {
		eventType = constants.EventWalletAdded
	}
	return r.commit(ctx, next, eventType, entry.Chain)
}

// AddManual registers an address supplied by the user. Manual entries
// start disconnected; they can hold balances but never sign.
func (r *WalletRegistry) AddManual(ctx context.Context, chain constants.ChainID, address string) error {
	return r.AddOrUpdateAddress(ctx, models.WalletAddress{
		Chain:       chain,
		Address:     address,
		IsConnected: false,
		Source:      constants.WalletSourceManual,
		LastUpdated: time.Now().UTC(),
	})
}

// ConnectVia obtains an address from the provider registered for
// source and stores it as a connected entry.
func (r *WalletRegistry) ConnectVia(ctx context.Context, chain constants.ChainID, source constants.WalletSource) (models.WalletAddress, error) {
	if _, ok := r.chains.Lookup(chain); !ok {
		return models.WalletAddress{}, wgerrors.ErrUnknownChain(chain)
	}

	connector, ok := r.connectors[source]
	if !ok || connector == nil {
		return models.WalletAddress{}, wgerrors.ErrSourceUnavailable(chain, source)
	}

	// The provider interaction blocks on user approval; it runs
	// outside the registry lock.
	provided, err := connector.Connect(ctx, chain)
	if err != nil {
		return models.WalletAddress{}, err
	}

	entry := models.WalletAddress{
		Chain:       chain,
		Address:     provided.Address,
		Balance:     provided.Balance,
		IsConnected: true,
		Source:      source,
		LastUpdated: time.Now().UTC(),
	}
	if !r.chains.Validate(chain, entry.Address) {
		return models.WalletAddress{}, wgerrors.ErrBadAddressFormat(chain, entry.Address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return models.WalletAddress{}, err
	}

	next := r.wallet.Clone()
	next.Upsert(entry)

	if err := r.commit(ctx, next, constants.EventWalletConnected, chain); err != nil {
		return models.WalletAddress{}, err
	}
	return entry, nil
}

// Disconnect flips the chain's entry to disconnected, keeping the
// address. Primary reassigns to another connected entry or clears.
func (r *WalletRegistry) Disconnect(ctx context.Context, chain constants.ChainID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	next := r.wallet.Clone()
	if !next.SetConnected(chain, false) {
		return wgerrors.ErrInvalidRequest(fmt.Sprintf("no wallet registered for chain %s", chain))
	}
	return r.commit(ctx, next, constants.EventWalletDisconnected, chain)
}

// Remove deletes the chain's entry entirely.
func (r *WalletRegistry) Remove(ctx context.Context, chain constants.ChainID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	entry, ok := r.wallet.Get(chain)
	if !ok {
		return wgerrors.ErrInvalidRequest(fmt.Sprintf("no wallet registered for chain %s", chain))
	}

	next := r.wallet.Clone()
	next.Remove(chain)
	r.balances.Delete(balanceCacheKey(chain, entry.Address))

	return r.commit(ctx, next, constants.EventWalletRemoved, chain)
}

// Wallet returns a deep copy of the current snapshot.
func (r *WalletRegistry) Wallet(ctx context.Context) (*models.MultiChainWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.wallet.Clone(), nil
}

// Primary returns the primary entry, if one is set.
func (r *WalletRegistry) Primary(ctx context.Context) (models.WalletAddress, bool, error) {
	wallet, err := r.Wallet(ctx)
	if err != nil {
		return models.WalletAddress{}, false, err
	}
	entry, ok := wallet.PrimaryAddress()
	return entry, ok, nil
}

// ClearAll wipes every entry and the balance cache.
func (r *WalletRegistry) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	r.balances.Flush()
	return r.commit(ctx, models.NewMultiChainWallet(), constants.EventWalletCleared, "")
}

func balanceCacheKey(chain constants.ChainID, address string) string {
	return string(chain) + ":" + address
}

// RefreshBalance returns the chain's balance, from cache when fresh,
// otherwise from the oracle. A failed or timed-out fetch returns an
// error and leaves both the cached and the stored balance untouched.
func (r *WalletRegistry) RefreshBalance(ctx context.Context, chain constants.ChainID) (string, error) {
	r.mu.Lock()
	if err := r.ensureLoaded(ctx); err != nil {
		r.mu.Unlock()
		return "", err
	}
	entry, ok := r.wallet.Get(chain)
	r.mu.Unlock()

	if !ok {
		return "", wgerrors.ErrInvalidRequest(fmt.Sprintf("no wallet registered for chain %s", chain))
	}

	key := balanceCacheKey(chain, entry.Address)
	if cached, found := r.balances.Get(key); found {
		return cached.(string), nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	balance, err := r.oracle.FetchBalance(fetchCtx, chain, entry.Address)
	if err != nil {
		r.logger.Warn(ctx, "Balance refresh failed, keeping previous balance",
			logger.String("chain", string(chain)),
			logger.Error(err),
		)
		return "", wgerrors.ErrBalanceFetchFailed(chain, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.wallet.Clone()
	if !next.SetBalance(chain, balance) {
		// The entry was removed while the fetch was in flight; do not
		// resurrect it.
		return balance, nil
	}

	if err := r.commit(ctx, next, constants.EventBalanceRefreshed, chain); err != nil {
		return "", err
	}
	r.balances.Set(key, balance, cache.DefaultExpiration)
	return balance, nil
}

// RefreshAll refreshes every registered chain in fixed-size batches
// with a pause between batches. The pacing is upstream-rate-limit
// backpressure. Individual failures are logged and skipped; the first
// context cancellation aborts the remaining batches.
func (r *WalletRegistry) RefreshAll(ctx context.Context) error {
	wallet, err := r.Wallet(ctx)
	if err != nil {
		return err
	}

	chainIDs := make([]constants.ChainID, 0, len(wallet.Addresses))
	for _, entry := range wallet.Addresses {
		chainIDs = append(chainIDs, entry.Chain)
	}

	for start := 0; start < len(chainIDs); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(chainIDs) {
			end = len(chainIDs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, chain := range chainIDs[start:end] {
			g.Go(func() error {
				_, err := r.RefreshBalance(gctx, chain)
				if err == nil {
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn(gctx, "Skipping failed refresh",
					logger.String("chain", string(chain)),
					logger.Error(err),
				)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if end < len(chainIDs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.BatchDelay):
			}
		}
	}
	return nil
}
