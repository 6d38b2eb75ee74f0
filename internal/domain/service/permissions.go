package service

import (
	"context"
	"sync"
	"time"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// PermissionGuard enforces the user's execution policy: which chains
// may authorize executions and how much may be authorized per UTC day.
// The policy and the spending ledger live in the secure store; a
// missing policy record means the default policy.
type PermissionGuard struct {
	store  SecureStore
	logger logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewPermissionGuard creates a guard over the given store.
func NewPermissionGuard(store SecureStore, log logger.Logger) *PermissionGuard {
	return &PermissionGuard{
		store:  store,
		logger: log.WithComponent("permission_guard"),
		now:    time.Now,
	}
}

// Permissions returns the stored policy, or the default policy when
// none is stored.
func (g *PermissionGuard) Permissions(ctx context.Context) (*models.UserPermissions, error) {
	permissions := &models.UserPermissions{}
	found, err := g.store.Get(ctx, constants.StoreKeyPermissions, permissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.DefaultUserPermissions(), nil
	}
	return permissions, nil
}

// SetPermissions replaces the stored policy.
func (g *PermissionGuard) SetPermissions(ctx context.Context, permissions *models.UserPermissions) error {
	if permissions == nil {
		return wgerrors.ErrInvalidRequest("permissions are required")
	}
	if permissions.MaxDailyExecutionAmount < 0 {
		return wgerrors.ErrInvalidRequest("max daily execution amount must not be negative")
	}
	return g.store.Set(ctx, constants.StoreKeyPermissions, permissions)
}

// EnsureChainAllowed rejects chains outside the policy's allowed set.
func (g *PermissionGuard) EnsureChainAllowed(ctx context.Context, chain constants.ChainID) error {
	permissions, err := g.Permissions(ctx)
	if err != nil {
		return err
	}
	if !permissions.IsChainAllowed(chain) {
		return wgerrors.ErrChainNotAllowed(chain)
	}
	return nil
}

// EnsureWithinDailyLimit rejects amounts that would push the current
// UTC day's authorized total past the policy cap.
func (g *PermissionGuard) EnsureWithinDailyLimit(ctx context.Context, amount float64) error {
	permissions, err := g.Permissions(ctx)
	if err != nil {
		return err
	}
	spent, err := g.SpentToday(ctx)
	if err != nil {
		return err
	}
	if spent+amount > permissions.MaxDailyExecutionAmount {
		return wgerrors.ErrDailyLimitExceeded(amount, spent, permissions.MaxDailyExecutionAmount)
	}
	return nil
}

// SpentToday returns the authorized total for the current UTC day.
func (g *PermissionGuard) SpentToday(ctx context.Context) (float64, error) {
	ledger, err := g.ledger(ctx)
	if err != nil {
		return 0, err
	}
	return ledger.SpentOn(g.now()), nil
}

// RecordSpend adds an authorized amount to the current UTC day bucket
// and prunes buckets past the retention window.
func (g *PermissionGuard) RecordSpend(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return wgerrors.ErrInvalidRequest("amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ledger, err := g.ledger(ctx)
	if err != nil {
		return err
	}

	now := g.now()
	ledger.Add(now, amount)
	ledger.Prune(now, constants.SpendingRetentionDays)

	if err := g.store.Set(ctx, constants.StoreKeySpending, ledger); err != nil {
		return err
	}

	g.logger.Info(ctx, "Recorded authorized spend",
		logger.Float64("amount", amount),
		logger.Float64("spent_today", ledger.SpentOn(now)),
	)
	return nil
}

// PruneLedger drops spending buckets past the retention window and
// reports how many were removed. RecordSpend prunes as it writes, so
// this only matters for stores that stopped seeing spends.
func (g *PermissionGuard) PruneLedger(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger, err := g.ledger(ctx)
	if err != nil {
		return 0, err
	}

	removed := ledger.Prune(g.now(), constants.SpendingRetentionDays)
	if removed == 0 {
		return 0, nil
	}
	if err := g.store.Set(ctx, constants.StoreKeySpending, ledger); err != nil {
		return 0, err
	}
	return removed, nil
}

func (g *PermissionGuard) ledger(ctx context.Context) (*models.SpendingLedger, error) {
	ledger := models.NewSpendingLedger()
	found, err := g.store.Get(ctx, constants.StoreKeySpending, ledger)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.NewSpendingLedger(), nil
	}
	return ledger, nil
}
