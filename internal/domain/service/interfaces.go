// Package service holds the domain services: the wallet registry, the
// authorization protocol, and the collaborator interfaces they depend
// on. Implementations of the collaborators live in infrastructure or
// in the embedding application.
package service

import (
	"context"
	"time"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// WalletConnector abstracts an external wallet provider (browser
// extension, mobile app, hardware bridge). Implementations block until
// the user approves or rejects, so both methods honor context
// cancellation.
type WalletConnector interface {
	// Connect asks the provider for an address on the given chain.
	// Returns ErrCodeConnectSourceUnavailable when no provider is
	// present and ErrCodeConnectUserRejected when the user declines.
	Connect(ctx context.Context, chain constants.ChainID) (models.WalletAddress, error)

	// SignMessage asks the provider to sign message with the key
	// behind address. Returns the signature in the chain family's
	// native encoding (hex for EVM, base58 for Solana).
	SignMessage(ctx context.Context, chain constants.ChainID, address, message string) (string, error)
}

// BalanceOracle fetches live balances from chain infrastructure.
type BalanceOracle interface {
	// FetchBalance returns the display balance for address on chain.
	// Failures return ErrCodeFetchFailed; callers keep the previous
	// balance on error.
	FetchBalance(ctx context.Context, chain constants.ChainID, address string) (string, error)
}

// StrategyExecutor activates a strategy once authorization succeeded.
// It is the only collaborator allowed to move funds, and it is never
// invoked without a consumed challenge.
type StrategyExecutor interface {
	// Execute runs the strategy and returns an execution reference.
	Execute(ctx context.Context, authorization *models.ExecutionAuthorization, wallets []models.WalletAddress) (string, error)
}

// SignatureVerifier checks wallet signatures over challenge messages.
type SignatureVerifier interface {
	// Verify returns nil when signature over message was produced by
	// the key behind address on the given chain.
	Verify(chain constants.ChainID, address, message, signature string) error

	// SupportsSigning reports whether the chain's wallets can sign
	// challenges at all.
	SupportsSigning(chain constants.ChainID) bool
}

// SecureStore persists domain records encrypted at rest. The
// infrastructure secure store implements it.
type SecureStore interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, out any) (bool, error)
	Remove(ctx context.Context, key string) error
	ClearAll(ctx context.Context) error
}

// ChallengeLimiter throttles challenge issuance per signing address.
type ChallengeLimiter interface {
	Allow(address string) bool
}

// SessionManager mints and validates post-authorization session
// tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID, strategyID, authorizationID string, now time.Time) (*models.AuthSession, error)
	Validate(ctx context.Context, token string) (*models.AuthSession, error)
}

// AuditTrail records authorization decisions. The infrastructure HMAC
// trail writer implements it.
type AuditTrail interface {
	Record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) error
}
