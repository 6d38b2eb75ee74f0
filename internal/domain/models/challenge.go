// This file contains the authorization challenge and execution authorization
// models with their lifecycle logic.
package models

import (
	"fmt"
	"time"

	"github.com/chainvault/walletgate/pkg/constants"
)

// AuthorizationChallenge is a time-boxed signing request bound to one
// (strategy, capital amount) pair. A challenge is consumed at most once; an
// expired or consumed challenge is always rejected.
type AuthorizationChallenge struct {
	// ID is the unique challenge identifier.
	ID string `json:"id"`

	// StrategyID names the strategy this challenge authorizes.
	StrategyID string `json:"strategy_id"`

	// CapitalAmount is the USD amount bound to this challenge.
	CapitalAmount float64 `json:"capital_amount"`

	// ChallengeMessage is the exact human-readable text the wallet signs.
	ChallengeMessage string `json:"challenge_message"`

	// Chain is the chain family expected to produce the signature.
	Chain constants.ChainID `json:"chain"`

	// Address is the signing address the signature must recover to.
	Address string `json:"address"`

	// IssuedAt is the challenge creation time.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is always IssuedAt plus the fixed challenge TTL.
	ExpiresAt time.Time `json:"expires_at"`

	// Consumed flips to true when a valid signature mints an authorization.
	Consumed bool `json:"consumed"`
}

// NewAuthorizationChallenge creates a challenge for the given strategy, amount,
// and signing address. The expiry window is fixed at the challenge TTL; callers
// cannot extend it.
//
// Parameters:
//   - id: The unique challenge id (caller-generated).
//   - strategyID: The strategy to authorize.
//   - amount: The capital amount in USD.
//   - chain: The chain expected to sign.
//   - address: The address expected to sign.
//
// Returns:
//   - *AuthorizationChallenge: The issued challenge.
func NewAuthorizationChallenge(id, strategyID string, amount float64, chain constants.ChainID, address string) *AuthorizationChallenge {
	now := time.Now().UTC()
	return &AuthorizationChallenge{
		ID:               id,
		StrategyID:       strategyID,
		CapitalAmount:    amount,
		ChallengeMessage: BuildChallengeMessage(strategyID, amount, now),
		Chain:            chain,
		Address:          address,
		IssuedAt:         now,
		ExpiresAt:        now.Add(constants.ChallengeTTL),
	}
}

// BuildChallengeMessage renders the exact text presented to the wallet for
// signing. Signers and verifiers must agree on this byte-for-byte.
func BuildChallengeMessage(strategyID string, amount float64, issuedAt time.Time) string {
	return fmt.Sprintf(
		"WalletGate Strategy Execution Authorization\n"+
			"Strategy ID: %s\n"+
			"Execution Amount: $%.2f\n"+
			"Issued At: %s\n\n"+
			"By signing this message, you authorize this strategy to execute with your connected wallets.",
		strategyID, amount, issuedAt.Format(time.RFC3339),
	)
}

// IsExpired reports whether the challenge is past its expiry at the given time.
func (c *AuthorizationChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Status derives the lifecycle state at the given time.
func (c *AuthorizationChallenge) Status(now time.Time) constants.ChallengeStatus {
	switch {
	case c.Consumed:
		return constants.ChallengeStatusConsumed
	case c.IsExpired(now):
		return constants.ChallengeStatusExpired
	default:
		return constants.ChallengeStatusIssued
	}
}

// ExecutionAuthorization is the single-use token minted from a verified
// challenge. Callers treat it as opaque beyond its ID.
type ExecutionAuthorization struct {
	// ID is the unique authorization identifier.
	ID string `json:"id"`

	// StrategyID is carried over from the consumed challenge.
	StrategyID string `json:"strategy_id"`

	// Amount is carried over from the consumed challenge.
	Amount float64 `json:"amount"`

	// BoundChallengeID names the challenge this authorization consumed.
	BoundChallengeID string `json:"bound_challenge_id"`

	// IssuedAt is the minting time.
	IssuedAt time.Time `json:"issued_at"`
}

// ActivationReceipt is the execution gate's proof that a strategy was activated
// through a fully authorized flow.
type ActivationReceipt struct {
	// AuthorizationID is the authorization that gated the execution.
	AuthorizationID string `json:"authorization_id"`

	// StrategyID is the activated strategy.
	StrategyID string `json:"strategy_id"`

	// Amount is the authorized capital amount.
	Amount float64 `json:"amount"`

	// ExecutionRef is the executor's reference for the submitted execution.
	ExecutionRef string `json:"execution_ref"`

	// ActivatedAt is the activation time.
	ActivatedAt time.Time `json:"activated_at"`
}
