package dto

import (
	"time"

	"github.com/chainvault/walletgate/internal/domain/models"
)

// ChallengeCreateRequest asks for a signing challenge bound to one
// strategy and amount.
type ChallengeCreateRequest struct {
	StrategyID string  `json:"strategy_id" validate:"required,min=1,max=128"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Chain      string  `json:"chain" validate:"required,max=32,chain_format"`
	Address    string  `json:"address" validate:"required,min=1,max=128"`
}

// ChallengeResponse describes an issued challenge. The message is the
// exact text the wallet must sign.
type ChallengeResponse struct {
	ID         string  `json:"id"`
	StrategyID string  `json:"strategy_id"`
	Amount     float64 `json:"amount"`
	Message    string  `json:"message"`
	Chain      string  `json:"chain"`
	Address    string  `json:"address"`
	Status     string  `json:"status"`
	IssuedAt   int64   `json:"issued_at"`
	ExpiresAt  int64   `json:"expires_at"`
}

// SignatureSubmitRequest submits a wallet signature for the challenge
// named in the request path.
type SignatureSubmitRequest struct {
	Signature string `json:"signature" validate:"required,min=1"`
}

// AuthorizationResponse is the single-use authorization minted from a
// verified signature.
type AuthorizationResponse struct {
	ID               string  `json:"id"`
	StrategyID       string  `json:"strategy_id"`
	Amount           float64 `json:"amount"`
	BoundChallengeID string  `json:"bound_challenge_id"`
	IssuedAt         int64   `json:"issued_at"`
}

// ActivationRequest runs the full authorization and activation flow
// for a strategy.
type ActivationRequest struct {
	UserID         string   `json:"user_id" validate:"required,min=1,max=128"`
	StrategyID     string   `json:"strategy_id" validate:"required,min=1,max=128"`
	Amount         float64  `json:"amount" validate:"required,gt=0"`
	RequiredChains []string `json:"required_chains" validate:"required,min=1,dive,chain_format"`
}

// ActivationResponse is the receipt of a fully authorized activation.
type ActivationResponse struct {
	AuthorizationID  string  `json:"authorization_id"`
	StrategyID       string  `json:"strategy_id"`
	Amount           float64 `json:"amount"`
	ExecutionRef     string  `json:"execution_ref"`
	ActivatedAt      int64   `json:"activated_at"`
	SessionToken     string  `json:"session_token,omitempty"`
	SessionExpiresAt int64   `json:"session_expires_at,omitempty"`
}

// PermissionsRequest replaces the user execution policy.
type PermissionsRequest struct {
	MaxDailyExecutionAmount float64  `json:"max_daily_execution_amount" validate:"gte=0"`
	AllowedChains           []string `json:"allowed_chains" validate:"omitempty,dive,chain_format"`
}

// PermissionsResponse is the stored policy plus today's usage.
type PermissionsResponse struct {
	MaxDailyExecutionAmount float64  `json:"max_daily_execution_amount"`
	AllowedChains           []string `json:"allowed_chains,omitempty"`
	SpentToday              float64  `json:"spent_today"`
}

// SessionResponse describes a validated session without echoing the
// token back.
type SessionResponse struct {
	UserID          string `json:"user_id"`
	StrategyID      string `json:"strategy_id"`
	AuthorizationID string `json:"authorization_id"`
	IssuedAt        int64  `json:"issued_at"`
	ExpiresAt       int64  `json:"expires_at"`
}

// NewChallengeResponse converts a domain challenge.
func NewChallengeResponse(challenge models.AuthorizationChallenge, now time.Time) *ChallengeResponse {
	return &ChallengeResponse{
		ID:         challenge.ID,
		StrategyID: challenge.StrategyID,
		Amount:     challenge.CapitalAmount,
		Message:    challenge.ChallengeMessage,
		Chain:      string(challenge.Chain),
		Address:    challenge.Address,
		Status:     string(challenge.Status(now)),
		IssuedAt:   challenge.IssuedAt.Unix(),
		ExpiresAt:  challenge.ExpiresAt.Unix(),
	}
}

// NewAuthorizationResponse converts a domain authorization.
func NewAuthorizationResponse(authorization *models.ExecutionAuthorization) *AuthorizationResponse {
	return &AuthorizationResponse{
		ID:               authorization.ID,
		StrategyID:       authorization.StrategyID,
		Amount:           authorization.Amount,
		BoundChallengeID: authorization.BoundChallengeID,
		IssuedAt:         authorization.IssuedAt.Unix(),
	}
}

// NewPermissionsResponse converts the stored policy and today's spend.
func NewPermissionsResponse(permissions *models.UserPermissions, spentToday float64) *PermissionsResponse {
	response := &PermissionsResponse{
		MaxDailyExecutionAmount: permissions.MaxDailyExecutionAmount,
		SpentToday:              spentToday,
	}
	for _, chain := range permissions.AllowedChains {
		response.AllowedChains = append(response.AllowedChains, string(chain))
	}
	return response
}

// NewSessionResponse converts a validated session.
func NewSessionResponse(session *models.AuthSession) *SessionResponse {
	return &SessionResponse{
		UserID:          session.UserID,
		StrategyID:      session.StrategyID,
		AuthorizationID: session.AuthorizationID,
		IssuedAt:        session.IssuedAt.Unix(),
		ExpiresAt:       session.ExpiresAt.Unix(),
	}
}

// NewActivationResponse converts a domain receipt and optional session.
func NewActivationResponse(receipt *models.ActivationReceipt, session *models.AuthSession) *ActivationResponse {
	response := &ActivationResponse{
		AuthorizationID: receipt.AuthorizationID,
		StrategyID:      receipt.StrategyID,
		Amount:          receipt.Amount,
		ExecutionRef:    receipt.ExecutionRef,
		ActivatedAt:     receipt.ActivatedAt.Unix(),
	}
	if session != nil {
		response.SessionToken = session.Token
		response.SessionExpiresAt = session.ExpiresAt.Unix()
	}
	return response
}
