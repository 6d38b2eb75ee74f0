// This file contains the post-authorization session model.
package models

import "time"

// AuthSession lets the dashboard poll authorization status without re-signing.
// The token is a signed JWT; the session carries its decoded identity.
type AuthSession struct {
	// Token is the signed session token handed to the client.
	Token string `json:"token"`

	// UserID is the acting user.
	UserID string `json:"user_id"`

	// StrategyID is the strategy the session was opened for.
	StrategyID string `json:"strategy_id"`

	// AuthorizationID binds the session to the authorization that opened it.
	AuthorizationID string `json:"authorization_id"`

	// IssuedAt is the session creation time.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is the session expiry time.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session is past its expiry at the given time.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
