package crypto

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// SessionClaims are the JWT claims carried by a post-authorization
// session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	StrategyID      string `json:"strategy_id"`
	AuthorizationID string `json:"authorization_id"`
}

// SessionSigner issues and verifies HS256 session tokens minted after
// a successful execution authorization. Tokens let the API correlate
// follow-up calls with the authorization without re-verifying wallet
// signatures.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	logger logger.Logger
}

// NewSessionSigner creates a signer with the given secret. An empty
// secret gets a random per-process one, which invalidates all sessions
// on restart.
func NewSessionSigner(secret string, ttl time.Duration, log logger.Logger) (*SessionSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, wgerrors.ErrKeyUnsupportedEnvironment("secure random source unavailable").WithCause(err)
		}
		log.Warn(context.Background(), "No session secret configured, sessions will not survive restarts")
	}
	if ttl <= 0 {
		ttl = constants.SessionTokenTTL
	}
	return &SessionSigner{
		secret: key,
		ttl:    ttl,
		logger: log.WithComponent("session_signer"),
	}, nil
}

// Issue mints a session token bound to the user, strategy, and the
// authorization that justified it.
func (s *SessionSigner) Issue(ctx context.Context, userID, strategyID, authorizationID string, now time.Time) (*models.AuthSession, error) {
	expiresAt := now.Add(s.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		StrategyID:      strategyID,
		AuthorizationID: authorizationID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error(ctx, "Failed to sign session token", err)
		return nil, wgerrors.ErrInternal("failed to sign session token").WithCause(err)
	}

	return &models.AuthSession{
		Token:           signed,
		UserID:          userID,
		StrategyID:      strategyID,
		AuthorizationID: authorizationID,
		IssuedAt:        now,
		ExpiresAt:       expiresAt,
	}, nil
}

// Validate parses tokenString and reconstructs the session it
// represents. Expired or tampered tokens fail with a session error.
func (s *SessionSigner) Validate(ctx context.Context, tokenString string) (*models.AuthSession, error) {
	claims, err := s.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &models.AuthSession{
		Token:           tokenString,
		UserID:          claims.Subject,
		StrategyID:      claims.StrategyID,
		AuthorizationID: claims.AuthorizationID,
		IssuedAt:        claims.IssuedAt.Time,
		ExpiresAt:       claims.ExpiresAt.Time,
	}, nil
}

// Verify parses tokenString and returns its claims. Expired or
// tampered tokens fail with a session error.
func (s *SessionSigner) Verify(ctx context.Context, tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, wgerrors.ErrSessionInvalid("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wgerrors.ErrSessionInvalid("token expired")
		}
		return nil, wgerrors.ErrSessionInvalid("token rejected").WithCause(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, wgerrors.ErrSessionInvalid("claims malformed")
	}
	return claims, nil
}
