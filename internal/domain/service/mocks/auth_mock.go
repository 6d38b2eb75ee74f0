package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// MockSignatureVerifier is a mock implementation of service.SignatureVerifier
type MockSignatureVerifier struct {
	mock.Mock
}

func (m *MockSignatureVerifier) Verify(chain constants.ChainID, address, message, signature string) error {
	args := m.Called(chain, address, message, signature)
	return args.Error(0)
}

func (m *MockSignatureVerifier) SupportsSigning(chain constants.ChainID) bool {
	args := m.Called(chain)
	return args.Bool(0)
}

// MockChallengeLimiter is a mock implementation of service.ChallengeLimiter
type MockChallengeLimiter struct {
	mock.Mock
}

func (m *MockChallengeLimiter) Allow(address string) bool {
	args := m.Called(address)
	return args.Bool(0)
}

// MockSessionManager is a mock implementation of service.SessionManager
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Issue(ctx context.Context, userID, strategyID, authorizationID string, now time.Time) (*models.AuthSession, error) {
	args := m.Called(ctx, userID, strategyID, authorizationID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthSession), args.Error(1)
}

func (m *MockSessionManager) Validate(ctx context.Context, token string) (*models.AuthSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthSession), args.Error(1)
}
