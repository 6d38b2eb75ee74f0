package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// MockStrategyExecutor is a mock implementation of service.StrategyExecutor
type MockStrategyExecutor struct {
	mock.Mock
}

func (m *MockStrategyExecutor) Execute(ctx context.Context, authorization *models.ExecutionAuthorization, wallets []models.WalletAddress) (string, error) {
	args := m.Called(ctx, authorization, wallets)
	return args.String(0), args.Error(1)
}

// MockAuditTrail is a mock implementation of service.AuditTrail
type MockAuditTrail struct {
	mock.Mock
}

func (m *MockAuditTrail) Record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) error {
	args := m.Called(ctx, eventType, actor, details)
	return args.Error(0)
}
