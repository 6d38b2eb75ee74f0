package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// MockWalletConnector is a mock implementation of service.WalletConnector
type MockWalletConnector struct {
	mock.Mock
}

func (m *MockWalletConnector) Connect(ctx context.Context, chain constants.ChainID) (models.WalletAddress, error) {
	args := m.Called(ctx, chain)
	return args.Get(0).(models.WalletAddress), args.Error(1)
}

func (m *MockWalletConnector) SignMessage(ctx context.Context, chain constants.ChainID, address, message string) (string, error) {
	args := m.Called(ctx, chain, address, message)
	return args.String(0), args.Error(1)
}

// MockBalanceOracle is a mock implementation of service.BalanceOracle
type MockBalanceOracle struct {
	mock.Mock
}

func (m *MockBalanceOracle) FetchBalance(ctx context.Context, chain constants.ChainID, address string) (string, error) {
	args := m.Called(ctx, chain, address)
	return args.String(0), args.Error(1)
}
