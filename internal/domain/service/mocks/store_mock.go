package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSecureStore is a mock implementation of service.SecureStore.
// Populate out parameters for Get through expectation Run hooks.
type MockSecureStore struct {
	mock.Mock
}

func (m *MockSecureStore) Set(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSecureStore) Get(ctx context.Context, key string, out any) (bool, error) {
	args := m.Called(ctx, key, out)
	return args.Bool(0), args.Error(1)
}

func (m *MockSecureStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockSecureStore) ClearAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
