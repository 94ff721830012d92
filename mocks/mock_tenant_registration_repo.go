package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"digidoc/internal/domain"
)

// MockTenantRegistrationRepo is a mock implementation of port.TenantRegistrationRepository.
type MockTenantRegistrationRepo struct {
	mock.Mock
}

func (m *MockTenantRegistrationRepo) GetByID(ctx context.Context, tenantID string) (*domain.TenantRegistration, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantRegistration), args.Error(1)
}

func (m *MockTenantRegistrationRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.TenantRegistration, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantRegistration), args.Error(1)
}

func (m *MockTenantRegistrationRepo) ListActive(ctx context.Context) ([]domain.TenantRegistration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TenantRegistration), args.Error(1)
}

func (m *MockTenantRegistrationRepo) Upsert(ctx context.Context, reg *domain.TenantRegistration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}
