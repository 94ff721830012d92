package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"digidoc/internal/domain"
)

// MockTemplateRepo is a mock implementation of port.TemplateRepository.
type MockTemplateRepo struct {
	mock.Mock
}

func (m *MockTemplateRepo) GetByID(ctx context.Context, tenantID, templateID string) (*domain.CachedTemplate, error) {
	args := m.Called(ctx, tenantID, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CachedTemplate), args.Error(1)
}

func (m *MockTemplateRepo) List(ctx context.Context, filter domain.TemplateFilter) ([]domain.CachedTemplate, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CachedTemplate), args.Error(1)
}

func (m *MockTemplateRepo) Upsert(ctx context.Context, tmpl *domain.CachedTemplate) error {
	args := m.Called(ctx, tmpl)
	return args.Error(0)
}

func (m *MockTemplateRepo) Delete(ctx context.Context, tenantID, templateID string) error {
	args := m.Called(ctx, tenantID, templateID)
	return args.Error(0)
}

func (m *MockTemplateRepo) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}
