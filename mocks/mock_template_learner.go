package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"digidoc/internal/domain"
)

// MockTemplateLearner is a mock implementation of service.TemplateLearner.
type MockTemplateLearner struct {
	mock.Mock
}

func (m *MockTemplateLearner) Fingerprint(ctx context.Context, raw []byte) (domain.Fingerprint, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(domain.Fingerprint), args.Error(1)
}

func (m *MockTemplateLearner) LearnTemplate(ctx context.Context, tmpl *domain.CachedTemplate, raw []byte) error {
	args := m.Called(ctx, tmpl, raw)
	return args.Error(0)
}
