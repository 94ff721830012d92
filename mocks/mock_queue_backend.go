package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"digidoc/internal/domain"
)

// MockQueueBackend is a mock implementation of port.QueueBackend.
type MockQueueBackend struct {
	mock.Mock
}

func (m *MockQueueBackend) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockQueueBackend) Push(ctx context.Context, job *domain.QueueJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockQueueBackend) Get(ctx context.Context, id string) (*domain.QueueJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueJob), args.Error(1)
}

func (m *MockQueueBackend) Claim(ctx context.Context, limit int) ([]domain.QueueJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueJob), args.Error(1)
}

func (m *MockQueueBackend) Complete(ctx context.Context, id string, result json.RawMessage) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockQueueBackend) Fail(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockQueueBackend) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockQueueBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}
