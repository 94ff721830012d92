package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"digidoc/internal/domain"
)

// MockSyncMetadataRepo is a mock implementation of port.SyncMetadataRepository.
type MockSyncMetadataRepo struct {
	mock.Mock
}

func (m *MockSyncMetadataRepo) Get(ctx context.Context, tenantID string) (*domain.TemplateSyncMetadata, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TemplateSyncMetadata), args.Error(1)
}

func (m *MockSyncMetadataRepo) Upsert(ctx context.Context, meta *domain.TemplateSyncMetadata) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}
