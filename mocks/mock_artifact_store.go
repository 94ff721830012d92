package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockArtifactStore is a mock implementation of port.ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Reset(ctx context.Context, tenantID, documentID string) error {
	args := m.Called(ctx, tenantID, documentID)
	return args.Error(0)
}

func (m *MockArtifactStore) Write(ctx context.Context, tenantID, documentID, name string, data []byte) (string, error) {
	args := m.Called(ctx, tenantID, documentID, name, data)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) Path(tenantID, documentID, name string) string {
	args := m.Called(tenantID, documentID, name)
	return args.String(0)
}
