package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockUploadStore is a mock implementation of port.UploadStore.
type MockUploadStore struct {
	mock.Mock
}

func (m *MockUploadStore) Save(ctx context.Context, tenantID, documentID, ext string, r io.Reader) (string, error) {
	args := m.Called(ctx, tenantID, documentID, ext, r)
	return args.String(0), args.Error(1)
}
