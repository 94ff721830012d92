package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockFormatExtractor is a mock implementation of port.FormatExtractor.
type MockFormatExtractor struct {
	mock.Mock
}

func (m *MockFormatExtractor) Vendor() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockFormatExtractor) FormatID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockFormatExtractor) DetectFormat(text string) (bool, float64) {
	args := m.Called(text)
	return args.Bool(0), args.Get(1).(float64)
}

func (m *MockFormatExtractor) ExtractFields(text string) (map[string]any, error) {
	args := m.Called(text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockFormatExtractor) RequiredFields() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockFormatExtractor) OptionalFields() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockFormatExtractor) FieldExtractionRate(fields map[string]any) float64 {
	args := m.Called(fields)
	return args.Get(0).(float64)
}
