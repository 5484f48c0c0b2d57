package mocks

import (
	"context"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/stretchr/testify/mock"
)

// MockLocationStore is a mock implementation of the LocationStore interface
type MockLocationStore struct {
	mock.Mock
}

func (m *MockLocationStore) Get(ctx context.Context, key string) (geo.Coordinate, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(geo.Coordinate), args.Error(1)
}

func (m *MockLocationStore) Set(ctx context.Context, key string, coord geo.Coordinate) error {
	args := m.Called(ctx, key, coord)
	return args.Error(0)
}
