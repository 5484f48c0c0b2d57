package mocks

import (
	"context"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/routing"
	"github.com/stretchr/testify/mock"
)

// MockRouter is a mock implementation of the Router interface
type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(ctx context.Context, origin, destination geo.Coordinate) (routing.Summary, error) {
	args := m.Called(ctx, origin, destination)
	return args.Get(0).(routing.Summary), args.Error(1)
}
