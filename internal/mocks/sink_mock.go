package mocks

import (
	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockSink is a mock implementation of the presentation Sink interface
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Notify(update models.PeerUpdate) {
	m.Called(update)
}
