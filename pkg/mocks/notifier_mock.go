package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/practiq/automation/pkg/models"
)

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CreateNotification(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)

	return args.Error(0)
}
