// Package mocks provides testify mocks for the collaborator contracts.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/protocol"
)

// MockActionExecutor is a mock implementation of protocol.ActionExecutor.
type MockActionExecutor struct {
	mock.Mock
}

func (m *MockActionExecutor) EvaluateConditions(ctx context.Context, conditions []models.Condition, payload map[string]any) (bool, error) {
	args := m.Called(ctx, conditions, payload)

	return args.Bool(0), args.Error(1)
}

func (m *MockActionExecutor) ExecuteActions(ctx context.Context, actions []models.ActionConfig, execCtx protocol.ExecutionContext) error {
	args := m.Called(ctx, actions, execCtx)

	return args.Error(0)
}
