// Package protocol defines the contracts between the automation core and its
// external collaborators: the condition/action engine and the notifier.
package protocol

import (
	"context"
	"time"

	"github.com/practiq/automation/pkg/models"
)

// ExecutionContext carries the identifiers and payload an action set runs
// with. Fields not known for a given invocation stay empty.
type ExecutionContext struct {
	TriggerID      string `json:"trigger_id,omitempty"`
	TriggerName    string `json:"trigger_name,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	WorkflowID     string `json:"workflow_id,omitempty"`
	StageID        string `json:"stage_id,omitempty"`
	StepID         string `json:"step_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	AssignmentID   string `json:"assignment_id,omitempty"`

	// Event is the domain event name for event-driven runs, or the schedule
	// type for scheduled runs.
	Event string `json:"event,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`

	// Data is the enriched event payload, nil for scheduled runs.
	Data map[string]any `json:"data,omitempty"`
}

// ActionExecutor is the condition-evaluation and action-execution engine.
// Its DSL is not part of this core; failures surface as returned errors and
// are contained by the calling component.
type ActionExecutor interface {
	EvaluateConditions(ctx context.Context, conditions []models.Condition, payload map[string]any) (bool, error)
	ExecuteActions(ctx context.Context, actions []models.ActionConfig, execCtx ExecutionContext) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
}
