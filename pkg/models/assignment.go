package models

import (
	"math"
	"time"
)

// AssignmentStatus represents the lifecycle state of a workflow assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// WorkflowAssignment is one instantiation of a workflow for one assignee,
// tracking the current position and aggregate progress. It is mutated only
// through the auto-advance paths of the event engine.
type WorkflowAssignment struct {
	ID         string `json:"id" validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	AssignedTo string `json:"assigned_to" validate:"required"`

	CurrentStageID string  `json:"current_stage_id"`
	CurrentStepID  *string `json:"current_step_id,omitempty"`

	Status AssignmentStatus `json:"status"`

	// CompletedStages is monotonically non-decreasing under the default
	// advance and never exceeds TotalStages. A targeted advance jumps it
	// directly to the target stage's ordinal.
	CompletedStages int `json:"completed_stages"`
	TotalStages     int `json:"total_stages"`

	// Progress is kept as round(CompletedStages / TotalStages * 100).
	Progress int `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeProgress refreshes Progress from the stage counters.
func (a *WorkflowAssignment) RecomputeProgress() {
	if a.TotalStages <= 0 {
		a.Progress = 0

		return
	}

	a.Progress = int(math.Round(float64(a.CompletedStages) / float64(a.TotalStages) * 100))
}
