package models

import "time"

// NodeStatus is the completion state shared by every hierarchy level.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusCompleted NodeStatus = "completed"
)

// Workflow is the root of the work hierarchy. It completes automatically
// once every stage has completed.
type Workflow struct {
	ID             string     `json:"id" validate:"required"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name" validate:"required,min=3"`
	Status         NodeStatus `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Stage is an ordered phase of a workflow, made of steps.
type Stage struct {
	ID         string `json:"id" validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	Name       string `json:"name"`

	// Position orders stages within the workflow; auto-advance walks it.
	Position int `json:"position"`

	Status      NodeStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

// Step groups tasks inside a stage.
type Step struct {
	ID      string `json:"id" validate:"required"`
	StageID string `json:"stage_id" validate:"required"`
	Name    string `json:"name"`

	Position int `json:"position"`

	Status      NodeStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`

	// RequireAllChildrenComplete gates the cascade at the step level.
	// Nil means true. An explicit false disables auto-completion entirely:
	// the step must be completed directly regardless of its tasks.
	RequireAllChildrenComplete *bool `json:"require_all_children_complete,omitempty"`
}

// RequiresAllChildren reports whether the cascade may auto-complete this step.
func (s *Step) RequiresAllChildren() bool {
	return s.RequireAllChildrenComplete == nil || *s.RequireAllChildrenComplete
}

// Task is a unit of work inside a step, optionally broken into subtasks and
// checklist items.
type Task struct {
	ID     string `json:"id" validate:"required"`
	StepID string `json:"step_id" validate:"required"`
	Name   string `json:"name"`

	Position int `json:"position"`

	Status      NodeStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

// Subtask is a leaf unit under a task.
type Subtask struct {
	ID     string `json:"id" validate:"required"`
	TaskID string `json:"task_id" validate:"required"`
	Name   string `json:"name"`

	Status      NodeStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

// ChecklistItem is a leaf unit under a task that can be toggled both ways.
// Unchecking never un-completes an already-completed parent.
type ChecklistItem struct {
	ID     string `json:"id" validate:"required"`
	TaskID string `json:"task_id" validate:"required"`
	Text   string `json:"text"`

	Checked   bool       `json:"checked"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	CheckedBy *string    `json:"checked_by,omitempty"`
}
