// Package persistence provides the data storage abstraction for triggers,
// the work hierarchy, assignments and notifications.
package persistence

import (
	"context"
	"time"

	"github.com/practiq/automation/pkg/models"
)

// TriggerLockRelease describes how a held execution lock is released.
// Exactly one of three outcomes applies: a fresh next-execution time, a
// preserved (unchanged) next-execution time, or a disable for one-time
// triggers. LastExecuted is stamped whenever an execution was attempted.
type TriggerLockRelease struct {
	// NextExecution replaces the stored value when PreserveNextExecution is
	// false. Ignored otherwise.
	NextExecution *time.Time

	// PreserveNextExecution keeps the stored next-execution value unchanged,
	// so a trigger whose schedule could not be recomputed stays eligible for
	// a later tick instead of being dropped.
	PreserveNextExecution bool

	// Disable flips Enabled to false. Used by one-time triggers after their
	// single run.
	Disable bool

	LastExecuted *time.Time
}

// TriggerRepository stores time-based triggers. Lock acquire and release are
// atomic conditional updates; multiple workers poll the same store.
type TriggerRepository interface {
	// DueTriggers returns every enabled trigger with next_execution <= now.
	DueTriggers(ctx context.Context, now time.Time) ([]*models.Trigger, error)

	TriggerByID(ctx context.Context, id string) (*models.Trigger, error)

	SaveTrigger(ctx context.Context, trigger *models.Trigger) error

	// AcquireTriggerLock attempts to take the execution lock. It succeeds
	// only if the lock is unset or older than staleBefore, and reports
	// whether this caller now owns it. A false result is not an error.
	AcquireTriggerLock(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// ReleaseTriggerLock clears the lock and applies the release outcome in
	// one atomic update.
	ReleaseTriggerLock(ctx context.Context, id string, release TriggerLockRelease) error
}

// HierarchyRepository stores the four-level work hierarchy. Every Mark*
// method is an atomic pending→completed transition and reports whether this
// call performed it, so concurrent cascades stay idempotent.
type HierarchyRepository interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	MarkWorkflowCompleted(ctx context.Context, id string, at time.Time) (bool, error)

	// StagesByWorkflow returns stages ordered by position.
	StagesByWorkflow(ctx context.Context, workflowID string) ([]*models.Stage, error)
	StageByID(ctx context.Context, id string) (*models.Stage, error)
	MarkStageCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error)

	StepsByStage(ctx context.Context, stageID string) ([]*models.Step, error)
	StepByID(ctx context.Context, id string) (*models.Step, error)
	MarkStepCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error)

	TasksByStep(ctx context.Context, stepID string) ([]*models.Task, error)
	TaskByID(ctx context.Context, id string) (*models.Task, error)
	MarkTaskCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error)

	SubtasksByTask(ctx context.Context, taskID string) ([]*models.Subtask, error)
	SubtaskByID(ctx context.Context, id string) (*models.Subtask, error)
	MarkSubtaskCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error)

	ChecklistItemsByTask(ctx context.Context, taskID string) ([]*models.ChecklistItem, error)
	ChecklistItemByID(ctx context.Context, id string) (*models.ChecklistItem, error)
	SetChecklistItemChecked(ctx context.Context, id string, checked bool, at time.Time, by string) error
}

// AssignmentRepository stores workflow assignments.
type AssignmentRepository interface {
	AssignmentByID(ctx context.Context, id string) (*models.WorkflowAssignment, error)
	SaveAssignment(ctx context.Context, assignment *models.WorkflowAssignment) error
}

// NotificationRepository persists notifications for delivery.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
}

// Persistence aggregates every repository plus lifecycle management.
type Persistence interface {
	TriggerRepository
	HierarchyRepository
	AssignmentRepository
	NotificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
