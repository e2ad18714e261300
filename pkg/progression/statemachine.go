// Package progression implements the cascading-completion state machine over
// the workflow → stage → step → task → leaf hierarchy.
package progression

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence"
)

// StateMachine propagates completion upward through the hierarchy whenever a
// leaf or a task completes. Propagation is strictly one-directional: checks
// run only at the moment a child becomes complete, and every level carries an
// if-already-completed guard so concurrent sibling completions stay safe.
type StateMachine struct {
	store  persistence.HierarchyRepository
	logger *slog.Logger
}

// NewStateMachine creates a progression state machine over the given store.
func NewStateMachine(store persistence.HierarchyRepository, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		store:  store,
		logger: logger.With("module", "progression"),
	}
}

// CompleteTask marks a task completed and runs the step check for its parent.
// Completing an already-completed task is a no-op.
func (m *StateMachine) CompleteTask(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := m.store.TaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if task == nil {
		return nil, persistence.ErrTaskNotFound
	}

	if task.Status == models.NodeStatusCompleted {
		return task, nil
	}

	now := time.Now().UTC()

	transitioned, err := m.store.MarkTaskCompleted(ctx, taskID, now, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}

	task.Status = models.NodeStatusCompleted
	task.CompletedAt = &now
	task.CompletedBy = &actorID

	if transitioned {
		if err := m.checkStepCompletion(ctx, task.StepID, actorID); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// CompleteSubtask marks a subtask completed and runs the task check for its
// parent. Idempotent for already-completed subtasks.
func (m *StateMachine) CompleteSubtask(ctx context.Context, subtaskID, actorID string) (*models.Subtask, error) {
	subtask, err := m.store.SubtaskByID(ctx, subtaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtask %s: %w", subtaskID, err)
	}

	if subtask == nil {
		return nil, persistence.ErrSubtaskNotFound
	}

	if subtask.Status == models.NodeStatusCompleted {
		return subtask, nil
	}

	now := time.Now().UTC()

	transitioned, err := m.store.MarkSubtaskCompleted(ctx, subtaskID, now, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete subtask %s: %w", subtaskID, err)
	}

	subtask.Status = models.NodeStatusCompleted
	subtask.CompletedAt = &now
	subtask.CompletedBy = &actorID

	if transitioned {
		if err := m.checkTaskCompletion(ctx, subtask.TaskID, actorID); err != nil {
			return nil, err
		}
	}

	return subtask, nil
}

// ToggleChecklistItem flips a checklist item. Checking an item runs the task
// check; unchecking never un-completes an already-completed parent.
func (m *StateMachine) ToggleChecklistItem(ctx context.Context, itemID, actorID string) (*models.ChecklistItem, error) {
	item, err := m.store.ChecklistItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist item %s: %w", itemID, err)
	}

	if item == nil {
		return nil, persistence.ErrChecklistItemNotFound
	}

	now := time.Now().UTC()
	checked := !item.Checked

	if err := m.store.SetChecklistItemChecked(ctx, itemID, checked, now, actorID); err != nil {
		return nil, fmt.Errorf("failed to toggle checklist item %s: %w", itemID, err)
	}

	item.Checked = checked

	if checked {
		item.CheckedAt = &now
		item.CheckedBy = &actorID

		if err := m.checkTaskCompletion(ctx, item.TaskID, actorID); err != nil {
			return nil, err
		}
	} else {
		item.CheckedAt = nil
		item.CheckedBy = nil
	}

	return item, nil
}

// checkTaskCompletion auto-completes a task once every defined subtask is
// completed and every defined checklist item is checked. A task with no
// sub-work at all is never auto-completed; it requires a direct CompleteTask.
func (m *StateMachine) checkTaskCompletion(ctx context.Context, taskID, actorID string) error {
	task, err := m.store.TaskByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if task == nil || task.Status == models.NodeStatusCompleted {
		return nil
	}

	subtasks, err := m.store.SubtasksByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load subtasks for task %s: %w", taskID, err)
	}

	items, err := m.store.ChecklistItemsByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load checklist items for task %s: %w", taskID, err)
	}

	if len(subtasks) == 0 && len(items) == 0 {
		return nil
	}

	for _, subtask := range subtasks {
		if subtask.Status != models.NodeStatusCompleted {
			return nil
		}
	}

	for _, item := range items {
		if !item.Checked {
			return nil
		}
	}

	transitioned, err := m.store.MarkTaskCompleted(ctx, taskID, time.Now().UTC(), actorID)
	if err != nil {
		return fmt.Errorf("failed to auto-complete task %s: %w", taskID, err)
	}

	if !transitioned {
		return nil
	}

	m.logger.InfoContext(ctx, "Task auto-completed", "task_id", taskID)

	return m.checkStepCompletion(ctx, task.StepID, actorID)
}

// checkStepCompletion auto-completes a step once all of its tasks are
// completed, unless the step opted out via requireAllChildrenComplete=false.
func (m *StateMachine) checkStepCompletion(ctx context.Context, stepID, actorID string) error {
	step, err := m.store.StepByID(ctx, stepID)
	if err != nil {
		return fmt.Errorf("failed to load step %s: %w", stepID, err)
	}

	if step == nil || step.Status == models.NodeStatusCompleted {
		return nil
	}

	if !step.RequiresAllChildren() {
		// Escape hatch: this step is only ever completed directly.
		return nil
	}

	tasks, err := m.store.TasksByStep(ctx, stepID)
	if err != nil {
		return fmt.Errorf("failed to load tasks for step %s: %w", stepID, err)
	}

	if len(tasks) == 0 {
		return nil
	}

	for _, task := range tasks {
		if task.Status != models.NodeStatusCompleted {
			return nil
		}
	}

	transitioned, err := m.store.MarkStepCompleted(ctx, stepID, time.Now().UTC(), actorID)
	if err != nil {
		return fmt.Errorf("failed to auto-complete step %s: %w", stepID, err)
	}

	if !transitioned {
		return nil
	}

	m.logger.InfoContext(ctx, "Step auto-completed", "step_id", stepID)

	return m.checkStageCompletion(ctx, step.StageID, actorID)
}

// checkStageCompletion auto-completes a stage once all of its steps are
// completed.
func (m *StateMachine) checkStageCompletion(ctx context.Context, stageID, actorID string) error {
	stage, err := m.store.StageByID(ctx, stageID)
	if err != nil {
		return fmt.Errorf("failed to load stage %s: %w", stageID, err)
	}

	if stage == nil || stage.Status == models.NodeStatusCompleted {
		return nil
	}

	steps, err := m.store.StepsByStage(ctx, stageID)
	if err != nil {
		return fmt.Errorf("failed to load steps for stage %s: %w", stageID, err)
	}

	if len(steps) == 0 {
		return nil
	}

	for _, step := range steps {
		if step.Status != models.NodeStatusCompleted {
			return nil
		}
	}

	transitioned, err := m.store.MarkStageCompleted(ctx, stageID, time.Now().UTC(), actorID)
	if err != nil {
		return fmt.Errorf("failed to auto-complete stage %s: %w", stageID, err)
	}

	if !transitioned {
		return nil
	}

	m.logger.InfoContext(ctx, "Stage auto-completed", "stage_id", stageID)

	return m.checkWorkflowCompletion(ctx, stage.WorkflowID)
}

// checkWorkflowCompletion auto-completes a workflow once all of its stages
// are completed. Terminal level of the cascade.
func (m *StateMachine) checkWorkflowCompletion(ctx context.Context, workflowID string) error {
	workflow, err := m.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if workflow == nil || workflow.Status == models.NodeStatusCompleted {
		return nil
	}

	stages, err := m.store.StagesByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load stages for workflow %s: %w", workflowID, err)
	}

	if len(stages) == 0 {
		return nil
	}

	for _, stage := range stages {
		if stage.Status != models.NodeStatusCompleted {
			return nil
		}
	}

	transitioned, err := m.store.MarkWorkflowCompleted(ctx, workflowID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to auto-complete workflow %s: %w", workflowID, err)
	}

	if transitioned {
		m.logger.InfoContext(ctx, "Workflow completed", "workflow_id", workflowID)
	}

	return nil
}
