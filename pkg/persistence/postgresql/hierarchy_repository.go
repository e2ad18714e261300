package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/practiq/automation/pkg/models"
)

// HierarchyRepository handles the stage/step/task/leaf hierarchy. Every
// completion write is a conditional pending→completed update so concurrent
// cascade checks cannot double-complete a node.
type HierarchyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHierarchyRepository creates a new hierarchy repository.
func NewHierarchyRepository(db *sql.DB, logger *slog.Logger) *HierarchyRepository {
	return &HierarchyRepository{db: db, logger: logger}
}

func (r *HierarchyRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT id, organization_id, name, status, completed_at FROM workflows WHERE id = $1`

	var (
		workflow models.Workflow
		orgID    sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID, &orgID, &workflow.Name, &workflow.Status, &workflow.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.OrganizationID = orgID.String

	return &workflow, nil
}

func (r *HierarchyRepository) MarkWorkflowCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE workflows
		SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status <> 'completed'
	`

	return r.execCompletion(ctx, query, id, at)
}

func (r *HierarchyRepository) StagesByWorkflow(ctx context.Context, workflowID string) ([]*models.Stage, error) {
	query := `
		SELECT id, workflow_id, name, position, status, completed_at, completed_by
		FROM stages
		WHERE workflow_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer r.closeRows(ctx, rows)

	stages := make([]*models.Stage, 0)

	for rows.Next() {
		var stage models.Stage
		if err := rows.Scan(&stage.ID, &stage.WorkflowID, &stage.Name, &stage.Position,
			&stage.Status, &stage.CompletedAt, &stage.CompletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}

		stages = append(stages, &stage)
	}

	return stages, rows.Err()
}

func (r *HierarchyRepository) StageByID(ctx context.Context, id string) (*models.Stage, error) {
	query := `
		SELECT id, workflow_id, name, position, status, completed_at, completed_by
		FROM stages WHERE id = $1
	`

	var stage models.Stage

	err := r.db.QueryRowContext(ctx, query, id).Scan(&stage.ID, &stage.WorkflowID, &stage.Name,
		&stage.Position, &stage.Status, &stage.CompletedAt, &stage.CompletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan stage: %w", err)
	}

	return &stage, nil
}

func (r *HierarchyRepository) MarkStageCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	query := `
		UPDATE stages
		SET status = 'completed', completed_at = $2, completed_by = $3
		WHERE id = $1 AND status <> 'completed'
	`

	return r.execCompletion(ctx, query, id, at, nullableString(by))
}

func (r *HierarchyRepository) StepsByStage(ctx context.Context, stageID string) ([]*models.Step, error) {
	query := `
		SELECT id, stage_id, name, position, status, completed_at, completed_by, require_all_children_complete
		FROM steps
		WHERE stage_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer r.closeRows(ctx, rows)

	steps := make([]*models.Step, 0)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}

		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (r *HierarchyRepository) StepByID(ctx context.Context, id string) (*models.Step, error) {
	query := `
		SELECT id, stage_id, name, position, status, completed_at, completed_by, require_all_children_complete
		FROM steps WHERE id = $1
	`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return step, nil
}

func (r *HierarchyRepository) MarkStepCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	query := `
		UPDATE steps
		SET status = 'completed', completed_at = $2, completed_by = $3
		WHERE id = $1 AND status <> 'completed'
	`

	return r.execCompletion(ctx, query, id, at, nullableString(by))
}

func (r *HierarchyRepository) TasksByStep(ctx context.Context, stepID string) ([]*models.Task, error) {
	query := `
		SELECT id, step_id, name, position, status, completed_at, completed_by
		FROM tasks
		WHERE step_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer r.closeRows(ctx, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.StepID, &task.Name, &task.Position,
			&task.Status, &task.CompletedAt, &task.CompletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, &task)
	}

	return tasks, rows.Err()
}

func (r *HierarchyRepository) TaskByID(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT id, step_id, name, position, status, completed_at, completed_by
		FROM tasks WHERE id = $1
	`

	var task models.Task

	err := r.db.QueryRowContext(ctx, query, id).Scan(&task.ID, &task.StepID, &task.Name,
		&task.Position, &task.Status, &task.CompletedAt, &task.CompletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return &task, nil
}

func (r *HierarchyRepository) MarkTaskCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	query := `
		UPDATE tasks
		SET status = 'completed', completed_at = $2, completed_by = $3
		WHERE id = $1 AND status <> 'completed'
	`

	return r.execCompletion(ctx, query, id, at, nullableString(by))
}

func (r *HierarchyRepository) SubtasksByTask(ctx context.Context, taskID string) ([]*models.Subtask, error) {
	query := `
		SELECT id, task_id, name, status, completed_at, completed_by
		FROM subtasks
		WHERE task_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtasks: %w", err)
	}
	defer r.closeRows(ctx, rows)

	subtasks := make([]*models.Subtask, 0)

	for rows.Next() {
		var subtask models.Subtask
		if err := rows.Scan(&subtask.ID, &subtask.TaskID, &subtask.Name,
			&subtask.Status, &subtask.CompletedAt, &subtask.CompletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}

		subtasks = append(subtasks, &subtask)
	}

	return subtasks, rows.Err()
}

func (r *HierarchyRepository) SubtaskByID(ctx context.Context, id string) (*models.Subtask, error) {
	query := `
		SELECT id, task_id, name, status, completed_at, completed_by
		FROM subtasks WHERE id = $1
	`

	var subtask models.Subtask

	err := r.db.QueryRowContext(ctx, query, id).Scan(&subtask.ID, &subtask.TaskID, &subtask.Name,
		&subtask.Status, &subtask.CompletedAt, &subtask.CompletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan subtask: %w", err)
	}

	return &subtask, nil
}

func (r *HierarchyRepository) MarkSubtaskCompleted(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	query := `
		UPDATE subtasks
		SET status = 'completed', completed_at = $2, completed_by = $3
		WHERE id = $1 AND status <> 'completed'
	`

	return r.execCompletion(ctx, query, id, at, nullableString(by))
}

func (r *HierarchyRepository) ChecklistItemsByTask(ctx context.Context, taskID string) ([]*models.ChecklistItem, error) {
	query := `
		SELECT id, task_id, text, checked, checked_at, checked_by
		FROM checklist_items
		WHERE task_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist items: %w", err)
	}
	defer r.closeRows(ctx, rows)

	items := make([]*models.ChecklistItem, 0)

	for rows.Next() {
		var item models.ChecklistItem
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Text,
			&item.Checked, &item.CheckedAt, &item.CheckedBy); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}

		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *HierarchyRepository) ChecklistItemByID(ctx context.Context, id string) (*models.ChecklistItem, error) {
	query := `
		SELECT id, task_id, text, checked, checked_at, checked_by
		FROM checklist_items WHERE id = $1
	`

	var item models.ChecklistItem

	err := r.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.TaskID, &item.Text,
		&item.Checked, &item.CheckedAt, &item.CheckedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan checklist item: %w", err)
	}

	return &item, nil
}

func (r *HierarchyRepository) SetChecklistItemChecked(ctx context.Context, id string, checked bool, at time.Time, by string) error {
	query := `
		UPDATE checklist_items
		SET checked = $2,
			checked_at = CASE WHEN $2 THEN $3 ELSE NULL END,
			checked_by = CASE WHEN $2 THEN $4 ELSE NULL END
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, checked, at, nullableString(by))
	if err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}

	return nil
}

func (r *HierarchyRepository) execCompletion(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark completion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *HierarchyRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanStep(row rowScanner) (*models.Step, error) {
	var step models.Step

	err := row.Scan(&step.ID, &step.StageID, &step.Name, &step.Position,
		&step.Status, &step.CompletedAt, &step.CompletedBy, &step.RequireAllChildrenComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan step: %w", err)
	}

	return &step, nil
}
