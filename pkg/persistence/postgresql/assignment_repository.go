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

// AssignmentRepository handles workflow assignment database operations.
type AssignmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sql.DB, logger *slog.Logger) *AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// AssignmentByID returns an assignment by its ID, or nil when absent.
func (r *AssignmentRepository) AssignmentByID(ctx context.Context, id string) (*models.WorkflowAssignment, error) {
	query := `
		SELECT id, workflow_id, assigned_to, current_stage_id, current_step_id,
			   status, completed_stages, total_stages, progress, created_at, updated_at
		FROM assignments
		WHERE id = $1
	`

	var (
		assignment     models.WorkflowAssignment
		currentStageID sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&assignment.ID,
		&assignment.WorkflowID,
		&assignment.AssignedTo,
		&currentStageID,
		&assignment.CurrentStepID,
		&assignment.Status,
		&assignment.CompletedStages,
		&assignment.TotalStages,
		&assignment.Progress,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	assignment.CurrentStageID = currentStageID.String

	return &assignment, nil
}

// SaveAssignment inserts or updates an assignment.
func (r *AssignmentRepository) SaveAssignment(ctx context.Context, assignment *models.WorkflowAssignment) error {
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}

	assignment.UpdatedAt = now

	query := `
		INSERT INTO assignments (
			id, workflow_id, assigned_to, current_stage_id, current_step_id,
			status, completed_stages, total_stages, progress, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			current_stage_id = EXCLUDED.current_stage_id,
			current_step_id = EXCLUDED.current_step_id,
			status = EXCLUDED.status,
			completed_stages = EXCLUDED.completed_stages,
			total_stages = EXCLUDED.total_stages,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.WorkflowID,
		assignment.AssignedTo,
		nullableString(assignment.CurrentStageID),
		assignment.CurrentStepID,
		assignment.Status,
		assignment.CompletedStages,
		assignment.TotalStages,
		assignment.Progress,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}

	return nil
}
