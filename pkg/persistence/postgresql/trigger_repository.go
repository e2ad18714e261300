package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence"
)

// TriggerRepository handles trigger-related database operations, including
// the atomic execution lock used for at-most-one-executor selection.
type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTriggerRepository creates a new trigger repository.
func NewTriggerRepository(db *sql.DB, logger *slog.Logger) *TriggerRepository {
	return &TriggerRepository{db: db, logger: logger}
}

const triggerColumns = `
	id, organization_id, workflow_id, name, enabled, schedule_type,
	cron_expression, actions, next_execution, last_executed, locked_at,
	created_at, updated_at
`

// DueTriggers returns every enabled trigger whose next execution is at or
// before now, in due order.
func (r *TriggerRepository) DueTriggers(ctx context.Context, now time.Time) ([]*models.Trigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM triggers
		WHERE enabled AND next_execution IS NOT NULL AND next_execution <= $1
		ORDER BY next_execution ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due triggers: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	triggers := make([]*models.Trigger, 0)

	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}

		triggers = append(triggers, trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating triggers: %w", err)
	}

	return triggers, nil
}

// TriggerByID returns a trigger by its ID, or nil when it does not exist.
func (r *TriggerRepository) TriggerByID(ctx context.Context, id string) (*models.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE id = $1`

	trigger, err := scanTrigger(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan trigger: %w", err)
	}

	return trigger, nil
}

// SaveTrigger inserts or updates a trigger.
func (r *TriggerRepository) SaveTrigger(ctx context.Context, trigger *models.Trigger) error {
	actionsJSON, err := json.Marshal(trigger.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger actions: %w", err)
	}

	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	query := `
		INSERT INTO triggers (` + triggerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			schedule_type = EXCLUDED.schedule_type,
			cron_expression = EXCLUDED.cron_expression,
			actions = EXCLUDED.actions,
			next_execution = EXCLUDED.next_execution,
			last_executed = EXCLUDED.last_executed,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		trigger.ID,
		trigger.OrganizationID,
		trigger.WorkflowID,
		trigger.Name,
		trigger.Enabled,
		trigger.ScheduleType,
		nullableString(trigger.CronExpression),
		actionsJSON,
		trigger.NextExecution,
		trigger.LastExecuted,
		trigger.LockedAt,
		trigger.CreatedAt,
		trigger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}

	return nil
}

// AcquireTriggerLock attempts a compare-and-set on the lock column. The
// update succeeds only when the lock is unset or older than staleBefore, so
// exactly one of any number of concurrent callers wins.
func (r *TriggerRepository) AcquireTriggerLock(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE triggers
		SET locked_at = $2
		WHERE id = $1 AND (locked_at IS NULL OR locked_at < $3)
	`

	result, err := r.db.ExecContext(ctx, query, id, now, staleBefore)
	if err != nil {
		return false, persistence.NewTriggerError("AcquireLock", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewTriggerError("AcquireLock", id, err)
	}

	return affected > 0, nil
}

// ReleaseTriggerLock clears the lock and applies the release outcome in one
// atomic update. A preserve-mode release leaves next_execution untouched.
func (r *TriggerRepository) ReleaseTriggerLock(ctx context.Context, id string, release persistence.TriggerLockRelease) error {
	var (
		query string
		args  []any
	)

	if release.PreserveNextExecution {
		query = `
			UPDATE triggers
			SET locked_at = NULL,
				enabled = enabled AND NOT $2,
				last_executed = COALESCE($3, last_executed),
				updated_at = $4
			WHERE id = $1
		`
		args = []any{id, release.Disable, release.LastExecuted, time.Now().UTC()}
	} else {
		query = `
			UPDATE triggers
			SET locked_at = NULL,
				next_execution = $2,
				enabled = enabled AND NOT $3,
				last_executed = COALESCE($4, last_executed),
				updated_at = $5
			WHERE id = $1
		`
		args = []any{id, release.NextExecution, release.Disable, release.LastExecuted, time.Now().UTC()}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewTriggerError("ReleaseLock", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTriggerError("ReleaseLock", id, err)
	}

	if affected == 0 {
		return persistence.NewTriggerError("ReleaseLock", id, persistence.ErrTriggerNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (*models.Trigger, error) {
	var (
		trigger     models.Trigger
		cronExpr    sql.NullString
		actionsJSON []byte
	)

	err := row.Scan(
		&trigger.ID,
		&trigger.OrganizationID,
		&trigger.WorkflowID,
		&trigger.Name,
		&trigger.Enabled,
		&trigger.ScheduleType,
		&cronExpr,
		&actionsJSON,
		&trigger.NextExecution,
		&trigger.LastExecuted,
		&trigger.LockedAt,
		&trigger.CreatedAt,
		&trigger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trigger.CronExpression = cronExpr.String

	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &trigger.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger actions: %w", err)
		}
	}

	return &trigger, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
