// Package postgresql provides the PostgreSQL persistence implementation for
// triggers, the work hierarchy, assignments and notifications.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/practiq/automation/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence backed by PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	*TriggerRepository
	*HierarchyRepository
	*AssignmentRepository
	*NotificationRepository
}

// NewPersistence opens the database, runs pending migrations and wires the
// repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:                     database,
		logger:                 logger,
		TriggerRepository:      NewTriggerRepository(database, logger),
		HierarchyRepository:    NewHierarchyRepository(database, logger),
		AssignmentRepository:   NewAssignmentRepository(database, logger),
		NotificationRepository: NewNotificationRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
