package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// OfficerRepository implements port.OfficerRepository over sqlite. Workload
// is never stored as a counter; ListWorkloads derives it from open task rows
// at query time.
type OfficerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOfficerRepository creates a new officer repository
func NewOfficerRepository(db *sql.DB, logger *zap.Logger) port.OfficerRepository {
	return &OfficerRepository{db: db, logger: logger}
}

// GetByID returns an officer with specializations loaded
func (r *OfficerRepository) GetByID(ctx context.Context, id int64) (*entity.Officer, error) {
	query := `
		SELECT id, user_id, department_id, name, active, last_assigned_at
		FROM officers WHERE id = ?
	`
	return r.scanOne(ctx, query, id)
}

// GetByUserID returns the officer backing the given user account
func (r *OfficerRepository) GetByUserID(ctx context.Context, userID int64) (*entity.Officer, error) {
	query := `
		SELECT id, user_id, department_id, name, active, last_assigned_at
		FROM officers WHERE user_id = ?
	`
	return r.scanOne(ctx, query, userID)
}

// ListWorkloads returns each officer in the department with the number of
// open tasks currently assigned to them. Open means closed_at IS NULL.
func (r *OfficerRepository) ListWorkloads(ctx context.Context, departmentID int64) ([]*port.OfficerWorkload, error) {
	query := `
		SELECT o.id, o.user_id, o.department_id, o.name, o.active, o.last_assigned_at,
		       COUNT(t.id) AS open_tasks
		FROM officers o
		LEFT JOIN tasks t ON t.officer_id = o.id AND t.closed_at IS NULL
		WHERE o.department_id = ?
		GROUP BY o.id
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query officer workloads: %w", err)
	}
	defer rows.Close()

	var workloads []*port.OfficerWorkload
	for rows.Next() {
		var o entity.Officer
		var lastAssigned sql.NullTime
		var openTasks int
		if err := rows.Scan(&o.ID, &o.UserID, &o.DepartmentID, &o.Name, &o.Active, &lastAssigned, &openTasks); err != nil {
			return nil, fmt.Errorf("failed to scan officer workload: %w", err)
		}
		if lastAssigned.Valid {
			o.LastAssignedAt = &lastAssigned.Time
		}
		workloads = append(workloads, &port.OfficerWorkload{Officer: &o, OpenTaskCount: openTasks})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, w := range workloads {
		if err := r.loadSpecializations(ctx, w.Officer); err != nil {
			return nil, err
		}
	}
	return workloads, nil
}

// TouchLastAssigned records the assignment round-robin tiebreak timestamp
func (r *OfficerRepository) TouchLastAssigned(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE officers SET last_assigned_at = ? WHERE id = ?`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, at, id)
	if err != nil {
		r.logger.Error("Failed to touch officer last_assigned_at",
			zap.Int64("officer_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to touch officer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check touch result: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (r *OfficerRepository) scanOne(ctx context.Context, query string, arg any) (*entity.Officer, error) {
	var o entity.Officer
	var lastAssigned sql.NullTime
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.UserID, &o.DepartmentID, &o.Name, &o.Active, &lastAssigned,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan officer: %w", err)
	}
	if lastAssigned.Valid {
		o.LastAssignedAt = &lastAssigned.Time
	}
	if err := r.loadSpecializations(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OfficerRepository) loadSpecializations(ctx context.Context, officer *entity.Officer) error {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT category FROM officer_specializations WHERE officer_id = ? ORDER BY category`, officer.ID)
	if err != nil {
		return fmt.Errorf("failed to query officer specializations: %w", err)
	}
	officer.Specializations, err = collectStrings(rows)
	return err
}
