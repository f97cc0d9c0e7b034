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

const taskColumns = `
	id, report_id, officer_id, status, match_confidence,
	sla_deadline, sla_violation_level, rejection_reason, closed_at,
	created_at, updated_at`

// TaskRepository implements port.TaskRepository over sqlite
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (report_id, officer_id, status, match_confidence, sla_deadline)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		task.ReportID, task.OfficerID, task.Status, task.MatchConfidence, task.SLADeadline)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.Int64("report_id", task.ReportID),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get task id: %w", err)
	}
	task.ID = id
	return nil
}

// GetByID retrieves a task by id
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	return r.scanOne(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetOpenByReportID returns the report's single open task
func (r *TaskRepository) GetOpenByReportID(ctx context.Context, reportID int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE report_id = ? AND closed_at IS NULL`
	return r.scanOne(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, reportID))
}

// ListByReportID returns all tasks for a report, oldest first
func (r *TaskRepository) ListByReportID(ctx context.Context, reportID int64) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE report_id = ? ORDER BY created_at ASC`
	return r.list(ctx, query, reportID)
}

// UpdateStatus sets the task status
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.exec(ctx, query, status, id)
}

// Close finishes a task with a final status; prior task rows stay untouched
func (r *TaskRepository) Close(ctx context.Context, id int64, status, rejectionReason string, at time.Time) error {
	query := `
		UPDATE tasks
		SET status = ?, rejection_reason = ?, closed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND closed_at IS NULL
	`
	return r.exec(ctx, query, status, nullString(rejectionReason), at, id)
}

// SetSLAViolationLevel records an SLA breach level on an open task
func (r *TaskRepository) SetSLAViolationLevel(ctx context.Context, id int64, level int) error {
	query := `UPDATE tasks SET sla_violation_level = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.exec(ctx, query, level, id)
}

// ListOverdue returns open tasks past their SLA deadline below the given
// violation level
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time, belowLevel int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE closed_at IS NULL
		  AND sla_deadline IS NOT NULL
		  AND sla_deadline < ?
		  AND sla_violation_level < ?
		ORDER BY sla_deadline ASC
	`
	return r.list(ctx, query, now, belowLevel)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Task, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("task update failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) scanOne(row *sql.Row) (*entity.Task, error) {
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return task, err
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var task entity.Task
	var slaDeadline, closedAt sql.NullTime
	var rejectionReason sql.NullString

	err := row.Scan(
		&task.ID, &task.ReportID, &task.OfficerID, &task.Status, &task.MatchConfidence,
		&slaDeadline, &task.SLAViolationLevel, &rejectionReason, &closedAt,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	if slaDeadline.Valid {
		task.SLADeadline = &slaDeadline.Time
	}
	if closedAt.Valid {
		task.ClosedAt = &closedAt.Time
	}
	task.RejectionReason = rejectionReason.String
	return &task, nil
}
