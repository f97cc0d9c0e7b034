package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const appealColumns = `
	id, report_id, type, reason, status,
	submitted_by_user_id, reviewed_by_user_id, review_notes,
	requires_rework, rework_assigned_to_user_id, rework_completed,
	created_at, resolved_at`

// AppealRepository implements port.AppealRepository over sqlite
type AppealRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAppealRepository creates a new appeal repository
func NewAppealRepository(db *sql.DB, logger *zap.Logger) port.AppealRepository {
	return &AppealRepository{db: db, logger: logger}
}

// Create inserts a new appeal
func (r *AppealRepository) Create(ctx context.Context, appeal *entity.Appeal) error {
	query := `
		INSERT INTO appeals (report_id, type, reason, status, submitted_by_user_id)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		appeal.ReportID, appeal.Type, appeal.Reason, appeal.Status, appeal.SubmittedByUserID)
	if err != nil {
		r.logger.Error("Failed to create appeal",
			zap.Int64("report_id", appeal.ReportID),
			zap.Error(err))
		return fmt.Errorf("failed to create appeal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get appeal id: %w", err)
	}
	appeal.ID = id
	return nil
}

// GetByID retrieves an appeal by id
func (r *AppealRepository) GetByID(ctx context.Context, id int64) (*entity.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = ?`
	appeal, err := scanAppeal(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return appeal, err
}

// ListByReportID returns a report's appeals, oldest first
func (r *AppealRepository) ListByReportID(ctx context.Context, reportID int64) ([]*entity.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE report_id = ? ORDER BY created_at ASC`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appeals: %w", err)
	}
	defer rows.Close()

	var appeals []*entity.Appeal
	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
	}
	return appeals, rows.Err()
}

// Update persists appeal review and rework fields
func (r *AppealRepository) Update(ctx context.Context, appeal *entity.Appeal) error {
	query := `
		UPDATE appeals
		SET status = ?, reviewed_by_user_id = ?, review_notes = ?,
		    requires_rework = ?, rework_assigned_to_user_id = ?, rework_completed = ?,
		    resolved_at = ?
		WHERE id = ?
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		appeal.Status,
		appeal.ReviewedByUserID,
		nullString(appeal.ReviewNotes),
		appeal.RequiresRework,
		appeal.ReworkAssignedToUserID,
		appeal.ReworkCompleted,
		appeal.ResolvedAt,
		appeal.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appeal: %w", err)
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

func scanAppeal(row rowScanner) (*entity.Appeal, error) {
	var appeal entity.Appeal
	var reviewedBy, reworkAssignee sql.NullInt64
	var reviewNotes sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&appeal.ID, &appeal.ReportID, &appeal.Type, &appeal.Reason, &appeal.Status,
		&appeal.SubmittedByUserID, &reviewedBy, &reviewNotes,
		&appeal.RequiresRework, &reworkAssignee, &appeal.ReworkCompleted,
		&appeal.CreatedAt, &resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan appeal: %w", err)
	}

	if reviewedBy.Valid {
		appeal.ReviewedByUserID = &reviewedBy.Int64
	}
	if reworkAssignee.Valid {
		appeal.ReworkAssignedToUserID = &reworkAssignee.Int64
	}
	appeal.ReviewNotes = reviewNotes.String
	if resolvedAt.Valid {
		appeal.ResolvedAt = &resolvedAt.Time
	}
	return &appeal, nil
}
