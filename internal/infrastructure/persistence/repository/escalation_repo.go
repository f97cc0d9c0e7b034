package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// EscalationRepository implements port.EscalationRepository over sqlite
type EscalationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(db *sql.DB, logger *zap.Logger) port.EscalationRepository {
	return &EscalationRepository{db: db, logger: logger}
}

// Create inserts an escalation record
func (r *EscalationRepository) Create(ctx context.Context, escalation *entity.Escalation) error {
	query := `
		INSERT INTO escalations (report_id, reason, level, notes, raised_by_user_id)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		escalation.ReportID,
		escalation.Reason,
		escalation.Level,
		nullString(escalation.Notes),
		escalation.RaisedByUserID,
	)
	if err != nil {
		r.logger.Error("Failed to create escalation",
			zap.Int64("report_id", escalation.ReportID),
			zap.Error(err))
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get escalation id: %w", err)
	}
	escalation.ID = id
	return nil
}

// ListByReportID returns a report's escalations, newest first
func (r *EscalationRepository) ListByReportID(ctx context.Context, reportID int64) ([]*entity.Escalation, error) {
	query := `
		SELECT id, report_id, reason, level, notes, raised_by_user_id, created_at
		FROM escalations WHERE report_id = ? ORDER BY created_at DESC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*entity.Escalation
	for rows.Next() {
		var e entity.Escalation
		var notes sql.NullString
		var raisedBy sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ReportID, &e.Reason, &e.Level, &notes, &raisedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		e.Notes = notes.String
		if raisedBy.Valid {
			e.RaisedByUserID = &raisedBy.Int64
		}
		escalations = append(escalations, &e)
	}
	return escalations, rows.Err()
}
