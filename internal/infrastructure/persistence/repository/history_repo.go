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

// HistoryRepository implements port.HistoryRepository over sqlite. The table
// is append-only; this type deliberately exposes no update or delete.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new status history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append writes one status change entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.StatusHistory) error {
	query := `
		INSERT INTO status_history (report_id, old_status, new_status, actor, notes)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ReportID,
		entry.OldStatus,
		entry.NewStatus,
		entry.Actor,
		nullString(entry.Notes),
	)
	if err != nil {
		r.logger.Error("Failed to append status history",
			zap.Int64("report_id", entry.ReportID),
			zap.String("new_status", entry.NewStatus),
			zap.Error(err))
		return fmt.Errorf("failed to append status history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByReportID returns a report's status history in chronological order
func (r *HistoryRepository) ListByReportID(ctx context.Context, reportID int64) ([]*entity.StatusHistory, error) {
	query := `
		SELECT id, report_id, old_status, new_status, actor, notes, created_at
		FROM status_history WHERE report_id = ? ORDER BY created_at ASC, id ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.StatusHistory
	for rows.Next() {
		var h entity.StatusHistory
		var notes sql.NullString
		if err := rows.Scan(&h.ID, &h.ReportID, &h.OldStatus, &h.NewStatus, &h.Actor, &notes, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		h.Notes = notes.String
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}
