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

// FeedbackRepository implements port.FeedbackRepository over sqlite. The
// unique index on report_id enforces the one-feedback-per-report invariant
// at the storage layer.
type FeedbackRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *sql.DB, logger *zap.Logger) port.FeedbackRepository {
	return &FeedbackRepository{db: db, logger: logger}
}

// Create inserts feedback. A second submission for the same report fails
// with port.ErrFeedbackExists; the first row is never overwritten.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *entity.Feedback) error {
	query := `
		INSERT INTO feedback (
			report_id, submitted_by_user_id, rating, satisfaction_level, comment,
			issue_resolved, work_quality_ok, requires_followup
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		feedback.ReportID,
		feedback.SubmittedByUserID,
		feedback.Rating,
		feedback.SatisfactionLevel,
		nullString(feedback.Comment),
		feedback.IssueResolved,
		feedback.WorkQualityOK,
		feedback.RequiresFollowup,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: report %d", port.ErrFeedbackExists, feedback.ReportID)
		}
		r.logger.Error("Failed to create feedback",
			zap.Int64("report_id", feedback.ReportID),
			zap.Error(err))
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get feedback id: %w", err)
	}
	feedback.ID = id
	return nil
}

// GetByReportID returns the report's feedback, if any
func (r *FeedbackRepository) GetByReportID(ctx context.Context, reportID int64) (*entity.Feedback, error) {
	query := `
		SELECT id, report_id, submitted_by_user_id, rating, satisfaction_level, comment,
		       issue_resolved, work_quality_ok, requires_followup, created_at
		FROM feedback WHERE report_id = ?
	`
	var fb entity.Feedback
	var comment sql.NullString
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, reportID).Scan(
		&fb.ID, &fb.ReportID, &fb.SubmittedByUserID, &fb.Rating, &fb.SatisfactionLevel, &comment,
		&fb.IssueResolved, &fb.WorkQualityOK, &fb.RequiresFollowup, &fb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	fb.Comment = comment.String
	return &fb, nil
}
