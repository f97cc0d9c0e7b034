package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const reportColumns = `
	id, report_number, title, description, category, severity,
	latitude, longitude, address,
	status, status_updated_at, escalation_level,
	is_duplicate, duplicate_of_report_id, needs_review,
	ai_category, ai_confidence, ai_model_version, ai_processed_at,
	manual_category, manual_severity,
	department_id, routing_confidence,
	submitted_by_user_id, created_at, updated_at`

// ReportRepository implements port.ReportRepository over sqlite
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

// Create inserts a new report. A lost report-number race surfaces as
// port.ErrDuplicateReportNumber for the caller's rollback-and-retry loop.
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	query := `
		INSERT INTO reports (
			report_number, title, description, category, severity,
			latitude, longitude, address,
			status, status_updated_at,
			submitted_by_user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		report.ReportNumber,
		report.Title,
		report.Description,
		nullString(report.Category),
		nullString(report.Severity),
		report.Latitude,
		report.Longitude,
		nullString(report.Address),
		report.Status,
		report.StatusUpdatedAt,
		report.SubmittedByUserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicateReportNumber, report.ReportNumber)
		}
		r.logger.Error("Failed to create report",
			zap.String("report_number", report.ReportNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get report id: %w", err)
	}
	report.ID = id
	return nil
}

// GetByID retrieves a report by its id
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`
	return r.scanOne(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetByNumber retrieves a report by its human-readable number
func (r *ReportRepository) GetByNumber(ctx context.Context, number string) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE report_number = ?`
	return r.scanOne(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, number))
}

// NextSequence derives the next report-number sequence for the year from
// existing numbers. The read is unlocked; concurrent submitters may observe
// the same value and collide on insert, which Create reports as
// port.ErrDuplicateReportNumber.
func (r *ReportRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	// The sequence is everything after the year prefix. Its width is not
	// fixed: the zero padding widens once a year passes 99999 reports.
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTR(report_number, ?) AS INTEGER)), 0) + 1
		FROM reports
		WHERE report_number LIKE ?
	`
	prefix := fmt.Sprintf("CL-%d-", year)
	var seq int64
	if err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, len(prefix)+1, prefix+"%").Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to derive next sequence: %w", err)
	}
	return seq, nil
}

// UpdateStatus sets the report status and its change timestamp
func (r *ReportRepository) UpdateStatus(ctx context.Context, id int64, status string, at time.Time) error {
	query := `
		UPDATE reports
		SET status = ?, status_updated_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, status, at, id)
}

// UpdateClassification persists the classification result fields
func (r *ReportRepository) UpdateClassification(ctx context.Context, report *entity.Report) error {
	query := `
		UPDATE reports
		SET category = ?, severity = ?,
		    ai_category = ?, ai_confidence = ?, ai_model_version = ?, ai_processed_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query,
		nullString(report.Category),
		nullString(report.Severity),
		nullString(report.AICategory),
		report.AIConfidence,
		nullString(report.AIModelVersion),
		report.AIProcessedAt,
		report.ID,
	)
}

// UpdateManualClassification records a sticky human override
func (r *ReportRepository) UpdateManualClassification(ctx context.Context, id int64, category, severity string) error {
	query := `
		UPDATE reports
		SET manual_category = ?, category = ?,
		    manual_severity = CASE WHEN ? != '' THEN ? ELSE manual_severity END,
		    severity = CASE WHEN ? != '' THEN ? ELSE severity END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, category, category, severity, severity, severity, severity, id)
}

// UpdateRouting persists the routing decision
func (r *ReportRepository) UpdateRouting(ctx context.Context, id int64, departmentID int64, confidence float64) error {
	query := `
		UPDATE reports
		SET department_id = ?, routing_confidence = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, departmentID, confidence, id)
}

// MarkDuplicate flags the report as a duplicate of another. The schema's
// check constraint backs the no-self-duplication invariant; this guard keeps
// the error readable.
func (r *ReportRepository) MarkDuplicate(ctx context.Context, id int64, duplicateOf int64) error {
	if duplicateOf == id {
		return fmt.Errorf("report %d cannot be a duplicate of itself", id)
	}
	query := `
		UPDATE reports
		SET is_duplicate = 1, duplicate_of_report_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, duplicateOf, id)
}

// SetNeedsReview toggles the human-review flag
func (r *ReportRepository) SetNeedsReview(ctx context.Context, id int64, needsReview bool) error {
	query := `UPDATE reports SET needs_review = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.exec(ctx, query, needsReview, id)
}

// SetEscalationLevel records the report's current escalation level
func (r *ReportRepository) SetEscalationLevel(ctx context.Context, id int64, level int) error {
	query := `UPDATE reports SET escalation_level = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.exec(ctx, query, level, id)
}

// FindCandidates returns duplicate-search candidates: recent, located, not
// already duplicates, and never the subject report itself.
func (r *ReportRepository) FindCandidates(ctx context.Context, excludeID int64, since time.Time) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE id != ?
		  AND created_at >= ?
		  AND is_duplicate = 0
		  AND (latitude != 0 OR longitude != 0)
		ORDER BY created_at ASC
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, excludeID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate candidates: %w", err)
	}
	defer rows.Close()

	var reports []*entity.Report
	for rows.Next() {
		report, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *ReportRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("report update failed: %w", err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ReportRepository) scanOne(row *sql.Row) (*entity.Report, error) {
	report, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return report, err
}

func (r *ReportRepository) scanRow(row rowScanner) (*entity.Report, error) {
	var report entity.Report
	var category, severity, address sql.NullString
	var duplicateOf, departmentID sql.NullInt64
	var aiCategory, aiModelVersion, manualCategory, manualSeverity sql.NullString
	var aiConfidence, routingConfidence sql.NullFloat64
	var aiProcessedAt sql.NullTime

	err := row.Scan(
		&report.ID, &report.ReportNumber, &report.Title, &report.Description,
		&category, &severity,
		&report.Latitude, &report.Longitude, &address,
		&report.Status, &report.StatusUpdatedAt, &report.EscalationLevel,
		&report.IsDuplicate, &duplicateOf, &report.NeedsReview,
		&aiCategory, &aiConfidence, &aiModelVersion, &aiProcessedAt,
		&manualCategory, &manualSeverity,
		&departmentID, &routingConfidence,
		&report.SubmittedByUserID, &report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	report.Category = category.String
	report.Severity = severity.String
	report.Address = address.String
	report.AICategory = aiCategory.String
	report.AIModelVersion = aiModelVersion.String
	report.ManualCategory = manualCategory.String
	report.ManualSeverity = manualSeverity.String
	if duplicateOf.Valid {
		report.DuplicateOfReportID = &duplicateOf.Int64
	}
	if departmentID.Valid {
		report.DepartmentID = &departmentID.Int64
	}
	if aiConfidence.Valid {
		report.AIConfidence = &aiConfidence.Float64
	}
	if routingConfidence.Valid {
		report.RoutingConfidence = &routingConfidence.Float64
	}
	if aiProcessedAt.Valid {
		report.AIProcessedAt = &aiProcessedAt.Time
	}
	return &report, nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
