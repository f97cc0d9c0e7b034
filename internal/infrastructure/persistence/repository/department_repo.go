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

// DepartmentRepository implements port.DepartmentRepository over sqlite.
// Category mappings and keyword profiles live in side tables and are loaded
// with each department row.
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{db: db, logger: logger}
}

// GetByID returns a department with its categories and keywords
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	query := `SELECT id, name, active, created_at FROM departments WHERE id = ?`
	dept, err := r.scanOne(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadProfile(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// GetByCategory returns the active department mapped to the given category.
// Exactly zero or one department may be mapped per category; a missing
// mapping surfaces as port.ErrNotFound.
func (r *DepartmentRepository) GetByCategory(ctx context.Context, category string) (*entity.Department, error) {
	query := `
		SELECT d.id, d.name, d.active, d.created_at
		FROM departments d
		JOIN department_categories dc ON dc.department_id = d.id
		WHERE dc.category = ? AND d.active = 1
	`
	dept, err := r.scanOne(ctx, query, category)
	if err != nil {
		return nil, err
	}
	if err := r.loadProfile(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// ListActive returns all active departments with their profiles loaded
func (r *DepartmentRepository) ListActive(ctx context.Context) ([]*entity.Department, error) {
	query := `SELECT id, name, active, created_at FROM departments WHERE active = 1 ORDER BY name`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	var departments []*entity.Department
	for rows.Next() {
		var d entity.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Active, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, d := range departments {
		if err := r.loadProfile(ctx, d); err != nil {
			return nil, err
		}
	}
	return departments, nil
}

func (r *DepartmentRepository) scanOne(ctx context.Context, query string, arg any) (*entity.Department, error) {
	var d entity.Department
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&d.ID, &d.Name, &d.Active, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan department: %w", err)
	}
	return &d, nil
}

func (r *DepartmentRepository) loadProfile(ctx context.Context, dept *entity.Department) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	rows, err := exec.QueryContext(ctx,
		`SELECT category FROM department_categories WHERE department_id = ? ORDER BY category`, dept.ID)
	if err != nil {
		return fmt.Errorf("failed to query department categories: %w", err)
	}
	dept.Categories, err = collectStrings(rows)
	if err != nil {
		return err
	}

	rows, err = exec.QueryContext(ctx,
		`SELECT keyword FROM department_keywords WHERE department_id = ? ORDER BY keyword`, dept.ID)
	if err != nil {
		return fmt.Errorf("failed to query department keywords: %w", err)
	}
	dept.Keywords, err = collectStrings(rows)
	return err
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
