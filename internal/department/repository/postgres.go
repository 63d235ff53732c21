package repository

import (
	"context"
	"database/sql"
	"errors"

	"workflow-tracker/backend/internal/db"
	"workflow-tracker/backend/internal/department/domain"
)

// Repository defines persistence for departments.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Department, error)
	Create(ctx context.Context, d *domain.Department) error
}

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a department repository backed by conn.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByCode returns the department with the given code, or nil if not found.
func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*domain.Department, error) {
	var d domain.Department
	err := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM departments WHERE code = $1`, code).
		Scan(&d.ID, &d.Name, &d.Code, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// Create persists d. The department must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Department) error {
	if d.Code == "" || d.Name == "" {
		return errors.New("department name and code are required")
	}
	_, err := db.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO departments (id, name, code, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Name, d.Code, d.CreatedAt)
	return err
}
