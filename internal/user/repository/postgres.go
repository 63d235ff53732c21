package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"workflow-tracker/backend/internal/db"
	"workflow-tracker/backend/internal/user/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, name, department_id, position, role, status, last_login_at, created_at, updated_at`

// PostgresRepository stores users in Postgres. Every method joins the
// transaction carried by ctx, if any.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
// An id that is not a UUID cannot exist and is reported as not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := db.Executor(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// LockByID returns the user for id with its row locked FOR UPDATE, or nil if
// not found. It fails with ErrNoTransaction outside a transaction.
func (r *PostgresRepository) LockByID(ctx context.Context, id string) (*domain.User, error) {
	if !db.InTx(ctx) {
		return nil, ErrNoTransaction
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := db.Executor(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, compared case-insensitively,
// or nil if not found. It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, domain.NormalizeEmail(email))
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	dept := sql.NullString{String: u.DepartmentID, Valid: u.DepartmentID != ""}
	_, err := db.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.PasswordHash, u.Name, dept, u.Position, string(u.Role), string(u.Status),
		u.LastLoginAt, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

// MarkOnline records a successful login.
func (r *PostgresRepository) MarkOnline(ctx context.Context, id string, at time.Time) error {
	_, err := db.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET status = $2, last_login_at = $3, updated_at = $3 WHERE id = $1`,
		id, string(domain.UserStatusOnline), at)
	return err
}

// MarkOffline records a logout.
func (r *PostgresRepository) MarkOffline(ctx context.Context, id string, at time.Time) error {
	_, err := db.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(domain.UserStatusOffline), at)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		dept      sql.NullString
		role      string
		status    string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &dept, &u.Position, &role, &status,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.DepartmentID = dept.String
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}
