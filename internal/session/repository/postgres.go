package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"workflow-tracker/backend/internal/db"
	"workflow-tracker/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, token_hash, issued_at, expires_at, revoked_at, revoked_reason`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository over the refresh_tokens table.
// Methods join the transaction carried by ctx, if any.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func (r *PostgresRepository) FindActiveByHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_tokens WHERE token_hash = $1 AND revoked_at IS NULL`, hash)
	return scanSession(row)
}

func (r *PostgresRepository) LockActiveByHash(ctx context.Context, hash string) (*domain.Session, error) {
	if !db.InTx(ctx) {
		return nil, ErrNoTransaction
	}
	row := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_tokens WHERE token_hash = $1 AND revoked_at IS NULL FOR UPDATE`, hash)
	return scanSession(row)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
	return scanSession(row)
}

func (r *PostgresRepository) RevokeAllActiveForUser(ctx context.Context, userID string, at time.Time, reason domain.RevokeReason) (int64, error) {
	res, err := db.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2, revoked_reason = $3 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at, string(reason))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) UpsertOrCreate(ctx context.Context, s *domain.Session) error {
	var id string
	err := db.Executor(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at, revoked_at, revoked_reason)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL)
		ON CONFLICT (token_hash) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at
		WHERE refresh_tokens.revoked_at IS NULL
		RETURNING id`,
		s.ID, s.UserID, s.TokenHash, s.IssuedAt, s.ExpiresAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrHashRevoked
	}
	if err != nil {
		return err
	}
	s.ID = id
	s.RevokedAt = nil
	s.RevokedReason = ""
	return nil
}

func (r *PostgresRepository) DeleteRevokedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := db.Executor(ctx, r.db).ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE id IN (
			SELECT id FROM refresh_tokens
			WHERE revoked_at IS NOT NULL AND revoked_at < $1
			ORDER BY revoked_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED)`,
		cutoff, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT count(*) FROM refresh_tokens WHERE user_id = $1 AND revoked_at IS NULL`, userID).Scan(&n)
	return n, err
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		s       domain.Session
		revoked sql.NullTime
		reason  sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IssuedAt, &s.ExpiresAt, &revoked, &reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revoked.Valid {
		t := revoked.Time
		s.RevokedAt = &t
	}
	s.RevokedReason = domain.RevokeReason(reason.String)
	return &s, nil
}
