package repository

import (
	"context"
	"errors"
	"time"

	"workflow-tracker/backend/internal/session/domain"
)

var (
	// ErrNoTransaction is returned by LockActiveByHash when ctx carries no transaction.
	ErrNoTransaction = errors.New("session: row lock requires a transaction")
	// ErrHashRevoked is returned by UpsertOrCreate when the hash belongs to a
	// revoked session. Revoked sessions are never reactivated.
	ErrHashRevoked = errors.New("session: token hash belongs to a revoked session")
)

// Repository defines persistence for sessions (stored refresh tokens).
// Lookups return (nil, nil) when no row matches.
type Repository interface {
	// FindActiveByHash returns the active session with the given token hash.
	FindActiveByHash(ctx context.Context, hash string) (*domain.Session, error)
	// LockActiveByHash is FindActiveByHash holding a row write lock until the
	// caller's transaction ends. A concurrent caller blocks, then sees the row
	// only if it is still active.
	LockActiveByHash(ctx context.Context, hash string) (*domain.Session, error)
	// FindByHash returns the session with the given hash whatever its state.
	FindByHash(ctx context.Context, hash string) (*domain.Session, error)
	// RevokeAllActiveForUser revokes every active session of userID at at and
	// returns how many were revoked.
	RevokeAllActiveForUser(ctx context.Context, userID string, at time.Time, reason domain.RevokeReason) (int64, error)
	// UpsertOrCreate stores s as an active session. An existing active row with
	// the same hash is reset to s's owner and times; a revoked one yields
	// ErrHashRevoked. s.ID is set to the stored row's id.
	UpsertOrCreate(ctx context.Context, s *domain.Session) error
	// DeleteRevokedBefore hard-deletes at most limit sessions revoked before cutoff.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	// CountActiveByUser returns the number of active sessions of userID.
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}
