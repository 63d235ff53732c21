package repository

import (
	"context"
	"errors"
	"time"

	"workflow-tracker/backend/internal/user/domain"
)

var (
	// ErrEmailTaken is returned by Create when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoTransaction is returned by LockByID when ctx carries no transaction.
	ErrNoTransaction = errors.New("user: row lock requires a transaction")
)

// Repository defines persistence for users. Lookups return (nil, nil) when the row is missing.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail matches the normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// LockByID is GetByID holding a row write lock until the caller's
	// transaction ends. Every session transition of a user takes it first.
	LockByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// MarkOnline sets status ONLINE and last_login_at = at.
	MarkOnline(ctx context.Context, id string, at time.Time) error
	// MarkOffline sets status OFFLINE.
	MarkOffline(ctx context.Context, id string, at time.Time) error
}
