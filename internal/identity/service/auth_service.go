package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-tracker/backend/internal/audit"
	"workflow-tracker/backend/internal/security"
	sessiondomain "workflow-tracker/backend/internal/session/domain"
	"workflow-tracker/backend/internal/telemetry"
	userdomain "workflow-tracker/backend/internal/user/domain"
)

// Sentinel error kinds; handlers map them to status codes. Any other error
// returned by AuthService is an internal failure.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Internal rejection reasons. They are logged, audited and emitted, never sent to clients.
const (
	ReasonMissingCredentials = "missing credentials"
	ReasonUnknownEmail       = "unknown email"
	ReasonBadPassword        = "password mismatch"
	ReasonInvalidToken       = "invalid or expired token"
	ReasonWrongTokenType     = "wrong token type"
	ReasonRevokedOrUnknown   = "revoked or unknown token"
	ReasonExpired            = "expired"
	ReasonUserMismatch       = "user mismatch"
	ReasonUserNotFound       = "user not found"
)

// AuthError is a rejected authentication. errors.Is matches its Kind.
type AuthError struct {
	Kind   error
	Reason string
}

func (e *AuthError) Error() string { return e.Kind.Error() + ": " + e.Reason }

func (e *AuthError) Unwrap() error { return e.Kind }

// ReasonOf returns the internal reason of an AuthError, or "" for other errors.
func ReasonOf(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// Tokens is the result of Login and Refresh.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	UserID           string
}

// UserRepo is the minimal user repository needed by the auth service.
// LockByID must hold the user's row lock until the transaction ends; it
// serializes every session transition of that user.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	LockByID(ctx context.Context, id string) (*userdomain.User, error)
	MarkOnline(ctx context.Context, id string, at time.Time) error
	MarkOffline(ctx context.Context, id string, at time.Time) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	FindActiveByHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	LockActiveByHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	FindByHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	RevokeAllActiveForUser(ctx context.Context, userID string, at time.Time, reason sessiondomain.RevokeReason) (int64, error)
	UpsertOrCreate(ctx context.Context, s *sessiondomain.Session) error
}

// TxRunner runs fn atomically; repositories called with the ctx passed to fn
// take part in the transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuthService implements login, refresh-token rotation and logout under a
// single-session-per-user policy. Every transition runs in one transaction.
type AuthService struct {
	users     UserRepo
	sessions  SessionRepo
	tx        TxRunner
	passwords *security.Hasher
	tokens    *security.TokenProvider
	hasher    *security.TokenHasher

	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	metrics  *telemetry.Metrics
	log      *zap.Logger
	clientIP func(context.Context) string
	now      func() time.Time
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

// WithAudit records every transition and rejection in the audit log.
func WithAudit(a audit.AuditLogger) Option { return func(s *AuthService) { s.audit = a } }

// WithEvents publishes session events asynchronously.
func WithEvents(e telemetry.EventEmitter) Option { return func(s *AuthService) { s.events = e } }

// WithMetrics counts outcomes.
func WithMetrics(m *telemetry.Metrics) Option { return func(s *AuthService) { s.metrics = m } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(s *AuthService) { s.log = l } }

// WithClientIP sets how the caller's address is read from the request context.
func WithClientIP(f func(context.Context) string) Option { return func(s *AuthService) { s.clientIP = f } }

// WithClock overrides the wall clock used for session timestamps.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	tx TxRunner,
	passwords *security.Hasher,
	tokens *security.TokenProvider,
	hasher *security.TokenHasher,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		users:     users,
		sessions:  sessions,
		tx:        tx,
		passwords: passwords,
		tokens:    tokens,
		hasher:    hasher,
		log:       zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks email and password, revokes every active session of the user,
// and opens a new one. Any credential mismatch is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Tokens, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, s.rejectLogin(ctx, "", ReasonMissingCredentials)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.metrics.Login(telemetry.ResultError)
		return nil, fmt.Errorf("login: load user: %w", err)
	}
	if user == nil {
		s.passwords.Burn(password)
		return nil, s.rejectLogin(ctx, "", ReasonUnknownEmail)
	}
	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, s.rejectLogin(ctx, user.ID, ReasonBadPassword)
	}

	var tokens *Tokens
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.users.LockByID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if locked == nil {
			return &AuthError{Kind: ErrInvalidCredentials, Reason: ReasonUserNotFound}
		}
		now := s.now()
		if _, err := s.sessions.RevokeAllActiveForUser(ctx, locked.ID, now, sessiondomain.RevokedByLogin); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		t, err := s.openSession(ctx, locked, now)
		if err != nil {
			return err
		}
		if err := s.users.MarkOnline(ctx, locked.ID, now); err != nil {
			return fmt.Errorf("mark online: %w", err)
		}
		tokens = t
		return nil
	})
	if err != nil {
		if reason := ReasonOf(err); reason != "" {
			return nil, s.rejectLogin(ctx, user.ID, reason)
		}
		s.metrics.Login(telemetry.ResultError)
		s.log.Error("login failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("login: %w", err)
	}

	s.metrics.Login(telemetry.ResultSuccess)
	s.record(ctx, user.ID, audit.ActionLoginSuccess, telemetry.EventLoginSucceeded, "")
	return tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The token's user and its
// stored session are locked for the whole transaction, so concurrent calls
// with the same token rotate it exactly once and the loser sees it revoked.
// A failed check leaves the store untouched.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*Tokens, error) {
	claims, err := s.tokens.Verify(rawRefreshToken)
	if err != nil {
		return nil, s.rejectRefresh(ctx, "", ReasonInvalidToken)
	}
	if !security.IsRefreshToken(claims) {
		return nil, s.rejectRefresh(ctx, claims.Subject, ReasonWrongTokenType)
	}
	hash := s.hasher.Hash(rawRefreshToken)

	var tokens *Tokens
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.LockByID(ctx, claims.Subject)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		rec, err := s.sessions.LockActiveByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if rec == nil || !s.hasher.Matches(rawRefreshToken, rec.TokenHash) {
			return &AuthError{Kind: ErrUnauthenticated, Reason: ReasonRevokedOrUnknown}
		}
		now := s.now()
		if rec.ExpiredAt(now) {
			return &AuthError{Kind: ErrUnauthenticated, Reason: ReasonExpired}
		}
		if rec.UserID != claims.Subject {
			return &AuthError{Kind: ErrUnauthenticated, Reason: ReasonUserMismatch}
		}
		if user == nil {
			return &AuthError{Kind: ErrUnauthenticated, Reason: ReasonUserNotFound}
		}
		if _, err := s.sessions.RevokeAllActiveForUser(ctx, user.ID, now, sessiondomain.RevokedByRotation); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		tokens, err = s.openSession(ctx, user, now)
		return err
	})
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) {
			if ae.Reason == ReasonRevokedOrUnknown {
				s.detectReuse(ctx, hash)
			}
			return nil, s.rejectRefresh(ctx, claims.Subject, ae.Reason)
		}
		s.metrics.Refresh(telemetry.ResultError)
		s.log.Error("refresh failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.Refresh(telemetry.ResultSuccess)
	s.record(ctx, tokens.UserID, audit.ActionRefresh, telemetry.EventRefreshSucceeded, "")
	return tokens, nil
}

// Logout revokes every active session of the token's owner and marks the user
// offline. An empty, unknown or already revoked token is a successful no-op.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	hash := s.hasher.Hash(rawRefreshToken)

	var userID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		owner, err := s.sessions.FindActiveByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("find session: %w", err)
		}
		if owner == nil {
			return nil
		}
		// User row first, then the session row: the same order as login and refresh.
		if _, err := s.users.LockByID(ctx, owner.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		rec, err := s.sessions.LockActiveByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if rec == nil {
			return nil
		}
		now := s.now()
		if _, err := s.sessions.RevokeAllActiveForUser(ctx, rec.UserID, now, sessiondomain.RevokedByLogout); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		if err := s.users.MarkOffline(ctx, rec.UserID, now); err != nil {
			return fmt.Errorf("mark offline: %w", err)
		}
		userID = rec.UserID
		return nil
	})
	if err != nil {
		s.log.Error("logout failed", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}

	s.metrics.Logout()
	if userID == "" {
		s.log.Debug("logout with inactive token")
		return nil
	}
	s.record(ctx, userID, audit.ActionLogout, telemetry.EventLogout, "")
	return nil
}

// openSession issues a token pair for user and stores the refresh token hash
// as the new active session.
func (s *AuthService) openSession(ctx context.Context, user *userdomain.User, now time.Time) (*Tokens, error) {
	access, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role), security.DisplayAttrs{Name: user.Name, Email: user.Email})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	rec := &sessiondomain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: s.hasher.Hash(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.sessions.UpsertOrCreate(ctx, rec); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Tokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		UserID:           user.ID,
	}, nil
}

// detectReuse flags a refresh token that was valid once but has been revoked.
// It only reports; the store is not changed.
func (s *AuthService) detectReuse(ctx context.Context, hash string) {
	rec, err := s.sessions.FindByHash(ctx, hash)
	if err != nil {
		s.log.Warn("reuse lookup failed", zap.Error(err))
		return
	}
	if rec == nil || rec.Active() {
		return
	}
	s.log.Warn("revoked refresh token presented",
		zap.String("user_id", rec.UserID),
		zap.String("session_id", rec.ID),
		zap.String("revoked_reason", string(rec.RevokedReason)))
	s.record(ctx, rec.UserID, audit.ActionRefreshReuse, telemetry.EventRefreshReuse, string(rec.RevokedReason))
}

func (s *AuthService) rejectLogin(ctx context.Context, userID, reason string) error {
	s.metrics.Login(telemetry.ResultUnauthorized)
	s.log.Info("login rejected", zap.String("user_id", userID), zap.String("reason", reason))
	s.record(ctx, userID, audit.ActionLoginFailure, telemetry.EventLoginFailed, reason)
	return &AuthError{Kind: ErrInvalidCredentials, Reason: reason}
}

func (s *AuthService) rejectRefresh(ctx context.Context, userID, reason string) error {
	s.metrics.Refresh(telemetry.ResultUnauthorized)
	s.log.Info("refresh rejected", zap.String("user_id", userID), zap.String("reason", reason))
	s.record(ctx, userID, audit.ActionRefreshFailure, telemetry.EventRefreshFailed, reason)
	return &AuthError{Kind: ErrUnauthenticated, Reason: reason}
}

// record writes the audit entry and publishes the event. Both are best-effort.
func (s *AuthService) record(ctx context.Context, userID, action string, event telemetry.EventType, reason string) {
	if s.audit != nil {
		meta := ""
		if reason != "" {
			meta = "reason=" + reason
		}
		s.audit.LogEvent(ctx, userID, action, audit.ResourceSession, meta)
	}
	if s.events != nil {
		ev := telemetry.NewSessionEvent(event, userID, reason)
		if s.clientIP != nil {
			ev.ClientIP = s.clientIP(ctx)
		}
		telemetry.EmitAsync(ctx, s.events, ev, s.log)
	}
}
