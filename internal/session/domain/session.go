package domain

import "time"

// Session is one issued refresh token, stored by its keyed hash. It is active
// while RevokedAt is nil; revocation is final.
type Session struct {
	ID            string
	UserID        string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason RevokeReason
}

// RevokeReason records which transition ended a session.
type RevokeReason string

const (
	RevokedByLogin    RevokeReason = "login"
	RevokedByRotation RevokeReason = "rotation"
	RevokedByLogout   RevokeReason = "logout"
)

// Active reports whether the session has not been revoked.
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

// ExpiredAt reports whether the stored expiry has passed at now. This is
// checked independently of the token's own exp claim.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
