package interceptors

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"workflow-tracker/backend/internal/security"
	userdomain "workflow-tracker/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

// UserLookup loads the current user record by id. (nil, nil) means not found.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Authenticator turns an Authorization header into an Identity. It never
// fails a request; anything but a valid access token yields Anonymous.
type Authenticator struct {
	tokens *security.TokenProvider
	users  UserLookup
	log    *zap.Logger
}

// NewAuthenticator returns an Authenticator. When users is non-nil the user is
// reloaded on every request so authorities follow the current role; otherwise
// the role claim of the token is trusted.
func NewAuthenticator(tokens *security.TokenProvider, users UserLookup, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// Authenticate validates a "Bearer <token>" header. Refresh tokens, expired or
// forged tokens and unknown users all yield Anonymous.
func (a *Authenticator) Authenticate(ctx context.Context, header string) Identity {
	raw := BearerToken(header)
	if raw == "" {
		return Anonymous
	}
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.log.Debug("bearer token rejected", zap.Error(err))
		return Anonymous
	}
	if !security.IsAccessToken(claims) {
		a.log.Debug("bearer token is not an access token", zap.String("user_id", claims.Subject))
		return Anonymous
	}

	id := Identity{
		UserID: claims.Subject,
		Role:   claims.Role,
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if a.users == nil {
		if role := userdomain.Role(claims.Role); role.Valid() {
			id.Authorities = []string{role.Authority()}
		}
		return id
	}

	u, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		a.log.Warn("user lookup failed during authentication", zap.String("user_id", claims.Subject), zap.Error(err))
		return Anonymous
	}
	if u == nil {
		a.log.Info("access token for unknown user", zap.String("user_id", claims.Subject))
		return Anonymous
	}
	id.Role = string(u.Role)
	id.Name = u.Name
	id.Email = u.Email
	id.Authorities = u.Authorities()
	return id
}

// BearerToken extracts the token from an Authorization header value, or "".
func BearerToken(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
