package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-tracker/backend/internal/health"
	identityhandler "workflow-tracker/backend/internal/identity/handler"
	"workflow-tracker/backend/internal/identity/service"
	"workflow-tracker/backend/internal/policy/engine"
	"workflow-tracker/backend/internal/security"
	"workflow-tracker/backend/internal/server/interceptors"
	userdomain "workflow-tracker/backend/internal/user/domain"
	userhandler "workflow-tracker/backend/internal/user/handler"
)

type stubAuth struct{}

func (stubAuth) Login(ctx context.Context, email, password string) (*service.Tokens, error) {
	return &service.Tokens{AccessToken: "a", RefreshToken: "r"}, nil
}

func (stubAuth) Refresh(ctx context.Context, raw string) (*service.Tokens, error) {
	return nil, &service.AuthError{Kind: service.ErrUnauthenticated, Reason: service.ReasonInvalidToken}
}

func (stubAuth) Logout(ctx context.Context, raw string) error { return nil }

type stubUsers map[string]*userdomain.User

func (s stubUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return s[id], nil
}

func newTestRouter(t *testing.T) (http.Handler, *security.TokenProvider) {
	t.Helper()
	return newTestRouterBehind(t, nil)
}

func newTestRouterBehind(t *testing.T, trusted []netip.Prefix) (http.Handler, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	policy, err := engine.NewRouteEvaluator(context.Background())
	require.NoError(t, err)
	users := stubUsers{
		"u1": {ID: "u1", Email: "a@x.com", Role: userdomain.RoleUser, Status: userdomain.UserStatusOnline},
	}
	h := NewHTTPHandler(HTTPDeps{
		Auth:           identityhandler.NewAuthHandler(stubAuth{}, identityhandler.CookieConfig{MaxAge: time.Hour}, nil),
		Users:          userhandler.NewHandler(users, nil),
		Authenticator:  interceptors.NewAuthenticator(tokens, users, nil),
		Policy:         policy,
		Health:         health.NewChecker(nil, policy),
		Gatherer:       prometheus.NewRegistry(),
		LoginPerMinute: 2,
		TrustedProxies: trusted,
	})
	return h, tokens
}

func do(h http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if method == http.MethodPost {
		body = strings.NewReader(`{"email":"a@x.com","password":"pw1"}`)
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "198.51.100.1:5000"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/login", "").Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/api/logout", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/api/refresh", "").Code)
}

func TestRouter_MeRequiresAccessToken(t *testing.T) {
	h, tokens := newTestRouter(t)
	rec := do(h, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	refresh, _, err := tokens.IssueRefresh("u1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/me", refresh).Code, "refresh token is not a bearer credential")

	access, _, err := tokens.IssueAccess("u1", "USER", security.DisplayAttrs{})
	require.NoError(t, err)
	rec = do(h, http.MethodGet, "/api/me", access)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@x.com")
}

func TestRouter_AdminForbiddenForUser(t *testing.T) {
	h, tokens := newTestRouter(t)
	access, _, err := tokens.IssueAccess("u1", "ADMIN", security.DisplayAttrs{})
	require.NoError(t, err)
	// The stored role (USER) wins over the ADMIN claim.
	rec := do(h, http.MethodGet, "/api/admin/users", access)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestRouter_LoginRateLimited(t *testing.T) {
	h, _ := newTestRouter(t)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(h, http.MethodPost, "/api/login", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func loginFrom(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.Header.Set("X-Real-IP", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_LoginRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	h, _ := newTestRouter(t)
	codes := []int{
		loginFrom(h, "198.51.100.9:5000", "203.0.113.1"),
		loginFrom(h, "198.51.100.9:5001", "203.0.113.2"),
		loginFrom(h, "198.51.100.9:5002", "203.0.113.3"),
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouter_LoginRateLimitPerClientBehindTrustedProxy(t *testing.T) {
	h, _ := newTestRouterBehind(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, loginFrom(h, "10.1.2.3:443", "203.0.113.10"))
	}
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(h, "10.1.2.3:443", "203.0.113.10"))
	assert.Equal(t, http.StatusOK, loginFrom(h, "10.1.2.3:443", "203.0.113.11"), "another client behind the proxy has its own budget")
}
