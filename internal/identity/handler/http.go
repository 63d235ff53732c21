package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"workflow-tracker/backend/internal/httpx"
	"workflow-tracker/backend/internal/identity/service"
)

// RefreshCookieName carries the refresh token between browser and server.
const RefreshCookieName = "refreshToken"

// AuthService is the session API the handler drives.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.Tokens, error)
	Refresh(ctx context.Context, rawRefreshToken string) (*service.Tokens, error)
	Logout(ctx context.Context, rawRefreshToken string) error
}

// CookieConfig controls the refresh cookie attributes.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// AuthHandler serves /api/login, /api/refresh and /api/logout.
type AuthHandler struct {
	svc    AuthService
	cookie CookieConfig
	log    *zap.Logger
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(svc AuthService, cookie CookieConfig, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, cookie: cookie, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login verifies credentials, sets the refresh cookie and returns the access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, httpx.ErrValidation, "")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(w, httpx.ErrValidation, "email and password are required")
		return
	}

	tokens, err := h.svc.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, httpx.ErrUnauthorized, "Invalid email or password.")
		return
	case err != nil:
		h.log.Error("login failed", zap.Error(err))
		httpx.WriteError(w, httpx.ErrInternal, "")
		return
	}
	h.setRefreshCookie(w, tokens.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: tokens.AccessToken})
}

// Refresh rotates the refresh cookie and returns a new access token. Any
// rejection clears the cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := readCookie(r)
	if raw == "" {
		httpx.WriteError(w, httpx.ErrUnauthorized, "")
		return
	}

	tokens, err := h.svc.Refresh(r.Context(), raw)
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		h.clearRefreshCookie(w)
		httpx.WriteError(w, httpx.ErrTokenInvalid, "")
		return
	case err != nil:
		h.log.Error("refresh failed", zap.Error(err))
		httpx.WriteError(w, httpx.ErrInternal, "")
		return
	}
	h.setRefreshCookie(w, tokens.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: tokens.AccessToken})
}

// Logout clears the refresh cookie and ends the session it names. Unknown or
// missing tokens still succeed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := readCookie(r)
	h.clearRefreshCookie(w)
	if err := h.svc.Logout(r.Context(), raw); err != nil {
		h.log.Error("logout failed", zap.Error(err))
		httpx.WriteError(w, httpx.ErrInternal, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
