package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"workflow-tracker/backend/internal/httpx"
	"workflow-tracker/backend/internal/server/interceptors"
	"workflow-tracker/backend/internal/user/domain"
)

// UserReader loads a user by id. (nil, nil) means not found.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler serves the current user's profile.
type Handler struct {
	users UserReader
	log   *zap.Logger
}

// NewHandler returns a user Handler.
func NewHandler(users UserReader, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, log: log}
}

type meResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Authorities  []string   `json:"authorities"`
	Status       string     `json:"status"`
	DepartmentID string     `json:"departmentId,omitempty"`
	Position     string     `json:"position,omitempty"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Me returns the authenticated caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := interceptors.IdentityFrom(r.Context())
	if !id.Authenticated() {
		httpx.WriteError(w, httpx.ErrUnauthorized, "")
		return
	}
	u, err := h.users.GetByID(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("load current user", zap.String("user_id", id.UserID), zap.Error(err))
		httpx.WriteError(w, httpx.ErrInternal, "")
		return
	}
	if u == nil {
		httpx.WriteError(w, httpx.ErrNotFound, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         string(u.Role),
		Authorities:  u.Authorities(),
		Status:       string(u.Status),
		DepartmentID: u.DepartmentID,
		Position:     u.Position,
		LastLoginAt:  u.LastLoginAt,
	})
}
