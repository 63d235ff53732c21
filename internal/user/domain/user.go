package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account that can sign in. The session core reads it and updates
// only Status and LastLoginAt.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	DepartmentID string // empty when unassigned
	Position     string
	Role         Role
	Status       UserStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is the authorization role of a user.
type Role string

const (
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// Authority is the granted-authority string for the role, e.g. "ROLE_ADMIN".
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// UserStatus is the presence status maintained by login and logout.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "ONLINE"
	UserStatusOffline UserStatus = "OFFLINE"
)

// Authorities returns the granted authorities of the user.
func (u *User) Authorities() []string {
	if u == nil || !u.Role.Valid() {
		return nil
	}
	return []string{u.Role.Authority()}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence and normalizes its email.
// Returns an error describing the first validation failure.
func (u *User) Validate() error {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return errors.New("unknown role")
	}
	if u.Status == "" {
		u.Status = UserStatusOffline
	}
	return nil
}
