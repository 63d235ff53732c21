package domain

import "time"

// AuditLog is one recorded authentication event. UserID is empty when the
// actor is unknown (e.g. a login with an unregistered email).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
