package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventLoginSucceeded   EventType = "login.succeeded"
	EventLoginFailed      EventType = "login.failed"
	EventRefreshSucceeded EventType = "refresh.succeeded"
	EventRefreshFailed    EventType = "refresh.failed"
	EventRefreshReuse     EventType = "refresh.reuse_detected"
	EventLogout           EventType = "logout"
	EventCleanupSwept     EventType = "cleanup.swept"
)

// SessionEvent is published for every session lifecycle transition. It never
// carries raw tokens or passwords.
type SessionEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"eventType"`
	UserID     string            `json:"userId,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	ClientIP   string            `json:"clientIp,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewSessionEvent returns an event with a fresh id and the current time.
func NewSessionEvent(typ EventType, userID, reason string) *SessionEvent {
	return &SessionEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		UserID:     userID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// EventEmitter emits session events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SessionEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, *SessionEvent) error { return nil }

// MultiEmitter fans an event out to every emitter. All emitters are tried; the
// joined error reports those that failed.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event *SessionEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
