package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"workflow-tracker/backend/internal/telemetry"
)

const instrumentationName = "workflow-tracker/session"

// recordEmitter is the part of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends session events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Nop{}
	}
	return newEmitter(provider.Logger(instrumentationName))
}

func newEmitter(logger recordEmitter) *otelEmitter {
	return &otelEmitter{logger: logger}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the session event to an OTel log record. Failures and reuse
// detections are raised to WARN severity.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SessionEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetEventName(string(event.Type))
	rec.SetSeverity(severityFor(event.Type))
	rec.SetSeverityText(rec.Severity().String())
	if len(event.Attributes) > 0 {
		if b, err := json.Marshal(event.Attributes); err == nil {
			rec.SetBody(otellog.BytesValue(b))
		}
	}
	rec.AddAttributes(otellog.String("event_id", event.ID), otellog.String("event_type", string(event.Type)))
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	if event.ClientIP != "" {
		rec.AddAttributes(otellog.String("client_ip", event.ClientIP))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityFor(t telemetry.EventType) otellog.Severity {
	switch t {
	case telemetry.EventLoginFailed, telemetry.EventRefreshFailed, telemetry.EventRefreshReuse:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
