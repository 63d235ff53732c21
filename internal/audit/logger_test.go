package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"workflow-tracker/backend/internal/audit/domain"
)

// mockAuditRepo implements audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
	ctxErr    error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, nil)

	logger.LogEvent(context.Background(), "user-1", ActionLoginSuccess, ResourceSession, "metadata")

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, ActionLoginSuccess, entry.Action)
	assert.Equal(t, ResourceSession, entry.Resource)
	assert.Equal(t, "192.168.1.1", entry.IP)
	assert.Equal(t, "metadata", entry.Metadata)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), "", ActionLoginFailure, ResourceSession, "")
	NewLogger(repo, func(context.Context) string { return "" }, nil).LogEvent(context.Background(), "", ActionLoginFailure, ResourceSession, "")
	require.Len(t, repo.entries, 2)
	assert.Equal(t, "unknown", repo.entries[0].IP)
	assert.Equal(t, "unknown", repo.entries[1].IP)
}

func TestLogger_LogEvent_SurvivesCancelledRequest(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewLogger(repo, nil, nil).LogEvent(ctx, "u1", ActionLogout, ResourceSession, "")
	require.Len(t, repo.entries, 1)
	assert.NoError(t, repo.ctxErr)
}

func TestLogger_LogEvent_RepoErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, zap.New(core)).LogEvent(context.Background(), "u1", ActionLogout, ResourceSession, "")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, ActionLogout, logs.All()[0].ContextMap()["action"])
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.LogEvent(context.Background(), "u1", ActionLogout, ResourceSession, "") })
	assert.NotPanics(t, func() {
		NewLogger(nil, nil, nil).LogEvent(context.Background(), "u1", ActionLogout, ResourceSession, "")
	})
}
