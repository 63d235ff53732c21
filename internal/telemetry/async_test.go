package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordingEmitter implements EventEmitter for tests.
type recordingEmitter struct {
	mu      sync.Mutex
	events  []*SessionEvent
	emitErr error
	done    chan struct{}
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{done: make(chan struct{}, 16)}
}

func (m *recordingEmitter) Emit(ctx context.Context, event *SessionEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.emitErr
}

func (m *recordingEmitter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit was not called")
	}
}

func TestEmitAsync_NilInputs(t *testing.T) {
	EmitAsync(context.Background(), nil, NewSessionEvent(EventLogout, "u1", ""), nil)
	m := newRecordingEmitter()
	EmitAsync(context.Background(), m, nil, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, m.events)
}

func TestEmitAsync_SurvivesRequestCancellation(t *testing.T) {
	m := newRecordingEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev := NewSessionEvent(EventLoginSucceeded, "u1", "")
	EmitAsync(ctx, m, ev, nil)
	m.wait(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.events, 1)
	assert.Same(t, ev, m.events[0])
}

func TestEmitAsync_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := newRecordingEmitter()
	m.emitErr = errors.New("broker down")
	EmitAsync(context.Background(), m, NewSessionEvent(EventLogout, "u1", ""), zap.New(core))
	m.wait(t)

	require.Eventually(t, func() bool { return logs.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "logout", logs.All()[0].ContextMap()["event_type"])
}

func TestMultiEmitter(t *testing.T) {
	ok := newRecordingEmitter()
	bad := newRecordingEmitter()
	bad.emitErr = errors.New("nope")
	m := MultiEmitter{bad, nil, ok}

	err := m.Emit(context.Background(), NewSessionEvent(EventLogout, "u1", ""))
	require.Error(t, err)
	assert.Len(t, ok.events, 1, "later emitters still run after a failure")
	assert.NoError(t, MultiEmitter{ok}.Emit(context.Background(), NewSessionEvent(EventLogout, "u1", "")))
}

func TestNewSessionEvent(t *testing.T) {
	ev := NewSessionEvent(EventRefreshFailed, "u1", "expired")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventRefreshFailed, ev.Type)
	assert.Equal(t, "expired", ev.Reason)
	assert.WithinDuration(t, time.Now(), ev.OccurredAt, time.Second)
	assert.NoError(t, Nop{}.Emit(context.Background(), ev))
}
