package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-tracker/backend/internal/telemetry"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	got := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient("", "job")
	assert.Error(t, err)
}

func TestPushEventJSON(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL+"/", "workflow-tracker")
	require.NoError(t, err)

	ev := telemetry.NewSessionEvent(telemetry.EventRefreshReuse, "u1", "reuse of revoked token")
	raw, _ := json.Marshal(ev)
	require.NoError(t, c.PushEventJSON(context.Background(), raw))

	require.Len(t, got.Streams, 1)
	s := got.Streams[0]
	assert.Equal(t, map[string]string{"job": "workflow-tracker", "event_type": "refresh.reuse_detected"}, s.Stream)
	require.Len(t, s.Values, 1)
	assert.Equal(t, strconv.FormatInt(ev.OccurredAt.UnixNano(), 10), s.Values[0][0])
	assert.JSONEq(t, string(raw), s.Values[0][1])
}

func TestPushEventJSON_Undecodable(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	c, _ := NewClient(srv.URL, "job")
	before := time.Now()
	require.NoError(t, c.PushEventJSON(context.Background(), []byte("not json")))

	s := got.Streams[0]
	assert.Equal(t, map[string]string{"job": "job"}, s.Stream)
	ns, err := strconv.ParseInt(s.Values[0][0], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ns, before.UnixNano())
	assert.Equal(t, "not json", s.Values[0][1])
}

func TestPush_SanitizesLabelsAndReportsErrors(t *testing.T) {
	srv, got := captureServer(t, http.StatusBadRequest)
	c, _ := NewClient(srv.URL, "job")
	err := c.Push(context.Background(), time.Now(), "line", map[string]string{"a": "x y/z", "empty": "  "})
	require.Error(t, err)
	assert.Equal(t, "x_y_z", got.Streams[0].Stream["a"])
	assert.NotContains(t, got.Streams[0].Stream, "empty")
}
