package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/types"
)

// feedStore hands out one prepared subscription for session frc1.
type feedStore struct {
	remote.Store
	sub *remote.Subscription
}

func (f *feedStore) Subscribe(ctx context.Context, code string, c remote.Collection) (*remote.Subscription, error) {
	if code != "frc1" {
		return nil, remote.ErrSessionNotFound
	}
	return f.sub, nil
}

type harness struct {
	url    string
	logs   *observer.ObservedLogs
	closed chan struct{}
}

// serve runs the handler with a logger that both records entries and fails
// the test if anything logs after it ends.
func serve(t *testing.T, sub *remote.Subscription) harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), core))

	closed := make(chan struct{}, 1)
	h := Handler(&feedStore{sub: sub}, log, Hooks{
		OnClose: func(remote.Collection) { closed <- struct{}{} },
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return harness{url: srv.URL, logs: logs, closed: closed}
}

func (h harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u := "ws" + strings.TrimPrefix(h.url, "http") + "/?code=FRC1&collection=capabilities"
	conn, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	return conn
}

func (h harness) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return")
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) remote.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, types.MsgSnapshot, msg.Type)
	require.NotNil(t, msg.Snapshot)
	return *msg.Snapshot
}

func TestHandler_SkipsUnencodableSnapshot(t *testing.T) {
	sub := remote.NewSubscription(4, nil)
	require.True(t, sub.Send(remote.Snapshot{Collection: remote.Capabilities, Version: 1, Docs: []remote.Doc{
		{ID: "bad", Fields: map[string]any{"x": make(chan int)}},
	}}))
	require.True(t, sub.Send(remote.Snapshot{Collection: remote.Capabilities, Version: 2}))

	h := serve(t, sub)
	conn := h.dial(t)

	assert.Equal(t, int64(2), readSnapshot(t, conn).Version)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	h.waitClosed(t)

	assert.Equal(t, 1, h.logs.FilterMessage("encode snapshot").Len())
}

func TestHandler_StoreEndsFeed(t *testing.T) {
	sub := remote.NewSubscription(4, nil)
	require.True(t, sub.Send(remote.Snapshot{Collection: remote.Capabilities, Version: 3}))

	h := serve(t, sub)
	conn := h.dial(t)
	defer conn.CloseNow()

	assert.Equal(t, int64(3), readSnapshot(t, conn).Version)
	sub.Fail(remote.ErrDropped)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// the writer has logged and exited by the time the handler is gone
	h.waitClosed(t)
	assert.Equal(t, 1, h.logs.FilterMessage("subscription ended").Len())
}

func TestHandler_ClientLeavesWhileFeedOpen(t *testing.T) {
	sub := remote.NewSubscription(4, nil)
	require.True(t, sub.Send(remote.Snapshot{Collection: remote.Capabilities, Version: 1}))

	h := serve(t, sub)
	conn := h.dial(t)
	readSnapshot(t, conn)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	h.waitClosed(t)

	_, ok := <-sub.C
	assert.False(t, ok, "subscription released when the client leaves")
	assert.NoError(t, sub.Err())
	assert.False(t, sub.Send(remote.Snapshot{Version: 2}))
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	h := serve(t, remote.NewSubscription(1, nil))
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing code", "?collection=capabilities", http.StatusBadRequest},
		{"unknown collection", "?code=frc1&collection=robots", http.StatusBadRequest},
		{"unknown session", "?code=frc9&collection=capabilities", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(h.url + "/" + tt.query)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
