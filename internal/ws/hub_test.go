package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, userID).Run()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHub_DeliversToUser(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	conn := dial(t, hub, user)

	hub.Notify(uuid.New(), "order.updated", map[string]string{"id": "other"})
	hub.Notify(user, "order.updated", map[string]string{"id": "mine"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "order.updated", env.Type)
	assert.Equal(t, "mine", env.Data["id"])
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	conn := dial(t, hub, user)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connected(user) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.Error(t, hub.BroadcastToUser(uuid.New(), "order.updated", nil))
	assert.NotPanics(t, func() { hub.Notify(uuid.New(), "order.updated", nil) })
}

func TestHub_RejectsUnserializable(t *testing.T) {
	hub := NewHub()
	assert.Error(t, hub.BroadcastToUser(uuid.New(), "order.updated", make(chan int)))
}
