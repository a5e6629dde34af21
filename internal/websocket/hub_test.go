package websocket

import (
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

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.URL.Query().Get("session"))
		if err != nil {
			http.Error(w, "bad session", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Serve(hub, conn, sessionID, []byte(`{"op":"snapshot"}`))
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + sessionID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_PublishIsScopedToSession(t *testing.T) {
	hub, srv := startHub(t)
	first, second := uuid.New(), uuid.New()

	a := dial(t, srv, first)
	b := dial(t, srv, first)
	other := dial(t, srv, second)

	for _, conn := range []*websocket.Conn{a, b, other} {
		assert.Equal(t, `{"op":"snapshot"}`, readText(t, conn))
	}
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(first) == 2 && hub.ConnectionCount(second) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish(first, []byte(`{"op":"add_comment"}`))
	assert.Equal(t, `{"op":"add_comment"}`, readText(t, a))
	assert.Equal(t, `{"op":"add_comment"}`, readText(t, b))

	hub.Publish(second, []byte(`{"op":"vote_comment"}`))
	assert.Equal(t, `{"op":"vote_comment"}`, readText(t, other))
}

func TestHub_CloseSessionDisconnectsClients(t *testing.T) {
	hub, srv := startHub(t)
	sessionID := uuid.New()

	conn := dial(t, srv, sessionID)
	readText(t, conn)
	require.Eventually(t, func() bool { return hub.ConnectionCount(sessionID) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.CloseSession(sessionID)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Equal(t, 0, hub.ConnectionCount(sessionID))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t)
	sessionID := uuid.New()

	conn := dial(t, srv, sessionID)
	readText(t, conn)
	require.Eventually(t, func() bool { return hub.ConnectionCount(sessionID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ConnectionCount(sessionID) == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing to a session without clients is a no-op
	hub.Publish(sessionID, []byte("ignored"))
}
