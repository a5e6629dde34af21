package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comment-thread/internal/api"
	"comment-thread/internal/engine"
	"comment-thread/internal/engine/actors"
	"comment-thread/internal/fixture"
	"comment-thread/internal/middleware"
	"comment-thread/internal/models"
	"comment-thread/internal/store"
	"comment-thread/internal/utils"
	"comment-thread/internal/websocket"
)

type testClient struct {
	t     *testing.T
	base  string
	token string
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	f, err := fixture.Default()
	require.NoError(t, err)

	metrics := utils.NewMetricsCollector()
	hub := websocket.NewHub()
	go hub.Run()

	threads := engine.NewEngine(actor.NewActorSystem(), engine.Options{
		Fixture:  f,
		Notifier: hub,
		Metrics:  metrics,
	})

	s := NewServer(threads, hub, middleware.NewTokenManager("test-secret", time.Hour), metrics, middleware.DefaultCORSConfig(nil))
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		srv.Close()
		threads.Shutdown()
		hub.Stop()
	})
	return srv
}

func (c *testClient) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func openSession(t *testing.T, srv *httptest.Server) (*testClient, api.SessionResponse) {
	t.Helper()
	c := &testClient{t: t, base: srv.URL}
	var session api.SessionResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/session", nil, &session))
	require.True(t, session.Success)
	c.token = session.Token
	return c, session
}

func TestCommentFlow(t *testing.T) {
	srv := newTestServer(t)
	c, session := openSession(t, srv)

	assert.Equal(t, "juliusomo", session.CurrentUser.Username)
	assert.Len(t, session.Comments, 2)
	assert.Equal(t, 4, models.CountForest(session.Comments))

	var added models.Comment
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/comments", api.ContentRequest{Content: "  Hello thread  "}, &added))
	assert.Equal(t, "Hello thread", added.Content)
	assert.Equal(t, "juliusomo", added.User.Username)
	assert.Equal(t, 0, added.Score)

	var reply models.Comment
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/comments/1/replies", api.ContentRequest{Content: "agreed"}, &reply))
	assert.Equal(t, "amyrobson", reply.ReplyingTo)
	assert.Equal(t, "@amyrobson agreed", reply.Content)

	var edited models.Comment
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/comments/"+added.ID.String(), api.ContentRequest{Content: "Edited"}, &edited))
	assert.Equal(t, "Edited", edited.Content)

	var voted models.Comment
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/comments/1/vote", map[string]interface{}{"direction": "up"}, &voted))
	assert.True(t, voted.VoteState.HasUpvoted)
	score := voted.Score
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/comments/1/vote", map[string]interface{}{"direction": 1}, &voted))
	assert.Equal(t, score, voted.Score)

	var deleted api.DeleteResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/comments/4", nil, &deleted))
	assert.True(t, deleted.Success)
	assert.Equal(t, 1, deleted.Removed)

	var snapshot actors.ThreadSnapshot
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/comments", nil, &snapshot))
	assert.Equal(t, 5, models.CountForest(snapshot.Comments))

	var rows []store.Row
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/comments/flat", nil, &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, 0, rows[0].Depth)
	assert.Equal(t, 1, rows[1].Depth)
	assert.True(t, rows[1].CanEdit)
	assert.False(t, rows[0].CanEdit)
}

func TestCommentErrors(t *testing.T) {
	srv := newTestServer(t)
	c, _ := openSession(t, srv)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"blank comment", http.MethodPost, "/comments", api.ContentRequest{Content: "   "}, http.StatusBadRequest, utils.ErrInvalidInput},
		{"reply to missing parent", http.MethodPost, "/comments/nope/replies", api.ContentRequest{Content: "hi"}, http.StatusNotFound, utils.ErrNotFound},
		{"edit someone else's comment", http.MethodPut, "/comments/1", api.ContentRequest{Content: "mine now"}, http.StatusForbidden, utils.ErrForbidden},
		{"delete someone else's comment", http.MethodDelete, "/comments/2", nil, http.StatusForbidden, utils.ErrForbidden},
		{"vote without direction", http.MethodPost, "/comments/1/vote", map[string]interface{}{}, http.StatusBadRequest, utils.ErrInvalidInput},
		{"vote on missing comment", http.MethodPost, "/comments/nope/vote", map[string]interface{}{"direction": -1}, http.StatusNotFound, utils.ErrNotFound},
		{"malformed body", http.MethodPost, "/comments", "not an object", http.StatusBadRequest, utils.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp middleware.ErrorResponse
			assert.Equal(t, tt.wantStatus, c.do(tt.method, tt.path, tt.body, &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}

	var snapshot actors.ThreadSnapshot
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/comments", nil, &snapshot))
	assert.Equal(t, 4, models.CountForest(snapshot.Comments))
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	first, _ := openSession(t, srv)
	second, _ := openSession(t, srv)

	require.Equal(t, http.StatusCreated, first.do(http.MethodPost, "/comments", api.ContentRequest{Content: "first only"}, nil))

	var snapshot actors.ThreadSnapshot
	require.Equal(t, http.StatusOK, second.do(http.MethodGet, "/comments", nil, &snapshot))
	assert.Equal(t, 4, models.CountForest(snapshot.Comments))

	require.Equal(t, http.StatusNoContent, first.do(http.MethodDelete, "/session", nil, nil))

	var resp middleware.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, first.do(http.MethodGet, "/comments", nil, &resp))
	assert.Equal(t, utils.ErrSessionNotFound, resp.Code)
}

func TestAuthAndHealth(t *testing.T) {
	srv := newTestServer(t)
	anonymous := &testClient{t: t, base: srv.URL}

	var resp middleware.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/comments", nil, &resp))
	assert.Equal(t, utils.ErrUnauthorized, resp.Code)

	openSession(t, srv)
	var health api.HealthResponse
	require.Equal(t, http.StatusOK, anonymous.do(http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Sessions)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "comment_thread_active_sessions 1")
}

func TestWebSocketUpdates(t *testing.T) {
	srv := newTestServer(t)
	c, session := openSession(t, srv)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + session.Token
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() actors.ThreadUpdate {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var update actors.ThreadUpdate
		require.NoError(t, conn.ReadJSON(&update))
		return update
	}

	first := read()
	assert.Equal(t, store.OpSnapshot, first.Op)
	assert.Equal(t, 4, models.CountForest(first.Comments))

	// the snapshot is only written once the client is registered with the hub
	var added models.Comment
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/comments", api.ContentRequest{Content: "live"}, &added))
	update := read()
	assert.Equal(t, store.OpAddComment, update.Op)
	assert.Equal(t, added.ID, update.CommentID)
	assert.Equal(t, 5, models.CountForest(update.Comments))

	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/session", nil, nil))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
