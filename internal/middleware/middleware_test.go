package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comment-thread/internal/utils"
)

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(claims.Username))
	})
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	sessionID := uuid.New()

	token, expiresAt, err := tm.GenerateToken(sessionID, "juliusomo")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, "juliusomo", claims.Username)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)
	expired := NewTokenManager("secret", -time.Minute)

	foreign, _, err := other.GenerateToken(uuid.New(), "juliusomo")
	require.NoError(t, err)
	stale, _, err := expired.GenerateToken(uuid.New(), "juliusomo")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ValidateToken(token)
			assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidToken))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	handler := tm.AuthMiddleware(claimsEcho())
	token, _, err := tm.GenerateToken(uuid.New(), "juliusomo")
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantCode   string
		wantBody   string
	}{
		{name: "health is open", method: http.MethodGet, path: "/health", wantStatus: http.StatusNoContent},
		{name: "opening a session is open", method: http.MethodPost, path: "/session", wantStatus: http.StatusNoContent},
		{name: "closing a session needs a token", method: http.MethodDelete, path: "/session", wantStatus: http.StatusUnauthorized, wantCode: utils.ErrUnauthorized},
		{name: "missing header", method: http.MethodGet, path: "/comments", wantStatus: http.StatusUnauthorized, wantCode: utils.ErrUnauthorized},
		{name: "not bearer", method: http.MethodGet, path: "/comments", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: utils.ErrUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/comments", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: utils.ErrInvalidToken},
		{name: "valid token", method: http.MethodGet, path: "/comments", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "juliusomo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Code)
			}
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig([]string{"http://localhost:3000"}))(claimsEcho())

	req := httptest.NewRequest(http.MethodOptions, "/comments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/comments", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestIDAndLogging(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		WriteError(w, utils.NewCommentNotFoundError("42"))
	})
	handler := RequestID(Logging(inner))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments/42", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, utils.ErrNotFound, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", seen)
}
