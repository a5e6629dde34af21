package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"comment-thread/internal/engine"
	"comment-thread/internal/middleware"
	"comment-thread/internal/utils"
	"comment-thread/internal/websocket"
)

// Server holds all HTTP dependencies, including the engine that owns the
// per-session thread actors.
type Server struct {
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Tokens         *middleware.TokenManager
	Metrics        *utils.MetricsCollector
	CORS           *middleware.CORSConfig
	MetricsEnabled bool
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	threads *engine.Engine,
	hub *websocket.Hub,
	tokens *middleware.TokenManager,
	metrics *utils.MetricsCollector,
	cors *middleware.CORSConfig,
) *Server {
	return &Server{
		Engine:         threads,
		Hub:            hub,
		Tokens:         tokens,
		Metrics:        metrics,
		CORS:           cors,
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// ask sends msg to the caller's session actor, bounded by RequestTimeout.
func ask[T any](ctx context.Context, s *Server, sessionID uuid.UUID, msg interface{}) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()
	return engine.Ask[T](ctx, s.Engine, sessionID, msg)
}
