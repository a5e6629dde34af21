package handlers

import (
	"net/http"

	"comment-thread/internal/api"
	"comment-thread/internal/middleware"
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, &api.HealthResponse{
			Status:   "healthy",
			Sessions: s.Engine.SessionCount(),
			Uptime:   s.Metrics.Uptime().String(),
		})
	}
}
