package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"comment-thread/internal/middleware"
)

// Routes builds the router with CORS, request ids, logging and JWT auth.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	if s.MetricsEnabled {
		r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/session", s.HandleOpenSession()).Methods(http.MethodPost)
	r.HandleFunc("/session", s.HandleCloseSession()).Methods(http.MethodDelete)

	r.HandleFunc("/comments", s.HandleGetThread()).Methods(http.MethodGet)
	r.HandleFunc("/comments/flat", s.HandleGetFlatThread()).Methods(http.MethodGet)
	r.HandleFunc("/comments", s.HandleAddComment()).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}", s.HandleGetComment()).Methods(http.MethodGet)
	r.HandleFunc("/comments/{id}", s.HandleEditComment()).Methods(http.MethodPut)
	r.HandleFunc("/comments/{id}", s.HandleDeleteComment()).Methods(http.MethodDelete)
	r.HandleFunc("/comments/{id}/replies", s.HandleAddReply()).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}/vote", s.HandleVote()).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.HandleWebSocket()).Methods(http.MethodGet)

	r.Use(s.Tokens.AuthMiddleware)

	var handler http.Handler = r
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORSMiddleware(s.CORS)(handler)
	return handler
}
