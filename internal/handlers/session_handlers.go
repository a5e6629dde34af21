package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"comment-thread/internal/api"
	"comment-thread/internal/engine/actors"
	"comment-thread/internal/middleware"
	"comment-thread/internal/utils"
)

// HandleOpenSession starts a fresh copy of the thread and returns a token
// bound to it.
func (s *Server) HandleOpenSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.Engine.OpenSession()
		if err != nil {
			log.Warnf("[session] failed to open session: %v", err)
			middleware.WriteError(w, err)
			return
		}

		token, expiresAt, err := s.Tokens.GenerateToken(session.ID, session.CurrentUser.Username)
		if err != nil {
			_ = s.Engine.CloseSession(session.ID)
			middleware.WriteError(w, utils.NewAppError(utils.ErrInternal, "failed to issue token", err))
			return
		}

		snapshot, err := ask[*actors.ThreadSnapshot](r.Context(), s, session.ID, &actors.GetThreadMsg{})
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, &api.SessionResponse{
			Success:     true,
			Token:       token,
			SessionID:   session.ID.String(),
			CurrentUser: session.CurrentUser,
			ExpiresAt:   expiresAt,
			Comments:    snapshot.Comments,
		})
	}
}

// HandleCloseSession discards the caller's session.
func (s *Server) HandleCloseSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaimsFromContext(r.Context())
		if !ok {
			middleware.WriteError(w, utils.NewAppError(utils.ErrUnauthorized, "missing session", nil))
			return
		}
		if err := s.Engine.CloseSession(claims.SessionID); err != nil {
			middleware.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
