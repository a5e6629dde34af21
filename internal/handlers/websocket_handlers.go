package handlers

import (
	"encoding/json"
	"net/http"

	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/engine/actors"
	"comment-thread/internal/middleware"
	"comment-thread/internal/store"
	"comment-thread/internal/utils"
	"comment-thread/internal/websocket"
)

func (s *Server) upgrader() *ws.Upgrader {
	return &ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.CORS == nil || s.CORS.OriginAllowed(origin)
		},
	}
}

// HandleWebSocket streams thread updates of one session. Browsers cannot
// set headers on websocket requests, so the token comes as a query parameter.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			middleware.WriteError(w, utils.NewAppError(utils.ErrUnauthorized, "missing authentication token", nil))
			return
		}

		claims, err := s.Tokens.ValidateToken(tokenString)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}

		snapshot, err := ask[*actors.ThreadSnapshot](r.Context(), s, claims.SessionID, &actors.GetThreadMsg{})
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		initial, err := json.Marshal(&actors.ThreadUpdate{
			SessionID: claims.SessionID,
			Op:        store.OpSnapshot,
			Comments:  snapshot.Comments,
		})
		if err != nil {
			middleware.WriteError(w, utils.NewAppError(utils.ErrInternal, "failed to encode snapshot", err))
			return
		}

		conn, err := s.upgrader().Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			log.Warnf("[ws] upgrade failed for session %s: %v", claims.SessionID, err)
			return
		}

		websocket.Serve(s.Hub, conn, claims.SessionID, initial)
		log.Debugf("[ws] client connected to session %s", claims.SessionID)
	}
}
