package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"comment-thread/internal/api"
	"comment-thread/internal/engine/actors"
	"comment-thread/internal/middleware"
	"comment-thread/internal/models"
	"comment-thread/internal/store"
	"comment-thread/internal/utils"
)

// withClaims rejects requests that reached a protected handler without
// session claims and otherwise passes them on.
func withClaims(next func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaimsFromContext(r.Context())
		if !ok {
			middleware.WriteError(w, utils.NewAppError(utils.ErrUnauthorized, "missing session", nil))
			return
		}
		next(w, r, claims)
	}
}

func commentID(r *http.Request) models.CommentID {
	return models.CommentID(mux.Vars(r)["id"])
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err)
	}
	return nil
}

// respond writes the actor reply or the error it produced.
func respond[T any](w http.ResponseWriter, status int, result T, err error) {
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, status, result)
}

// HandleGetThread returns the whole forest of the caller's session.
func (s *Server) HandleGetThread() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		snapshot, err := ask[*actors.ThreadSnapshot](r.Context(), s, claims.SessionID, &actors.GetThreadMsg{})
		respond(w, http.StatusOK, snapshot, err)
	})
}

// HandleGetFlatThread returns the thread as pre-ordered rows with depth and
// the permissions of the current user.
func (s *Server) HandleGetFlatThread() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		rows, err := ask[[]store.Row](r.Context(), s, claims.SessionID, &actors.GetFlatThreadMsg{})
		respond(w, http.StatusOK, rows, err)
	})
}

func (s *Server) HandleGetComment() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		comment, err := ask[*models.Comment](r.Context(), s, claims.SessionID, &actors.GetCommentMsg{CommentID: commentID(r)})
		respond(w, http.StatusOK, comment, err)
	})
}

func (s *Server) HandleAddComment() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		var req api.ContentRequest
		if err := decode(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}
		comment, err := ask[*models.Comment](r.Context(), s, claims.SessionID, &actors.AddCommentMsg{Content: req.Content})
		respond(w, http.StatusCreated, comment, err)
	})
}

func (s *Server) HandleAddReply() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		var req api.ContentRequest
		if err := decode(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}
		reply, err := ask[*models.Comment](r.Context(), s, claims.SessionID, &actors.AddReplyMsg{
			ParentID: commentID(r),
			Content:  req.Content,
		})
		respond(w, http.StatusCreated, reply, err)
	})
}

func (s *Server) HandleEditComment() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		var req api.ContentRequest
		if err := decode(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}
		comment, err := ask[*models.Comment](r.Context(), s, claims.SessionID, &actors.EditCommentMsg{
			CommentID: commentID(r),
			Username:  claims.Username,
			Content:   req.Content,
		})
		respond(w, http.StatusOK, comment, err)
	})
}

func (s *Server) HandleDeleteComment() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		result, err := ask[*actors.DeleteResult](r.Context(), s, claims.SessionID, &actors.DeleteCommentMsg{
			CommentID: commentID(r),
			Username:  claims.Username,
		})
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, &api.DeleteResponse{
			Success:   true,
			CommentID: result.CommentID,
			Removed:   result.Removed,
		})
	})
}

// HandleVote applies an up or down vote. Repeating a vote in the same
// direction returns the comment unchanged.
func (s *Server) HandleVote() http.HandlerFunc {
	return withClaims(func(w http.ResponseWriter, r *http.Request, claims *middleware.Claims) {
		var req api.VoteRequest
		if err := decode(r, &req); err != nil {
			middleware.WriteError(w, err)
			return
		}
		comment, err := ask[*models.Comment](r.Context(), s, claims.SessionID, &actors.VoteCommentMsg{
			CommentID: commentID(r),
			Direction: req.Direction,
		})
		respond(w, http.StatusOK, comment, err)
	})
}
