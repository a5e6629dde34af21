package api

import (
	"time"

	"comment-thread/internal/models"
)

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	Success     bool              `json:"success"`
	Token       string            `json:"token,omitempty"`
	SessionID   string            `json:"sessionId"`
	CurrentUser models.User       `json:"currentUser"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Comments    []*models.Comment `json:"comments"`
}

type ContentRequest struct {
	Content string `json:"content"`
}

type VoteRequest struct {
	Direction models.VoteDirection `json:"direction"`
}

type DeleteResponse struct {
	Success   bool             `json:"success"`
	CommentID models.CommentID `json:"commentId"`
	Removed   int              `json:"removed"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}
