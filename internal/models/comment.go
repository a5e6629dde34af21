package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecodeclub/ekit/slice"
)

// CommentID identifies a comment across the whole thread. The seed fixture
// uses numeric ids while generated comments use UUID strings, so both JSON
// forms are accepted.
type CommentID string

func (id CommentID) String() string {
	return string(id)
}

func (id *CommentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CommentID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("comment id must be a string or number: %w", err)
	}
	*id = CommentID(n.String())
	return nil
}

// Image holds the avatar variants of a user.
type Image struct {
	PNG  string `json:"png"`
	WebP string `json:"webp"`
}

type User struct {
	Username string `json:"username"`
	Image    Image  `json:"image"`
}

// VoteState records which directions the viewer has already voted in.
type VoteState struct {
	HasUpvoted   bool `json:"hasUpvoted"`
	HasDownvoted bool `json:"hasDownvoted"`
}

// Comment is a node of the thread. Replies are owned exclusively by their
// parent and kept in insertion order.
type Comment struct {
	ID         CommentID  `json:"id"`
	Content    string     `json:"content"`
	CreatedAt  string     `json:"createdAt"`
	Score      int        `json:"score"`
	User       User       `json:"user"`
	ReplyingTo string     `json:"replyingTo,omitempty"`
	VoteState  VoteState  `json:"voteState"`
	Replies    []*Comment `json:"replies"`
}

// IsAuthoredBy reports whether username wrote the comment.
func (c *Comment) IsAuthoredBy(username string) bool {
	return c.User.Username == username
}

// Clone returns a deep copy of the comment and its replies.
func (c *Comment) Clone() *Comment {
	cp := *c
	cp.Replies = CloneForest(c.Replies)
	return &cp
}

// Size returns the number of comments in the subtree rooted at c.
func (c *Comment) Size() int {
	return 1 + CountForest(c.Replies)
}

// CloneForest deep-copies a list of comments. A nil list becomes an empty one
// so that replies always encode as [].
func CloneForest(forest []*Comment) []*Comment {
	if len(forest) == 0 {
		return []*Comment{}
	}
	return slice.Map(forest, func(_ int, c *Comment) *Comment {
		return c.Clone()
	})
}

// CountForest returns the total number of comments in forest.
func CountForest(forest []*Comment) int {
	n := 0
	for _, c := range forest {
		n += c.Size()
	}
	return n
}

// Walk visits every comment depth-first in pre-order. Returning false from fn
// stops the walk.
func Walk(forest []*Comment, fn func(c *Comment, depth int) bool) {
	walk(forest, 0, fn)
}

func walk(forest []*Comment, depth int, fn func(c *Comment, depth int) bool) bool {
	for _, c := range forest {
		if !fn(c, depth) {
			return false
		}
		if !walk(c.Replies, depth+1, fn) {
			return false
		}
	}
	return true
}

// Mention returns the "@username" prefix used for replies.
func Mention(username string) string {
	return "@" + strings.TrimPrefix(username, "@")
}
