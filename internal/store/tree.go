package store

import (
	"slices"

	"comment-thread/internal/models"
)

// rewrite returns a copy of forest in which the comment with the given id is
// replaced by the result of edit. Only the path from the root down to the
// match is copied; every other subtree is shared with the input. A nil result
// from edit removes the comment together with its replies.
//
// The second result reports whether id was found. When it is false the input
// slice is returned as is.
func rewrite(forest []*models.Comment, id models.CommentID, edit func(models.Comment) *models.Comment) ([]*models.Comment, bool) {
	for i, c := range forest {
		if c.ID == id {
			out := make([]*models.Comment, 0, len(forest))
			out = append(out, forest[:i]...)
			if next := edit(*c); next != nil {
				out = append(out, next)
			}
			return append(out, forest[i+1:]...), true
		}

		if replies, ok := rewrite(c.Replies, id, edit); ok {
			next := *c
			next.Replies = replies
			out := slices.Clone(forest)
			out[i] = &next
			return out, true
		}
	}
	return forest, false
}

// find returns the comment with the given id, searching depth-first.
func find(forest []*models.Comment, id models.CommentID) *models.Comment {
	var found *models.Comment
	models.Walk(forest, func(c *models.Comment, _ int) bool {
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// appendReply returns a new replies list with reply at the end. The parent's
// backing array is never written to since it may be shared with snapshots.
func appendReply(replies []*models.Comment, reply *models.Comment) []*models.Comment {
	out := make([]*models.Comment, 0, len(replies)+1)
	out = append(out, replies...)
	return append(out, reply)
}

// collectIDs adds the ids of c and all its descendants to dst.
func collectIDs(dst []models.CommentID, c *models.Comment) []models.CommentID {
	dst = append(dst, c.ID)
	for _, r := range c.Replies {
		dst = collectIDs(dst, r)
	}
	return dst
}
