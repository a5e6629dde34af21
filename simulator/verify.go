package simulator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"comment-thread/internal/models"
)

// verifySession re-reads the thread and checks it against what the session
// did: ids are unique, deleted comments stay gone, every comment is known
// and each score equals its base score adjusted by at most one vote per
// direction.
func (s *Simulator) verifySession(ctx context.Context, session *simulatedSession) error {
	var snapshot struct {
		Comments []*models.Comment `json:"comments"`
	}
	if err := s.makeRequest(ctx, session.Token, http.MethodGet, "/comments", nil, &snapshot); err != nil {
		return err
	}
	return checkThread(snapshot.Comments, session.baseScores, session.deleted)
}

func checkThread(forest []*models.Comment, baseScores map[models.CommentID]int, deleted map[models.CommentID]bool) error {
	var violations []string
	seen := make(map[models.CommentID]bool)

	models.Walk(forest, func(c *models.Comment, depth int) bool {
		if seen[c.ID] {
			violations = append(violations, fmt.Sprintf("duplicate id %s", c.ID))
		}
		seen[c.ID] = true

		if deleted[c.ID] {
			violations = append(violations, fmt.Sprintf("deleted comment %s is still present", c.ID))
		}
		if depth > 0 && c.ReplyingTo == "" {
			violations = append(violations, fmt.Sprintf("reply %s has no replyingTo", c.ID))
		}

		base, ok := baseScores[c.ID]
		if !ok {
			violations = append(violations, fmt.Sprintf("unexpected comment %s", c.ID))
			return true
		}
		expected := base
		if c.VoteState.HasUpvoted {
			expected++
		}
		if c.VoteState.HasDownvoted {
			expected--
		}
		if c.Score != expected {
			violations = append(violations, fmt.Sprintf("comment %s has score %d, expected %d", c.ID, c.Score, expected))
		}
		return true
	})

	if len(seen) != len(baseScores) {
		violations = append(violations, fmt.Sprintf("thread holds %d comments, expected %d", len(seen), len(baseScores)))
	}

	if len(violations) > 0 {
		return fmt.Errorf("%d violations: %s", len(violations), strings.Join(violations, "; "))
	}
	return nil
}
