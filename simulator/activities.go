package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"comment-thread/internal/models"
	"comment-thread/internal/store"
)

type action int

const (
	actionComment action = iota
	actionReply
	actionEdit
	actionDelete
	actionVote
)

func (a action) String() string {
	return [...]string{"comment", "reply", "edit", "delete", "vote"}[a]
}

// simulatedSession tracks what the server should hold for one session so
// the final thread can be checked against it.
type simulatedSession struct {
	ID       string
	Token    string
	Username string
	rng      *rand.Rand

	// Score of every live comment before any vote of this run.
	baseScores map[models.CommentID]int
	deleted    map[models.CommentID]bool
}

func newSimulatedSession(id, token, username string, seed []*models.Comment, rngSeed int64) *simulatedSession {
	session := &simulatedSession{
		ID:         id,
		Token:      token,
		Username:   username,
		rng:        rand.New(rand.NewSource(rngSeed)),
		baseScores: make(map[models.CommentID]int),
		deleted:    make(map[models.CommentID]bool),
	}
	models.Walk(seed, func(c *models.Comment, _ int) bool {
		base := c.Score
		if c.VoteState.HasUpvoted {
			base--
		}
		if c.VoteState.HasDownvoted {
			base++
		}
		session.baseScores[c.ID] = base
		return true
	})
	return session
}

func (s *Simulator) simulateSession(ctx context.Context, session *simulatedSession) {
	ticker := time.NewTicker(s.config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.step(ctx, session); err != nil {
				log.Debugf("[simulator] session %s: %v", session.ID, err)
			}
		}
	}
}

// step performs one random action on the session's thread. Once started it
// runs to completion so the local bookkeeping never misses a change the
// server applied.
func (s *Simulator) step(ctx context.Context, session *simulatedSession) error {
	ctx = context.WithoutCancel(ctx)

	var rows []store.Row
	if err := s.makeRequest(ctx, session.Token, http.MethodGet, "/comments/flat", nil, &rows); err != nil {
		return err
	}

	act := s.pickAction(session.rng)
	switch act {
	case actionReply, actionVote:
		if len(rows) == 0 {
			act = actionComment
		}
	case actionEdit, actionDelete:
		rows = ownRows(rows)
		if len(rows) == 0 {
			act = actionComment
		}
	}

	switch act {
	case actionComment:
		return s.addComment(ctx, session)
	case actionReply:
		return s.addReply(ctx, session, rows[s.pickIndex(session.rng, len(rows))])
	case actionEdit:
		return s.editComment(ctx, session, rows[s.pickIndex(session.rng, len(rows))])
	case actionDelete:
		return s.deleteComment(ctx, session, rows, s.pickIndex(session.rng, len(rows)))
	default:
		return s.vote(ctx, session, rows[s.pickIndex(session.rng, len(rows))])
	}
}

func (s *Simulator) pickAction(rng *rand.Rand) action {
	weights := []int{s.config.CommentWeight, s.config.ReplyWeight, s.config.EditWeight, s.config.DeleteWeight, s.config.VoteWeight}
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return actionComment
	}

	n := rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return action(i)
		}
		n -= w
	}
	return actionVote
}

// pickIndex favours the first rows, the way readers favour the top of a
// thread.
func (s *Simulator) pickIndex(rng *rand.Rand, n int) int {
	if n <= 1 {
		return 0
	}
	zipf := rand.NewZipf(rng, s.config.ZipfS, 1, uint64(n-1))
	if zipf == nil {
		return rng.Intn(n)
	}
	return int(zipf.Uint64())
}

// ownRows keeps the rows the session may edit or delete. Descendant counts
// stay valid because every row keeps its own count.
func ownRows(rows []store.Row) []store.Row {
	own := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if row.CanEdit && row.CanDelete {
			own = append(own, row)
		}
	}
	return own
}

func (s *Simulator) addComment(ctx context.Context, session *simulatedSession) error {
	var comment models.Comment
	content := fmt.Sprintf("comment %d from the simulator", session.rng.Intn(1_000_000))
	if err := s.makeRequest(ctx, session.Token, http.MethodPost, "/comments", map[string]string{"content": content}, &comment); err != nil {
		return err
	}
	session.baseScores[comment.ID] = 0

	s.stats.mu.Lock()
	s.stats.TotalComments++
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) addReply(ctx context.Context, session *simulatedSession, parent store.Row) error {
	var reply models.Comment
	endpoint := "/comments/" + parent.Comment.ID.String() + "/replies"
	if err := s.makeRequest(ctx, session.Token, http.MethodPost, endpoint, map[string]string{"content": "replying at random"}, &reply); err != nil {
		return err
	}
	session.baseScores[reply.ID] = 0

	s.stats.mu.Lock()
	s.stats.TotalReplies++
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) editComment(ctx context.Context, session *simulatedSession, target store.Row) error {
	content := fmt.Sprintf("edited at %s", time.Now().Format(time.RFC3339Nano))
	if err := s.makeRequest(ctx, session.Token, http.MethodPut, "/comments/"+target.Comment.ID.String(), map[string]string{"content": content}, nil); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.TotalEdits++
	s.stats.mu.Unlock()
	return nil
}

// deleteComment removes own[i] together with its replies. own holds only the
// caller's rows, so the subtree ids come from a fresh flat read.
func (s *Simulator) deleteComment(ctx context.Context, session *simulatedSession, own []store.Row, i int) error {
	target := own[i].Comment.ID

	var rows []store.Row
	if err := s.makeRequest(ctx, session.Token, http.MethodGet, "/comments/flat", nil, &rows); err != nil {
		return err
	}
	var subtree []models.CommentID
	for j, row := range rows {
		if row.Comment.ID != target {
			continue
		}
		for _, r := range rows[j : j+1+row.Descendants] {
			subtree = append(subtree, r.Comment.ID)
		}
		break
	}

	var result struct {
		Removed int `json:"removed"`
	}
	if err := s.makeRequest(ctx, session.Token, http.MethodDelete, "/comments/"+target.String(), nil, &result); err != nil {
		return err
	}
	if result.Removed != len(subtree) {
		log.Warnf("[simulator] session %s: deleting %s removed %d comments, expected %d", session.ID, target, result.Removed, len(subtree))
	}
	for _, id := range subtree {
		delete(session.baseScores, id)
		session.deleted[id] = true
	}

	s.stats.mu.Lock()
	s.stats.TotalDeletes++
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) vote(ctx context.Context, session *simulatedSession, target store.Row) error {
	direction := models.VoteUp
	if session.rng.Intn(2) == 0 {
		direction = models.VoteDown
	}
	endpoint := "/comments/" + target.Comment.ID.String() + "/vote"
	if err := s.makeRequest(ctx, session.Token, http.MethodPost, endpoint, map[string]int{"direction": int(direction)}, nil); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.TotalVotes++
	s.stats.mu.Unlock()
	return nil
}
