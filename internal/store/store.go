// Package store holds the comment thread of a single session: an ordered
// forest of comments plus the identity every new comment is attributed to.
//
// Every mutation builds the next forest from the current one. Subtrees that
// are not on the path to the changed comment are shared between versions and
// never modified afterwards, which makes the forest handed to listeners a
// stable snapshot.
//
// A Store is not safe for concurrent use. The engine gives each store to a
// single actor, which serialises access.
package store

import (
	"strings"

	"github.com/google/uuid"

	"comment-thread/internal/models"
	"comment-thread/internal/utils"
)

// DefaultStamp is the display timestamp given to new comments.
const DefaultStamp = "Just Now"

type Store struct {
	forest      []*models.Comment
	ids         map[models.CommentID]struct{}
	currentUser models.User

	newID func() models.CommentID
	stamp func() string

	listeners []subscription
	nextSubID uint64
}

type Option func(*Store)

// WithIDGenerator replaces the UUID based id generator.
func WithIDGenerator(fn func() models.CommentID) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithStamp sets the function producing CreatedAt for new comments.
func WithStamp(fn func() string) Option {
	return func(s *Store) {
		s.stamp = fn
	}
}

// New creates a store seeded with a deep copy of seed. Seed ids must be
// globally unique.
func New(currentUser models.User, seed []*models.Comment, opts ...Option) (*Store, error) {
	s := &Store{
		forest:      models.CloneForest(seed),
		ids:         make(map[models.CommentID]struct{}),
		currentUser: currentUser,
		newID: func() models.CommentID {
			return models.CommentID(uuid.NewString())
		},
		stamp: func() string { return DefaultStamp },
	}
	for _, opt := range opts {
		opt(s)
	}

	if strings.TrimSpace(currentUser.Username) == "" {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "current user must have a username", nil)
	}

	var dup *models.Comment
	models.Walk(s.forest, func(c *models.Comment, _ int) bool {
		if _, exists := s.ids[c.ID]; exists || c.ID == "" {
			dup = c
			return false
		}
		s.ids[c.ID] = struct{}{}
		return true
	})
	if dup != nil {
		return nil, utils.NewAppError(utils.ErrDuplicate, "seed comment ids must be unique and non-empty: "+dup.ID.String(), nil)
	}

	return s, nil
}

func (s *Store) CurrentUser() models.User {
	return s.currentUser
}

// Snapshot returns a deep copy of the current forest.
func (s *Store) Snapshot() []*models.Comment {
	return models.CloneForest(s.forest)
}

// Len returns the number of comments in the thread.
func (s *Store) Len() int {
	return len(s.ids)
}

// Contains reports whether a comment with the given id exists.
func (s *Store) Contains(id models.CommentID) bool {
	_, ok := s.ids[id]
	return ok
}

// Find returns a copy of the comment with the given id.
func (s *Store) Find(id models.CommentID) (*models.Comment, error) {
	if !s.Contains(id) {
		return nil, utils.NewCommentNotFoundError(id.String())
	}
	return find(s.forest, id).Clone(), nil
}

// AddComment appends a new top-level comment by the current user.
func (s *Store) AddComment(content string) (*models.Comment, error) {
	c, err := s.newComment(content)
	if err != nil {
		return nil, err
	}

	s.forest = appendReply(s.forest, c)
	s.ids[c.ID] = struct{}{}
	s.emit(OpAddComment, c.ID)
	return c.Clone(), nil
}

// AddReply appends a reply by the current user to the comment parentID. The
// reply mentions the parent's author.
func (s *Store) AddReply(parentID models.CommentID, content string) (*models.Comment, error) {
	parent := find(s.forest, parentID)
	if parent == nil {
		return nil, utils.NewCommentNotFoundError(parentID.String())
	}

	reply, err := s.newComment(content)
	if err != nil {
		return nil, err
	}
	reply.ReplyingTo = parent.User.Username
	reply.Content = models.Mention(parent.User.Username) + " " + reply.Content

	s.forest, _ = rewrite(s.forest, parentID, func(p models.Comment) *models.Comment {
		p.Replies = appendReply(p.Replies, reply)
		return &p
	})
	s.ids[reply.ID] = struct{}{}
	s.emit(OpAddReply, reply.ID)
	return reply.Clone(), nil
}

// EditContent replaces the content of a comment. Nothing else about the
// comment or its replies changes. The store does not check who the author
// is; callers must.
func (s *Store) EditContent(id models.CommentID, content string) (*models.Comment, error) {
	var edited *models.Comment
	forest, ok := rewrite(s.forest, id, func(c models.Comment) *models.Comment {
		c.Content = content
		edited = &c
		return edited
	})
	if !ok {
		return nil, utils.NewCommentNotFoundError(id.String())
	}

	s.forest = forest
	s.emit(OpEdit, id)
	return edited.Clone(), nil
}

// DeleteComment removes a comment and all of its replies. It returns the
// number of comments removed.
func (s *Store) DeleteComment(id models.CommentID) (int, error) {
	var removed []models.CommentID
	forest, ok := rewrite(s.forest, id, func(c models.Comment) *models.Comment {
		removed = collectIDs(removed, &c)
		return nil
	})
	if !ok {
		return 0, utils.NewCommentNotFoundError(id.String())
	}

	s.forest = forest
	for _, rid := range removed {
		delete(s.ids, rid)
	}
	s.emit(OpDelete, id)
	return len(removed), nil
}

// AdjustScore applies a vote. Each direction can be used once per comment:
// a repeated vote in the same direction leaves the comment unchanged and is
// not reported as an error. Votes cannot be retracted, and voting in the
// other direction does not clear the earlier flag.
func (s *Store) AdjustScore(id models.CommentID, direction models.VoteDirection) (*models.Comment, error) {
	if !direction.Valid() {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "vote direction must be +1 or -1", nil)
	}

	target := find(s.forest, id)
	if target == nil {
		return nil, utils.NewCommentNotFoundError(id.String())
	}
	if (direction == models.VoteUp && target.VoteState.HasUpvoted) ||
		(direction == models.VoteDown && target.VoteState.HasDownvoted) {
		return target.Clone(), nil
	}

	var voted *models.Comment
	s.forest, _ = rewrite(s.forest, id, func(c models.Comment) *models.Comment {
		c.Score += int(direction)
		if direction == models.VoteUp {
			c.VoteState.HasUpvoted = true
		} else {
			c.VoteState.HasDownvoted = true
		}
		voted = &c
		return voted
	})
	s.emit(OpVote, id)
	return voted.Clone(), nil
}

func (s *Store) newComment(content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "comment content must not be empty", nil)
	}

	id := s.newID()
	for id == "" || s.Contains(id) {
		id = s.newID()
	}

	return &models.Comment{
		ID:        id,
		Content:   content,
		CreatedAt: s.stamp(),
		User:      s.currentUser,
		Replies:   []*models.Comment{},
	}, nil
}
