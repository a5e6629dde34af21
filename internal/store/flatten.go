package store

import "comment-thread/internal/models"

// Row is one comment of a flattened thread together with what the viewing
// user may do with it.
type Row struct {
	Comment     *models.Comment  `json:"comment"`
	Depth       int              `json:"depth"`
	ParentID    models.CommentID `json:"parentId,omitempty"`
	Descendants int              `json:"descendants"`

	IsCurrentUser bool `json:"isCurrentUser"`
	CanEdit       bool `json:"canEdit"`
	CanDelete     bool `json:"canDelete"`
	CanReply      bool `json:"canReply"`
}

// Flatten converts a nested forest into display order (depth-first,
// pre-order). Own comments can be edited and deleted; everyone else's can be
// replied to. The comments in the rows have their replies stripped.
func Flatten(forest []*models.Comment, viewer string) []Row {
	var rows []Row

	// walk returns the number of descendants of the subtree it just visited.
	var walk func(c *models.Comment, parent models.CommentID, depth int) int
	walk = func(c *models.Comment, parent models.CommentID, depth int) int {
		own := c.IsAuthoredBy(viewer)
		node := *c
		node.Replies = []*models.Comment{}

		idx := len(rows)
		rows = append(rows, Row{
			Comment:       &node,
			Depth:         depth,
			ParentID:      parent,
			IsCurrentUser: own,
			CanEdit:       own,
			CanDelete:     own,
			CanReply:      !own,
		})

		descendants := 0
		for _, r := range c.Replies {
			descendants += 1 + walk(r, c.ID, depth+1)
		}
		rows[idx].Descendants = descendants
		return descendants
	}

	for _, c := range forest {
		walk(c, "", 0)
	}
	return rows
}

// Flatten returns the current thread in display order for the current user.
func (s *Store) Flatten() []Row {
	return Flatten(s.forest, s.currentUser.Username)
}
