package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comment-thread/internal/models"
)

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t, sequentialIDs())

	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	_, err := s.AddComment("one")
	require.NoError(t, err)
	_, err = s.AddReply("1", "two")
	require.NoError(t, err)
	_, err = s.EditContent("1", "edited")
	require.NoError(t, err)
	_, err = s.AdjustScore("1", models.VoteUp)
	require.NoError(t, err)
	_, err = s.AdjustScore("1", models.VoteUp) // no-op, no event
	require.NoError(t, err)
	_, err = s.DeleteComment("2")
	require.NoError(t, err)
	_, err = s.AddComment("  ") // rejected, no event
	require.Error(t, err)

	require.Len(t, events, 5)
	assert.Equal(t, []Op{OpAddComment, OpAddReply, OpEdit, OpVote, OpDelete}, []Op{
		events[0].Op, events[1].Op, events[2].Op, events[3].Op, events[4].Op,
	})
	assert.Equal(t, models.CommentID("c101"), events[0].ID)
	assert.Equal(t, models.CommentID("c102"), events[1].ID)
	assert.Len(t, events[0].Forest, 3)
	assert.Len(t, events[4].Forest, 2)

	// Earlier event forests are not affected by later mutations.
	assert.Equal(t, "Impressive!", events[1].Forest[0].Content)
	assert.Equal(t, 12, events[2].Forest[0].Score)

	unsubscribe()
	_, err = s.AddComment("after")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestStore_UnsubscribeKeepsOthers(t *testing.T) {
	s := newTestStore(t)
	var a, b int
	unsubA := s.Subscribe(func(Event) { a++ })
	s.Subscribe(func(Event) { b++ })

	unsubA()
	unsubA()

	_, err := s.AddComment("x")
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}
