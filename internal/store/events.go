package store

import "comment-thread/internal/models"

// Op names the mutation that produced an Event.
type Op string

const (
	OpAddComment Op = "add_comment"
	OpAddReply   Op = "add_reply"
	OpEdit       Op = "edit_comment"
	OpDelete     Op = "delete_comment"
	OpVote       Op = "vote_comment"

	// OpSnapshot is never emitted by the store; it labels the full thread
	// sent to a subscriber when it first connects.
	OpSnapshot Op = "snapshot"
)

// Event is delivered to subscribers after every mutation that changed the
// thread. Forest is the state right after the change and must be treated as
// read-only.
type Event struct {
	Op     Op                `json:"op"`
	ID     models.CommentID  `json:"id"`
	Forest []*models.Comment `json:"comments"`
}

// Listener receives store events. It runs synchronously inside the mutating
// call, so it must not call back into the store.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// Subscribe registers fn and returns a function that removes it again.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) emit(op Op, id models.CommentID) {
	if len(s.listeners) == 0 {
		return
	}
	ev := Event{Op: op, ID: id, Forest: s.forest}
	for _, sub := range s.listeners {
		sub.fn(ev)
	}
}
