package actors

import (
	"encoding/json"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/models"
	"comment-thread/internal/store"
	"comment-thread/internal/utils"
)

// Message types for ThreadActor
type (
	AddCommentMsg struct {
		Content string `json:"content"`
	}

	AddReplyMsg struct {
		ParentID models.CommentID `json:"parentId"`
		Content  string           `json:"content"`
	}

	// EditCommentMsg and DeleteCommentMsg carry the username of the caller;
	// only the author of a comment may change or remove it.
	EditCommentMsg struct {
		CommentID models.CommentID `json:"commentId"`
		Username  string           `json:"username"`
		Content   string           `json:"content"`
	}

	DeleteCommentMsg struct {
		CommentID models.CommentID `json:"commentId"`
		Username  string           `json:"username"`
	}

	VoteCommentMsg struct {
		CommentID models.CommentID     `json:"commentId"`
		Direction models.VoteDirection `json:"direction"`
	}

	GetCommentMsg struct {
		CommentID models.CommentID `json:"commentId"`
	}

	GetThreadMsg struct{}

	GetFlatThreadMsg struct{}

	GetCountsMsg struct{}
)

// Responses
type (
	ThreadSnapshot struct {
		SessionID   uuid.UUID         `json:"sessionId"`
		CurrentUser models.User       `json:"currentUser"`
		Comments    []*models.Comment `json:"comments"`
	}

	DeleteResult struct {
		CommentID models.CommentID `json:"commentId"`
		Removed   int              `json:"removed"`
	}

	ThreadCounts struct {
		Roots int `json:"roots"`
		Total int `json:"total"`
	}

	// ThreadUpdate is pushed to the notifier after every change to the thread.
	ThreadUpdate struct {
		SessionID uuid.UUID         `json:"sessionId"`
		Op        store.Op          `json:"op"`
		CommentID models.CommentID  `json:"commentId"`
		Comments  []*models.Comment `json:"comments"`
	}
)

// Notifier receives serialised thread updates, typically the websocket hub.
type Notifier interface {
	Publish(sessionID uuid.UUID, payload []byte)
	CloseSession(sessionID uuid.UUID)
}

// ThreadActor owns the comment store of one session. The mailbox processes
// one message at a time, so the store needs no locking of its own.
type ThreadActor struct {
	sessionID   uuid.UUID
	store       *store.Store
	notifier    Notifier
	metrics     *utils.MetricsCollector
	unsubscribe func()
}

func NewThreadActor(sessionID uuid.UUID, s *store.Store, notifier Notifier, metrics *utils.MetricsCollector) actor.Actor {
	return &ThreadActor{
		sessionID: sessionID,
		store:     s,
		notifier:  notifier,
		metrics:   metrics,
	}
}

func (a *ThreadActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Debugf("[ThreadActor] session %s started with PID %v", a.sessionID, context.Self())
		if a.notifier != nil {
			a.unsubscribe = a.store.Subscribe(a.publish)
		}

	case *actor.Stopped:
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		if a.notifier != nil {
			a.notifier.CloseSession(a.sessionID)
		}
		log.Debugf("[ThreadActor] session %s stopped", a.sessionID)

	case *AddCommentMsg:
		a.handle(context, "add_comment", func() (interface{}, error) {
			return a.store.AddComment(msg.Content)
		})

	case *AddReplyMsg:
		a.handle(context, "add_reply", func() (interface{}, error) {
			return a.store.AddReply(msg.ParentID, msg.Content)
		})

	case *EditCommentMsg:
		a.handle(context, "edit_comment", func() (interface{}, error) {
			if err := a.authorize(msg.CommentID, msg.Username, "edit"); err != nil {
				return nil, err
			}
			return a.store.EditContent(msg.CommentID, msg.Content)
		})

	case *DeleteCommentMsg:
		a.handle(context, "delete_comment", func() (interface{}, error) {
			if err := a.authorize(msg.CommentID, msg.Username, "delete"); err != nil {
				return nil, err
			}
			removed, err := a.store.DeleteComment(msg.CommentID)
			if err != nil {
				return nil, err
			}
			return &DeleteResult{CommentID: msg.CommentID, Removed: removed}, nil
		})

	case *VoteCommentMsg:
		a.handle(context, "vote_comment", func() (interface{}, error) {
			return a.store.AdjustScore(msg.CommentID, msg.Direction)
		})

	case *GetCommentMsg:
		a.handle(context, "get_comment", func() (interface{}, error) {
			return a.store.Find(msg.CommentID)
		})

	case *GetThreadMsg:
		context.Respond(&ThreadSnapshot{
			SessionID:   a.sessionID,
			CurrentUser: a.store.CurrentUser(),
			Comments:    a.store.Snapshot(),
		})

	case *GetFlatThreadMsg:
		context.Respond(a.store.Flatten())

	case *GetCountsMsg:
		context.Respond(&ThreadCounts{
			Roots: len(a.store.Snapshot()),
			Total: a.store.Len(),
		})

	case *actor.Stopping, *actor.Restarting:
		// nothing to clean up before Stopped

	default:
		log.Warnf("[ThreadActor] unknown message type %T", msg)
	}
}

// handle runs op, records its latency and responds with either the result
// or the *utils.AppError describing the failure.
func (a *ThreadActor) handle(context actor.Context, name string, op func() (interface{}, error)) {
	startTime := time.Now()
	result, err := op()
	if a.metrics != nil {
		a.metrics.IncrementRequests()
		a.metrics.AddOperationLatency(name, time.Since(startTime))
	}

	if err != nil {
		if a.metrics != nil {
			a.metrics.IncrementErrors()
		}
		log.Debugf("[ThreadActor] %s failed in session %s: %v", name, a.sessionID, err)
		context.Respond(toAppError(err))
		return
	}
	context.Respond(result)
}

func (a *ThreadActor) authorize(id models.CommentID, username, action string) error {
	comment, err := a.store.Find(id)
	if err != nil {
		return err
	}
	if !comment.IsAuthoredBy(username) {
		return utils.NewForbiddenError("only the author may " + action + " comment " + id.String())
	}
	return nil
}

func (a *ThreadActor) publish(ev store.Event) {
	payload, err := json.Marshal(&ThreadUpdate{
		SessionID: a.sessionID,
		Op:        ev.Op,
		CommentID: ev.ID,
		Comments:  ev.Forest,
	})
	if err != nil {
		log.Errorf("[ThreadActor] failed to encode update for session %s: %v", a.sessionID, err)
		return
	}
	a.notifier.Publish(a.sessionID, payload)
}

func toAppError(err error) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewAppError(utils.ErrInternal, "thread operation failed", err)
}
