package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/engine/actors"
	"comment-thread/internal/fixture"
	"comment-thread/internal/models"
	"comment-thread/internal/store"
	"comment-thread/internal/utils"
)

const defaultRequestTimeout = 5 * time.Second

// Session is one independent copy of the thread. Every session starts from
// the fixture and its changes are discarded when it is closed.
type Session struct {
	ID          uuid.UUID
	CurrentUser models.User
	CreatedAt   time.Time
	PID         *actor.PID
}

// Options configures an Engine. Fixture is required.
type Options struct {
	Fixture        *fixture.Fixture
	Notifier       actors.Notifier
	Metrics        *utils.MetricsCollector
	RequestTimeout time.Duration
	MaxSessions    int // 0 means unlimited
	StoreOptions   []store.Option
}

// Engine spawns one ThreadActor per session and routes requests to it.
type Engine struct {
	system  *actor.ActorSystem
	context *actor.RootContext
	opts    Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewEngine(system *actor.ActorSystem, opts Options) *Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewMetricsCollector()
	}
	return &Engine{
		system:   system,
		context:  system.Root,
		opts:     opts,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// OpenSession seeds a new store from the fixture and spawns its actor.
func (e *Engine) OpenSession() (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opts.MaxSessions > 0 && len(e.sessions) >= e.opts.MaxSessions {
		return nil, utils.NewAppError(utils.ErrSessionLimit, "too many open sessions", nil)
	}

	s, err := store.New(e.opts.Fixture.CurrentUser, e.opts.Fixture.Forest(), e.opts.StoreOptions...)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	props := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewThreadActor(sessionID, s, e.opts.Notifier, e.opts.Metrics)
	})
	pid, err := e.context.SpawnNamed(props, "thread-"+sessionID.String())
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInternal, "failed to spawn thread actor", err)
	}

	session := &Session{
		ID:          sessionID,
		CurrentUser: s.CurrentUser(),
		CreatedAt:   time.Now(),
		PID:         pid,
	}
	e.sessions[sessionID] = session
	e.opts.Metrics.SessionOpened()

	log.Infof("[engine] opened session %s for %s (%d open)", sessionID, session.CurrentUser.Username, len(e.sessions))
	return session, nil
}

// Session returns the open session with the given id.
func (e *Engine) Session(id uuid.UUID) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[id]
	if !ok {
		return nil, utils.NewSessionNotFoundError(id.String())
	}
	return session, nil
}

// CloseSession stops the session's actor and forgets the session.
func (e *Engine) CloseSession(id uuid.UUID) error {
	e.mu.Lock()
	session, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()

	if !ok {
		return utils.NewSessionNotFoundError(id.String())
	}

	if err := e.context.PoisonFuture(session.PID).Wait(); err != nil {
		log.Warnf("[engine] session %s did not stop cleanly: %v", id, err)
	}
	e.opts.Metrics.SessionClosed()
	log.Infof("[engine] closed session %s", id)
	return nil
}

// SessionCount returns the number of open sessions.
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown closes every open session.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	ids := make([]uuid.UUID, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		_ = e.CloseSession(id)
	}
}

// Request sends msg to the session's actor and waits for the reply. Replies
// that are *utils.AppError are returned as the error.
func (e *Engine) Request(ctx context.Context, sessionID uuid.UUID, msg interface{}) (interface{}, error) {
	session, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := e.opts.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	result, err := e.context.RequestFuture(session.PID, msg, timeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrTimeout) {
			return nil, utils.NewActorTimeoutError("ThreadActor " + sessionID.String())
		}
		return nil, utils.NewAppError(utils.ErrMessageRejected, "thread actor did not answer", err)
	}

	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

// Ask is Request with the reply converted to T.
func Ask[T any](ctx context.Context, e *Engine, sessionID uuid.UUID, msg interface{}) (T, error) {
	var zero T
	result, err := e.Request(ctx, sessionID, msg)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, utils.NewAppError(utils.ErrInternal, "unexpected reply from thread actor", nil)
	}
	return typed, nil
}

// Metrics returns the collector shared by all thread actors.
func (e *Engine) Metrics() *utils.MetricsCollector {
	return e.opts.Metrics
}
