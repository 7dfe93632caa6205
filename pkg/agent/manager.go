package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/datachannel"
	"github.com/teslashibe/go-coach/pkg/room"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("agent: session not found")

	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("agent: maximum sessions reached")
)

const (
	activeSessionsKey = "coach:active_sessions"
	redisTimeout      = 2 * time.Second
)

func sessionKey(id string) string {
	return "coach:session:" + id
}

// Mirror provides an extra side-channel destination per session, such as
// the debug websocket hub.
type Mirror interface {
	SessionSink(session string) datachannel.Sink
}

// Manager starts sessions and keeps track of the live ones.
type Manager struct {
	agent *Agent

	mirror      Mirror
	redis       *redis.Client
	maxSessions int
	sessionTTL  time.Duration
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int // starts in flight, counted against maxSessions
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMirror copies every session's side channel to m.
func WithMirror(m Mirror) ManagerOption {
	return func(mgr *Manager) {
		mgr.mirror = m
	}
}

// WithRedis registers sessions in Redis and mirrors their side channel
// onto pub/sub. A nil client disables both.
func WithRedis(c *redis.Client) ManagerOption {
	return func(mgr *Manager) {
		mgr.redis = c
	}
}

// WithMaxSessions limits concurrent sessions. Zero means no limit.
func WithMaxSessions(n int) ManagerOption {
	return func(mgr *Manager) {
		mgr.maxSessions = n
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(mgr *Manager) {
		if l != nil {
			mgr.logger = l
		}
	}
}

// NewManager creates a manager for sessions of a.
func NewManager(a *Agent, opts ...ManagerOption) *Manager {
	m := &Manager{
		agent:      a,
		sessionTTL: 6 * time.Hour,
		logger:     log.Component("agent.manager"),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start starts a session on rm under a fresh ID. The session outlives
// the call; ctx bounds its whole lifetime.
func (m *Manager) Start(ctx context.Context, rm room.Room) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions)+m.pending >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.pending++
	m.mu.Unlock()

	// opening the recognizer dials out, so the slot is held without the lock
	id := uuid.New().String()
	s, err := m.agent.Start(ctx, id, rm, m.sinks(id, rm))

	m.mu.Lock()
	m.pending--
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.store(id)
	go m.reap(s)

	m.logger.Info("session registered", "session", id, "active", count)
	return s, nil
}

// sinks returns where a session's side-channel messages go: the room's
// data channel first, then any mirrors.
func (m *Manager) sinks(id string, rm room.Room) datachannel.Sink {
	out := datachannel.FanOut{datachannel.SinkFunc(rm.PublishData)}
	if m.mirror != nil {
		out = append(out, m.mirror.SessionSink(id))
	}
	if m.redis != nil {
		out = append(out, datachannel.NewRedisSink(m.redis, datachannel.ChannelName(id)))
	}
	return out
}

// reap forgets a session once it ends.
func (m *Manager) reap(s *Session) {
	err := s.Wait()

	m.mu.Lock()
	delete(m.sessions, s.ID())
	count := len(m.sessions)
	m.mu.Unlock()

	m.forget(s.ID())
	m.logger.Info("session removed", "session", s.ID(), "active", count, "error", err)
}

func (m *Manager) store(id string) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	key := sessionKey(id)
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"created_at": time.Now().Format(time.RFC3339),
			"status":     "active",
			"channel":    datachannel.ChannelName(id),
		})
		pipe.Expire(ctx, key, m.sessionTTL)
		pipe.SAdd(ctx, activeSessionsKey, id)
		return nil
	})
	if err != nil {
		m.logger.Warn("redis register failed", "session", id, "error", err)
	}
}

func (m *Manager) forget(id string) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, activeSessionsKey, id)
		return nil
	})
	if err != nil {
		m.logger.Warn("redis unregister failed", "session", id, "error", err)
	}
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Stop ends a session and waits for it.
func (m *Manager) Stop(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session IDs.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every session, giving up when ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		s.cancel()
	}
	for _, s := range live {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
