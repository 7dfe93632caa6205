// Package hub fans side-channel traffic out to debug websocket viewers
// through a single broadcast loop.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/datachannel"
	"github.com/teslashibe/go-coach/pkg/protocol"
)

var (
	// ErrBackpressure is returned when the broadcast queue is full.
	ErrBackpressure = errors.New("hub: broadcast queue full")

	// ErrStopped is returned when the hub is not running.
	ErrStopped = errors.New("hub: stopped")
)

// Frame is the websocket frame type of a Message.
type Frame int

const (
	TextFrame Frame = iota
	BinaryFrame
)

// Message is one broadcast payload.
type Message struct {
	Frame Frame
	Data  []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	register   chan *Client
	unregister chan *Client

	// Guards clients for ClientCount
	mu sync.RWMutex

	started atomic.Bool
	running atomic.Bool
	stopped chan struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithQueueSize sets how many broadcasts may wait for the run loop.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.broadcast = make(chan Message, n)
		}
	}
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.Component("hub").With("hub", name)
	}
	return h
}

// Run is the hub's main loop. It returns when ctx is done, after
// disconnecting every client. A hub runs at most once.
func (h *Hub) Run(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	h.running.Store(true)
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		close(h.stopped)
		h.running.Store(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.sent.Add(1)
				default:
					// too slow to keep up
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks.
func (h *Hub) Broadcast(msg Message) error {
	if h.isStopped() {
		return ErrStopped
	}
	select {
	case h.broadcast <- msg:
		return nil
	default:
		h.dropped.Add(1)
		return ErrBackpressure
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Broadcast(Message{Frame: TextFrame, Data: data})
}

// Send implements datachannel.Sink, broadcasting data unchanged.
func (h *Hub) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Broadcast(Message{Frame: TextFrame, Data: data})
}

// SessionSink returns a sink that tags each payload with the session
// before broadcasting it, so viewers can tell sessions apart.
func (h *Hub) SessionSink(session string) datachannel.Sink {
	return datachannel.SinkFunc(func(ctx context.Context, data []byte) error {
		env, err := protocol.NewEnvelope(session, data).Bytes()
		if err != nil {
			return err
		}
		return h.Send(ctx, env)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Dropped returns how many broadcasts were refused because the queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}

func (h *Hub) isStopped() bool {
	select {
	case <-h.stopped:
		return true
	default:
		return false
	}
}

var _ datachannel.Sink = (*Hub)(nil)
