// Package web serves WebRTC signalling for coaching sessions and the
// debug websocket feed.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/agent"
	"github.com/teslashibe/go-coach/pkg/hub"
	"github.com/teslashibe/go-coach/pkg/room"
)

// Sessions starts and stops coaching sessions.
type Sessions interface {
	Start(ctx context.Context, rm room.Room) (*agent.Session, error)
	Stop(id string) error
	Count() int
}

// PeerFactory creates the server side of a new WebRTC connection.
type PeerFactory func() (*room.Peer, error)

// Server is the HTTP front end.
type Server struct {
	app      *fiber.App
	addr     string
	sessions Sessions
	debugHub *hub.Hub
	newPeer  PeerFactory
	logger   *slog.Logger

	answerTimeout time.Duration
	shutdownWait  time.Duration

	// sessions outlive the request that created them
	baseCtx context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithHub serves h on /ws/debug.
func WithHub(h *hub.Hub) Option {
	return func(s *Server) { s.debugHub = h }
}

// WithPeerFactory overrides how peers are created.
func WithPeerFactory(f PeerFactory) Option {
	return func(s *Server) { s.newPeer = f }
}

// WithICEServers sets the STUN/TURN URLs for new peers.
func WithICEServers(urls []string) Option {
	return func(s *Server) {
		s.newPeer = func() (*room.Peer, error) {
			return room.NewPeer(room.Config{ICEServers: urls})
		}
	}
}

// WithAnswerTimeout bounds ICE gathering for an answer.
func WithAnswerTimeout(d time.Duration) Option {
	return func(s *Server) { s.answerTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, sessions Sessions, opts ...Option) *Server {
	s := &Server{
		addr:          addr,
		sessions:      sessions,
		logger:        log.Component("web"),
		answerTimeout: 10 * time.Second,
		shutdownWait:  5 * time.Second,
		baseCtx:       context.Background(),
		newPeer: func() (*room.Peer, error) {
			return room.NewPeer(room.Config{})
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Coach",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/sessions", s.handleCreateSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if s.debugHub != nil {
		app.Get("/ws/debug", s.debugHub.Handler())
	}

	s.app = app
	return s
}

// Run serves until ctx is done, then shuts down gracefully. Sessions
// created by requests inherit ctx.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.app.ShutdownWithTimeout(s.shutdownWait)
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
