// Package web serves a read-only status dashboard for the car.
//
// Nothing here can move the car: the control socket is the only command
// ingress.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/control"
	"github.com/teslashibe/go-fpvcar/pkg/handler"
	"github.com/teslashibe/go-fpvcar/pkg/hub"
	"github.com/teslashibe/go-fpvcar/pkg/ipc"
	"github.com/teslashibe/go-fpvcar/pkg/journal"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
)

// DefaultPushInterval is how often /ws/status subscribers get a snapshot.
const DefaultPushInterval = time.Second

// Sources are the read-only views the dashboard reports on. Any may be nil.
type Sources struct {
	States  interface{ Get() motion.State }
	Loop    interface{ Stats() control.Stats }
	IPC     interface{ Stats() ipc.Stats }
	Handler interface{ Stats() handler.Stats }
	Events  interface {
		Recent(n int) ([]journal.Event, error)
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithPushInterval sets the status push period.
func WithPushInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pushInterval = d
		}
	}
}

// Server is the web dashboard server
type Server struct {
	app          *fiber.App
	addr         string
	src          Sources
	logger       *slog.Logger
	pushInterval time.Duration
	started      time.Time

	statusHub *hub.Hub

	mu      sync.Mutex
	running bool
	closed  bool
	stop    chan struct{}
	pushed  chan struct{}
}

// NewServer creates a dashboard that will listen on addr.
func NewServer(addr string, src Sources, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		src:          src,
		pushInterval: DefaultPushInterval,
		started:      time.Now(),
		statusHub:    hub.New("status"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Component("web")
	}

	app := fiber.New(fiber.Config{
		AppName:               "fpvcar status",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowMethods: "GET"}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Get("/health", s.handleHealth)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen on %s: %w", s.addr, err)
	}
	s.Serve(ln)
	return nil
}

// Serve runs the dashboard on ln in the background. A server cannot be
// restarted after Shutdown.
func (s *Server) Serve(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.closed {
		ln.Close()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.pushed = make(chan struct{})

	go s.statusHub.Run()
	go s.push(s.stop, s.pushed)
	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("dashboard server error", "error", err)
		}
	}()
	s.logger.Info("status dashboard listening", "addr", ln.Addr().String())
}

// Shutdown stops pushing, disconnects subscribers and stops the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.closed = true

	close(s.stop)
	<-s.pushed
	s.statusHub.Close()
	<-s.statusHub.Done()
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

// push broadcasts a snapshot every interval while anyone is listening.
func (s *Server) push(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastStatus(s.Snapshot()); err != nil {
				s.logger.Warn("status broadcast failed", "error", err)
			}
		}
	}
}
