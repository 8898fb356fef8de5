// Package ipc serves the car's local control socket.
//
// The server accepts one client at a time and answers every request frame
// with exactly one response frame.
package ipc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// DefaultSocketPath is where the daemon listens unless configured otherwise.
const DefaultSocketPath = "/tmp/fpvcar_control.sock"

// acceptRetryDelay paces retries after a transient accept failure.
const acceptRetryDelay = 50 * time.Millisecond

// Handler answers one request payload with one response payload.
type Handler interface {
	Handle(payload []byte) []byte
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(payload []byte) []byte

func (f HandlerFunc) Handle(payload []byte) []byte { return f(payload) }

// Stats counts server activity.
type Stats struct {
	Connections    uint64 `json:"connections"`
	Requests       uint64 `json:"requests"`
	ProtocolErrors uint64 `json:"protocol_errors"`
	HandlerFaults  uint64 `json:"handler_faults"`
	Connected      bool   `json:"connected"`
}

// Config holds server settings.
type Config struct {
	Logger *slog.Logger
	Codec  Codec

	// SocketMode is applied to the socket file after listen. Zero leaves
	// the umask-derived mode alone.
	SocketMode fs.FileMode
}

// Option configures a Server.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithCodec replaces the default length-prefixed framing.
func WithCodec(codec Codec) Option {
	return func(c *Config) {
		c.Codec = codec
	}
}

// WithSocketMode sets the permissions of the socket file.
func WithSocketMode(mode fs.FileMode) Option {
	return func(c *Config) {
		c.SocketMode = mode
	}
}

// Server is a single-client control socket server.
type Server struct {
	path    string
	handler Handler
	cfg     Config

	mu     sync.Mutex
	ln     *net.UnixListener
	conn   net.Conn
	closed bool

	running atomic.Bool

	connections    atomic.Uint64
	requests       atomic.Uint64
	protocolErrors atomic.Uint64
	handlerFaults  atomic.Uint64
}

// NewServer creates a server for the socket at path. A nil handler answers
// every request with NO_HANDLER.
func NewServer(path string, handler Handler, opts ...Option) *Server {
	cfg := Config{Codec: FrameCodec{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Codec == nil {
		cfg.Codec = FrameCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("ipc")
	}
	if path == "" {
		path = DefaultSocketPath
	}
	return &Server{path: path, handler: handler, cfg: cfg}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Prepare removes a stale socket file and starts listening. Anything created
// before a failure is cleaned up again. Call it once, before Run.
func (s *Server) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.ln != nil {
		return ErrAlreadyPrepared
	}

	if err := removeStale(s.path); err != nil {
		return err
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", s.path, err)
	}

	if s.cfg.SocketMode != 0 {
		if err := os.Chmod(s.path, s.cfg.SocketMode); err != nil {
			ln.Close()
			os.Remove(s.path)
			return fmt.Errorf("ipc: chmod %s: %w", s.path, err)
		}
	}

	s.ln = ln
	s.running.Store(true)
	s.cfg.Logger.Info("control socket listening", "path", s.path)
	return nil
}

// removeStale deletes a leftover socket file. Other file types are left
// alone.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ipc: stat %s: %w", path, err)
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%w: %s", ErrNotSocket, path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("ipc: remove stale socket %s: %w", path, err)
	}
	return nil
}

// Run accepts and serves clients one at a time until Stop is called.
func (s *Server) Run() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotPrepared
	}

	for s.running.Load() {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.cfg.Logger.Warn("accept failed", "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		s.serve(conn)
	}
	return nil
}

// Stop closes the listener and any active connection and removes the socket
// file if Prepare created it. It is safe to call more than once and without
// Prepare.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running.Store(false)
	if s.closed {
		return
	}
	s.closed = true

	if s.conn != nil {
		s.conn.Close()
	}
	if s.ln == nil {
		return
	}
	s.ln.Close()
	// Only ever unlink our own socket, never a file someone else put there.
	if err := removeStale(s.path); err != nil {
		s.cfg.Logger.Warn("remove socket failed", "path", s.path, "error", err)
	}
	s.cfg.Logger.Info("control socket closed", "path", s.path)
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()
	return Stats{
		Connections:    s.connections.Load(),
		Requests:       s.requests.Load(),
		ProtocolErrors: s.protocolErrors.Load(),
		HandlerFaults:  s.handlerFaults.Load(),
		Connected:      connected,
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *Server) untrack() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	if !s.track(conn) {
		return
	}
	defer s.untrack()

	s.connections.Add(1)
	logger := s.cfg.Logger.With("conn", uuid.NewString())
	logger.Debug("client connected")

	for {
		payload, err := s.cfg.Codec.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug("client disconnected")
			} else {
				s.protocolErrors.Add(1)
				logger.Warn("dropping connection", "error", err)
			}
			return
		}

		s.requests.Add(1)
		resp := s.dispatch(logger, payload)
		if err := s.cfg.Codec.WriteMessage(conn, resp); err != nil {
			s.protocolErrors.Add(1)
			logger.Warn("write response failed", "error", err)
			return
		}
	}
}

// dispatch calls the handler, turning a panic or empty answer into a
// SERVER_ERROR response so the client always gets a reply.
func (s *Server) dispatch(logger *slog.Logger, payload []byte) (resp []byte) {
	if s.handler == nil {
		return protocol.Error(protocol.CodeNoHandler, "No handler set")
	}

	defer func() {
		if r := recover(); r != nil {
			s.handlerFaults.Add(1)
			logger.Error("handler panicked", "panic", r)
			resp = protocol.Error(protocol.CodeServerError, fmt.Sprint(r))
		}
	}()

	resp = s.handler.Handle(payload)
	if resp == nil {
		s.handlerFaults.Add(1)
		resp = protocol.Error(protocol.CodeServerError, "Handler returned no response")
	}
	return resp
}
