// Package service wires the control core into a runnable daemon: desired
// state, control loop with its watchdog, request handler and control socket,
// plus the optional journal and status dashboard.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-fpvcar/internal/config"
	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/actuator"
	"github.com/teslashibe/go-fpvcar/pkg/control"
	"github.com/teslashibe/go-fpvcar/pkg/handler"
	"github.com/teslashibe/go-fpvcar/pkg/ipc"
	"github.com/teslashibe/go-fpvcar/pkg/journal"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
	"github.com/teslashibe/go-fpvcar/pkg/web"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the base logger; components derive theirs from it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// Service is the composition root of the daemon.
type Service struct {
	cfg    config.AppConfig
	logger *slog.Logger

	states  *motion.Manager
	loop    *control.Loop
	handler *handler.Handler
	server  *ipc.Server
	journal *journal.Journal
	web     *web.Server

	recorder journal.Recorder

	mu        sync.Mutex
	started   bool
	stopped   bool
	serveDone chan error
}

// New builds a stopped service around act. The actuator is wrapped so the
// loop, the watchdog and shutdown can share it.
func New(cfg config.AppConfig, act actuator.Actuator, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.L()
	}

	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	s.recorder = journal.Discard{}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
		s.recorder = j
	}

	s.states = motion.NewManager()
	s.loop = control.New(s.states, actuator.Serialize(act),
		control.WithPeriod(cfg.ControlPeriod()),
		control.WithWatchdogTimeout(cfg.WatchdogTimeout()),
		control.WithWatchdogMode(mode),
		control.WithLogger(s.logger.With("component", "control")),
		control.WithRecorder(s.recorder),
	)
	s.handler = handler.New(s.states, s.loop,
		handler.WithLogger(s.logger.With("component", "handler")),
		handler.WithRecorder(s.recorder),
	)
	s.server = ipc.NewServer(cfg.IPCSocketPath, s.handler,
		ipc.WithLogger(s.logger.With("component", "ipc")),
		ipc.WithSocketMode(cfg.SocketMode),
	)

	if cfg.HTTPAddr != "" {
		src := web.Sources{
			States:  s.states,
			Loop:    s.loop,
			IPC:     s.server,
			Handler: s.handler,
		}
		if s.journal != nil {
			src.Events = s.journal
		}
		s.web = web.NewServer(cfg.HTTPAddr, src, web.WithLogger(s.logger.With("component", "web")))
	}
	return s, nil
}

// Start runs the control loop, opens the control socket and, when
// configured, the dashboard. A socket or dashboard failure is returned
// after everything already started has been stopped again.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("service: already stopped")
	}
	if s.started {
		return nil
	}

	s.recorder.Record(journal.KindServiceStart, s.cfg.IPCSocketPath)
	s.loop.Start()

	if err := s.server.Prepare(); err != nil {
		s.loop.Stop()
		return fmt.Errorf("service: %w", err)
	}
	s.serveDone = make(chan error, 1)
	go func() { s.serveDone <- s.server.Run() }()

	if s.web != nil {
		if err := s.web.Start(); err != nil {
			s.server.Stop()
			<-s.serveDone
			s.loop.Stop()
			return fmt.Errorf("service: %w", err)
		}
	}

	s.started = true
	s.logger.Info("fpvcar service started",
		"socket", s.cfg.IPCSocketPath,
		"period", s.cfg.ControlPeriod(),
		"watchdog_timeout", s.cfg.WatchdogTimeout(),
		"dashboard", s.cfg.HTTPAddr)
	return nil
}

// Stop stops the car, then tears everything down and waits for every
// worker. It is safe to call more than once and without Start.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	if s.started {
		// The loop goes first: its Stop is what guarantees the final
		// StopAll reaches the hardware.
		s.loop.Stop()
		s.server.Stop()
		if err := <-s.serveDone; err != nil {
			errs = append(errs, err)
		}
		if s.web != nil {
			if err := s.web.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("dashboard shutdown: %w", err))
			}
		}
		s.recorder.Record(journal.KindServiceStop, "")
	}

	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("fpvcar service stopped")
	return errors.Join(errs...)
}

// States exposes the desired state slot.
func (s *Service) States() *motion.Manager { return s.states }

// Loop exposes the control loop.
func (s *Service) Loop() *control.Loop { return s.loop }

// Server exposes the control socket server.
func (s *Service) Server() *ipc.Server { return s.server }

// Handler exposes the request handler.
func (s *Service) Handler() *handler.Handler { return s.handler }

// Journal returns the safety journal, or nil when none is configured.
func (s *Service) Journal() *journal.Journal { return s.journal }
