// Package handler turns control-socket requests into desired-state changes.
package handler

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// EventInvalidAction is recorded when a client sends an unknown action.
const EventInvalidAction = "invalid_action"

// StateSetter receives the requested motion.
type StateSetter interface {
	Set(motion.State)
}

// Feeder is told each time a valid command arrives.
type Feeder interface {
	Feed()
}

// Recorder receives safety-relevant events.
type Recorder interface {
	Record(kind, detail string)
}

// Stats counts handled requests.
type Stats struct {
	Requests uint64 `json:"requests"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// Handler decodes requests and updates the desired state. It never waits for
// the control loop to act on the change.
type Handler struct {
	states   StateSetter
	feeder   Feeder
	logger   *slog.Logger
	recorder Recorder

	requests atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithRecorder sets the safety event recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// New creates a handler. feeder may be nil.
func New(states StateSetter, feeder Feeder, opts ...Option) *Handler {
	h := &Handler{
		states: states,
		feeder: feeder,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.Component("handler")
	}
	return h
}

// Handle processes one request payload and returns the encoded response.
func (h *Handler) Handle(payload []byte) []byte {
	h.requests.Add(1)

	req, err := protocol.ParseRequest(payload)
	if err != nil {
		h.rejected.Add(1)
		h.logger.Debug("rejected request", "error", err, "bytes", len(payload))
		return protocol.Error(protocol.CodeInvalidJSON, "Failed to parse JSON")
	}
	if req.Action == "" {
		h.rejected.Add(1)
		return protocol.Error(protocol.CodeInvalidJSON, "Missing 'action' field")
	}

	state, ok := motion.ParseAction(req.Action)
	if !ok {
		// Never leave the previous motion running on a command we don't
		// understand.
		h.states.Set(motion.Stopping)
		h.rejected.Add(1)
		h.logger.Warn("unknown action, stopping", "action", req.Action)
		if h.recorder != nil {
			h.recorder.Record(EventInvalidAction, req.Action)
		}
		return protocol.Error(protocol.CodeInvalidAction, fmt.Sprintf("Unknown action: %s", req.Action))
	}

	h.states.Set(state)
	if h.feeder != nil {
		h.feeder.Feed()
	}
	h.accepted.Add(1)
	h.logger.Debug("command", "action", req.Action, "state", state)
	return protocol.Executed(req.Action)
}

// Stats returns current counters.
func (h *Handler) Stats() Stats {
	return Stats{
		Requests: h.requests.Load(),
		Accepted: h.accepted.Load(),
		Rejected: h.rejected.Load(),
	}
}
