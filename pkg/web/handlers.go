package web

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/shirou/gopsutil/process"

	"github.com/teslashibe/go-fpvcar/pkg/control"
	"github.com/teslashibe/go-fpvcar/pkg/handler"
	"github.com/teslashibe/go-fpvcar/pkg/hub"
	"github.com/teslashibe/go-fpvcar/pkg/ipc"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Status is the dashboard snapshot.
type Status struct {
	State   string         `json:"state"`
	Loop    *control.Stats `json:"loop,omitempty"`
	IPC     *ipc.Stats     `json:"ipc,omitempty"`
	Handler *handler.Stats `json:"handler,omitempty"`
	Process *ProcessStats  `json:"process,omitempty"`
	Uptime  string         `json:"uptime"`
}

// ProcessStats describes the daemon's own resource use.
type ProcessStats struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSS        uint64  `json:"rss_bytes"`
}

// Snapshot collects the current status from every configured source.
func (s *Server) Snapshot() Status {
	st := Status{
		State:  "UNKNOWN",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.src.States != nil {
		st.State = s.src.States.Get().String()
	}
	if s.src.Loop != nil {
		v := s.src.Loop.Stats()
		st.Loop = &v
	}
	if s.src.IPC != nil {
		v := s.src.IPC.Stats()
		st.IPC = &v
	}
	if s.src.Handler != nil {
		v := s.src.Handler.Stats()
		st.Handler = &v
	}
	if ps, err := processStats(); err == nil {
		st.Process = ps
	} else {
		s.logger.Debug("process stats unavailable", "error", err)
	}
	return st
}

func processStats() (*ProcessStats, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return nil, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return nil, err
	}
	return &ProcessStats{PID: pid, CPUPercent: cpu, RSS: mem.RSS}, nil
}

// handleStatus returns the current snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleEvents returns recent safety journal entries, newest first
func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.src.Events == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Journal not configured",
		})
	}

	limit := c.QueryInt("limit", defaultEventLimit)
	if limit <= 0 || limit > maxEventLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 500",
		})
	}

	events, err := s.src.Events.Recent(limit)
	if err != nil {
		s.logger.Error("read journal failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(events)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// handleStatusWS streams snapshots. A new subscriber gets one right away
// without waiting for the next push.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		c.Close()
		return
	}
	first, err := hub.StatusMessage(s.Snapshot())
	if err == nil {
		err = client.Greet(first)
	}
	if err != nil {
		s.logger.Warn("status greeting failed", "error", err)
	}
	client.Run()
}
