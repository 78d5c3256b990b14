package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rokbot/pkg/feed"
	"github.com/teslashibe/go-rokbot/pkg/hub"
	"github.com/teslashibe/go-rokbot/pkg/scheduler"
)

// StatusView is the dashboard form of scheduler.Status.
type StatusView struct {
	Running   bool           `json:"running"`
	Active    string         `json:"active,omitempty"`
	Behaviors []BehaviorView `json:"behaviors"`
}

// BehaviorView describes one registered behavior.
type BehaviorView struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	Priority  int        `json:"priority"`
	Enabled   bool       `json:"enabled"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Slots     []SlotView `json:"slots,omitempty"`
}

// SlotView is one resource slot of a behavior. FreeAt is set while busy.
type SlotView struct {
	Index  int        `json:"index"`
	Free   bool       `json:"free"`
	FreeAt *time.Time `json:"free_at,omitempty"`
}

// LogView is one status line.
type LogView struct {
	Time    string `json:"time"` // 15:04:05
	Level   string `json:"level"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// RunningRequest is the body of POST /api/running.
type RunningRequest struct {
	Running *bool `json:"running"`
}

func newStatusView(st scheduler.Status) StatusView {
	now := time.Now()
	v := StatusView{
		Running:   st.Running,
		Active:    st.Active,
		Behaviors: make([]BehaviorView, len(st.Behaviors)),
	}
	for i, b := range st.Behaviors {
		bv := BehaviorView{
			Index:     b.Index,
			Name:      b.Name,
			Priority:  b.Priority,
			Enabled:   b.Enabled,
			Runs:      b.Runs,
			Failures:  b.Failures,
			LastError: b.LastError,
		}
		if !b.LastRun.IsZero() {
			last := b.LastRun
			bv.LastRun = &last
		}
		for _, sl := range b.Slots {
			sv := SlotView{Index: sl.Index, Free: sl.Free(now)}
			if !sv.Free {
				at := sl.FreeAt
				sv.FreeAt = &at
			}
			bv.Slots = append(bv.Slots, sv)
		}
		v.Behaviors[i] = bv
	}
	return v
}

func newLogView(e feed.Entry) LogView {
	return LogView{
		Time:    e.Time.Format("15:04:05"),
		Level:   e.Level.String(),
		Source:  e.Source,
		Message: e.Message,
	}
}

func (s *Server) recentLogs() []LogView {
	entries := s.feed.Recent(recentLogs)
	out := make([]LogView, len(entries))
	for i, e := range entries {
		out[i] = newLogView(e)
	}
	return out
}

// handleStatus returns the scheduler state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(newStatusView(s.ctrl.Status()))
}

// handleGetLogs returns recent log entries, oldest first.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.recentLogs())
}

// handleSetRunning starts or pauses the scheduler.
func (s *Server) handleSetRunning(c *fiber.Ctx) error {
	var req RunningRequest
	if err := c.BodyParser(&req); err != nil || req.Running == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"running": true|false}`,
		})
	}
	if err := s.ctrl.SetRunning(*req.Running); err != nil {
		return commandError(c, err)
	}
	s.log.Info("running set from dashboard", "running", *req.Running)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"running": *req.Running})
}

// handleToggle flips the enabled flag of the behavior at :index.
func (s *Server) handleToggle(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "index must be an integer"})
	}
	if err := s.ctrl.Toggle(index); err != nil {
		return commandError(c, err)
	}
	s.log.Info("behavior toggled from dashboard", "index", index)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"index": index})
}

func commandError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrInvalidIndex):
		status = fiber.StatusNotFound
	case errors.Is(err, scheduler.ErrQueueFull):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleLogsWS streams log lines, starting with the recent backlog.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	var greeting []hub.Message
	for _, v := range s.recentLogs() {
		if msg, err := hub.JSON(v); err == nil {
			greeting = append(greeting, msg)
		}
	}
	hub.Serve(s.logHub, c, greeting...)
}

// handleStatusWS streams status snapshots, starting with the current one.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	msg, err := hub.JSON(newStatusView(s.ctrl.Status()))
	if err != nil {
		s.log.Warn("encode status", "error", err)
		c.Close()
		return
	}
	hub.Serve(s.statusHub, c, msg)
}
