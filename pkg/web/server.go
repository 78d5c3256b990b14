// Package web serves the dashboard API: scheduler status, behavior toggles
// and the live status feed over websockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/feed"
	"github.com/teslashibe/go-rokbot/pkg/hub"
	"github.com/teslashibe/go-rokbot/pkg/scheduler"
)

// DefaultAddr keeps the dashboard on the loopback interface.
const DefaultAddr = "127.0.0.1:8090"

// recentLogs is how many feed lines /api/logs and a new /ws/logs client get.
const recentLogs = 100

// Controller is the scheduler surface the dashboard drives.
// *scheduler.Scheduler implements it.
type Controller interface {
	Status() scheduler.Status
	Watch() (<-chan scheduler.Status, func())
	SetRunning(running bool) error
	Toggle(index int) error
}

var _ Controller = (*scheduler.Scheduler)(nil)

// Server is the web dashboard server.
type Server struct {
	app  *fiber.App
	ctrl Controller
	feed *feed.Feed
	log  *slog.Logger

	statusHub *hub.Hub
	logHub    *hub.Hub
}

// NewServer creates the dashboard over ctrl and the log feed.
func NewServer(ctrl Controller, f *feed.Feed) *Server {
	s := &Server{
		ctrl:      ctrl,
		feed:      f,
		log:       log.With("component", "web"),
		statusHub: hub.New("status"),
		logHub:    hub.New("logs"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "rokbot dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/running", s.handleSetRunning)
	api.Post("/behaviors/:index/toggle", s.handleToggle)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs, the status and log pumps and the HTTP server on ln
// until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("web dashboard listening", "url", "http://"+ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { s.statusHub.Run(ctx); return nil })
	g.Go(func() error { s.logHub.Run(ctx); return nil })
	g.Go(func() error { s.pumpStatus(ctx); return nil })
	g.Go(func() error { s.pumpLogs(ctx); return nil })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.app.ShutdownWithContext(shutdownCtx)
		ln.Close() // in case the server never started accepting
		return err
	})
	g.Go(func() error {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) pumpStatus(ctx context.Context) {
	updates, stop := s.ctrl.Watch()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			if err := s.statusHub.BroadcastJSON(newStatusView(st)); err != nil {
				s.log.Warn("encode status", "error", err)
			}
		}
	}
}

func (s *Server) pumpLogs(ctx context.Context) {
	entries, stop := s.feed.Subscribe(64)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if err := s.logHub.BroadcastJSON(newLogView(e)); err != nil {
				s.log.Warn("encode log entry", "error", err)
			}
		}
	}
}
