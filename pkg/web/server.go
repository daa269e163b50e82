// Package web serves the turret dashboard: live annotated video, loop
// status, and the aim and colour tuning API.
package web

import (
	"context"
	"embed"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/hub"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/telemetry"
	"github.com/teslashibe/go-turret/pkg/vision"
)

//go:embed static
var staticFS embed.FS

// DefaultAddr is where the dashboard listens unless told otherwise.
const DefaultAddr = ":8080"

// DefaultStatusInterval limits how often status is pushed to websocket
// clients. Frames arrive at camera rate; the dashboard does not need that.
const DefaultStatusInterval = 200 * time.Millisecond

// Controller is the part of the control loop the dashboard drives.
// *servo.Loop implements it.
type Controller interface {
	Aim() image.Point
	AdjustAim(dx, dy int)
	SetAim(p image.Point)
	ColorRange() vision.ColorRange
	SetColorRange(r vision.ColorRange) error
	Stats() servo.Stats
}

var (
	_ Controller       = (*servo.Loop)(nil)
	_ telemetry.Writer = (*Server)(nil)
)

// Server is the dashboard server. It is also a telemetry.Writer, so it can
// be handed to a telemetry.Publisher to receive annotated frames.
type Server struct {
	app     *fiber.App
	addr    string
	ctl     Controller
	log     *slog.Logger
	session string // Distinguishes restarts on a long-lived dashboard

	statusHub *hub.Hub
	cameraHub *hub.Hub

	// StatusInterval rate-limits status broadcasts.
	StatusInterval time.Duration

	mu         sync.Mutex
	last       *StepView
	lastStatus time.Time
}

// NewServer creates a dashboard bound to ctl. Start serves it.
func NewServer(addr string, ctl Controller) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:           addr,
		ctl:            ctl,
		session:        uuid.NewString(),
		log:            log.Component("web"),
		statusHub:      hub.New("status"),
		cameraHub:      hub.New("camera"),
		StatusInterval: DefaultStatusInterval,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Turret Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/aim", s.handleGetAim)
	api.Post("/aim", s.handleAdjustAim)
	api.Put("/aim", s.handleSetAim)
	api.Get("/color", s.handleGetColor)
	api.Put("/color", s.handleSetColor)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(staticFS),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// Start runs the hubs and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.runHubs(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.log.Warn("shutdown", "error", err)
		}
	}()

	s.log.Info("dashboard listening", "addr", s.addr, "session", s.session)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine and logs a failure.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) runHubs(ctx context.Context) {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
}

// WriteFrame pushes the frame to camera clients and, at most once per
// StatusInterval, the loop status to status clients. The JPEG is only
// encoded when someone is watching.
func (s *Server) WriteFrame(f *telemetry.Frame) error {
	view := newStepView(f.Seq, f.Step)

	s.mu.Lock()
	s.last = &view
	due := f.Time.Sub(s.lastStatus) >= s.StatusInterval
	if due {
		s.lastStatus = f.Time
	}
	s.mu.Unlock()

	if due && s.statusHub.ClientCount() > 0 {
		if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
			return err
		}
	}

	if s.cameraHub.ClientCount() == 0 {
		return nil
	}
	data, err := f.JPEG()
	if err != nil {
		return err
	}
	s.cameraHub.BroadcastBinary(data)
	return nil
}
