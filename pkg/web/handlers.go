package web

import (
	"image"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-turret/pkg/hub"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/vision"
)

// Point is a pixel coordinate on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func pointOf(p image.Point) Point { return Point{X: p.X, Y: p.Y} }

// Delta is a relative aim nudge.
type Delta struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// StepView is the dashboard's view of the last iteration.
type StepView struct {
	Seq        uint64               `json:"seq"`
	Found      bool                 `json:"found"`
	Target     Point                `json:"target"`
	Error      Point                `json:"error"`
	Magnitude  float64              `json:"magnitude"`
	InDeadZone bool                 `json:"in_dead_zone"`
	DtMillis   float64              `json:"dt_ms"`
	Command    *servo.MotionCommand `json:"command,omitempty"`
	SendError  string               `json:"send_error,omitempty"`
	States     [2]servo.AxisState   `json:"states"`
}

func newStepView(seq uint64, r servo.StepResult) StepView {
	v := StepView{
		Seq:        seq,
		Found:      r.Found,
		Target:     pointOf(r.Target),
		Error:      pointOf(r.Error),
		Magnitude:  r.Magnitude,
		InDeadZone: r.InDeadZone,
		DtMillis:   float64(r.Dt) / float64(time.Millisecond),
		Command:    r.Command,
		States:     r.States,
	}
	if r.SendErr != nil {
		v.SendError = r.SendErr.Error()
	}
	return v
}

// Status is the body of GET /api/status and of every /ws/status message.
type Status struct {
	Session string            `json:"session"`
	Aim     Point             `json:"aim"`
	Colors  vision.ColorRange `json:"colors"`
	Stats   servo.Stats       `json:"stats"`
	Last    *StepView         `json:"last,omitempty"`
}

func (s *Server) status() Status {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	return Status{
		Session: s.session,
		Aim:     pointOf(s.ctl.Aim()),
		Colors:  s.ctl.ColorRange(),
		Stats:   s.ctl.Stats(),
		Last:    last,
	}
}

// GET /api/status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// GET /api/aim
func (s *Server) handleGetAim(c *fiber.Ctx) error {
	return c.JSON(pointOf(s.ctl.Aim()))
}

// POST /api/aim nudges the aim point. Updates apply on the next frame, so
// the response is 202 with the aim the nudge will produce.
func (s *Server) handleAdjustAim(c *fiber.Ctx) error {
	var d Delta
	if err := c.BodyParser(&d); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}

	next := s.ctl.Aim().Add(image.Pt(d.DX, d.DY))
	s.ctl.AdjustAim(d.DX, d.DY)
	return c.Status(fiber.StatusAccepted).JSON(pointOf(next))
}

// PUT /api/aim
func (s *Server) handleSetAim(c *fiber.Ctx) error {
	var p Point
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if p.X < 0 || p.Y < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "aim must be inside the frame")
	}

	s.ctl.SetAim(image.Pt(p.X, p.Y))
	return c.Status(fiber.StatusAccepted).JSON(p)
}

// GET /api/color
func (s *Server) handleGetColor(c *fiber.Ctx) error {
	return c.JSON(s.ctl.ColorRange())
}

// PUT /api/color
func (s *Server) handleSetColor(c *fiber.Ctx) error {
	var r vision.ColorRange
	if err := c.BodyParser(&r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if err := s.ctl.SetColorRange(r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(r)
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

// handleStatusWS greets the client with the current status so the page
// fills in before the next frame.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	msg, err := hub.EncodeJSON(s.status())
	if err != nil {
		s.log.Warn("encode status", "error", err)
		client.Run()
		return
	}
	client.Run(msg)
}
