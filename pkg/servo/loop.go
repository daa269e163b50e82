package servo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/vision"
)

// ErrStreamLost is returned by Run when the frame source produced more than
// Config.MaxEmptyFrames empty frames in a row.
var ErrStreamLost = errors.New("frame stream lost")

// FrameSource produces frames on demand. Read returns io.EOF once a finite
// source is exhausted; an empty dst with a nil error is a dropped frame.
type FrameSource interface {
	Read(dst *gocv.Mat) error
}

// Locator finds the target in a frame.
type Locator interface {
	Locate(frame gocv.Mat, aim image.Point) (vision.Result, error)
	SetColorRange(r vision.ColorRange) error
}

// Actuator moves the platform.
type Actuator interface {
	SendMove(dx, dy float64, feedRate int) error
	Disable() error
}

// Telemetry receives every processed frame. Publish must not block and must
// not retain frame after returning.
type Telemetry interface {
	Publish(frame gocv.Mat, step StepResult)
}

// Deps are the collaborators of a Loop. Locator, Telemetry, Now and Logger
// are optional.
type Deps struct {
	Source    FrameSource
	Locator   Locator
	Actuator  Actuator
	Telemetry Telemetry
	Now       func() time.Time
	Logger    *slog.Logger
}

// MotionCommand is one relative platform move.
type MotionCommand struct {
	DX       float64 `json:"dx"`        // mm
	DY       float64 `json:"dy"`        // mm
	FeedRate int     `json:"feed_rate"` // mm/min
}

// StepResult describes one iteration.
type StepResult struct {
	Found      bool            `json:"found"`
	Aim        image.Point     `json:"aim"`
	Target     image.Point     `json:"target"`
	Error      image.Point     `json:"error"`     // Target - Aim
	Magnitude  float64         `json:"magnitude"` // |Error|
	InDeadZone bool            `json:"in_dead_zone"`
	Dt         time.Duration   `json:"dt"`
	Command    *MotionCommand  `json:"command,omitempty"`
	SendErr    error           `json:"-"`
	States     [2]AxisState    `json:"states"`
	Regions    []vision.Region `json:"-"`
}

// Loop is the visual-servo control loop. Step and Run must be called from a
// single goroutine; the tuning methods are safe from any goroutine.
type Loop struct {
	cfg  Config
	src  FrameSource
	loc  Locator
	act  Actuator
	tel  Telemetry
	now  func() time.Time
	log  *slog.Logger
	laws [2]AxisLaw
	last time.Time

	mu      sync.Mutex
	pending []update
	aim     image.Point
	colors  vision.ColorRange
	stats   collector
}

// New creates a loop. Without a Locator, a vision.Pipeline is built from
// cfg.Colors and cfg.MinArea.
func New(cfg Config, deps Deps) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid servo config: %w", err)
	}
	if deps.Source == nil {
		return nil, errors.New("servo: frame source required")
	}
	if deps.Actuator == nil {
		return nil, errors.New("servo: actuator required")
	}

	loc := deps.Locator
	if loc == nil {
		p, err := vision.NewPipeline(cfg.Colors, cfg.MinArea)
		if err != nil {
			return nil, err
		}
		loc = p
	}

	l := &Loop{
		cfg:    cfg,
		src:    deps.Source,
		loc:    loc,
		act:    deps.Actuator,
		tel:    deps.Telemetry,
		now:    deps.Now,
		log:    deps.Logger,
		laws:   newLaws(cfg),
		aim:    cfg.Aim,
		colors: cfg.Colors,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.log == nil {
		l.log = log.Component("servo")
	}
	return l, nil
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.cfg
}

// Run pulls frames until the source is exhausted (nil), ctx is cancelled
// (ctx.Err()) or the stream is lost (ErrStreamLost). The actuator is
// disabled on every exit path.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if derr := l.act.Disable(); derr != nil {
			l.log.Warn("disable actuator failed", "error", derr)
		}
		l.log.Info("loop stopped", "reason", reason(err), "stats", l.Stats())
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	var statsC <-chan time.Time
	if l.cfg.StatsInterval > 0 {
		ticker := time.NewTicker(l.cfg.StatsInterval)
		defer ticker.Stop()
		statsC = ticker.C
	}

	l.log.Info("loop started",
		"law", l.cfg.Law, "mapping", l.cfg.Mapping.String(),
		"dead_zone", l.cfg.DeadZone, "max_step", l.cfg.MaxStep, "feed", l.cfg.FeedRate)

	l.last = l.now()
	empty := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-statsC:
			l.log.Info("loop stats", "stats", l.Stats())
		default:
		}

		rerr := l.src.Read(&frame)
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil || frame.Empty() {
			empty++
			l.mu.Lock()
			l.stats.Dropped++
			l.mu.Unlock()
			if rerr != nil {
				l.log.Debug("frame read failed", "error", rerr, "consecutive", empty)
			}
			if empty > l.cfg.MaxEmptyFrames {
				return fmt.Errorf("%w after %d empty frames", ErrStreamLost, empty)
			}
			continue
		}
		empty = 0

		res, serr := l.Step(frame, l.now())
		if serr != nil {
			l.log.Warn("step failed", "error", serr)
			continue
		}
		if l.tel != nil {
			l.tel.Publish(frame, res)
		}
	}
}

// Step processes one frame captured at now.
func (l *Loop) Step(frame gocv.Mat, now time.Time) (StepResult, error) {
	l.applyPending()

	res, err := l.step(frame, now)
	if err != nil {
		return res, err
	}
	l.record(&res)
	return res, nil
}

func (l *Loop) step(frame gocv.Mat, now time.Time) (StepResult, error) {
	aim := l.Aim()

	var dt time.Duration
	if !l.last.IsZero() {
		dt = min(now.Sub(l.last), l.cfg.MaxDt)
	}
	l.last = now

	res := StepResult{Aim: aim, Dt: dt}

	det, err := l.loc.Locate(frame, aim)
	if err != nil {
		l.resetLaws()
		return res, fmt.Errorf("locate target: %w", err)
	}
	res.Regions = det.Regions

	if !det.Found {
		l.resetLaws()
		return res, nil
	}

	res.Found = true
	res.Target = det.Target
	res.Error = det.Target.Sub(aim)
	ex, ey := float64(res.Error.X), float64(res.Error.Y)
	res.Magnitude = math.Hypot(ex, ey)

	if res.Magnitude <= l.cfg.DeadZone {
		res.InDeadZone = true
		l.resetLaws()
		return res, nil
	}

	secs := dt.Seconds()
	ox := l.laws[0].Calculate(ex, secs)
	oy := l.laws[1].Calculate(ey, secs)
	px, py := l.cfg.Mapping.Apply(ox, oy)

	cmd := &MotionCommand{
		DX:       clampStep(px, l.cfg.MaxStep),
		DY:       clampStep(py, l.cfg.MaxStep),
		FeedRate: l.cfg.FeedRate,
	}
	res.Command = cmd

	if err := l.act.SendMove(cmd.DX, cmd.DY, cmd.FeedRate); err != nil {
		res.SendErr = err
		l.log.Warn("send move failed", "error", err, "dx", cmd.DX, "dy", cmd.DY)
	} else {
		l.log.Debug("move", "err_x", res.Error.X, "err_y", res.Error.Y, "dx", cmd.DX, "dy", cmd.DY)
	}
	return res, nil
}

// record fills in axis states and updates stats.
func (l *Loop) record(res *StepResult) {
	res.States = [2]AxisState{stateOf(l.laws[0]), stateOf(l.laws[1])}
	l.mu.Lock()
	l.stats.observe(*res)
	l.mu.Unlock()
}

func (l *Loop) resetLaws() {
	l.laws[0].Reset()
	l.laws[1].Reset()
}

func reason(err error) string {
	switch {
	case err == nil:
		return "end of stream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return err.Error()
	}
}
