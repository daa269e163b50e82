package servo

import (
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/vision"
)

// readOp scripts one FrameSource.Read call.
type readOp struct {
	empty bool
	err   error
}

var frameOK = readOp{}

// mockSource replays ops, then returns io.EOF. With loop set it never ends.
type mockSource struct {
	ops    []readOp
	loop   bool
	onRead func(n int)
	n      int
	tmpl   gocv.Mat
}

func newMockSource(ops ...readOp) *mockSource {
	return &mockSource{
		ops:  ops,
		tmpl: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3),
	}
}

func (s *mockSource) Read(dst *gocv.Mat) error {
	s.n++
	if s.onRead != nil {
		s.onRead(s.n)
	}

	var op readOp
	switch {
	case s.n <= len(s.ops):
		op = s.ops[s.n-1]
	case s.loop:
		op = frameOK
	default:
		return io.EOF
	}

	if op.err != nil {
		return op.err
	}
	if op.empty {
		dst.Close()
		*dst = gocv.NewMat()
		return nil
	}
	s.tmpl.CopyTo(dst)
	return nil
}

func (s *mockSource) Close() {
	s.tmpl.Close()
}

// mockLocator reports one scripted target per call. A nil entry, or running
// out of entries, means nothing was found.
type mockLocator struct {
	mu      sync.Mutex
	targets []*image.Point // nil entry: not found
	calls   int
	aims    []image.Point
	colors  []vision.ColorRange
	err     error
}

func (m *mockLocator) Locate(frame gocv.Mat, aim image.Point) (vision.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.aims = append(m.aims, aim)
	i := m.calls
	m.calls++
	if m.err != nil {
		return vision.Result{Index: -1}, m.err
	}
	if i >= len(m.targets) || m.targets[i] == nil {
		return vision.Result{Index: -1}, nil
	}
	t := *m.targets[i]
	return vision.Result{
		Found:   true,
		Target:  t,
		Regions: []vision.Region{{Centroid: t, Area: 200}},
	}, nil
}

func (m *mockLocator) SetColorRange(r vision.ColorRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colors = append(m.colors, r)
	return nil
}

func at(x, y int) *image.Point {
	p := image.Pt(x, y)
	return &p
}

type move struct {
	dx, dy float64
	feed   int
}

// mockActuator records moves and disables.
type mockActuator struct {
	mu       sync.Mutex
	moves    []move
	disables int
	sendErr  error
}

func (a *mockActuator) SendMove(dx, dy float64, feedRate int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.moves = append(a.moves, move{dx, dy, feedRate})
	return nil
}

func (a *mockActuator) Disable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disables++
	return nil
}

func (a *mockActuator) Moves() []move {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]move(nil), a.moves...)
}

type mockTelemetry struct {
	steps []StepResult
}

func (m *mockTelemetry) Publish(frame gocv.Mat, step StepResult) {
	m.steps = append(m.steps, step)
}

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

var errCamera = errors.New("camera hiccup")

func newTestLoop(cfg Config, src FrameSource, loc *mockLocator, act *mockActuator) *Loop {
	l, err := New(cfg, Deps{
		Source:   src,
		Locator:  loc,
		Actuator: act,
		Logger:   log.Discard(),
	})
	if err != nil {
		panic(err)
	}
	return l
}
