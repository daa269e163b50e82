package telemetry

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/vision"
)

// Options tune a Publisher.
type Options struct {
	QueueSize int  // Frames buffered ahead of the encoder
	Quality   int  // JPEG quality 1-100
	Overlay   bool // Draw regions, aim point and status text
	Logger    *slog.Logger
}

// DefaultOptions returns a shallow queue: stale debug frames are worthless.
func DefaultOptions() Options {
	return Options{
		QueueSize: 2,
		Quality:   DefaultJPEGQuality,
		Overlay:   true,
	}
}

type job struct {
	img  gocv.Mat
	step servo.StepResult
	at   time.Time
}

// Publisher implements servo.Telemetry. Publish clones the frame and queues
// it for a worker that annotates it and fans it out to the writers; when the
// worker is behind, the frame is dropped.
type Publisher struct {
	opts    Options
	writers []Writer
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}

	seq       atomic.Uint64
	dropped   atomic.Uint64
	lastWarns sync.Map // writer index -> time.Time
}

var _ servo.Telemetry = (*Publisher)(nil)

// NewPublisher starts a publisher feeding writers.
func NewPublisher(opts Options, writers ...Writer) *Publisher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultJPEGQuality
	}
	l := opts.Logger
	if l == nil {
		l = log.Component("telemetry")
	}

	p := &Publisher{
		opts:    opts,
		writers: writers,
		log:     l,
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go p.worker()
	return p
}

// Publish queues frame for the writers. It never blocks.
func (p *Publisher) Publish(frame gocv.Mat, step servo.StepResult) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || len(p.writers) == 0 {
		return
	}

	j := job{img: frame.Clone(), step: step, at: time.Now()}
	select {
	case p.queue <- j:
	default:
		j.img.Close()
		p.dropped.Add(1)
	}
}

// AddWriter attaches w to frames published from now on.
func (p *Publisher) AddWriter(w Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writers = append(p.writers, w)
}

// Dropped returns how many frames were skipped because the worker was busy.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close flushes queued frames and stops the worker. Writers are not closed.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.log.Info("publisher stopped", "frames", p.seq.Load(), "dropped", p.dropped.Load())
}

func (p *Publisher) worker() {
	defer close(p.done)
	for j := range p.queue {
		p.deliver(j)
		j.img.Close()
	}
}

func (p *Publisher) deliver(j job) {
	if p.opts.Overlay {
		annotate(&j.img, j.step)
	}

	p.mu.RLock()
	writers := p.writers
	p.mu.RUnlock()

	f := &Frame{
		Seq:     p.seq.Add(1),
		Time:    j.at,
		Image:   j.img,
		Step:    j.step,
		quality: p.opts.Quality,
	}
	for i, w := range writers {
		if err := w.WriteFrame(f); err != nil {
			p.warn(i, err)
		}
	}
}

// warn logs writer errors at most once per second per writer.
func (p *Publisher) warn(i int, err error) {
	if errors.Is(err, ErrFrameTooLarge) {
		p.log.Debug("frame skipped", "writer", i, "error", err)
		return
	}
	now := time.Now()
	if last, ok := p.lastWarns.Load(i); ok && now.Sub(last.(time.Time)) < time.Second {
		return
	}
	p.lastWarns.Store(i, now)
	p.log.Warn("telemetry write failed", "writer", i, "error", err)
}

var hudColor = color.RGBA{R: 255, G: 255, B: 0}

// annotate draws the detection overlay and a one-line status.
func annotate(img *gocv.Mat, step servo.StepResult) {
	vision.DrawOverlay(img, step.Aim, vision.Result{
		Found:   step.Found,
		Regions: step.Regions,
		Target:  step.Target,
	})

	var text string
	switch {
	case !step.Found:
		text = "no target"
	case step.Command == nil:
		text = fmt.Sprintf("err (%d,%d) centred", step.Error.X, step.Error.Y)
	default:
		text = fmt.Sprintf("err (%d,%d) move %.2f,%.2f", step.Error.X, step.Error.Y, step.Command.DX, step.Command.DY)
	}
	gocv.PutText(img, text, image.Pt(8, 18), gocv.FontHersheyPlain, 1.1, hudColor, 1)
}
