package gcode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-turret/internal/log"
)

// Options tune a Channel.
type Options struct {
	QueueSize      int           // Commands buffered ahead of the writer
	EnqueueTimeout time.Duration // How long SendCommand may block
	DrainTimeout   time.Duration // How long Close waits for the queue to empty
	Logger         *slog.Logger
}

// DefaultOptions returns options sized for a ~30 fps loop: a second of moves
// can queue, and a full queue costs the loop at most 5 ms.
func DefaultOptions() Options {
	return Options{
		QueueSize:      32,
		EnqueueTimeout: 5 * time.Millisecond,
		DrainTimeout:   2 * time.Second,
	}
}

// Channel is an at-most-once G-code command channel. Replies are logged by
// the transport and never correlated with commands.
type Channel struct {
	t    Transport
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	queue     chan string
	done      chan struct{}
	cancel    context.CancelFunc
	connected bool
	disabled  bool
	closed    bool

	failure atomic.Pointer[error]
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewChannel creates a channel over t. Zero option fields take defaults.
func NewChannel(t Transport, opts Options) *Channel {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = def.EnqueueTimeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	l := opts.Logger
	if l == nil {
		l = log.Component("gcode")
	}
	return &Channel{t: t, opts: opts, log: l}
}

// Connect dials the transport, starts the writer and queues motor enable and
// relative positioning.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.connected {
		return nil
	}
	if err := c.t.Dial(ctx); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(context.Background())
	c.queue = make(chan string, c.opts.QueueSize)
	c.done = make(chan struct{})
	c.cancel = cancel
	c.connected = true
	go c.writer(wctx, c.queue, c.done)

	for _, cmd := range []string{MotorsOn, Relative} {
		if err := c.enqueueLocked(cmd, c.opts.DrainTimeout); err != nil {
			return fmt.Errorf("queue %s: %w", cmd, err)
		}
	}
	return nil
}

// SendCommand queues one command. It returns ErrQueueFull if the writer is
// too far behind to accept it within EnqueueTimeout.
func (c *Channel) SendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(cmd, c.opts.EnqueueTimeout)
}

// SendMove queues a relative move.
func (c *Channel) SendMove(dx, dy float64, feedRate int) error {
	return c.SendCommand(Move(dx, dy, feedRate))
}

// Disable queues M18 once. Later calls are no-ops.
func (c *Channel) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableLocked()
}

func (c *Channel) disableLocked() error {
	if c.disabled {
		return nil
	}
	if err := c.enqueueLocked(MotorsOff, c.opts.DrainTimeout); err != nil {
		return err
	}
	c.disabled = true
	c.log.Info("motors disabled")
	return nil
}

// Close disables the motors if that has not happened yet, waits up to
// DrainTimeout for queued commands and closes the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if !c.connected {
		c.closed = true
		return nil
	}

	if err := c.disableLocked(); err != nil {
		c.log.Warn("disable on close failed", "error", err)
	}
	c.closed = true
	close(c.queue)

	select {
	case <-c.done:
	case <-time.After(c.opts.DrainTimeout):
		c.log.Warn("drain timed out", "pending", len(c.queue))
		c.cancel()
	}
	err := c.t.Close()
	<-c.done
	c.cancel()

	c.log.Info("closed", "sent", c.sent.Load(), "dropped", c.dropped.Load())
	return err
}

// Connected reports whether the channel is accepting commands.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed && c.failure.Load() == nil
}

// Err returns the write error that disconnected the channel, if any.
func (c *Channel) Err() error {
	if p := c.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Sent returns how many commands reached the transport.
func (c *Channel) Sent() uint64 {
	return c.sent.Load()
}

func (c *Channel) enqueueLocked(cmd string, timeout time.Duration) error {
	switch {
	case c.closed:
		return ErrClosed
	case !c.connected:
		return ErrNotConnected
	}
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	select {
	case c.queue <- cmd:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.queue <- cmd:
		return nil
	case <-timer.C:
		c.dropped.Add(1)
		return ErrQueueFull
	}
}

// writer owns the transport. After the first write failure it drops what
// is left in the queue.
func (c *Channel) writer(ctx context.Context, queue <-chan string, done chan<- struct{}) {
	defer close(done)
	for cmd := range queue {
		if c.failure.Load() != nil || ctx.Err() != nil {
			c.dropped.Add(1)
			continue
		}
		if err := c.t.Write(ctx, cmd); err != nil {
			c.failure.Store(&err)
			c.dropped.Add(1)
			c.log.Error("write failed, channel disconnected", "command", cmd, "error", err)
			continue
		}
		c.sent.Add(1)
		c.log.Debug("sent", "command", cmd)
	}
}
