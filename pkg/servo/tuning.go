package servo

import (
	"image"

	"github.com/teslashibe/go-turret/pkg/vision"
)

// update is a configuration change waiting for the next iteration.
type update func(l *Loop)

// AdjustAim moves the aim point by (dx, dy) pixels. The change takes effect
// at the start of the next iteration.
func (l *Loop) AdjustAim(dx, dy int) {
	l.enqueue(func(l *Loop) {
		l.aim = l.aim.Add(image.Pt(dx, dy))
		l.log.Info("aim adjusted", "x", l.aim.X, "y", l.aim.Y)
	})
}

// SetAim replaces the aim point from the next iteration on.
func (l *Loop) SetAim(p image.Point) {
	l.enqueue(func(l *Loop) {
		l.aim = p
		l.log.Info("aim set", "x", p.X, "y", p.Y)
	})
}

// SetColorRange replaces the HSV range from the next iteration on. The range
// is validated immediately.
func (l *Loop) SetColorRange(r vision.ColorRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	l.enqueue(func(l *Loop) {
		if err := l.loc.SetColorRange(r); err != nil {
			l.log.Warn("color range rejected", "error", err)
			return
		}
		l.colors = r
		l.log.Info("color range set", "range", r)
	})
	return nil
}

// Aim returns the aim point in effect.
func (l *Loop) Aim() image.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aim
}

// ColorRange returns the HSV range in effect.
func (l *Loop) ColorRange() vision.ColorRange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.colors
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.snapshot()
}

func (l *Loop) enqueue(u update) {
	l.mu.Lock()
	l.pending = append(l.pending, u)
	l.mu.Unlock()
}

// applyPending runs queued updates. Only the loop goroutine calls it.
func (l *Loop) applyPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.pending {
		u(l)
	}
	l.pending = l.pending[:0]
}
