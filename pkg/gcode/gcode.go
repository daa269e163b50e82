// Package gcode delivers G-code to the motion platform. A Channel queues
// commands for a single writer goroutine that owns a Transport, so the
// control loop never blocks on the printer for longer than a bounded enqueue.
package gcode

import (
	"fmt"
	"math"
)

// Commands the turret relies on.
const (
	MotorsOn  = "M17" // Energise steppers
	MotorsOff = "M18" // Release steppers
	Relative  = "G91" // Relative positioning
	Absolute  = "G90" // Absolute positioning
	Home      = "G28" // Home all axes
	WaitMoves = "M400"
)

// Move formats a linear move. Displacements use three decimals.
func Move(dx, dy float64, feedRate int) string {
	return fmt.Sprintf("G1 X%.3f Y%.3f F%d", dx, dy, feedRate)
}

// MoveTo formats a linear move without a feed rate.
func MoveTo(x, y float64) string {
	return fmt.Sprintf("G1 X%.3f Y%.3f", x, y)
}

// Feed formats a feed-rate-only move.
func Feed(feedRate int) string {
	return fmt.Sprintf("G1 F%d", feedRate)
}

// XY is a platform coordinate in millimetres.
type XY struct {
	X, Y float64
}

// CirclePath returns points+1 coordinates around a circle, starting and
// ending at angle 0.
func CirclePath(center XY, radius float64, points int) []XY {
	if points < 1 {
		return nil
	}
	path := make([]XY, 0, points+1)
	for i := 0; i <= points; i++ {
		a := 2 * math.Pi * float64(i) / float64(points)
		path = append(path, XY{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		})
	}
	return path
}
