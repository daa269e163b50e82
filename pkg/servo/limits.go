// Package servo runs the closed visual-servo loop: it reads frames, locates
// the colour target, turns the pixel error into a bounded XY displacement and
// sends it to the platform.
// This file defines the mechanical limits of the rig.
package servo

import (
	"math"
	"time"
)

// Rig limits used by DefaultConfig.
const (
	// DefaultDeadZone is the error magnitude, in pixels, at or below which the
	// target counts as centred and no move is sent.
	DefaultDeadZone = 5.0

	// DefaultMaxStep caps the displacement of one axis per iteration (mm).
	// At ~30 fps this bounds the platform to about 150 mm/s of demand.
	DefaultMaxStep = 5.0

	// DefaultFeedRate is the G1 feed rate in mm/min (100 mm/s).
	DefaultFeedRate = 6000

	// DefaultMaxDt bounds the time step fed to the controllers so a stall
	// in the frame source does not produce a derivative or integral spike.
	DefaultMaxDt = 100 * time.Millisecond

	// DefaultMaxEmptyFrames is the number of consecutive empty frames
	// tolerated before the stream is declared lost.
	DefaultMaxEmptyFrames = 50

	// DefaultStaticGain converts pixels to millimetres for the static law.
	// 100 px of error moves the platform 0.1 mm.
	DefaultStaticGain = 0.001
)

// clampStep bounds v to ±limit.
func clampStep(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
