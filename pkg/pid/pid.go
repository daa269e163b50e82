// Package pid implements the per-axis PID controller used to turn a pixel
// error into a bounded platform displacement.
package pid

import "math"

// Gains holds the fixed tuning and output bounds of one axis.
type Gains struct {
	Kp     float64 `json:"kp" yaml:"kp"`           // Proportional gain
	Ki     float64 `json:"ki" yaml:"ki"`           // Integral gain
	Kd     float64 `json:"kd" yaml:"kd"`           // Derivative gain
	OutMin float64 `json:"out_min" yaml:"out_min"` // Lower output bound
	OutMax float64 `json:"out_max" yaml:"out_max"` // Upper output bound
}

// Controller is a PID controller with integral anti-windup and derivative
// suppression on the first sample after a reset.
//
// A Controller is not safe for concurrent use; the control loop owns it.
type Controller struct {
	gains Gains

	// State
	integral  float64
	prevError float64
	first     bool

	// Last contribution breakdown
	p, i, d float64
}

// New creates a controller in the reset state.
func New(g Gains) *Controller {
	return &Controller{gains: g, first: true}
}

// Gains returns the controller tuning.
func (c *Controller) Gains() Gains {
	return c.gains
}

// Calculate returns the bounded output for error e over the time step dt
// (seconds). A non-positive dt yields 0 and leaves the state untouched.
func (c *Controller) Calculate(e, dt float64) float64 {
	if dt <= 0 {
		return 0
	}

	c.p = c.gains.Kp * e

	// Clamp the accumulator, not the term: the integral can never hold more
	// than the output bound could use.
	c.integral += e * dt
	if c.gains.Ki != 0 {
		limit := math.Abs(c.gains.OutMax / c.gains.Ki)
		c.integral = clamp(c.integral, -limit, limit)
	}
	c.i = c.gains.Ki * c.integral

	if c.first {
		c.d = 0
		c.first = false
	} else {
		c.d = c.gains.Kd * (e - c.prevError) / dt
	}
	c.prevError = e

	return clamp(c.p+c.i+c.d, c.gains.OutMin, c.gains.OutMax)
}

// Reset clears the integral and derivative history together.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.first = true
	c.p, c.i, c.d = 0, 0, 0
}

// Armed reports whether a sample has been taken since the last reset.
func (c *Controller) Armed() bool {
	return !c.first
}

// Terms returns the P, I and D contributions of the last Calculate call.
func (c *Controller) Terms() (p, i, d float64) {
	return c.p, c.i, c.d
}

// Integral returns the raw accumulator.
func (c *Controller) Integral() float64 {
	return c.integral
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
