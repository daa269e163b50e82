package servo

import (
	"fmt"

	"github.com/teslashibe/go-turret/pkg/pid"
)

// AxisLaw turns one axis of pixel error into a displacement.
type AxisLaw interface {
	Calculate(e, dt float64) float64
	Reset()
	Armed() bool
}

var _ AxisLaw = (*pid.Controller)(nil)

// Law names a control law.
type Law string

// Available control laws.
const (
	LawPID    Law = "pid"    // Per-axis PID controller
	LawStatic Law = "static" // Fixed proportional gain, no memory
)

// ParseLaw validates a law name.
func ParseLaw(s string) (Law, error) {
	switch l := Law(s); l {
	case LawPID, LawStatic:
		return l, nil
	default:
		return "", fmt.Errorf("unknown control law %q (want pid or static)", s)
	}
}

// StaticGain is the memoryless law: output = K * error.
type StaticGain struct {
	K     float64
	armed bool
}

// Calculate returns K*e. dt is ignored.
func (s *StaticGain) Calculate(e, dt float64) float64 {
	s.armed = true
	return s.K * e
}

// Reset marks the law idle.
func (s *StaticGain) Reset() {
	s.armed = false
}

// Armed reports whether Calculate ran since the last Reset.
func (s *StaticGain) Armed() bool {
	return s.armed
}

// newLaws builds the X and Y laws for cfg.
func newLaws(cfg Config) [2]AxisLaw {
	if cfg.Law == LawStatic {
		return [2]AxisLaw{&StaticGain{K: cfg.StaticGain}, &StaticGain{K: cfg.StaticGain}}
	}
	return [2]AxisLaw{pid.New(cfg.X), pid.New(cfg.Y)}
}

// AxisState is the per-axis controller state.
type AxisState int

// Axis states.
const (
	AxisIdle  AxisState = iota // Reset; next sample has no derivative
	AxisArmed                  // Tracking; holds integral and previous error
)

func (s AxisState) String() string {
	if s == AxisArmed {
		return "armed"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s AxisState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func stateOf(l AxisLaw) AxisState {
	if l.Armed() {
		return AxisArmed
	}
	return AxisIdle
}
