package servo

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/teslashibe/go-turret/pkg/pid"
	"github.com/teslashibe/go-turret/pkg/vision"
)

// Config holds all tunable parameters of the control loop.
type Config struct {
	// Control law
	Law        Law         // LawPID or LawStatic
	StaticGain float64     // mm per pixel, LawStatic only
	X          pid.Gains   // Image X axis, LawPID only
	Y          pid.Gains   // Image Y axis, LawPID only
	Mapping    AxisMapping // Image axes to platform axes

	// Motion
	DeadZone float64 // Error magnitude (px) treated as centred
	MaxStep  float64 // Per-axis displacement cap per iteration (mm)
	FeedRate int     // G1 feed rate (mm/min)

	// Timing
	MaxDt          time.Duration // Upper bound on the controller time step
	MaxEmptyFrames int           // Consecutive empty frames before giving up
	StatsInterval  time.Duration // How often Run logs loop stats (0 = never)

	// Detection
	MinArea float64           // Regions must be strictly larger (px²)
	Aim     image.Point       // Initial aim point
	Colors  vision.ColorRange // Initial HSV range
}

// DefaultConfig returns the configuration the rig was tuned with.
func DefaultConfig() Config {
	return Config{
		Law:        LawPID,
		StaticGain: DefaultStaticGain,
		X:          pid.Gains{Kp: 0.03, Ki: 0, Kd: 0.01, OutMin: -DefaultMaxStep, OutMax: DefaultMaxStep},
		Y:          pid.Gains{Kp: 0.03, Ki: 0, Kd: 0.01, OutMin: -DefaultMaxStep, OutMax: DefaultMaxStep},
		Mapping:    DefaultMapping,

		DeadZone: DefaultDeadZone,
		MaxStep:  DefaultMaxStep,
		FeedRate: DefaultFeedRate,

		MaxDt:          DefaultMaxDt,
		MaxEmptyFrames: DefaultMaxEmptyFrames,
		StatsInterval:  10 * time.Second,

		MinArea: vision.DefaultMinArea,
		Aim:     image.Pt(320, 240),
		Colors:  vision.DefaultColorRange(),
	}
}

// SlowConfig returns a configuration for gentle tracking on a loaded bed.
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.X.Kp, cfg.Y.Kp = 0.015, 0.015
	cfg.X.Kd, cfg.Y.Kd = 0.02, 0.02 // More dampening
	cfg.DeadZone = 8
	cfg.FeedRate = 3000
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.X.Kp, cfg.Y.Kp = 0.05, 0.05
	cfg.X.Ki, cfg.Y.Ki = 0.01, 0.01
	cfg.X.Kd, cfg.Y.Kd = 0.005, 0.005 // Less dampening
	cfg.DeadZone = 3
	cfg.FeedRate = 12000
	return cfg
}

// Preset returns a named configuration: "default", "slow" or "aggressive".
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "slow":
		return SlowConfig(), nil
	case "aggressive":
		return AggressiveConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseLaw(string(c.Law)); err != nil {
		errs = append(errs, err)
	}
	if c.DeadZone < 0 {
		errs = append(errs, fmt.Errorf("dead zone %v must not be negative", c.DeadZone))
	}
	if c.MaxStep <= 0 {
		errs = append(errs, fmt.Errorf("max step %v must be positive", c.MaxStep))
	}
	if c.FeedRate <= 0 {
		errs = append(errs, fmt.Errorf("feed rate %d must be positive", c.FeedRate))
	}
	if c.MaxDt <= 0 {
		errs = append(errs, fmt.Errorf("max dt %v must be positive", c.MaxDt))
	}
	if c.MaxEmptyFrames <= 0 {
		errs = append(errs, fmt.Errorf("max empty frames %d must be positive", c.MaxEmptyFrames))
	}
	if c.MinArea < 0 {
		errs = append(errs, fmt.Errorf("min area %v must not be negative", c.MinArea))
	}
	for _, g := range []struct {
		axis  string
		gains pid.Gains
	}{{"x", c.X}, {"y", c.Y}} {
		if g.gains.OutMin > g.gains.OutMax {
			errs = append(errs, fmt.Errorf("%s output bounds [%v, %v] inverted", g.axis, g.gains.OutMin, g.gains.OutMax))
		}
	}
	if err := c.Colors.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
