// Package turret wires a tracking session together: actuator, camera,
// optional aim calibration, control loop, telemetry and dashboard.
package turret

import (
	"errors"
	"strings"
	"time"

	"github.com/teslashibe/go-turret/internal/config"
	"github.com/teslashibe/go-turret/pkg/camera"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/vision"
	"github.com/teslashibe/go-turret/pkg/web"
)

// DefaultCountdown gives the operator time to step away before the platform
// moves.
const DefaultCountdown = 3 * time.Second

// Config holds everything a session needs.
// Flag parsing is done in cmd/turret/main.go; this struct is data only.
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// ConfigPath is the session file the aim and colour range came from.
	ConfigPath string

	// Collaborators.
	Camera        camera.Config
	KlipperSocket string // Klipper API unix socket
	Moonraker     string // Moonraker host or ws:// URL; replaces the socket when set

	// Control.
	Servo        servo.Config
	TemplatePath string        // Crosshair template; empty skips calibration
	Countdown    time.Duration // Pause between setup and the first move

	// Outputs. Empty disables each one.
	TelemetryAddr string // UDP host:port for annotated JPEG frames
	RecordPath    string // Annotated video file
	HTTPAddr      string // Dashboard listen address
}

// DefaultConfig returns a config built from the default session.
func DefaultConfig() Config {
	return FromSession(config.Defaults())
}

// FromSession builds a config around a loaded session file.
func FromSession(s config.Session) Config {
	sc := servo.DefaultConfig()
	sc.Aim = s.Aim.Image()
	sc.Colors = vision.ColorRange(s.HSV)

	cc := camera.DefaultConfig()
	cc.URL = s.Camera

	return Config{
		Camera:        cc,
		KlipperSocket: s.KlipperSocket,
		Servo:         sc,
		Countdown:     DefaultCountdown,
		TelemetryAddr: s.TelemetryAddr,
		HTTPAddr:      web.DefaultAddr,
	}
}

// Session returns the persistable part of c.
func (c *Config) Session() config.Session {
	return config.Session{
		HSV:           config.HSV(c.Servo.Colors),
		Aim:           config.PointFrom(c.Servo.Aim),
		TelemetryAddr: c.TelemetryAddr,
		KlipperSocket: c.KlipperSocket,
		Camera:        c.Camera.URL,
	}
}

// Validate checks that the session can start.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Servo.Validate(); err != nil {
		errs = append(errs, err)
	}
	if problems := c.Camera.Validate(); len(problems) > 0 {
		errs = append(errs, &ConfigError{Field: "Camera", Message: "camera: " + strings.Join(problems, "; ")})
	}
	if c.KlipperSocket == "" && c.Moonraker == "" {
		errs = append(errs, &ConfigError{Field: "KlipperSocket", Message: "a Klipper socket or Moonraker host is required"})
	}
	if c.Countdown < 0 {
		errs = append(errs, &ConfigError{Field: "Countdown", Message: "countdown must not be negative"})
	}
	return errors.Join(errs...)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
