// Package config provides the session configuration for go-turret commands:
// the HSV target bounds, the aim point and the endpoints of the collaborators.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default session values. The HSV bounds and aim point match the rig the
// tracker was first tuned on.
const (
	DefaultKlipperSocket = "/home/ml/printer_data/comms/klippy.sock"
	DefaultCamera        = "tcp://127.0.0.1:8888"
	DefaultTelemetryHost = "192.168.0.230"
	DefaultTelemetryPort = "5005"
	DefaultAimX          = 320
	DefaultAimY          = 240
)

// HSV holds the six inclusive colour bounds of the target.
// Field layout matches vision.ColorRange so the two convert directly.
type HSV struct {
	HMin int `yaml:"h_min" json:"h_min"`
	SMin int `yaml:"s_min" json:"s_min"`
	VMin int `yaml:"v_min" json:"v_min"`
	HMax int `yaml:"h_max" json:"h_max"`
	SMax int `yaml:"s_max" json:"s_max"`
	VMax int `yaml:"v_max" json:"v_max"`
}

// Point is a yaml-friendly 2D pixel coordinate.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Image converts p to an image.Point.
func (p Point) Image() image.Point {
	return image.Pt(p.X, p.Y)
}

// PointFrom converts an image.Point.
func PointFrom(p image.Point) Point {
	return Point{X: p.X, Y: p.Y}
}

// Session is everything loaded once at session start.
type Session struct {
	HSV           HSV    `yaml:"hsv" json:"hsv"`
	Aim           Point  `yaml:"aim_center" json:"aim_center"`
	TelemetryAddr string `yaml:"telemetry_addr" json:"telemetry_addr"`
	KlipperSocket string `yaml:"klipper_socket" json:"klipper_socket"`
	Camera        string `yaml:"camera" json:"camera"`
}

// Defaults returns the hardcoded fallback session.
func Defaults() Session {
	return Session{
		HSV: HSV{
			HMin: 130, SMin: 75, VMin: 165,
			HMax: 150, SMax: 255, VMax: 255,
		},
		Aim:           Point{X: DefaultAimX, Y: DefaultAimY},
		TelemetryAddr: net.JoinHostPort(DefaultTelemetryHost, DefaultTelemetryPort),
		KlipperSocket: DefaultKlipperSocket,
		Camera:        DefaultCamera,
	}
}

// Load reads a session file. Fields missing from the file keep their
// defaults. A missing file is not an error. A malformed file yields the
// defaults together with the parse error so the caller can log it and carry on.
// YAML and JSON files are both accepted.
func Load(path string) (Session, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read config %s: %w", path, err)
	}

	parsed := Defaults()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	parsed.TelemetryAddr = WithTelemetryPort(parsed.TelemetryAddr)
	return parsed, nil
}

// Save writes the session as YAML, creating parent directories as needed.
func Save(path string, s Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides endpoint fields from TURRET_* environment variables.
func (s Session) ApplyEnv() Session {
	s.KlipperSocket = KlipperSocket(s.KlipperSocket)
	s.Camera = Camera(s.Camera)
	s.TelemetryAddr = TelemetryAddr(s.TelemetryAddr)
	return s
}

// KlipperSocket returns the Klipper API socket path from TURRET_KLIPPER_SOCKET.
// Falls back to the provided default if not set.
func KlipperSocket(defaultPath string) string {
	if p := os.Getenv("TURRET_KLIPPER_SOCKET"); p != "" {
		return p
	}
	return defaultPath
}

// Camera returns the frame source from TURRET_CAMERA.
// Falls back to the provided default if not set.
func Camera(defaultSource string) string {
	if c := os.Getenv("TURRET_CAMERA"); c != "" {
		return c
	}
	return defaultSource
}

// TelemetryAddr returns the debug relay address from TURRET_TELEMETRY_ADDR.
// A bare host gets the default telemetry port.
func TelemetryAddr(defaultAddr string) string {
	if a := os.Getenv("TURRET_TELEMETRY_ADDR"); a != "" {
		return WithTelemetryPort(a)
	}
	return defaultAddr
}

// WithTelemetryPort appends the default telemetry port to a bare host.
func WithTelemetryPort(addr string) string {
	if addr == "" {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, DefaultTelemetryPort)
}
