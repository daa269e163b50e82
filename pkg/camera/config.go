// Package camera opens the frame source the turret tracks from: a local
// capture device, a recorded clip or the MJPEG stream a Raspberry Pi camera
// serves with rpicam-vid.
package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// Config describes a frame source.
type Config struct {
	// URL is a device index ("0"), a file path or a stream URL
	// ("tcp://127.0.0.1:8888").
	URL string `json:"url" yaml:"url"`

	// === Capture format ===
	// Requested from local devices and used to build the rpicam-vid command
	// for remote streams. Files keep their own format.
	Width     int `json:"width" yaml:"width"`         // Frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Target FPS

	// Loop replays a file from the start instead of reporting end of stream.
	Loop bool `json:"loop" yaml:"loop"`
}

// Stream defaults.
const (
	DefaultURL        = "tcp://127.0.0.1:8888"
	DefaultStreamPort = 8888
	MaxWidth          = 4608
	MaxHeight         = 2592
)

// DefaultConfig returns the 640x480 stream the aim point defaults assume.
func DefaultConfig() Config {
	return Config{
		URL:       DefaultURL,
		Width:     640,
		Height:    480,
		Framerate: 30,
	}
}

// Kind classifies a source URL.
type Kind int

// Source kinds.
const (
	KindDevice Kind = iota
	KindFile
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindFile:
		return "file"
	default:
		return "stream"
	}
}

// KindOf classifies url the same way OpenVideoCapture does: integers are
// device indices, anything with a scheme is a stream, the rest are files.
func KindOf(url string) Kind {
	if _, err := strconv.Atoi(url); err == nil {
		return KindDevice
	}
	if strings.Contains(url, "://") {
		return KindStream
	}
	return KindFile
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.URL == "" {
		errors = append(errors, "url must not be empty")
	}
	if c.Width < 0 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 0 and %d", MaxHeight))
	}
	if c.Framerate < 0 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 0 and 120")
	}
	if c.Loop && KindOf(c.URL) != KindFile {
		errors = append(errors, "loop only applies to files")
	}

	return errors
}

// RpicamCommand returns the rpicam-vid invocation that serves this format as
// an MJPEG stream on port.
func (c Config) RpicamCommand(port int) string {
	return fmt.Sprintf("rpicam-vid -t 0 --inline --listen -o tcp://0.0.0.0:%d --width %d --height %d --framerate %d --codec mjpeg",
		port, c.Width, c.Height, c.Framerate)
}
