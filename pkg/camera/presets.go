package camera

import (
	"fmt"
	"sort"
)

// Format is a capture resolution and rate.
type Format struct {
	Width     int
	Height    int
	Framerate int
}

// Capture formats. The aim point, dead zone and minimum area are tuned for
// vga; switching format means re-running calibration.
var formats = map[string]Format{
	"vga":  {Width: 640, Height: 480, Framerate: 30},
	"hd":   {Width: 1280, Height: 720, Framerate: 30},
	"fast": {Width: 320, Height: 240, Framerate: 60},
	// Binned full-sensor mode of the Camera Module 3.
	"wide": {Width: 2304, Height: 1296, Framerate: 56},
}

// FormatNames returns the known format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFormat returns cfg with the named format applied. The URL and loop
// setting are kept.
func (c Config) WithFormat(name string) (Config, error) {
	f, ok := formats[name]
	if !ok {
		return c, fmt.Errorf("unknown camera format %q (have %v)", name, FormatNames())
	}
	c.Width, c.Height, c.Framerate = f.Width, f.Height, f.Framerate
	return c, nil
}
