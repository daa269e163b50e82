package servo

import (
	"fmt"
	"strings"
)

// AxisMapping converts controller outputs, which live in image axes, into
// platform axes. The relationship depends on how the camera is mounted, so
// it is configured per rig rather than baked into the loop.
type AxisMapping struct {
	SwapXY  bool // Platform X follows image Y and vice versa
	InvertX bool // Negate platform X (after swap)
	InvertY bool // Negate platform Y (after swap)
}

// DefaultMapping negates both axes: a downward-looking camera fixed above a
// moving bed has to drive the bed opposite to the error.
var DefaultMapping = AxisMapping{InvertX: true, InvertY: true}

// Apply maps the image-axis outputs (ox, oy) to platform axes.
func (m AxisMapping) Apply(ox, oy float64) (px, py float64) {
	px, py = ox, oy
	if m.SwapXY {
		px, py = py, px
	}
	if m.InvertX {
		px = -px
	}
	if m.InvertY {
		py = -py
	}
	return px, py
}

// String renders the mapping in the form ParseAxisMapping accepts, e.g.
// "-x,-y" or "y,-x".
func (m AxisMapping) String() string {
	src := [2]string{"x", "y"}
	if m.SwapXY {
		src[0], src[1] = src[1], src[0]
	}
	if m.InvertX {
		src[0] = "-" + src[0]
	}
	if m.InvertY {
		src[1] = "-" + src[1]
	}
	return src[0] + "," + src[1]
}

// ParseAxisMapping parses "<platform X source>,<platform Y source>" where
// each source is an image axis with an optional sign: "x,y" is identity,
// "-x,-y" inverts both and "y,x" swaps them.
func ParseAxisMapping(s string) (AxisMapping, error) {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(s, " ", "")), ",")
	if len(parts) != 2 {
		return AxisMapping{}, fmt.Errorf("axis mapping %q: want two comma-separated axes", s)
	}

	var (
		m      AxisMapping
		axes   [2]string
		invert [2]bool
	)
	for i, p := range parts {
		p = strings.TrimPrefix(p, "+")
		if strings.HasPrefix(p, "-") {
			invert[i] = true
			p = p[1:]
		}
		if p != "x" && p != "y" {
			return AxisMapping{}, fmt.Errorf("axis mapping %q: unknown axis %q", s, parts[i])
		}
		axes[i] = p
	}
	if axes[0] == axes[1] {
		return AxisMapping{}, fmt.Errorf("axis mapping %q: both platform axes follow %s", s, axes[0])
	}

	m.SwapXY = axes[0] == "y"
	m.InvertX, m.InvertY = invert[0], invert[1]
	return m, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m AxisMapping) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AxisMapping) UnmarshalText(b []byte) error {
	parsed, err := ParseAxisMapping(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
