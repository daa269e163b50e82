// Package vision segments colour targets out of camera frames and picks the
// one closest to the aim point.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Channel limits of OpenCV's 8-bit HSV representation.
const (
	MaxHue        = 179
	MaxSaturation = 255
	MaxValue      = 255
)

// ColorRange holds inclusive lower and upper HSV bounds.
type ColorRange struct {
	HMin int `json:"h_min"`
	SMin int `json:"s_min"`
	VMin int `json:"v_min"`
	HMax int `json:"h_max"`
	SMax int `json:"s_max"`
	VMax int `json:"v_max"`
}

// DefaultColorRange returns the magenta marker range the rig is tuned for.
func DefaultColorRange() ColorRange {
	return ColorRange{
		HMin: 130, SMin: 75, VMin: 165,
		HMax: 150, SMax: 255, VMax: 255,
	}
}

// Validate checks every bound is inside its channel and min <= max.
func (r ColorRange) Validate() error {
	checks := []struct {
		name   string
		lo, hi int
		limit  int
	}{
		{"hue", r.HMin, r.HMax, MaxHue},
		{"saturation", r.SMin, r.SMax, MaxSaturation},
		{"value", r.VMin, r.VMax, MaxValue},
	}
	for _, c := range checks {
		if c.lo < 0 || c.hi > c.limit {
			return fmt.Errorf("%s bounds [%d, %d] outside [0, %d]", c.name, c.lo, c.hi, c.limit)
		}
		if c.lo > c.hi {
			return fmt.Errorf("%s min %d greater than max %d", c.name, c.lo, c.hi)
		}
	}
	return nil
}

// Contains reports whether an HSV sample falls inside the range.
func (r ColorRange) Contains(h, s, v int) bool {
	return h >= r.HMin && h <= r.HMax &&
		s >= r.SMin && s <= r.SMax &&
		v >= r.VMin && v <= r.VMax
}

// Lower returns the lower bound as a scalar for gocv.InRangeWithScalar.
func (r ColorRange) Lower() gocv.Scalar {
	return gocv.NewScalar(float64(r.HMin), float64(r.SMin), float64(r.VMin), 0)
}

// Upper returns the upper bound as a scalar for gocv.InRangeWithScalar.
func (r ColorRange) Upper() gocv.Scalar {
	return gocv.NewScalar(float64(r.HMax), float64(r.SMax), float64(r.VMax), 0)
}
