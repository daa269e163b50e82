package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when asked to segment an empty Mat.
var ErrEmptyFrame = errors.New("empty frame")

// Segmenter turns a BGR frame into a binary target mask.
type Segmenter struct {
	colors ColorRange
}

// NewSegmenter creates a segmenter for the given range.
func NewSegmenter(r ColorRange) *Segmenter {
	return &Segmenter{colors: r}
}

// ColorRange returns the active range.
func (s *Segmenter) ColorRange() ColorRange {
	return s.colors
}

// SetColorRange replaces the active range. Only call it between frames.
func (s *Segmenter) SetColorRange(r ColorRange) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid color range: %w", err)
	}
	s.colors = r
	return nil
}

// Segment converts a BGR frame to HSV and thresholds it. The returned mask is
// 8UC1 with 255 where every channel is inside its closed interval. The caller
// owns the mask and must Close it.
func (s *Segmenter) Segment(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	return s.SegmentHSV(hsv)
}

// SegmentHSV thresholds a frame that is already in HSV.
func (s *Segmenter) SegmentHSV(hsv gocv.Mat) (gocv.Mat, error) {
	if hsv.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, s.colors.Lower(), s.colors.Upper(), &mask)
	return mask, nil
}
