// Package calibrate finds the aim point by locating a printed crosshair in a
// camera frame with normalised template matching.
package calibrate

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/pkg/camera"
)

// MatchThreshold is the minimum TM_CCOEFF_NORMED score accepted as a match.
const MatchThreshold = 0.8

// MaxAttempts bounds how many frames FromSource reads looking for a
// non-empty one.
const MaxAttempts = 50

var (
	// ErrNotFound is returned when no location scores MatchThreshold.
	ErrNotFound = errors.New("calibrate: crosshair not found")

	// ErrNoFrame is returned when the source yields no usable frame.
	ErrNoFrame = errors.New("calibrate: no frame to search")
)

// FrameReader is the part of a frame source calibration needs.
type FrameReader interface {
	Read(dst *gocv.Mat) error
}

// Rewinder is implemented by sources that can restart from the first frame.
type Rewinder interface {
	Rewind() error
}

// LoadTemplate reads the crosshair template as grayscale. The caller closes
// the returned Mat.
func LoadTemplate(path string) (gocv.Mat, error) {
	tmpl := gocv.IMRead(path, gocv.IMReadGrayScale)
	if tmpl.Empty() {
		tmpl.Close()
		return gocv.NewMat(), fmt.Errorf("load crosshair template %q: unreadable or empty", path)
	}
	return tmpl, nil
}

// Locate searches frame for tmpl and returns the centre of the best match,
// its score, and whether the score reached MatchThreshold. Colour inputs are
// converted to grayscale first.
func Locate(frame, tmpl gocv.Mat) (image.Point, float32, bool) {
	if frame.Empty() || tmpl.Empty() || frame.Cols() < tmpl.Cols() || frame.Rows() < tmpl.Rows() {
		return image.Point{}, 0, false
	}

	grayFrame, closeFrame := gray(frame)
	defer closeFrame()
	grayTmpl, closeTmpl := gray(tmpl)
	defer closeTmpl()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(grayFrame, grayTmpl, &result, gocv.TmCcoeffNormed, mask)

	_, score, _, loc := gocv.MinMaxLoc(result)
	center := loc.Add(image.Pt(tmpl.Cols()/2, tmpl.Rows()/2))
	return center, score, score >= MatchThreshold
}

// FromSource locates tmpl in the first non-empty frame of src. Sources that
// implement Rewinder are rewound afterwards so the loop sees that frame too;
// live sources that cannot seek are left where they are.
func FromSource(src FrameReader, tmpl gocv.Mat) (image.Point, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < MaxAttempts && frame.Empty(); i++ {
		if err := src.Read(&frame); err != nil {
			return image.Point{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
		}
	}
	if frame.Empty() {
		return image.Point{}, ErrNoFrame
	}

	p, score, ok := Locate(frame, tmpl)
	if !ok {
		return image.Point{}, fmt.Errorf("%w (best score %.2f < %.2f)", ErrNotFound, score, MatchThreshold)
	}

	if r, isRewinder := src.(Rewinder); isRewinder {
		if err := r.Rewind(); err != nil && !errors.Is(err, camera.ErrNotSeekable) {
			return p, fmt.Errorf("rewind after calibration: %w", err)
		}
	}
	return p, nil
}

// gray returns m as single channel, plus a release func for any copy made.
func gray(m gocv.Mat) (gocv.Mat, func()) {
	switch m.Channels() {
	case 1:
		return m, func() {}
	case 4:
		g := gocv.NewMat()
		gocv.CvtColor(m, &g, gocv.ColorBGRAToGray)
		return g, func() { g.Close() }
	default:
		g := gocv.NewMat()
		gocv.CvtColor(m, &g, gocv.ColorBGRToGray)
		return g, func() { g.Close() }
	}
}
