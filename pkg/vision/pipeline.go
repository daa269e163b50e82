package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// Pipeline chains segmentation and detection for one frame.
type Pipeline struct {
	Segmenter *Segmenter
	Detector  *Detector
}

// NewPipeline builds a pipeline from a colour range and minimum area.
func NewPipeline(r ColorRange, minArea float64) (*Pipeline, error) {
	s := &Segmenter{}
	if err := s.SetColorRange(r); err != nil {
		return nil, err
	}
	return &Pipeline{Segmenter: s, Detector: NewDetector(minArea)}, nil
}

// Locate segments frame and returns the detection relative to aim.
func (p *Pipeline) Locate(frame gocv.Mat, aim image.Point) (Result, error) {
	mask, err := p.Segmenter.Segment(frame)
	defer mask.Close()
	if err != nil {
		return Result{Index: -1}, err
	}
	return p.Detector.Detect(mask, aim), nil
}

// SetColorRange forwards to the segmenter.
func (p *Pipeline) SetColorRange(r ColorRange) error {
	return p.Segmenter.SetColorRange(r)
}
