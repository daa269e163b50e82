// Package telemetry streams annotated debug frames off the control loop
// without ever blocking it.
package telemetry

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/pkg/servo"
)

// DefaultJPEGQuality keeps a 640x480 frame well under one UDP datagram.
const DefaultJPEGQuality = 50

// Frame is one annotated frame handed to every Writer. Image is only valid
// during WriteFrame.
type Frame struct {
	Seq   uint64
	Time  time.Time
	Image gocv.Mat
	Step  servo.StepResult

	quality int
	jpeg    []byte
	jpegErr error
	encoded bool
}

// JPEG encodes Image once and returns the same bytes to every caller.
// Writers are called sequentially, so no locking is needed.
func (f *Frame) JPEG() ([]byte, error) {
	if f.encoded {
		return f.jpeg, f.jpegErr
	}
	f.encoded = true

	q := f.quality
	if q <= 0 {
		q = DefaultJPEGQuality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.Image, []int{gocv.IMWriteJpegQuality, q})
	if err != nil {
		f.jpegErr = fmt.Errorf("encode jpeg: %w", err)
		return nil, f.jpegErr
	}
	defer buf.Close()

	b := buf.GetBytes()
	f.jpeg = make([]byte, len(b))
	copy(f.jpeg, b)
	return f.jpeg, nil
}

// Writer consumes published frames.
type Writer interface {
	WriteFrame(f *Frame) error
}
