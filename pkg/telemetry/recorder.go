package telemetry

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// Recorder writes annotated frames to a video file. The file is created on
// the first frame so it takes that frame's size.
type Recorder struct {
	Path string
	FPS  float64

	w *gocv.VideoWriter
}

// NewRecorder creates a recorder for path. The codec follows the extension:
// MJPG for .avi, mp4v otherwise.
func NewRecorder(path string, fps float64) *Recorder {
	if fps <= 0 {
		fps = 30
	}
	return &Recorder{Path: path, FPS: fps}
}

func (r *Recorder) codec() string {
	if strings.EqualFold(filepath.Ext(r.Path), ".avi") {
		return "MJPG"
	}
	return "mp4v"
}

// WriteFrame appends f.Image.
func (r *Recorder) WriteFrame(f *Frame) error {
	if r.w == nil {
		w, err := gocv.VideoWriterFile(r.Path, r.codec(), r.FPS, f.Image.Cols(), f.Image.Rows(), true)
		if err != nil {
			return fmt.Errorf("create recording %q: %w", r.Path, err)
		}
		if !w.IsOpened() {
			w.Close()
			return fmt.Errorf("create recording %q: writer not opened", r.Path)
		}
		r.w = w
	}
	return r.w.Write(f.Image)
}

// Close finalises the file.
func (r *Recorder) Close() error {
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	return err
}
