package camera

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
)

// ErrNotSeekable is returned when rewinding a live source.
var ErrNotSeekable = errors.New("camera: source is not seekable")

// Source is an open frame source.
type Source struct {
	cfg  Config
	kind Kind
	cap  *gocv.VideoCapture
	log  *slog.Logger
}

// Open opens the source described by cfg.
func Open(cfg Config) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}

	kind := KindOf(cfg.URL)
	vc, err := gocv.OpenVideoCapture(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s %q: %w", kind, cfg.URL, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		if kind == KindStream {
			return nil, fmt.Errorf("open stream %q: not reachable (is `%s` running on the camera host?)",
				cfg.URL, cfg.RpicamCommand(DefaultStreamPort))
		}
		return nil, fmt.Errorf("open %s %q: not opened", kind, cfg.URL)
	}

	if kind == KindDevice {
		if cfg.Width > 0 && cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.Framerate > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
		}
	}

	s := &Source{
		cfg:  cfg,
		kind: kind,
		cap:  vc,
		log:  log.Component("camera"),
	}
	s.log.Info("opened", "kind", kind, "url", cfg.URL,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)))
	return s, nil
}

// Kind reports what sort of source this is.
func (s *Source) Kind() Kind {
	return s.kind
}

// Read grabs the next frame into dst. Files return io.EOF once exhausted
// unless the config loops them. A failed grab on a live source leaves dst
// empty and returns nil.
func (s *Source) Read(dst *gocv.Mat) error {
	if s.cap.Read(dst) && !dst.Empty() {
		return nil
	}
	if s.kind != KindFile {
		return nil
	}
	if !s.cfg.Loop {
		return io.EOF
	}

	if err := s.Rewind(); err != nil {
		return err
	}
	if !s.cap.Read(dst) || dst.Empty() {
		return io.EOF
	}
	return nil
}

// Rewind seeks a file back to its first frame.
func (s *Source) Rewind() error {
	return s.Seek(0)
}

// Seek positions a file at frame n.
func (s *Source) Seek(n int) error {
	if s.kind != KindFile {
		return ErrNotSeekable
	}
	s.cap.Set(gocv.VideoCapturePosFrames, float64(n))
	return nil
}

// FrameCount returns the number of frames in a file, or 0 for live sources.
func (s *Source) FrameCount() int {
	if s.kind != KindFile {
		return 0
	}
	return int(s.cap.Get(gocv.VideoCaptureFrameCount))
}

// Close releases the capture.
func (s *Source) Close() error {
	return s.cap.Close()
}
