package camera

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"0", KindDevice},
		{"2", KindDevice},
		{"tcp://127.0.0.1:8888", KindStream},
		{"rtsp://cam/live", KindStream},
		{"clips/target.mp4", KindFile},
		{"/tmp/run.avi", KindFile},
	}
	for _, tc := range tests {
		if got := KindOf(tc.url); got != tc.want {
			t.Errorf("KindOf(%q): got %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}

	bad := Config{URL: "", Width: -1, Framerate: 500}
	if errs := bad.Validate(); len(errs) != 3 {
		t.Errorf("got %d errors (%v), want 3", len(errs), errs)
	}

	stream := DefaultConfig()
	stream.Loop = true
	if errs := stream.Validate(); len(errs) != 1 {
		t.Errorf("loop on a stream: got %v", errs)
	}
}

func TestWithFormat(t *testing.T) {
	base := DefaultConfig()
	base.URL = "clip.mp4"
	base.Loop = true

	for _, name := range FormatNames() {
		cfg, err := base.WithFormat(name)
		if err != nil {
			t.Fatalf("format %q: %v", name, err)
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("format %q invalid: %v", name, errs)
		}
		if cfg.URL != base.URL || !cfg.Loop {
			t.Errorf("format %q dropped source settings: %+v", name, cfg)
		}
	}

	cfg, err := base.WithFormat("hd")
	if err != nil || cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("hd: got %+v, %v", cfg, err)
	}
	if _, err := base.WithFormat("8k"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRpicamCommand(t *testing.T) {
	got := DefaultConfig().RpicamCommand(8888)
	for _, want := range []string{"--listen", "tcp://0.0.0.0:8888", "--width 640", "--height 480", "--framerate 30", "--codec mjpeg"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q missing %q", got, want)
		}
	}
}

// writeClip records n solid frames, each brighter than the last.
func writeClip(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")
	w, err := gocv.VideoWriterFile(path, "MJPG", 10, 64, 48, true)
	if err != nil || !w.IsOpened() {
		t.Skipf("video writer unavailable: %v", err)
	}
	for i := 0; i < n; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i*40), 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
		w.Write(frame)
		frame.Close()
	}
	w.Close()
	return path
}

func TestSource_FileEndOfStream(t *testing.T) {
	path := writeClip(t, 4)
	src, err := Open(Config{URL: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.Kind() != KindFile {
		t.Errorf("kind: got %v", src.Kind())
	}

	frame := gocv.NewMat()
	defer frame.Close()

	read := 0
	for {
		err := src.Read(&frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if frame.Empty() {
			t.Fatal("file source returned an empty frame before EOF")
		}
		read++
		if read > 10 {
			t.Fatal("no EOF")
		}
	}
	if read != 4 {
		t.Errorf("frames: got %d, want 4", read)
	}

	if err := src.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if err := src.Read(&frame); err != nil || frame.Empty() {
		t.Errorf("read after rewind: err %v empty %v", err, frame.Empty())
	}
}

func TestSource_FileLoops(t *testing.T) {
	path := writeClip(t, 2)
	src, err := Open(Config{URL: path, Loop: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	for i := 0; i < 7; i++ {
		if err := src.Read(&frame); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(Config{URL: filepath.Join(t.TempDir(), "absent.mp4")}); err == nil {
		t.Error("expected error for a missing file")
	}
}
