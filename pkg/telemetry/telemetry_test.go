package telemetry

import (
	"errors"
	"image"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/servo"
)

func testImage() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 48, 64, gocv.MatTypeCV8UC3)
}

func TestUDPWriter_SendsJPEG(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	w, err := DialUDP(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer w.Close()

	img := testImage()
	defer img.Close()
	if err := w.WriteFrame(&Frame{Image: img}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	buf := make([]byte, MaxDatagram+1)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n < 4 || buf[0] != 0xFF || buf[1] != 0xD8 {
		t.Errorf("datagram is not a JPEG (%d bytes, % x...)", n, buf[:min(n, 4)])
	}
}

func TestUDPWriter_SkipsOversizedFrame(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	w, err := DialUDP(ln.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := []struct {
		size int
		want error
	}{
		{MaxDatagram, nil},
		{MaxDatagram + 1, ErrFrameTooLarge},
	}
	for _, tc := range tests {
		f := &Frame{jpeg: make([]byte, tc.size), encoded: true}
		if err := w.WriteFrame(f); !errors.Is(err, tc.want) {
			t.Errorf("size %d: got %v, want %v", tc.size, err, tc.want)
		}
	}
}

func TestFrame_JPEGEncodedOnce(t *testing.T) {
	img := testImage()
	defer img.Close()
	f := &Frame{Image: img, quality: 50}

	a, err := f.JPEG()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := f.JPEG()
	if &a[0] != &b[0] {
		t.Error("expected the cached buffer on the second call")
	}

	decoded, err := gocv.IMDecode(a, gocv.IMReadColor)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()
	if decoded.Cols() != 64 || decoded.Rows() != 48 {
		t.Errorf("decoded size %dx%d", decoded.Cols(), decoded.Rows())
	}
}

// mockWriter collects frame metadata.
type mockWriter struct {
	mu    sync.Mutex
	seqs  []uint64
	sizes []int
	err   error
}

func (m *mockWriter) WriteFrame(f *Frame) error {
	data, err := f.JPEG()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs = append(m.seqs, f.Seq)
	m.sizes = append(m.sizes, len(data))
	return m.err
}

func TestPublisher_FansOut(t *testing.T) {
	a, b := &mockWriter{}, &mockWriter{err: errors.New("unplugged")}
	opts := DefaultOptions()
	opts.QueueSize = 8
	opts.Logger = log.Discard()
	p := NewPublisher(opts, a, b)

	img := testImage()
	defer img.Close()
	step := servo.StepResult{
		Found:   true,
		Aim:     image.Pt(32, 24),
		Target:  image.Pt(10, 10),
		Error:   image.Pt(-22, -14),
		Command: &servo.MotionCommand{DX: 0.02, DY: 0.01, FeedRate: 6000},
	}
	for i := 0; i < 3; i++ {
		p.Publish(img, step)
	}
	p.Close()

	// Publish after Close is ignored.
	p.Publish(img, step)

	total := uint64(len(a.seqs)) + p.Dropped()
	if total != 3 {
		t.Errorf("delivered %d + dropped %d, want 3", len(a.seqs), p.Dropped())
	}
	if len(a.seqs) != len(b.seqs) {
		t.Errorf("writers saw %d and %d frames", len(a.seqs), len(b.seqs))
	}
	for i, s := range a.seqs {
		if s != uint64(i+1) {
			t.Errorf("seq %d: got %d", i, s)
		}
	}
	if img.Empty() {
		t.Error("publisher must not consume the caller's frame")
	}
}

func TestPublisher_NoWriters(t *testing.T) {
	p := NewPublisher(Options{Logger: log.Discard()})
	img := testImage()
	defer img.Close()
	p.Publish(img, servo.StepResult{})
	p.Close()
	p.Close()
}

func TestPublisher_AddWriter(t *testing.T) {
	p := NewPublisher(Options{Logger: log.Discard()})
	img := testImage()
	defer img.Close()

	p.Publish(img, servo.StepResult{})
	w := &mockWriter{}
	p.AddWriter(w)
	p.Publish(img, servo.StepResult{})
	p.Close()

	if len(w.seqs) != 1 {
		t.Errorf("late writer saw %d frames, want 1", len(w.seqs))
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.avi")
	r := NewRecorder(path, 10)
	if r.codec() != "MJPG" {
		t.Errorf("codec: got %q", r.codec())
	}

	img := testImage()
	defer img.Close()
	for i := 0; i < 3; i++ {
		if err := r.WriteFrame(&Frame{Image: img}); err != nil {
			t.Skipf("video writer unavailable: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer vc.Close()
	if n := int(vc.Get(gocv.VideoCaptureFrameCount)); n != 3 {
		t.Errorf("frames: got %d, want 3", n)
	}
}
