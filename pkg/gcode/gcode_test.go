package gcode

import (
	"math"
	"testing"
)

func TestMove(t *testing.T) {
	tests := []struct {
		dx, dy float64
		feed   int
		want   string
	}{
		{0.1, -0.05, 6000, "G1 X0.100 Y-0.050 F6000"},
		{-5, 5, 6000, "G1 X-5.000 Y5.000 F6000"},
		{1.23456, 0, 12000, "G1 X1.235 Y0.000 F12000"},
		{0, 0, 3000, "G1 X0.000 Y0.000 F3000"},
	}
	for _, tc := range tests {
		if got := Move(tc.dx, tc.dy, tc.feed); got != tc.want {
			t.Errorf("Move(%v, %v, %d): got %q, want %q", tc.dx, tc.dy, tc.feed, got, tc.want)
		}
	}
}

func TestCirclePath(t *testing.T) {
	path := CirclePath(XY{60, 60}, 25, 30)
	if len(path) != 31 {
		t.Fatalf("len: got %d, want 31", len(path))
	}
	first, last := path[0], path[len(path)-1]
	if math.Abs(first.X-85) > 1e-9 || math.Abs(first.Y-60) > 1e-9 {
		t.Errorf("first: got %+v, want {85 60}", first)
	}
	if math.Abs(last.X-first.X) > 1e-9 || math.Abs(last.Y-first.Y) > 1e-9 {
		t.Errorf("path does not close: %+v vs %+v", last, first)
	}
	for i, p := range path {
		if r := math.Hypot(p.X-60, p.Y-60); math.Abs(r-25) > 1e-9 {
			t.Errorf("point %d radius %v", i, r)
		}
	}
	if CirclePath(XY{}, 1, 0) != nil {
		t.Error("expected nil for zero points")
	}
}
