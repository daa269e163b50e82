package pid

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestCalculate_NonPositiveDt(t *testing.T) {
	c := New(Gains{Kp: 1, Ki: 1, Kd: 1, OutMin: -10, OutMax: 10})

	for _, dt := range []float64{0, -0.01, -1} {
		if got := c.Calculate(50, dt); got != 0 {
			t.Errorf("Calculate(50, %v): got %v, want 0", dt, got)
		}
	}
	if c.Armed() {
		t.Error("non-positive dt should not arm the controller")
	}
	if c.Integral() != 0 {
		t.Errorf("integral should be untouched, got %v", c.Integral())
	}
}

// Scenario: error=100, kp=0.03, ki=0, kd=0.01, dt=0.033, prior error=80.
func TestCalculate_ClampedDerivativeScenario(t *testing.T) {
	c := New(Gains{Kp: 0.03, Ki: 0, Kd: 0.01, OutMin: -5, OutMax: 5})
	c.Calculate(80, 0.033)

	out := c.Calculate(100, 0.033)
	p, i, d := c.Terms()

	if !floatEquals(p, 3.0) {
		t.Errorf("P: got %v, want 3.0", p)
	}
	if i != 0 {
		t.Errorf("I: got %v, want 0", i)
	}
	if math.Abs(d-0.01*20/0.033) > 1e-9 || math.Abs(d-6.06) > 0.01 {
		t.Errorf("D: got %v, want ~6.06", d)
	}
	if out != 5 {
		t.Errorf("output: got %v, want 5 (clamped)", out)
	}
}

func TestCalculate_FirstSampleHasNoDerivative(t *testing.T) {
	c := New(Gains{Kp: 0, Ki: 0, Kd: 10, OutMin: -100, OutMax: 100})

	if got := c.Calculate(40, 0.02); got != 0 {
		t.Errorf("first sample: got %v, want 0", got)
	}
	if _, _, d := c.Terms(); d != 0 {
		t.Errorf("first sample D: got %v, want 0", d)
	}
	if !c.Armed() {
		t.Error("expected controller armed after first sample")
	}
}

func TestReset_SuppressesDerivativeSpike(t *testing.T) {
	c := New(Gains{Kp: 0.1, Ki: 0.5, Kd: 2, OutMin: -50, OutMax: 50})
	for _, e := range []float64{10, -30, 45, 80} {
		c.Calculate(e, 0.03)
	}

	c.Reset()
	if c.Armed() {
		t.Error("expected controller idle after Reset")
	}

	c.Calculate(-200, 0.03)
	if _, _, d := c.Terms(); d != 0 {
		t.Errorf("D after reset: got %v, want exactly 0", d)
	}
}

func TestReset_Idempotent(t *testing.T) {
	g := Gains{Kp: 0.2, Ki: 0.3, Kd: 0.05, OutMin: -5, OutMax: 5}

	once := New(g)
	twice := New(g)
	for _, c := range []*Controller{once, twice} {
		c.Calculate(12, 0.05)
		c.Calculate(30, 0.05)
	}
	once.Reset()
	twice.Reset()
	twice.Reset()

	if *once != *twice {
		t.Errorf("reset twice: got %+v, want %+v", *twice, *once)
	}
	if once.Calculate(7, 0.05) != twice.Calculate(7, 0.05) {
		t.Error("outputs diverged after single vs double reset")
	}
}

func TestCalculate_AntiWindup(t *testing.T) {
	c := New(Gains{Kp: 0, Ki: 2, Kd: 0, OutMin: -4, OutMax: 4})

	// Saturate for a long time.
	for i := 0; i < 1000; i++ {
		c.Calculate(100, 0.1)
	}
	if !floatEquals(c.Integral(), 2) {
		t.Fatalf("integral: got %v, want clamp at OutMax/Ki = 2", c.Integral())
	}

	// Error reverses: the accumulator leaves saturation at once instead of
	// unwinding 1000 steps of history.
	out := c.Calculate(-10, 0.1)
	if out >= 4 {
		t.Errorf("output should leave saturation immediately, got %v", out)
	}
}

func TestCalculate_AntiWindupNegativeKi(t *testing.T) {
	c := New(Gains{Ki: -1, OutMin: -3, OutMax: 3})
	for i := 0; i < 100; i++ {
		c.Calculate(10, 1)
	}
	if !floatEquals(c.Integral(), 3) {
		t.Errorf("integral: got %v, want 3", c.Integral())
	}
}

func TestCalculate_ZeroKiSkipsClamp(t *testing.T) {
	c := New(Gains{Kp: 0.01, Ki: 0, Kd: 0, OutMin: -1, OutMax: 1})
	for i := 0; i < 100; i++ {
		c.Calculate(100, 1)
	}
	if !floatEquals(c.Integral(), 10000) {
		t.Errorf("integral: got %v, want 10000 (no clamp with ki=0)", c.Integral())
	}
}

func TestCalculate_OutputAlwaysBounded(t *testing.T) {
	g := Gains{Kp: 0.7, Ki: 0.4, Kd: 0.9, OutMin: -2.5, OutMax: 1.5}
	c := New(g)

	errors := []float64{0, 1e6, -1e6, 3.3, -0.001, 500, -500, 1e-9, 42, -42}
	dts := []float64{1e-6, 0.001, 0.033, 0.1, 1, 10}

	for _, dt := range dts {
		for _, e := range errors {
			out := c.Calculate(e, dt)
			if out < g.OutMin || out > g.OutMax {
				t.Fatalf("Calculate(%v, %v) = %v outside [%v, %v]", e, dt, out, g.OutMin, g.OutMax)
			}
		}
	}
}

func TestCalculate_ProportionalOnly(t *testing.T) {
	tests := []struct {
		name string
		err  float64
		want float64
	}{
		{"zero", 0, 0},
		{"positive", 50, 1.5},
		{"negative", -50, -1.5},
		{"saturates high", 1000, 5},
		{"saturates low", -1000, -5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(Gains{Kp: 0.03, OutMin: -5, OutMax: 5})
			if got := c.Calculate(tc.err, 0.033); !floatEquals(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
