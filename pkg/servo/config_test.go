package servo

import (
	"strings"
	"testing"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"", "default", "slow", "aggressive"} {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Preset(%q) invalid: %v", name, err)
		}
	}
	if _, err := Preset("ludicrous"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestDefaultConfig_MatchesRig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DeadZone != 5 || cfg.MaxStep != 5 || cfg.FeedRate != 6000 || cfg.MaxEmptyFrames != 50 {
		t.Errorf("unexpected rig defaults: %+v", cfg)
	}
	if cfg.Mapping != (AxisMapping{InvertX: true, InvertY: true}) {
		t.Errorf("mapping: got %v, want -x,-y", cfg.Mapping)
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Law = "fuzzy"
	cfg.FeedRate = 0
	cfg.X.OutMin, cfg.X.OutMax = 5, -5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"fuzzy", "feed rate", "x output bounds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestParseAxisMapping(t *testing.T) {
	tests := []struct {
		in      string
		want    AxisMapping
		wantErr bool
	}{
		{"x,y", AxisMapping{}, false},
		{"-x,-y", AxisMapping{InvertX: true, InvertY: true}, false},
		{"+x, -y", AxisMapping{InvertY: true}, false},
		{"y,x", AxisMapping{SwapXY: true}, false},
		{"-Y,X", AxisMapping{SwapXY: true, InvertX: true}, false},
		{"x,x", AxisMapping{}, true},
		{"x", AxisMapping{}, true},
		{"x,z", AxisMapping{}, true},
		{"", AxisMapping{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAxisMapping(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAxisMapping_StringParses(t *testing.T) {
	for _, m := range []AxisMapping{
		{}, {InvertX: true}, {InvertY: true}, {SwapXY: true},
		{SwapXY: true, InvertX: true, InvertY: true},
	} {
		back, err := ParseAxisMapping(m.String())
		if err != nil || back != m {
			t.Errorf("%+v -> %q -> %+v (%v)", m, m.String(), back, err)
		}
	}
}

func TestStaticGain(t *testing.T) {
	s := &StaticGain{K: 0.5}
	if s.Armed() {
		t.Error("new law should be idle")
	}
	if got := s.Calculate(10, 0); got != 5 {
		t.Errorf("got %v, want 5 regardless of dt", got)
	}
	if !s.Armed() {
		t.Error("expected armed")
	}
	s.Reset()
	if s.Armed() {
		t.Error("expected idle after reset")
	}
}

func TestParseLaw(t *testing.T) {
	for _, s := range []string{"pid", "static"} {
		if _, err := ParseLaw(s); err != nil {
			t.Errorf("ParseLaw(%q): %v", s, err)
		}
	}
	if _, err := ParseLaw("bang-bang"); err == nil {
		t.Error("expected error")
	}
}
