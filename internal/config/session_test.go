package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	if s != Defaults() {
		t.Errorf("Load: got %+v, want defaults", s)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: unexpected error %v", err)
	}
	if s.Aim.X != DefaultAimX || s.Aim.Y != DefaultAimY {
		t.Errorf("Aim: got %+v", s.Aim)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.yaml")
	body := "aim_center:\n  x: 300\n  y: 200\ntelemetry_addr: 10.0.0.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Aim != (Point{X: 300, Y: 200}) {
		t.Errorf("Aim: got %+v, want {300 200}", s.Aim)
	}
	if s.TelemetryAddr != "10.0.0.5:"+DefaultTelemetryPort {
		t.Errorf("TelemetryAddr: got %q", s.TelemetryAddr)
	}
	if s.HSV != Defaults().HSV {
		t.Errorf("HSV: got %+v, want defaults", s.HSV)
	}
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.json")
	body := `{"hsv": {"h_min": 10, "s_min": 20, "v_min": 30, "h_max": 40, "s_max": 50, "v_max": 60}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := HSV{HMin: 10, SMin: 20, VMin: 30, HMax: 40, SMax: 50, VMax: 60}
	if s.HSV != want {
		t.Errorf("HSV: got %+v, want %+v", s.HSV, want)
	}
}

func TestLoad_MalformedFileReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.yaml")
	if err := os.WriteFile(path, []byte("hsv: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected parse error")
	}
	if s != Defaults() {
		t.Errorf("Load: got %+v, want defaults on error", s)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "turret.yaml")
	s := Defaults()
	s.Aim = Point{X: 111, Y: 222}

	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != s {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TURRET_KLIPPER_SOCKET", "/tmp/printer")
	t.Setenv("TURRET_CAMERA", "0")
	t.Setenv("TURRET_TELEMETRY_ADDR", "127.0.0.1")

	s := Defaults().ApplyEnv()
	if s.KlipperSocket != "/tmp/printer" {
		t.Errorf("KlipperSocket: got %q", s.KlipperSocket)
	}
	if s.Camera != "0" {
		t.Errorf("Camera: got %q", s.Camera)
	}
	if s.TelemetryAddr != "127.0.0.1:"+DefaultTelemetryPort {
		t.Errorf("TelemetryAddr: got %q", s.TelemetryAddr)
	}
}

func TestApplyEnv_Unset(t *testing.T) {
	t.Setenv("TURRET_KLIPPER_SOCKET", "")
	t.Setenv("TURRET_CAMERA", "")
	t.Setenv("TURRET_TELEMETRY_ADDR", "")

	if s := Defaults().ApplyEnv(); s != Defaults() {
		t.Errorf("got %+v, want defaults", s)
	}
}
