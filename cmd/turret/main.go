// Turret - closed-loop colour-target tracker for a Klipper XY platform.
//
// Reads frames from a camera or file, finds the target colour nearest the
// aim point and drives the platform to centre it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-turret/internal/config"
	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/turret"
	"github.com/teslashibe/go-turret/pkg/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "turret: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseFlags()
	if err != nil {
		return err
	}

	app, err := turret.New(cfg)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		return err
	}
	return app.Run(ctx)
}

// parseFlags loads the session file and applies command line overrides.
func parseFlags() (turret.Config, error) {
	configPath := flag.String("config", "turret.yaml", "Session file (YAML or JSON)")
	cameraURL := flag.String("camera", "", "Frame source: device index, file or stream URL (overrides TURRET_CAMERA)")
	format := flag.String("resolution", "vga", "Capture format: fast, hd, vga, wide")
	loopFile := flag.Bool("loop", false, "Replay a file source instead of stopping at the end")
	klipper := flag.String("klipper", "", "Klipper API socket (overrides TURRET_KLIPPER_SOCKET)")
	moonraker := flag.String("moonraker", "", "Moonraker host or ws:// URL; used instead of the Klipper socket")
	law := flag.String("law", "", "Control law: pid, static (default from preset)")
	preset := flag.String("preset", "default", "Tuning preset: default, slow, aggressive")
	mapping := flag.String("mapping", "", "Image to platform axis mapping, e.g. -x,-y or y,x")
	template := flag.String("template", "", "Crosshair template PNG; locates the aim point at startup")
	telemetry := flag.String("telemetry", "", "UDP host[:port] for annotated frames, or off")
	record := flag.String("record", "", "Write annotated video to this file")
	httpAddr := flag.String("http", web.DefaultAddr, "Dashboard listen address, empty to disable")
	debug := flag.Bool("debug", false, "Enable debug logging")
	countdown := flag.Duration("countdown", turret.DefaultCountdown, "Pause before the first move")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	sess, err := config.Load(*configPath)
	if err != nil {
		log.Warn("session file unusable, using defaults", "error", err)
	}
	sess = sess.ApplyEnv()

	cfg := turret.FromSession(sess)
	cfg.Debug = *debug
	cfg.ConfigPath = *configPath
	cfg.Countdown = *countdown
	cfg.HTTPAddr = *httpAddr
	cfg.RecordPath = *record
	cfg.TemplatePath = *template
	cfg.Moonraker = *moonraker
	cfg.Camera.Loop = *loopFile

	sc, err := servo.Preset(*preset)
	if err != nil {
		return cfg, err
	}
	sc.Aim, sc.Colors = cfg.Servo.Aim, cfg.Servo.Colors
	cfg.Servo = sc

	if *law != "" {
		l, err := servo.ParseLaw(*law)
		if err != nil {
			return cfg, err
		}
		cfg.Servo.Law = l
	}
	if *mapping != "" {
		m, err := servo.ParseAxisMapping(*mapping)
		if err != nil {
			return cfg, err
		}
		cfg.Servo.Mapping = m
	}

	if *cameraURL != "" {
		cfg.Camera.URL = *cameraURL
	}
	if cfg.Camera, err = cfg.Camera.WithFormat(*format); err != nil {
		return cfg, err
	}
	if *klipper != "" {
		cfg.KlipperSocket = *klipper
	}
	switch *telemetry {
	case "":
	case "off":
		cfg.TelemetryAddr = ""
	default:
		cfg.TelemetryAddr = config.WithTelemetryPort(*telemetry)
	}

	cfg.Servo.StatsInterval = statsInterval(*debug)
	return cfg, nil
}

func statsInterval(debug bool) time.Duration {
	if debug {
		return 2 * time.Second
	}
	return servo.DefaultConfig().StatsInterval
}
