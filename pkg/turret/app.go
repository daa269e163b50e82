package turret

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/calibrate"
	"github.com/teslashibe/go-turret/pkg/camera"
	"github.com/teslashibe/go-turret/pkg/gcode"
	"github.com/teslashibe/go-turret/pkg/servo"
	"github.com/teslashibe/go-turret/pkg/telemetry"
	"github.com/teslashibe/go-turret/pkg/web"
)

// App is one tracking session. It owns every component and their lifecycle.
type App struct {
	config Config
	log    *slog.Logger

	// Hardware
	channel *gcode.Channel
	source  *camera.Source

	// Control
	loop *servo.Loop

	// Outputs
	publisher *telemetry.Publisher
	udp       *telemetry.UDPWriter
	recorder  *telemetry.Recorder
	webServer *web.Server
}

// New validates cfg and creates an application. Nothing is opened yet.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config: cfg,
		log:    log.Component("turret"),
	}, nil
}

// Init brings the session up in order: actuator, camera, aim calibration,
// outputs, control loop. Any failure is fatal; call Shutdown regardless to
// release whatever was opened.
func (a *App) Init(ctx context.Context) error {
	if err := a.connectActuator(ctx); err != nil {
		return fmt.Errorf("actuator: %w", err)
	}

	src, err := camera.Open(a.config.Camera)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	a.source = src

	if err := a.calibrate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	if err := a.initOutputs(); err != nil {
		return err
	}

	deps := servo.Deps{
		Source:   a.source,
		Actuator: a.channel,
		Logger:   log.Component("servo"),
	}
	if a.publisher != nil {
		deps.Telemetry = a.publisher
	}
	loop, err := servo.New(a.config.Servo, deps)
	if err != nil {
		return err
	}
	a.loop = loop

	if a.config.HTTPAddr != "" {
		a.webServer = web.NewServer(a.config.HTTPAddr, loop)
		a.publisher.AddWriter(a.webServer)
	}
	return nil
}

// Run waits out the countdown and runs the control loop until ctx is
// cancelled or the stream ends. A lost stream is returned as an error.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("turret: Init has not completed")
	}
	if a.webServer != nil {
		a.webServer.StartAsync(ctx)
	}

	if a.countdown(ctx) != nil {
		return nil // cancelled before the first move
	}

	cfg := a.loop.Config()
	a.log.Info("tracking",
		"law", cfg.Law,
		"mapping", cfg.Mapping,
		"aim", a.loop.Aim(),
		"colors", a.loop.ColorRange())

	err := a.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases everything in reverse order. The motors are disabled
// before the actuator connection closes.
func (a *App) Shutdown() {
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.log.Warn("web shutdown", "error", err)
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn("recorder close", "error", err)
		}
	}
	if a.udp != nil {
		a.udp.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			a.log.Warn("actuator close", "error", err)
		}
	}
	if a.loop != nil {
		s := a.loop.Stats()
		a.log.Info("session finished",
			"frames", s.Frames,
			"found_ratio", s.FoundRatio,
			"commands", s.Commands,
			"send_failures", s.SendFailures)
	}
}

// Loop returns the control loop once Init has succeeded.
func (a *App) Loop() *servo.Loop {
	return a.loop
}

func (a *App) connectActuator(ctx context.Context) error {
	var t gcode.Transport
	if a.config.Moonraker != "" {
		url := gcode.MoonrakerURL(a.config.Moonraker)
		a.log.Info("connecting", "moonraker", url)
		t = gcode.NewMoonrakerTransport(url)
	} else {
		a.log.Info("connecting", "klipper", a.config.KlipperSocket)
		t = gcode.NewKlipperTransport(a.config.KlipperSocket)
	}

	opts := gcode.DefaultOptions()
	opts.Logger = log.Component("gcode")
	ch := gcode.NewChannel(t, opts)
	if err := ch.Connect(ctx); err != nil {
		return err
	}
	a.channel = ch
	return nil
}

// calibrate replaces the configured aim point with the crosshair location
// when a template is set. A missing crosshair keeps the configured aim.
func (a *App) calibrate() error {
	if a.config.TemplatePath == "" {
		return nil
	}

	tmpl, err := calibrate.LoadTemplate(a.config.TemplatePath)
	if err != nil {
		return err
	}
	defer tmpl.Close()

	aim, err := calibrate.FromSource(a.source, tmpl)
	switch {
	case errors.Is(err, calibrate.ErrNotFound):
		a.log.Warn("crosshair not found, keeping configured aim", "aim", a.config.Servo.Aim)
		return nil
	case err != nil:
		return err
	}

	a.log.Info("aim calibrated", "from", a.config.Servo.Aim, "to", aim)
	a.config.Servo.Aim = aim
	return nil
}

func (a *App) initOutputs() error {
	opts := telemetry.DefaultOptions()
	opts.Logger = log.Component("telemetry")
	a.publisher = telemetry.NewPublisher(opts)

	if a.config.TelemetryAddr != "" {
		udp, err := telemetry.DialUDP(a.config.TelemetryAddr)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		a.udp = udp
		a.publisher.AddWriter(udp)
		a.log.Info("telemetry", "addr", a.config.TelemetryAddr)
	}

	if a.config.RecordPath != "" {
		fps := float64(a.config.Camera.Framerate)
		a.recorder = telemetry.NewRecorder(a.config.RecordPath, fps)
		a.publisher.AddWriter(a.recorder)
		a.log.Info("recording", "path", a.config.RecordPath)
	}
	return nil
}

// countdown logs once a second until the pause is over. It returns
// ctx.Err() if cancelled first.
func (a *App) countdown(ctx context.Context) error {
	remaining := a.config.Countdown
	if remaining <= 0 {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for remaining > 0 {
		a.log.Info("starting", "in", remaining)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining -= time.Second
		}
	}
	return nil
}
