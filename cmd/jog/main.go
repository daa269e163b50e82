// Jog - drive the platform around a circle to check the H-bot kinematics
// and the Klipper connection before tracking.
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
	"github.com/teslashibe/go-turret/pkg/gcode"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "jog: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	klipper := flag.String("klipper", "", "Klipper API socket (default from TURRET_KLIPPER_SOCKET)")
	moonraker := flag.String("moonraker", "", "Moonraker host or ws:// URL; used instead of the socket")
	home := flag.Bool("home", true, "Home all axes first (G28)")
	cx := flag.Float64("cx", 60, "Circle centre X (mm)")
	cy := flag.Float64("cy", 60, "Circle centre Y (mm)")
	radius := flag.Float64("radius", 25, "Circle radius (mm)")
	points := flag.Int("points", 30, "Segments per circle")
	loops := flag.Int("loops", 1, "Number of circles")
	feed := flag.Int("feed", 12000, "Feed rate (mm/min)")
	interval := flag.Duration("interval", 10*time.Millisecond, "Delay between segments")
	flag.Parse()
	log.Init("info")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var t gcode.Transport
	if *moonraker != "" {
		t = gcode.NewMoonrakerTransport(gcode.MoonrakerURL(*moonraker))
	} else {
		path := *klipper
		if path == "" {
			path = config.KlipperSocket(config.DefaultKlipperSocket)
		}
		t = gcode.NewKlipperTransport(path)
	}

	opts := gcode.DefaultOptions()
	opts.EnqueueTimeout = time.Second
	ch := gcode.NewChannel(t, opts)
	if err := ch.Connect(ctx); err != nil {
		return err
	}
	defer ch.Close()

	setup := []string{gcode.Absolute, gcode.Feed(*feed)}
	if *home {
		setup = append([]string{gcode.Home}, setup...)
	}
	for _, cmd := range setup {
		if err := ch.SendCommand(cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	}

	center := gcode.XY{X: *cx, Y: *cy}
	path := gcode.CirclePath(center, *radius, *points)
	start := time.Now()

	for i := 0; i < *loops; i++ {
		for _, p := range path {
			if err := ch.SendCommand(gcode.MoveTo(p.X, p.Y)); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
	}

	if err := ch.SendCommand(gcode.Move(center.X, center.Y, 6000)); err != nil {
		return err
	}
	if err := ch.SendCommand(gcode.WaitMoves); err != nil {
		return err
	}
	if err := ch.Err(); err != nil {
		return err
	}

	log.Info("circle finished", "loops", *loops, "segments", len(path)-1,
		"elapsed", time.Since(start).Round(time.Millisecond), "sent", ch.Sent())
	return nil
}
