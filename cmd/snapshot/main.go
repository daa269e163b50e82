// Snapshot - save one frame of a video as a PNG, e.g. to cut a crosshair
// template from.
package main

import (
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/camera"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	source := flag.String("camera", camera.DefaultURL, "Frame source: device index, file or stream URL")
	format := flag.String("resolution", "vga", "Capture format for devices: fast, hd, vga, wide")
	frame := flag.Int("frame", 0, "Frame index to save (files only)")
	out := flag.String("out", "snapshot.png", "Output image")
	flag.Parse()
	log.Init("info")

	cfg, err := camera.DefaultConfig().WithFormat(*format)
	if err != nil {
		return err
	}
	cfg.URL = *source
	src, err := camera.Open(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	if n := src.FrameCount(); n > 0 && *frame >= n {
		return fmt.Errorf("frame %d out of range (%d frames)", *frame, n)
	}
	if *frame > 0 {
		if err := src.Seek(*frame); err != nil {
			return err
		}
	}

	img := gocv.NewMat()
	defer img.Close()
	// Live sources may hand out a few empty frames while they warm up.
	for i := 0; i < 10 && img.Empty(); i++ {
		if err := src.Read(&img); err != nil {
			return fmt.Errorf("read frame %d: %w", *frame, err)
		}
	}
	if img.Empty() {
		return fmt.Errorf("frame %d: no image", *frame)
	}

	if ok := gocv.IMWrite(*out, img); !ok {
		return fmt.Errorf("write %s failed", *out)
	}
	fmt.Printf("saved frame %d (%dx%d) to %s\n", *frame, img.Cols(), img.Rows(), *out)
	return nil
}
