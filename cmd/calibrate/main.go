// Calibrate - find the crosshair in the first camera frame and store it as
// the aim point in the session file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/go-turret/internal/config"
	"github.com/teslashibe/go-turret/internal/log"
	"github.com/teslashibe/go-turret/pkg/calibrate"
	"github.com/teslashibe/go-turret/pkg/camera"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "turret.yaml", "Session file to update")
	cameraURL := flag.String("camera", "", "Frame source (default from session)")
	template := flag.String("template", "crosshair.png", "Crosshair template PNG")
	dryRun := flag.Bool("dry-run", false, "Print the aim point without saving it")
	flag.Parse()
	log.Init("info")

	sess, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	sess = sess.ApplyEnv()
	if *cameraURL != "" {
		sess.Camera = *cameraURL
	}

	tmpl, err := calibrate.LoadTemplate(*template)
	if err != nil {
		return err
	}
	defer tmpl.Close()

	cc := camera.DefaultConfig()
	cc.URL = sess.Camera
	src, err := camera.Open(cc)
	if err != nil {
		return err
	}
	defer src.Close()

	aim, err := calibrate.FromSource(src, tmpl)
	if err != nil {
		return err
	}

	fmt.Printf("aim point: %d,%d (was %d,%d)\n", aim.X, aim.Y, sess.Aim.X, sess.Aim.Y)
	if *dryRun {
		return nil
	}

	sess.Aim = config.PointFrom(aim)
	if err := config.Save(*configPath, sess); err != nil {
		return err
	}
	fmt.Printf("saved to %s\n", *configPath)
	return nil
}
