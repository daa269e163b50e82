// Aimtool - nudge a running turret's aim point from the keyboard.
//
// Arrows move the aim by 1 px, shift+arrows by 10. s saves the current aim
// into the session file, q quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-turret/internal/config"
	"github.com/teslashibe/go-turret/internal/httpc"
)

const (
	smallStep = 1
	largeStep = 10
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type delta struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// tool is the terminal UI state.
type tool struct {
	screen     tcell.Screen
	api        string
	configPath string

	aim    point
	status string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aimtool: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", "http://localhost:8080", "Turret dashboard URL")
	configPath := flag.String("config", "turret.yaml", "Session file s saves into")
	flag.Parse()

	t := &tool{
		api:        strings.TrimRight(*url, "/") + "/api/aim",
		configPath: *configPath,
	}
	if err := t.fetch(); err != nil {
		return fmt.Errorf("turret not reachable at %s: %w", *url, err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	t.screen = screen

	t.status = "ready"
	t.draw()
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return nil
		}
		if !t.handle(ev) {
			return nil
		}
		t.draw()
	}
}

// handle processes one event and reports whether to keep running.
func (t *tool) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		step := smallStep
		if ev.Modifiers()&tcell.ModShift != 0 {
			step = largeStep
		}

		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			t.nudge(0, -step)
		case tcell.KeyDown:
			t.nudge(0, step)
		case tcell.KeyLeft:
			t.nudge(-step, 0)
		case tcell.KeyRight:
			t.nudge(step, 0)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 's':
				t.save()
			case 'r':
				if err := t.fetch(); err != nil {
					t.status = "refresh failed: " + err.Error()
				} else {
					t.status = "refreshed"
				}
			}
		}

	case *tcell.EventResize:
		t.screen.Sync()
	}
	return true
}

func (t *tool) nudge(dx, dy int) {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()

	var next point
	if err := httpc.SendJSON(ctx, http.MethodPost, t.api, delta{DX: dx, DY: dy}, &next); err != nil {
		t.status = "nudge failed: " + err.Error()
		return
	}
	t.aim = next
	t.status = fmt.Sprintf("moved %+d,%+d", dx, dy)
}

func (t *tool) fetch() error {
	ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
	defer cancel()
	return httpc.GetJSON(ctx, t.api, &t.aim)
}

// save re-reads the aim, since nudges land a frame later, and writes it
// into the session file.
func (t *tool) save() {
	if err := t.fetch(); err != nil {
		t.status = "save failed: " + err.Error()
		return
	}
	sess, err := config.Load(t.configPath)
	if err != nil {
		t.status = "save failed: " + err.Error()
		return
	}
	sess.Aim = config.Point{X: t.aim.X, Y: t.aim.Y}
	if err := config.Save(t.configPath, sess); err != nil {
		t.status = "save failed: " + err.Error()
		return
	}
	t.status = fmt.Sprintf("saved %d,%d to %s", t.aim.X, t.aim.Y, t.configPath)
}

var (
	titleStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	textStyle   = tcell.StyleDefault
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

func (t *tool) draw() {
	t.screen.Clear()
	t.print(0, 0, titleStyle, "turret aim")
	t.print(0, 2, textStyle, fmt.Sprintf("aim: %d,%d", t.aim.X, t.aim.Y))
	t.print(0, 4, textStyle, "arrows: 1px   shift+arrows: 10px")
	t.print(0, 5, textStyle, "s: save   r: refresh   q: quit")
	t.print(0, 7, statusStyle, t.status)
	t.screen.Show()
}

func (t *tool) print(x, y int, style tcell.Style, s string) {
	for i, r := range []rune(s) {
		t.screen.SetContent(x+i, y, r, nil, style)
	}
}
