// Package command is the text command language that drives a session, both
// interactively and from scenario scripts.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/selection"
)

var (
	// ErrEmpty is returned for blank lines and comments.
	ErrEmpty = errors.New("empty command")
	// ErrUnknownCommand is returned for an unrecognised verb.
	ErrUnknownCommand = errors.New("unknown command")
)

// Verb classifies a parsed command.
type Verb int

const (
	// VerbIntent carries a session intent.
	VerbIntent Verb = iota
	VerbPause
	VerbResume
	VerbReset
	VerbDetect
	VerbGrow
	VerbLose
	VerbCamera
	VerbWait
)

func (v Verb) String() string {
	switch v {
	case VerbIntent:
		return "intent"
	case VerbPause:
		return "pause"
	case VerbResume:
		return "resume"
	case VerbReset:
		return "reset"
	case VerbDetect:
		return "detect"
	case VerbGrow:
		return "grow"
	case VerbLose:
		return "lose"
	case VerbCamera:
		return "camera"
	case VerbWait:
		return "wait"
	}
	return fmt.Sprintf("verb(%d)", int(v))
}

// Command is one parsed line.
type Command struct {
	Verb   Verb
	Text   string
	Intent coordinator.Intent

	Plane    string
	Extent   arsession.Extent
	Position r3.Vec
	Wait     time.Duration
}

func (c Command) String() string { return c.Text }

// Parse reads one command line. Everything after '#' is a comment.
func Parse(line string) (Command, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]
	cmd := Command{Verb: VerbIntent, Text: strings.Join(fields, " ")}

	var err error
	switch verb {
	case "tap":
		var pt arsession.ScreenPoint
		if pt, err = parsePoint(verb, args); err == nil {
			cmd.Intent = coordinator.Tap{Point: pt}
		}
	case "mode", "toggle":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		if strings.EqualFold(args[0], "idle") || strings.EqualFold(args[0], "exit") {
			cmd.Intent = coordinator.ExitMode{}
			break
		}
		var m manipulation.Mode
		if m, err = manipulation.ParseMode(args[0]); err != nil {
			break
		}
		if verb == "mode" {
			cmd.Intent = coordinator.EnterMode{Mode: m}
		} else {
			cmd.Intent = coordinator.ToggleMode{Mode: m}
		}
	case "exit":
		if err = wantArgs(verb, args, 0, 0); err == nil {
			cmd.Intent = coordinator.ExitMode{}
		}
	case "translate", "nudge":
		if err = wantArgs(verb, args, 1, 2); err != nil {
			break
		}
		var d manipulation.Direction
		if d, err = manipulation.ParseDirection(args[0]); err != nil {
			break
		}
		coarse := false
		if len(args) == 2 {
			if !strings.EqualFold(args[1], "coarse") {
				err = fmt.Errorf("%s: expected \"coarse\", got %q", verb, args[1])
				break
			}
			coarse = true
		}
		cmd.Intent = coordinator.Translate{Direction: d, Coarse: coarse}
	case "scale":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		switch args[0] {
		case "+", "up":
			cmd.Intent = coordinator.Scale{Delta: manipulation.Increase}
		case "-", "down":
			cmd.Intent = coordinator.Scale{Delta: manipulation.Decrease}
		default:
			err = fmt.Errorf("scale: expected + or -, got %q", args[0])
		}
	case "depth":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		var d manipulation.DepthDelta
		if d, err = manipulation.ParseDepth(args[0]); err == nil {
			cmd.Intent = coordinator.Depth{Delta: d}
		}
	case "color", "colour":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		var sw manipulation.Swatch
		if sw, err = manipulation.ParseSwatch(args[0]); err == nil {
			cmd.Intent = coordinator.Recolor{Swatch: sw}
		}
	case "rim":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		switch strings.ToLower(args[0]) {
		case "next":
			cmd.Intent = coordinator.SwapVariant{Direction: assembly.Next}
		case "prev", "previous":
			cmd.Intent = coordinator.SwapVariant{Direction: assembly.Previous}
		default:
			err = fmt.Errorf("rim: expected next or prev, got %q", args[0])
		}
	case "swipe":
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		var d manipulation.Direction
		if d, err = manipulation.ParseDirection(args[0]); err == nil {
			cmd.Intent = coordinator.Swipe{Direction: d}
		}
	case "drag":
		cmd.Intent, err = parseDrag(args)
	case "remove", "delete":
		if err = wantArgs(verb, args, 0, 0); err == nil {
			cmd.Intent = coordinator.Remove{}
		}
	case "capture", "snap":
		if err = wantArgs(verb, args, 0, 0); err == nil {
			cmd.Intent = coordinator.Capture{}
		}
	case "pause":
		cmd.Verb = VerbPause
		err = wantArgs(verb, args, 0, 0)
	case "resume":
		cmd.Verb = VerbResume
		err = wantArgs(verb, args, 0, 0)
	case "reset":
		cmd.Verb = VerbReset
		err = wantArgs(verb, args, 0, 0)
	case "detect":
		cmd.Verb = VerbDetect
		if err = wantArgs(verb, args, 1, 1); err == nil {
			cmd.Plane = args[0]
		}
	case "lose":
		cmd.Verb = VerbLose
		if err = wantArgs(verb, args, 1, 1); err == nil {
			cmd.Plane = args[0]
		}
	case "grow":
		cmd.Verb = VerbGrow
		if err = wantArgs(verb, args, 3, 3); err != nil {
			break
		}
		cmd.Plane = args[0]
		var v []float64
		if v, err = parseFloats(verb, args[1:]); err == nil {
			cmd.Extent = arsession.Extent{Width: v[0], Depth: v[1]}
		}
	case "camera":
		cmd.Verb = VerbCamera
		if err = wantArgs(verb, args, 3, 3); err != nil {
			break
		}
		var v []float64
		if v, err = parseFloats(verb, args); err == nil {
			cmd.Position = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
		}
	case "wait", "sleep":
		cmd.Verb = VerbWait
		if err = wantArgs(verb, args, 1, 1); err != nil {
			break
		}
		var v []float64
		if v, err = parseFloats(verb, args); err != nil {
			break
		}
		if v[0] < 0 {
			err = fmt.Errorf("wait: negative duration %g", v[0])
			break
		}
		cmd.Wait = time.Duration(v[0] * float64(time.Second))
	default:
		return Command{}, fmt.Errorf("%w %q", ErrUnknownCommand, verb)
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseDrag(args []string) (coordinator.Intent, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("drag: missing phase")
	}
	var phase selection.Phase
	needPoint := true
	switch strings.ToLower(args[0]) {
	case "begin", "began", "start":
		phase = selection.Began
	case "move", "changed":
		phase = selection.Changed
	case "end", "ended":
		phase, needPoint = selection.Ended, false
	case "cancel", "cancelled":
		phase, needPoint = selection.Cancelled, false
	case "fail", "failed":
		phase, needPoint = selection.Failed, false
	default:
		return nil, fmt.Errorf("drag: unknown phase %q", args[0])
	}
	d := coordinator.Drag{Phase: phase}
	if needPoint || len(args) > 1 {
		pt, err := parsePoint("drag "+args[0], args[1:])
		if err != nil {
			return nil, err
		}
		d.Point = pt
	}
	return d, nil
}

func wantArgs(verb string, args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("%s: expected %d arguments, got %d", verb, lo, len(args))
		}
		return fmt.Errorf("%s: expected %d to %d arguments, got %d", verb, lo, hi, len(args))
	}
	return nil
}

func parseFloats(verb string, args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q: %w", verb, a, err)
		}
		out[i] = v
	}
	return out, nil
}

func parsePoint(verb string, args []string) (arsession.ScreenPoint, error) {
	if err := wantArgs(verb, args, 2, 2); err != nil {
		return arsession.ScreenPoint{}, err
	}
	v, err := parseFloats(verb, args)
	if err != nil {
		return arsession.ScreenPoint{}, err
	}
	return arsession.ScreenPoint{X: v[0], Y: v[1]}, nil
}
