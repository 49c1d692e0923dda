package command

import (
	"fmt"
	"time"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/simulator"
)

// Runner applies commands to a session and its simulated world. It must be
// driven from the main queue.
type Runner struct {
	coord *coordinator.Coordinator
	sim   *simulator.Simulator
}

// NewRunner returns a runner for coord. sim may be nil, in which case world
// commands fail.
func NewRunner(coord *coordinator.Coordinator, sim *simulator.Simulator) *Runner {
	return &Runner{coord: coord, sim: sim}
}

// Apply runs cmd and reports whether it changed the session. Wait commands
// are left to the caller and change nothing.
func (r *Runner) Apply(cmd Command) (bool, error) {
	tracef("apply %q", cmd.Text)
	switch cmd.Verb {
	case VerbIntent:
		if cmd.Intent == nil {
			return false, fmt.Errorf("%q carries no intent", cmd.Text)
		}
		return r.coord.Handle(cmd.Intent), nil
	case VerbPause:
		r.coord.Pause()
		return true, nil
	case VerbResume:
		r.coord.Resume()
		return true, nil
	case VerbReset:
		if r.sim != nil {
			r.sim.Reset()
		}
		r.coord.Reset()
		return true, nil
	case VerbWait:
		return false, nil
	}

	if r.sim == nil {
		return false, fmt.Errorf("%s: no simulated world", cmd.Verb)
	}
	switch cmd.Verb {
	case VerbDetect:
		anchor, added, err := r.sim.Detect(cmd.Plane)
		if err != nil {
			return false, err
		}
		if !added {
			return false, nil
		}
		return r.coord.OnAnchorAdded(anchor), nil
	case VerbGrow:
		anchor, err := r.sim.Grow(cmd.Plane, cmd.Extent.Width, cmd.Extent.Depth)
		if err != nil {
			return false, err
		}
		return r.coord.OnAnchorUpdated(anchor), nil
	case VerbLose:
		id, err := r.sim.Lose(cmd.Plane)
		if err != nil {
			return false, err
		}
		return r.coord.OnAnchorRemoved(id), nil
	case VerbCamera:
		r.sim.MoveCamera(cmd.Position)
		return true, nil
	}
	return false, fmt.Errorf("unsupported verb %s", cmd.Verb)
}

// Frame renders the simulated camera at ts and hands it to the session.
func (r *Runner) Frame(ts time.Duration) bool {
	if r.sim == nil {
		return false
	}
	return r.coord.OnFrame(r.sim.Frame(ts))
}
