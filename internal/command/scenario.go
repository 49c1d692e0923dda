package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/carstom/internal/ar/mainthread"
	"github.com/banshee-data/carstom/internal/ar/simulator"
	"github.com/banshee-data/carstom/internal/timeutil"
)

const (
	maxScenarioBytes = 1 << 20
	defaultFPS       = 30
	defaultTail      = time.Second
)

// ErrStopped is returned when the main queue refuses a scenario tick.
var ErrStopped = errors.New("main queue stopped")

// Step is one scripted command. At is seconds from the start; when omitted
// the step follows the previous one, shifted by any wait commands.
type Step struct {
	At *float64 `yaml:"at,omitempty"`
	Do string   `yaml:"do"`
}

// Scheduled is a parsed step with its resolved time.
type Scheduled struct {
	At      time.Duration
	Command Command
}

// Scenario is a simulated world plus a timed script.
type Scenario struct {
	Name  string              `yaml:"name"`
	World simulator.WorldSpec `yaml:"world"`
	// FPS is the simulated camera frame rate.
	FPS int `yaml:"fps,omitempty"`
	// Tail is how many seconds of frames follow the last step.
	Tail   *float64 `yaml:"tail,omitempty"`
	Script []Step   `yaml:"script"`

	timeline []Scheduled
	duration time.Duration
}

// Timeline returns the parsed steps in order.
func (s *Scenario) Timeline() []Scheduled { return s.timeline }

// Duration returns the total simulated time.
func (s *Scenario) Duration() time.Duration { return s.duration }

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("scenario file must have .yaml or .yml extension, got %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	if info.Size() > maxScenarioBytes {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", info.Size(), maxScenarioBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// ParseScenario decodes a YAML scenario. Omitted world fields keep the
// default world's values.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := &Scenario{World: simulator.DefaultWorld()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.FPS == 0 {
		sc.FPS = defaultFPS
	}
	if sc.FPS < 1 || sc.FPS > 240 {
		return nil, fmt.Errorf("fps must be between 1 and 240, got %d", sc.FPS)
	}
	tail := defaultTail
	if sc.Tail != nil {
		if *sc.Tail < 0 {
			return nil, fmt.Errorf("tail must not be negative, got %g", *sc.Tail)
		}
		tail = seconds(*sc.Tail)
	}

	var cursor time.Duration
	for i, st := range sc.Script {
		cmd, err := Parse(st.Do)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("script step %d: %w", i+1, err)
		}
		if st.At != nil {
			at := seconds(*st.At)
			if at < cursor {
				return nil, fmt.Errorf("script step %d: at %gs is before the previous step", i+1, *st.At)
			}
			cursor = at
		}
		if cmd.Verb == VerbWait {
			cursor += cmd.Wait
			continue
		}
		sc.timeline = append(sc.timeline, Scheduled{At: cursor, Command: cmd})
	}
	sc.duration = cursor + tail
	return sc, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Report summarises a scenario run.
type Report struct {
	Frames   int           `json:"frames"`
	Steps    int           `json:"steps"`
	Applied  int           `json:"applied"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Player runs scenarios. Each frame tick, with the steps due before it, is
// executed as one closure on Main.
type Player struct {
	Runner *Runner
	Main   mainthread.Executor
	Clock  timeutil.Clock
	// Realtime sleeps one frame interval between ticks.
	Realtime bool
}

// Play runs sc to completion or until ctx is done.
func (p *Player) Play(ctx context.Context, sc *Scenario) (Report, error) {
	main := p.Main
	if main == nil {
		main = mainthread.Inline{}
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fps := sc.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	interval := timeutil.FrameInterval(fps)

	var rep Report
	next := 0
	timeline := sc.Timeline()
	diagf("playing %q: %d steps over %s at %d fps", sc.Name, len(timeline), sc.Duration(), fps)

	for ts := time.Duration(0); ts <= sc.Duration(); ts += interval {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var due []Scheduled
		for next < len(timeline) && timeline[next].At <= ts {
			due = append(due, timeline[next])
			next++
		}
		var tick Report
		done := make(chan struct{})
		accepted := main.Post(func() {
			defer close(done)
			tick = p.tick(ts, due)
		})
		if !accepted {
			return rep, ErrStopped
		}
		select {
		case <-done:
		case <-ctx.Done():
			return rep, ctx.Err()
		}
		rep.Frames += tick.Frames
		rep.Steps += tick.Steps
		rep.Applied += tick.Applied
		rep.Failed += tick.Failed
		rep.Duration = ts
		if p.Realtime {
			clock.Sleep(interval)
		}
	}
	diagf("scenario %q done: %d frames, %d/%d steps applied, %d failed", sc.Name, rep.Frames, rep.Applied, rep.Steps, rep.Failed)
	return rep, nil
}

// tick applies due and renders one frame at ts. It runs on the main queue.
func (p *Player) tick(ts time.Duration, due []Scheduled) Report {
	var r Report
	for _, step := range due {
		r.Steps++
		changed, err := p.Runner.Apply(step.Command)
		if err != nil {
			r.Failed++
			opsf("step %q at %s failed: %v", step.Command.Text, step.At, err)
			continue
		}
		if changed {
			r.Applied++
		}
	}
	p.Runner.Frame(ts)
	r.Frames = 1
	return r
}
