package inference

import (
	"context"
	"image"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/mainthread"
	"github.com/banshee-data/carstom/internal/ar/spatial"
	"github.com/banshee-data/carstom/internal/timeutil"
)

// Config holds the detection parameters.
type Config struct {
	// Interval is the minimum frame-timestamp gap between two inferences.
	Interval time.Duration
	// InputSize is the square model input resolution.
	InputSize int
	// Window is the view-space crop fed to the model. Empty selects the
	// largest centred square.
	Window image.Rectangle
	// RadiusCompensation scales the measured center-to-edge distance.
	RadiusCompensation float64
	// ReferenceRadius is the rim radius at unit scale. Zero uses the
	// assembly's own reference radius.
	ReferenceRadius float64
	// HideOnLost hides the assembly while no wheel is detected.
	HideOnLost bool
	// Timeout bounds a single model call. Zero means no timeout.
	Timeout time.Duration
}

// DefaultConfig returns the stock detection parameters.
func DefaultConfig() Config {
	return Config{
		Interval:           900 * time.Millisecond,
		InputSize:          512,
		RadiusCompensation: 1.0,
		ReferenceRadius:    0.225,
		Timeout:            5 * time.Second,
	}
}

// DetectionResult is the outcome of one inference. Resolved is set when
// both feature-point hit tests succeeded and the assembly was moved.
type DetectionResult struct {
	Seq         uint64                `json:"seq"`
	Timestamp   time.Duration         `json:"timestamp"`
	Found       bool                  `json:"found"`
	Box         Box                   `json:"box"`
	Center      arsession.ScreenPoint `json:"center"`
	Edge        arsession.ScreenPoint `json:"edge"`
	Resolved    bool                  `json:"resolved"`
	WorldCenter r3.Vec                `json:"world_center"`
	Radius      float64               `json:"radius"`
	Latency     time.Duration         `json:"latency"`
	Err         string                `json:"error,omitempty"`
}

// Stats counts frames through the gate. Read it on the main queue.
type Stats struct {
	Frames          uint64 `json:"frames"`
	Throttled       uint64 `json:"throttled"`
	SkippedInFlight uint64 `json:"skipped_in_flight"`
	Inferences      uint64 `json:"inferences"`
	Detections      uint64 `json:"detections"`
	Misses          uint64 `json:"misses"`
	Errors          uint64 `json:"errors"`
	Stale           uint64 `json:"stale"`
}

// Options wires a Coordinator to its collaborators.
type Options struct {
	Config Config
	// Model may be nil, which disables detection.
	Model   Model
	Session arsession.Session
	// Worker runs preprocessing and the model call. Main runs completions;
	// it must be the queue that owns the scene graph.
	Worker mainthread.Executor
	Main   mainthread.Executor
	// Target returns the assembly to drive, or nil.
	Target func() *assembly.Assembly
	// OnResult, if set, observes every completed inference on Main.
	OnResult func(DetectionResult)
	Clock    timeutil.Clock
}

// Coordinator gates camera frames, runs the model off the main queue and
// applies results back on it. Every method must be called on the main queue.
type Coordinator struct {
	opts    Options
	enabled bool

	paused        bool
	closed        bool
	inFlight      bool
	hasProcessed  bool
	lastProcessed time.Duration
	generation    uint64
	seq           uint64
	applied       uint64
	cancel        context.CancelFunc
	last          *DetectionResult
	stats         Stats
}

// NewCoordinator returns a coordinator. Without a model it stays disabled
// and ignores every frame.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Worker == nil {
		opts.Worker = mainthread.Inline{}
	}
	if opts.Main == nil {
		opts.Main = mainthread.Inline{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Config.InputSize <= 0 {
		opts.Config.InputSize = 512
	}
	if opts.Config.RadiusCompensation == 0 {
		opts.Config.RadiusCompensation = 1
	}
	c := &Coordinator{opts: opts, enabled: opts.Model != nil}
	if !c.enabled {
		opsf("no segmentation model, wheel detection disabled")
	}
	return c
}

// Enabled reports whether a model is configured.
func (c *Coordinator) Enabled() bool { return c.enabled }

// Paused reports whether frames are being ignored.
func (c *Coordinator) Paused() bool { return c.paused }

// InFlight reports whether an inference is running.
func (c *Coordinator) InFlight() bool { return c.inFlight }

// Stats returns the frame counters.
func (c *Coordinator) Stats() Stats { return c.stats }

// Last returns the most recent applied result, or nil.
func (c *Coordinator) Last() *DetectionResult { return c.last }

// OnFrame offers a frame to the detector. It returns true when the frame was
// dispatched for inference.
func (c *Coordinator) OnFrame(f arsession.Frame) bool {
	if !c.enabled || c.paused || c.closed {
		return false
	}
	c.stats.Frames++
	if c.inFlight {
		c.stats.SkippedInFlight++
		tracef("frame %v skipped, inference in flight", f.Timestamp)
		return false
	}
	if c.hasProcessed && f.Timestamp-c.lastProcessed < c.opts.Config.Interval {
		c.stats.Throttled++
		return false
	}
	if f.Image == nil {
		return false
	}
	c.hasProcessed = true
	c.lastProcessed = f.Timestamp
	c.inFlight = true
	c.seq++
	seq, gen := c.seq, c.generation

	var ctx context.Context
	var cancel context.CancelFunc
	if c.opts.Config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.Config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel

	img := f.Image
	window := ResolveWindow(c.opts.Config.Window, img.Bounds())
	ts := f.Timestamp
	c.stats.Inferences++
	tracef("frame %v dispatched seq=%d window=%v", ts, seq, window)

	accepted := c.opts.Worker.Post(func() {
		res := c.infer(ctx, img, window)
		res.Seq = seq
		res.Timestamp = ts
		if !c.opts.Main.Post(func() { c.complete(gen, cancel, res) }) {
			cancel()
		}
	})
	if !accepted {
		cancel()
		c.inFlight = false
		c.cancel = nil
		opsf("worker rejected inference for frame %v", ts)
		return false
	}
	return true
}

// infer runs on the worker. It must not touch the scene graph or any
// coordinator state.
func (c *Coordinator) infer(ctx context.Context, img image.Image, window image.Rectangle) (res DetectionResult) {
	start := c.opts.Clock.Now()
	size := c.opts.Config.InputSize
	defer func() { res.Latency = c.opts.Clock.Since(start) }()

	in, err := Preprocess(img, window, size)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	out, err := c.opts.Model.Predict(ctx, in)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	box, found, err := Decode(out, size)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if found {
		res.Found = true
		res.Box = box
		res.Center, res.Edge = MapToView(box, window, size)
	}
	return res
}

// complete runs on the main queue.
func (c *Coordinator) complete(gen uint64, cancel context.CancelFunc, res DetectionResult) {
	cancel()
	if gen != c.generation || c.closed {
		c.stats.Stale++
		diagf("discarding inference seq=%d from generation %d", res.Seq, gen)
		return
	}
	c.inFlight = false
	c.cancel = nil
	if res.Seq <= c.applied {
		c.stats.Stale++
		return
	}
	c.applied = res.Seq

	switch {
	case res.Err != "":
		c.stats.Errors++
		opsf("inference seq=%d failed: %s", res.Seq, res.Err)
		c.lost()
	case !res.Found:
		c.stats.Misses++
		tracef("inference seq=%d: no wheel", res.Seq)
		c.lost()
	default:
		c.stats.Detections++
		c.apply(&res)
	}
	c.last = &res
	if c.opts.OnResult != nil {
		c.opts.OnResult(res)
	}
}

func (c *Coordinator) target() *assembly.Assembly {
	if c.opts.Target == nil {
		return nil
	}
	return c.opts.Target()
}

func (c *Coordinator) lost() {
	if a := c.target(); a != nil && c.opts.Config.HideOnLost {
		a.Container.Hidden = true
	}
}

func (c *Coordinator) apply(res *DetectionResult) {
	a := c.target()
	if a == nil {
		tracef("wheel detected but nothing placed")
		return
	}
	centerHits := c.opts.Session.HitTest(res.Center, arsession.HitFeaturePoint)
	edgeHits := c.opts.Session.HitTest(res.Edge, arsession.HitFeaturePoint)
	if len(centerHits) == 0 || len(edgeHits) == 0 {
		tracef("inference seq=%d: feature hit test missed (center=%d edge=%d)", res.Seq, len(centerHits), len(edgeHits))
		c.lost()
		return
	}
	center := centerHits[0].Position()
	edge := edgeHits[0].Position()
	radius := spatial.Distance(center, edge) * c.opts.Config.RadiusCompensation

	ref := c.opts.Config.ReferenceRadius
	if ref <= 0 {
		ref = a.ReferenceRadius
	}
	if ref <= 0 || radius <= 0 {
		return
	}
	a.SetWorldPosition(center)
	a.SetUniformScale(radius / ref)
	a.Container.Hidden = false

	res.Resolved = true
	res.WorldCenter = center
	res.Radius = radius
	diagf("wheel at (%.3f,%.3f,%.3f) radius=%.3f scale=%.3f", center.X, center.Y, center.Z, radius, radius/ref)
}

// Pause stops accepting frames and abandons any running inference.
func (c *Coordinator) Pause() {
	if c.paused {
		return
	}
	c.paused = true
	c.abandon()
	diagf("paused")
}

// Resume accepts frames again. The next frame is processed immediately.
func (c *Coordinator) Resume() {
	if !c.paused || c.closed {
		return
	}
	c.paused = false
	c.hasProcessed = false
	diagf("resumed")
}

// Reset abandons any running inference and forgets the gate and the last
// result, as after a session restart. Results dispatched before the reset
// are discarded when they complete.
func (c *Coordinator) Reset() {
	c.abandon()
	c.hasProcessed = false
	c.lastProcessed = 0
	c.last = nil
	diagf("reset")
}

// Close stops the coordinator permanently.
func (c *Coordinator) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.abandon()
}

func (c *Coordinator) abandon() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
}
