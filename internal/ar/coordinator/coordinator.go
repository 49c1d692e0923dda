// Package coordinator owns the state of one AR session and routes plane
// events, camera frames and user intents to the components that act on them.
//
// Every method runs on the main queue. The coordinator itself holds no locks;
// the inference worker hands its results back through the main executor.
package coordinator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/inference"
	"github.com/banshee-data/carstom/internal/ar/mainthread"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/placement"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/selection"
	"github.com/banshee-data/carstom/internal/ar/surface"
	"github.com/banshee-data/carstom/internal/timeutil"
)

// Config groups the per-component settings.
type Config struct {
	Surface      surface.Config
	Placement    placement.Config
	Manipulation manipulation.Settings
	Inference    inference.Config
}

// DefaultConfig returns the stock settings of every component.
func DefaultConfig() Config {
	return Config{
		Surface:      surface.DefaultConfig(),
		Placement:    placement.DefaultConfig(),
		Manipulation: manipulation.DefaultSettings(),
		Inference:    inference.DefaultConfig(),
	}
}

// Options wires a Coordinator to the AR runtime.
type Options struct {
	Config  Config
	Session arsession.Session
	Nodes   arsession.NodeHitTester
	// Root is the scene root shared with the renderer and the node hit
	// tester. A fresh root is created when nil.
	Root *scenegraph.Node
	// Model may be nil; wheel detection is then disabled.
	Model  inference.Model
	Worker mainthread.Executor
	Main   mainthread.Executor
	Clock  timeutil.Clock
}

// SessionState is everything one session owns.
type SessionState struct {
	ID   uuid.UUID
	Root *scenegraph.Node

	Surfaces     *surface.Detector
	Placement    *placement.Controller
	Manipulation *manipulation.Machine
	Selection    *selection.Tracker
	Inference    *inference.Coordinator
	Animator     *scenegraph.Animator

	// Assemblies are the placed objects in placement order. Active is the
	// one manipulation intents act on.
	Assemblies []*assembly.Assembly
	Active     *assembly.Assembly

	LastDetection *inference.DetectionResult
	LastFrame     arsession.Frame

	Paused bool
	Closed bool
}

// Coordinator dispatches session input.
type Coordinator struct {
	state     *SessionState
	nodes     arsession.NodeHitTester
	clock     timeutil.Clock
	observers []Observer
}

// New builds a session from opts.
func New(opts Options) *Coordinator {
	if opts.Root == nil {
		opts.Root = scenegraph.NewNode("root")
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	st := &SessionState{
		ID:           uuid.New(),
		Root:         opts.Root,
		Surfaces:     surface.NewDetector(opts.Root, opts.Config.Surface),
		Manipulation: manipulation.New(opts.Config.Manipulation),
		Selection:    selection.NewTracker(opts.Session, opts.Nodes, scenegraph.CategorySelectable),
		Animator:     scenegraph.NewAnimator(),
	}
	st.Placement = placement.NewController(opts.Config.Placement, opts.Session, st.Surfaces, st.Animator)
	c := &Coordinator{state: st, nodes: opts.Nodes, clock: opts.Clock}
	st.Inference = inference.NewCoordinator(inference.Options{
		Config:   opts.Config.Inference,
		Model:    opts.Model,
		Session:  opts.Session,
		Worker:   opts.Worker,
		Main:     opts.Main,
		Target:   func() *assembly.Assembly { return st.Active },
		OnResult: c.onDetection,
		Clock:    opts.Clock,
	})
	diagf("session %s started", st.ID)
	return c
}

// State returns the session state. Callers must stay on the main queue.
func (c *Coordinator) State() *SessionState { return c.state }

// Subscribe adds an observer.
func (c *Coordinator) Subscribe(o Observer) {
	c.observers = append(c.observers, o)
}

func (c *Coordinator) emit(e Event) {
	e.At = c.clock.Now()
	e.SessionID = c.state.ID
	if e.Mode == "" {
		e.Mode = c.state.Manipulation.Mode().String()
	}
	for _, o := range c.observers {
		o.OnEvent(e)
	}
}

func (c *Coordinator) emitAssembly(kind EventKind, a *assembly.Assembly, detail string) {
	snap := a.Snapshot()
	c.emit(Event{Kind: kind, AssemblyID: a.ID, Detail: detail, Snapshot: &snap})
}

// OnAnchorAdded starts tracking a plane anchor.
func (c *Coordinator) OnAnchorAdded(a arsession.PlaneAnchor) bool {
	if c.state.Closed {
		return false
	}
	if _, added := c.state.Surfaces.OnSurfaceAdded(a); !added {
		return false
	}
	c.emit(Event{Kind: EventSurface, Detail: fmt.Sprintf("added %s %.2fx%.2f", a.ID, a.Extent.Width, a.Extent.Depth)})
	return true
}

// OnAnchorUpdated refreshes a tracked plane.
func (c *Coordinator) OnAnchorUpdated(a arsession.PlaneAnchor) bool {
	if c.state.Closed {
		return false
	}
	if !c.state.Surfaces.OnSurfaceUpdated(a) {
		return false
	}
	c.emit(Event{Kind: EventSurface, Detail: fmt.Sprintf("updated %s %.2fx%.2f", a.ID, a.Extent.Width, a.Extent.Depth)})
	return true
}

// OnAnchorRemoved stops tracking a plane and drops whatever was placed on
// it.
func (c *Coordinator) OnAnchorRemoved(id uuid.UUID) bool {
	if c.state.Closed {
		return false
	}
	if _, ok := c.state.Surfaces.OnSurfaceRemoved(id); !ok {
		return false
	}
	for _, a := range append([]*assembly.Assembly(nil), c.state.Assemblies...) {
		if a.SurfaceID == id {
			c.drop(a)
			c.emitAssembly(EventRemoved, a, "surface lost")
		}
	}
	c.emit(Event{Kind: EventSurface, Detail: fmt.Sprintf("removed %s", id)})
	return true
}

// OnFrame advances surface fades and offers the frame to wheel detection.
func (c *Coordinator) OnFrame(f arsession.Frame) bool {
	st := c.state
	if st.Closed || st.Paused {
		return false
	}
	st.LastFrame = f
	st.Animator.Advance(f.Timestamp)
	return st.Inference.OnFrame(f)
}

func (c *Coordinator) onDetection(res inference.DetectionResult) {
	c.state.LastDetection = &res
	detail := "miss"
	switch {
	case res.Err != "":
		detail = "error: " + res.Err
	case res.Resolved:
		detail = fmt.Sprintf("radius %.3f", res.Radius)
	case res.Found:
		detail = "unresolved"
	}
	if a := c.state.Active; a != nil {
		c.emitAssembly(EventDetection, a, detail)
		return
	}
	c.emit(Event{Kind: EventDetection, Detail: detail})
}

// Handle applies one intent and reports whether it changed anything.
func (c *Coordinator) Handle(in Intent) bool {
	st := c.state
	if st.Closed {
		return false
	}
	m := st.Manipulation
	a := st.Active
	tracef("intent %T%+v mode=%s", in, in, m.Mode())

	switch in := in.(type) {
	case Tap:
		return c.tap(in.Point)
	case EnterMode:
		return c.changeMode(func() { m.Enter(in.Mode) })
	case ToggleMode:
		return c.changeMode(func() { m.Toggle(in.Mode) })
	case ExitMode:
		return c.changeMode(m.Exit)
	case Translate:
		return c.transformed(a, m.Translate(a, in.Direction, in.Coarse), "translate "+in.Direction.String())
	case Scale:
		return c.transformed(a, m.Scale(a, in.Delta), "scale "+in.Delta.String())
	case Depth:
		return c.transformed(a, m.Depth(a, in.Delta), "depth "+in.Delta.String())
	case Recolor:
		return c.transformed(a, m.Recolor(a, in.Swatch), "color "+in.Swatch.String())
	case SwapVariant:
		return c.transformed(a, m.SwapVariant(a, in.Direction), "rim "+in.Direction.String())
	case Swipe:
		return c.transformed(a, m.Swipe(a, in.Direction), "swipe "+in.Direction.String())
	case Drag:
		return c.drag(in)
	case Remove:
		return c.remove()
	case Capture:
		return c.capture()
	}
	opsf("unhandled intent %T", in)
	return false
}

func (c *Coordinator) transformed(a *assembly.Assembly, changed bool, detail string) bool {
	if changed {
		c.emitAssembly(EventTransform, a, detail)
	}
	return changed
}

func (c *Coordinator) changeMode(fn func()) bool {
	before := c.state.Manipulation.Mode()
	fn()
	after := c.state.Manipulation.Mode()
	if before == after {
		return false
	}
	c.emit(Event{Kind: EventMode, Mode: after.String(), Detail: before.String() + " -> " + after.String()})
	return true
}

// tap places a new assembly when the policy allows it, and otherwise makes
// the tapped assembly the active one.
func (c *Coordinator) tap(pt arsession.ScreenPoint) bool {
	st := c.state
	if !st.Manipulation.Controls().PlacementEnabled {
		tracef("tap ignored, placement disabled in %s", st.Manipulation.Mode())
		return false
	}
	if a, ok := st.Placement.TryPlace(pt); ok {
		st.Assemblies = append(st.Assemblies, a)
		st.Active = a
		c.emitAssembly(EventPlaced, a, fmt.Sprintf("tap %.0f,%.0f", pt.X, pt.Y))
		return true
	}
	if a := c.assemblyAt(pt); a != nil && a != st.Active {
		st.Active = a
		diagf("assembly %s selected", a.ID)
		return true
	}
	return false
}

func (c *Coordinator) assemblyAt(pt arsession.ScreenPoint) *assembly.Assembly {
	if c.nodes == nil {
		return nil
	}
	for _, hit := range c.nodes.HitTestNodes(pt, scenegraph.CategorySelectable) {
		if a := c.owner(hit.Node); a != nil {
			return a
		}
	}
	return nil
}

// owner returns the placed assembly containing n.
func (c *Coordinator) owner(n *scenegraph.Node) *assembly.Assembly {
	for _, a := range c.state.Assemblies {
		if ownedBy(n, a) {
			return a
		}
	}
	return nil
}

func ownedBy(n *scenegraph.Node, a *assembly.Assembly) bool {
	return n.Ancestor(func(p *scenegraph.Node) bool { return p == a.Container }) != nil
}

func (c *Coordinator) drag(in Drag) bool {
	st := c.state
	tr := st.Selection
	switch in.Phase {
	case selection.Began, selection.Changed:
		if !st.Manipulation.Controls().GesturesEnabled {
			return false
		}
	}
	if !tr.Handle(in.Phase, in.Point) {
		return false
	}
	h := tr.Active()
	if h == nil {
		return true
	}
	a := c.owner(h.Node)
	if a == nil {
		return true
	}
	switch in.Phase {
	case selection.Began:
		st.Active = a
	case selection.Changed:
		c.emitAssembly(EventTransform, a, "drag")
	}
	return true
}

func (c *Coordinator) remove() bool {
	st := c.state
	a := st.Active
	if !st.Manipulation.Remove(a) {
		return false
	}
	c.drop(a)
	c.emitAssembly(EventRemoved, a, "remove")
	return true
}

// drop releases a from its surface and forgets it.
func (c *Coordinator) drop(a *assembly.Assembly) {
	st := c.state
	st.Placement.Release(a)
	for i, v := range st.Assemblies {
		if v == a {
			st.Assemblies = append(st.Assemblies[:i], st.Assemblies[i+1:]...)
			break
		}
	}
	if h := st.Selection.Active(); h != nil && ownedBy(h.Node, a) {
		st.Selection.Cancelled()
	}
	if st.Active == a {
		st.Active = nil
		if n := len(st.Assemblies); n > 0 {
			st.Active = st.Assemblies[n-1]
		} else {
			st.Manipulation.Exit()
		}
	}
}

func (c *Coordinator) capture() bool {
	st := c.state
	if st.Manipulation.Mode() != manipulation.ModeCameraCapture {
		return false
	}
	if st.LastFrame.Image == nil {
		diagf("capture requested before the first frame")
		return false
	}
	e := Event{Kind: EventCapture, Image: st.LastFrame.Image, Detail: fmt.Sprintf("frame %v", st.LastFrame.Timestamp)}
	if a := st.Active; a != nil {
		snap := a.Snapshot()
		e.AssemblyID = a.ID
		e.Snapshot = &snap
	}
	c.emit(e)
	return true
}

// Pause stops frame processing and abandons any running inference and
// drag, as when the app leaves the foreground.
func (c *Coordinator) Pause() {
	st := c.state
	if st.Paused || st.Closed {
		return
	}
	st.Paused = true
	st.Inference.Pause()
	st.Selection.Cancelled()
	diagf("session %s paused", st.ID)
}

// Resume accepts frames again.
func (c *Coordinator) Resume() {
	st := c.state
	if !st.Paused || st.Closed {
		return
	}
	st.Paused = false
	st.Inference.Resume()
	diagf("session %s resumed", st.ID)
}

// Reset forgets every surface and placement, as after the AR session
// restarts tracking. Mode and palette settings are kept.
func (c *Coordinator) Reset() {
	st := c.state
	if st.Closed {
		return
	}
	st.Inference.Reset()
	st.Selection.Cancelled()
	for _, a := range st.Assemblies {
		a.Detach()
		c.emitAssembly(EventRemoved, a, "reset")
	}
	st.Surfaces.Reset()
	st.Placement.Reset()
	st.Animator.Flush()
	st.Manipulation.Exit()
	st.Assemblies = nil
	st.Active = nil
	st.LastDetection = nil
	diagf("session %s reset", st.ID)
}

// Close tears the session down. Late inference results are discarded.
func (c *Coordinator) Close() {
	st := c.state
	if st.Closed {
		return
	}
	st.Inference.Close()
	st.Selection.Cancelled()
	st.Closed = true
	diagf("session %s closed", st.ID)
}
