// Package placement turns a tap on a tracked surface into a placed wheel
// assembly.
package placement

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/surface"
)

// Policy limits how many assemblies may be placed.
type Policy int

const (
	// PolicySession allows a single placement per session.
	PolicySession Policy = iota
	// PolicyPerSurface allows one placement on each surface.
	PolicyPerSurface
)

// ParsePolicy maps a config string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "session":
		return PolicySession, nil
	case "per_surface":
		return PolicyPerSurface, nil
	}
	return PolicySession, fmt.Errorf("unknown placement policy %q", s)
}

func (p Policy) String() string {
	if p == PolicyPerSurface {
		return "per_surface"
	}
	return "session"
}

// Config holds the placement parameters.
type Config struct {
	Policy       Policy
	DefaultScale float64
	NormalOffset float64
	FadeDuration time.Duration
	Blueprint    assembly.Blueprint
}

// DefaultConfig returns the stock placement parameters.
func DefaultConfig() Config {
	return Config{
		Policy:       PolicySession,
		DefaultScale: 1,
		NormalOffset: 0.01,
		FadeDuration: 500 * time.Millisecond,
		Blueprint:    assembly.DefaultBlueprint(),
	}
}

// Controller places assemblies on tracked surfaces.
type Controller struct {
	cfg      Config
	session  arsession.Session
	surfaces *surface.Detector
	animator *scenegraph.Animator
	placed   int
}

// NewController returns a controller that hit tests through session and
// resolves anchors through surfaces. Surface fades are scheduled on animator.
func NewController(cfg Config, session arsession.Session, surfaces *surface.Detector, animator *scenegraph.Animator) *Controller {
	return &Controller{cfg: cfg, session: session, surfaces: surfaces, animator: animator}
}

// Placed returns the number of assemblies placed in this session.
func (c *Controller) Placed() int { return c.placed }

// CanPlace reports whether the policy allows another placement at all.
func (c *Controller) CanPlace() bool {
	return c.cfg.Policy == PolicyPerSurface || c.placed == 0
}

// TryPlace hit tests pt against tracked surfaces within their extent and
// places a new assembly on the first eligible hit. Misses change nothing.
func (c *Controller) TryPlace(pt arsession.ScreenPoint) (*assembly.Assembly, bool) {
	if !c.CanPlace() {
		tracef("tap at (%.1f,%.1f) ignored, session already has a placement", pt.X, pt.Y)
		return nil, false
	}
	results := c.session.HitTest(pt, arsession.HitExistingPlaneUsingExtent)
	for _, r := range results {
		s := c.surfaces.Surface(r.AnchorID)
		if s == nil {
			tracef("hit on untracked anchor %s", r.AnchorID)
			continue
		}
		if s.Placed {
			continue
		}
		a, err := c.place(s, r.Position())
		if err != nil {
			opsf("failed to build assembly: %v", err)
			return nil, false
		}
		return a, true
	}
	tracef("tap at (%.1f,%.1f) missed (%d results)", pt.X, pt.Y, len(results))
	return nil, false
}

func (c *Controller) place(s *surface.Surface, world r3.Vec) (*assembly.Assembly, error) {
	a, err := assembly.Build(c.cfg.Blueprint)
	if err != nil {
		return nil, err
	}
	local := s.Content.ConvertFromWorld(world)
	local.Z = c.cfg.NormalOffset
	a.Container.Position = local
	a.SetUniformScale(c.cfg.DefaultScale)
	a.SurfaceID = s.ID
	s.Content.AddChild(a.Container)

	s.MarkPlaced()
	if c.animator != nil {
		c.animator.FadeMaterial(s.DebugMaterial, 0, c.cfg.FadeDuration, nil)
	} else {
		s.DebugMaterial.Alpha = 0
	}
	c.placed++
	diagf("placed assembly %s on surface %s at local (%.3f,%.3f,%.3f)", a.ID, s.ID, local.X, local.Y, local.Z)
	return a, nil
}

// Release detaches a placed assembly and frees its surface for another
// placement. The debug proxy stays transparent.
func (c *Controller) Release(a *assembly.Assembly) {
	if a == nil {
		return
	}
	a.Detach()
	if s := c.surfaces.Surface(a.SurfaceID); s != nil {
		s.ClearPlaced()
	}
	if c.placed > 0 {
		c.placed--
	}
	diagf("released assembly %s", a.ID)
}

// Reset forgets all placements, as after a session restart.
func (c *Controller) Reset() {
	c.placed = 0
}
