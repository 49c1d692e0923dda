// Package surface tracks the vertical planes reported by the AR session and
// maintains a translucent proxy node for each so the user can see where an
// object can be placed.
package surface

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

// Config controls how surface proxies are drawn.
type Config struct {
	DebugAlpha float64
	DebugColor colorful.Color
}

// DefaultConfig returns a half transparent white proxy.
func DefaultConfig() Config {
	return Config{DebugAlpha: 0.5, DebugColor: colorful.Color{R: 1, G: 1, B: 1}}
}

// surfaceRotation turns a node's local X/Y plane into the anchor's X/Z
// plane, so local +Z points along the surface normal.
var surfaceRotation = mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{1, 0, 0})

// Surface is a tracked vertical plane.
type Surface struct {
	ID     uuid.UUID
	Center r3.Vec
	Extent arsession.Extent

	// Anchor follows the anchor transform. Proxy is the visible plane sized
	// to the extent. Content is where placed objects attach; it shares the
	// proxy orientation but stays at the anchor origin so extent refinements
	// do not move placed objects.
	Anchor        *scenegraph.Node
	Proxy         *scenegraph.Node
	Content       *scenegraph.Node
	DebugMaterial *scenegraph.Material

	Placed bool
}

// Normal returns the world-space surface normal.
func (s *Surface) Normal() r3.Vec {
	return r3.Unit(spatial.TransformDirection(s.Anchor.WorldTransform(), r3.Vec{Y: 1}))
}

// MarkPlaced records that an object sits on this surface.
func (s *Surface) MarkPlaced() { s.Placed = true }

// ClearPlaced records that the object on this surface was removed.
func (s *Surface) ClearPlaced() { s.Placed = false }

func (s *Surface) apply(a arsession.PlaneAnchor) {
	s.Center = a.Center
	s.Extent = a.Extent
	s.Anchor.Position = spatial.PositionFromTransform(a.Transform)
	s.Anchor.Rotation = mgl64.Mat4ToQuat(a.Transform)
	s.Proxy.Position = r3.Vec{X: a.Center.X, Z: a.Center.Z}
	s.Proxy.Geometry.Width = a.Extent.Width
	s.Proxy.Geometry.Height = a.Extent.Depth
}

// Detector maps anchor identifiers to surfaces.
type Detector struct {
	root  *scenegraph.Node
	cfg   Config
	byID  map[uuid.UUID]*Surface
	order []uuid.UUID
}

// NewDetector returns a detector that attaches anchor nodes under root.
func NewDetector(root *scenegraph.Node, cfg Config) *Detector {
	return &Detector{
		root: root,
		cfg:  cfg,
		byID: make(map[uuid.UUID]*Surface),
	}
}

// OnSurfaceAdded creates a surface for a newly reported vertical anchor.
// Non-vertical anchors are ignored. Reporting an already tracked anchor
// returns the existing surface with added false.
func (d *Detector) OnSurfaceAdded(a arsession.PlaneAnchor) (s *Surface, added bool) {
	if a.Alignment != arsession.AlignmentVertical {
		tracef("ignoring %s anchor %s", a.Alignment, a.ID)
		return nil, false
	}
	if existing, ok := d.byID[a.ID]; ok {
		diagf("anchor %s reported twice, keeping existing surface", a.ID)
		return existing, false
	}

	mat := scenegraph.NewMaterial("surface-debug")
	mat.Diffuse = d.cfg.DebugColor
	mat.Alpha = d.cfg.DebugAlpha

	anchor := scenegraph.NewNode("anchor-" + a.ID.String())
	proxy := scenegraph.NewNode("surface-proxy")
	proxy.Rotation = surfaceRotation
	proxy.Category = scenegraph.CategorySurface
	proxy.Geometry = &scenegraph.Geometry{Kind: scenegraph.GeometryPlane}
	proxy.Material = mat
	content := scenegraph.NewNode("surface-content")
	content.Rotation = surfaceRotation
	anchor.AddChild(proxy)
	anchor.AddChild(content)

	s = &Surface{
		ID:            a.ID,
		Anchor:        anchor,
		Proxy:         proxy,
		Content:       content,
		DebugMaterial: mat,
	}
	s.apply(a)
	d.root.AddChild(anchor)
	d.byID[a.ID] = s
	d.order = append(d.order, a.ID)
	diagf("tracking surface %s extent=%.3fx%.3f", a.ID, a.Extent.Width, a.Extent.Depth)
	return s, true
}

// OnSurfaceUpdated refreshes the center, extent and transform of a tracked
// surface in place. It returns false for unknown anchors.
func (d *Detector) OnSurfaceUpdated(a arsession.PlaneAnchor) bool {
	s, ok := d.byID[a.ID]
	if !ok {
		tracef("update for untracked anchor %s", a.ID)
		return false
	}
	s.apply(a)
	tracef("surface %s extent=%.3fx%.3f", a.ID, a.Extent.Width, a.Extent.Depth)
	return true
}

// OnSurfaceRemoved stops tracking a surface and detaches its nodes,
// including anything placed on it.
func (d *Detector) OnSurfaceRemoved(id uuid.UUID) (*Surface, bool) {
	s, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	s.Anchor.RemoveFromParent()
	delete(d.byID, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if s.Placed {
		opsf("surface %s removed with a placed object attached", id)
	} else {
		diagf("surface %s removed", id)
	}
	return s, true
}

// Reset drops every surface, returning them in tracking order.
func (d *Detector) Reset() []*Surface {
	removed := d.Surfaces()
	for _, s := range removed {
		s.Anchor.RemoveFromParent()
	}
	d.byID = make(map[uuid.UUID]*Surface)
	d.order = nil
	return removed
}

// Surface returns the surface for an anchor id, or nil.
func (d *Detector) Surface(id uuid.UUID) *Surface {
	return d.byID[id]
}

// Surfaces returns every tracked surface in the order it was added.
func (d *Detector) Surfaces() []*Surface {
	out := make([]*Surface, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Len returns the number of tracked surfaces.
func (d *Detector) Len() int { return len(d.byID) }
