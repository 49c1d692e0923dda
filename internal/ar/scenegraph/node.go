// Package scenegraph is the node tree handed to the renderer. It carries
// transforms, visibility, geometry descriptors and shared materials; it does
// not draw anything.
//
// Nodes are not safe for concurrent use. All mutation happens on the main
// queue (see internal/ar/mainthread).
package scenegraph

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/spatial"
)

// Category is a bitmask used to filter node hit tests.
type Category uint32

const (
	CategoryDefault Category = 1 << iota
	CategorySelectable
	CategorySurface
	CategoryMask
)

// GeometryKind identifies the primitive a node draws.
type GeometryKind int

const (
	GeometryPlane GeometryKind = iota + 1
	GeometryDisc
	GeometryModel
)

// Geometry describes what the renderer should draw for a node. Dimensions
// are in the node's local units.
type Geometry struct {
	Kind   GeometryKind
	Width  float64 // plane, along local X
	Height float64 // plane, along local Y
	Radius float64 // disc radius, or bounding radius of a model asset
	Asset  string  // model asset name
}

// BoundingRadius returns the radius of a sphere around the local origin that
// encloses the geometry.
func (g *Geometry) BoundingRadius() float64 {
	if g == nil {
		return 0
	}
	switch g.Kind {
	case GeometryPlane:
		return math.Hypot(g.Width, g.Height) / 2
	default:
		return g.Radius
	}
}

// Node is one element of the scene tree.
type Node struct {
	Name     string
	Position r3.Vec
	Rotation mgl64.Quat
	Scale    r3.Vec
	Hidden   bool
	Category Category
	Geometry *Geometry
	// Material may be shared between nodes; mutating it affects every node
	// that references it.
	Material *Material

	parent   *Node
	children []*Node
}

// NewNode returns a node with identity rotation and unit scale.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: mgl64.QuatIdent(),
		Scale:    spatial.Uniform(1),
	}
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// AddChild attaches c to n, detaching it from any previous parent.
func (n *Node) AddChild(c *Node) {
	if c.parent != nil {
		c.RemoveFromParent()
	}
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveFromParent detaches n from its parent. It is a no-op for roots.
func (n *Node) RemoveFromParent() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// ChildNamed returns the first descendant with the given name, searching
// depth-first. When recursive is false only direct children are considered.
func (n *Node) ChildNamed(name string, recursive bool) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
		if recursive {
			if found := c.ChildNamed(name, true); found != nil {
				return found
			}
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the visited node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Ancestor returns the nearest node, starting with n itself, for which match
// returns true.
func (n *Node) Ancestor(match func(*Node) bool) *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// IsVisible reports whether neither n nor any ancestor is hidden.
func (n *Node) IsVisible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Hidden {
			return false
		}
	}
	return true
}

// SetEulerAngles sets the rotation from angles in radians about X, Y and Z,
// applied Z first, then X, then Y.
func (n *Node) SetEulerAngles(x, y, z float64) {
	qx := mgl64.QuatRotate(x, mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(y, mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(z, mgl64.Vec3{0, 0, 1})
	n.Rotation = qy.Mul(qx).Mul(qz)
}

// SetUniformScale sets all three scale components to s.
func (n *Node) SetUniformScale(s float64) {
	n.Scale = spatial.Uniform(s)
}

// LocalTransform returns the node transform relative to its parent.
func (n *Node) LocalTransform() mgl64.Mat4 {
	return spatial.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldTransform returns the node transform relative to the scene root.
func (n *Node) WorldTransform() mgl64.Mat4 {
	m := n.LocalTransform()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalTransform().Mul4(m)
	}
	return m
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() r3.Vec {
	return spatial.PositionFromTransform(n.WorldTransform())
}

// ConvertFromWorld maps a world-space point into n's local space.
func (n *Node) ConvertFromWorld(p r3.Vec) r3.Vec {
	return spatial.TransformPoint(n.WorldTransform().Inv(), p)
}

// ConvertToWorld maps a point in n's local space into world space.
func (n *Node) ConvertToWorld(p r3.Vec) r3.Vec {
	return spatial.TransformPoint(n.WorldTransform(), p)
}

// SetWorldPosition moves n so that its origin lands on p in world space.
func (n *Node) SetWorldPosition(p r3.Vec) {
	if n.parent == nil {
		n.Position = p
		return
	}
	n.Position = n.parent.ConvertFromWorld(p)
}

// WorldScale returns the largest axis scale of the world transform.
func (n *Node) WorldScale() float64 {
	m := n.WorldTransform()
	sx := spatial.Length(spatial.TransformDirection(m, r3.Vec{X: 1}))
	sy := spatial.Length(spatial.TransformDirection(m, r3.Vec{Y: 1}))
	sz := spatial.Length(spatial.TransformDirection(m, r3.Vec{Z: 1}))
	return math.Max(sx, math.Max(sy, sz))
}

// BoundingSphere returns a world-space sphere centred on n that encloses the
// visible geometry of n and its descendants. Occlusion masks are not
// visible geometry. ok is false when the subtree has none.
func (n *Node) BoundingSphere() (center r3.Vec, radius float64, ok bool) {
	center = n.WorldPosition()
	n.Walk(func(c *Node) bool {
		if c.Hidden || c.Category&CategoryMask != 0 {
			return false
		}
		if c.Geometry == nil {
			return true
		}
		r := spatial.Distance(c.WorldPosition(), center) + c.Geometry.BoundingRadius()*c.WorldScale()
		if r > radius {
			radius = r
		}
		ok = true
		return true
	})
	return center, radius, ok
}
