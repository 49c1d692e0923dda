// Package arsession defines the contracts between the AR core and the host
// AR runtime: plane anchors, camera frames and hit testing.
package arsession

import (
	"image"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

// Alignment is the orientation class of a detected plane.
type Alignment int

const (
	AlignmentHorizontal Alignment = iota
	AlignmentVertical
)

func (a Alignment) String() string {
	if a == AlignmentVertical {
		return "vertical"
	}
	return "horizontal"
}

// Extent is the size of a detected plane in its own surface axes.
type Extent struct {
	Width float64 `json:"width" yaml:"width"`
	Depth float64 `json:"depth" yaml:"depth"`
}

// PlaneAnchor is a plane tracked by the AR runtime. The plane lies in the
// anchor's local X/Z plane; local +Y is the surface normal. Center is the
// plane centre in anchor-local coordinates.
type PlaneAnchor struct {
	ID        uuid.UUID
	Transform mgl64.Mat4
	Center    r3.Vec
	Extent    Extent
	Alignment Alignment
}

// Position returns the anchor origin in world space.
func (a PlaneAnchor) Position() r3.Vec {
	return spatial.PositionFromTransform(a.Transform)
}

// HitTestType selects which kinds of real-world features a hit test
// considers. Values may be combined.
type HitTestType uint

const (
	HitFeaturePoint HitTestType = 1 << iota
	HitEstimatedHorizontalPlane
	HitEstimatedVerticalPlane
	HitExistingPlane
	HitExistingPlaneUsingExtent
)

func (h HitTestType) String() string {
	names := []struct {
		bit  HitTestType
		name string
	}{
		{HitFeaturePoint, "featurePoint"},
		{HitEstimatedHorizontalPlane, "estimatedHorizontalPlane"},
		{HitEstimatedVerticalPlane, "estimatedVerticalPlane"},
		{HitExistingPlane, "existingPlane"},
		{HitExistingPlaneUsingExtent, "existingPlaneUsingExtent"},
	}
	var parts []string
	for _, n := range names {
		if h&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// HitResult is a single hit test intersection. AnchorID is set for hits on
// existing planes.
type HitResult struct {
	Type           HitTestType
	WorldTransform mgl64.Mat4
	Distance       float64
	AnchorID       uuid.UUID
}

// Position returns the world-space intersection point.
func (h HitResult) Position() r3.Vec {
	return spatial.PositionFromTransform(h.WorldTransform)
}

// ScreenPoint is a position in view coordinates, origin top-left, in points.
type ScreenPoint struct {
	X float64
	Y float64
}

// Frame is one camera frame. Timestamp is measured from session start.
type Frame struct {
	Timestamp time.Duration
	Image     image.Image
}

// Session is the hit testing surface of the AR runtime. Results are ordered
// nearest first.
type Session interface {
	HitTest(pt ScreenPoint, types HitTestType) []HitResult
}

// NodeHit is a scene node intersected by a node hit test.
type NodeHit struct {
	Node          *scenegraph.Node
	WorldPosition r3.Vec
	Distance      float64
}

// NodeHitTester intersects a screen point with rendered scene nodes whose
// category matches mask. Results are ordered nearest first.
type NodeHitTester interface {
	HitTestNodes(pt ScreenPoint, mask scenegraph.Category) []NodeHit
}
