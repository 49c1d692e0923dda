// Package simulator is a software AR runtime. It tracks a scripted world of
// planes and a wheel, answers hit tests the way a device session would, and
// renders synthetic camera frames for the segmentation path.
//
// A Simulator is not safe for concurrent use; drive it from the main queue.
package simulator

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

// ErrUnknownPlane is returned for operations naming a plane the world does
// not contain.
var ErrUnknownPlane = errors.New("unknown plane")

// Simulator implements arsession.Session and arsession.NodeHitTester.
type Simulator struct {
	camera     Camera
	planes     []*plane
	byName     map[string]*plane
	wheel      *WheelSpec
	wheelColor colorful.Color
	background colorful.Color
	features   []r3.Vec
	tolerance  float64
	scene      *scenegraph.Node
}

// New builds a simulator for spec. scene is the root node used for node hit
// tests and may be nil.
func New(spec WorldSpec, scene *scenegraph.Node) (*Simulator, error) {
	if err := spec.Camera.validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		camera:    spec.Camera,
		byName:    make(map[string]*plane),
		wheel:     spec.Wheel,
		tolerance: spec.FeatureTolerance,
		scene:     scene,
	}
	if s.tolerance <= 0 {
		s.tolerance = 0.015
	}
	spacing := spec.FeatureSpacing
	if spacing <= 0 {
		spacing = 0.02
	}
	for _, ps := range spec.Planes {
		p, err := newPlane(ps)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[ps.Name]; dup {
			return nil, fmt.Errorf("duplicate plane %q", ps.Name)
		}
		s.planes = append(s.planes, p)
		s.byName[ps.Name] = p
	}
	var err error
	if s.background, err = parseHex("background", spec.Background, colorful.Color{R: 0.8, G: 0.8, B: 0.8}); err != nil {
		return nil, err
	}
	if s.wheel != nil {
		if s.wheel.Radius <= 0 || spatial.Length(s.wheel.Normal) == 0 {
			return nil, fmt.Errorf("wheel needs a positive radius and a normal")
		}
		if s.wheelColor, err = parseHex("wheel", s.wheel.Color, colorful.Color{}); err != nil {
			return nil, err
		}
	}
	s.features = sampleFeatures(s.planes, s.wheel, spacing)
	return s, nil
}

// SetScene replaces the root node used for node hit tests.
func (s *Simulator) SetScene(root *scenegraph.Node) { s.scene = root }

// Camera returns the current camera.
func (s *Simulator) Camera() Camera { return s.camera }

// MoveCamera moves the camera, keeping its viewing direction.
func (s *Simulator) MoveCamera(pos r3.Vec) {
	offset := r3.Sub(s.camera.Target, s.camera.Position)
	s.camera.Position = pos
	s.camera.Target = r3.Add(pos, offset)
}

// Project maps a world point onto the viewport.
func (s *Simulator) Project(p r3.Vec) (arsession.ScreenPoint, bool) {
	return s.camera.Project(p)
}

// FeaturePointCount returns the number of sampled feature points.
func (s *Simulator) FeaturePointCount() int { return len(s.features) }

func (s *Simulator) plane(name string) (*plane, error) {
	p, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlane, name)
	}
	return p, nil
}

// Detect starts tracking a plane and returns its anchor. added is false when
// the plane was already tracked, in which case the current anchor is
// returned unchanged.
func (s *Simulator) Detect(name string) (anchor arsession.PlaneAnchor, added bool, err error) {
	p, err := s.plane(name)
	if err != nil {
		return arsession.PlaneAnchor{}, false, err
	}
	if p.detected {
		return p.anchor(), false, nil
	}
	p.detected = true
	p.extent = arsession.Extent{Width: p.spec.Width, Depth: p.spec.Height}
	if p.spec.Detected != nil {
		p.extent = *p.spec.Detected
	}
	return p.anchor(), true, nil
}

// Grow refines the detected extent of a tracked plane.
func (s *Simulator) Grow(name string, width, depth float64) (arsession.PlaneAnchor, error) {
	p, err := s.plane(name)
	if err != nil {
		return arsession.PlaneAnchor{}, err
	}
	if !p.detected {
		return arsession.PlaneAnchor{}, fmt.Errorf("plane %q is not tracked", name)
	}
	if width <= 0 || depth <= 0 {
		return arsession.PlaneAnchor{}, fmt.Errorf("extent must be positive, got %gx%g", width, depth)
	}
	p.extent = arsession.Extent{Width: width, Depth: depth}
	return p.anchor(), nil
}

// Lose stops tracking a plane and returns its anchor id.
func (s *Simulator) Lose(name string) (uuid.UUID, error) {
	p, err := s.plane(name)
	if err != nil {
		return uuid.Nil, err
	}
	if !p.detected {
		return uuid.Nil, fmt.Errorf("plane %q is not tracked", name)
	}
	p.detected = false
	return p.id, nil
}

// Reset forgets every tracked plane.
func (s *Simulator) Reset() {
	for _, p := range s.planes {
		p.detected = false
	}
}

// HitTest implements arsession.Session.
func (s *Simulator) HitTest(pt arsession.ScreenPoint, types arsession.HitTestType) []arsession.HitResult {
	ray, err := s.camera.Ray(pt)
	if err != nil {
		return nil
	}
	var results []arsession.HitResult
	for _, p := range s.planes {
		if r, ok := s.hitPlane(ray, p, types); ok {
			results = append(results, r)
		}
	}
	if types&arsession.HitFeaturePoint != 0 {
		results = append(results, s.hitFeatures(ray)...)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results
}

// hitPlane reports the most specific qualifying hit type for one plane.
func (s *Simulator) hitPlane(ray spatial.Ray, p *plane, types arsession.HitTestType) (arsession.HitResult, bool) {
	t, ok := spatial.IntersectPlane(ray, p.spec.Center, p.normal)
	if !ok {
		return arsession.HitResult{}, false
	}
	hit := ray.At(t)
	var kind arsession.HitTestType
	switch {
	case types&arsession.HitExistingPlaneUsingExtent != 0 && p.detected && p.withinExtent(hit):
		kind = arsession.HitExistingPlaneUsingExtent
	case types&arsession.HitExistingPlane != 0 && p.detected:
		kind = arsession.HitExistingPlane
	case types&arsession.HitEstimatedVerticalPlane != 0 && p.alignment == arsession.AlignmentVertical && p.withinBounds(hit):
		kind = arsession.HitEstimatedVerticalPlane
	case types&arsession.HitEstimatedHorizontalPlane != 0 && p.alignment == arsession.AlignmentHorizontal && p.withinBounds(hit):
		kind = arsession.HitEstimatedHorizontalPlane
	default:
		return arsession.HitResult{}, false
	}
	rot := p.transform
	rot.SetCol(3, mgl64.Vec4{0, 0, 0, 1})
	r := arsession.HitResult{
		Type:           kind,
		WorldTransform: spatial.Translation(hit).Mul4(rot),
		Distance:       t,
	}
	if kind == arsession.HitExistingPlane || kind == arsession.HitExistingPlaneUsingExtent {
		r.AnchorID = p.id
	}
	return r, true
}

func (s *Simulator) hitFeatures(ray spatial.Ray) []arsession.HitResult {
	var out []arsession.HitResult
	for _, fp := range s.features {
		d, t := spatial.DistanceToRay(ray, fp)
		if t <= 0 || d > s.tolerance {
			continue
		}
		out = append(out, arsession.HitResult{
			Type:           arsession.HitFeaturePoint,
			WorldTransform: spatial.Translation(fp),
			Distance:       t,
		})
	}
	return out
}

// HitTestNodes implements arsession.NodeHitTester using bounding spheres.
func (s *Simulator) HitTestNodes(pt arsession.ScreenPoint, mask scenegraph.Category) []arsession.NodeHit {
	if s.scene == nil {
		return nil
	}
	ray, err := s.camera.Ray(pt)
	if err != nil {
		return nil
	}
	var hits []arsession.NodeHit
	s.scene.Walk(func(n *scenegraph.Node) bool {
		if n.Hidden {
			return false
		}
		if n.Category&mask == 0 {
			return true
		}
		center, radius, ok := n.BoundingSphere()
		if !ok {
			return true
		}
		d, t := spatial.DistanceToRay(ray, center)
		if t > 0 && d <= radius {
			hits = append(hits, arsession.NodeHit{Node: n, WorldPosition: center, Distance: t})
		}
		return true
	})
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

// Frame renders the camera view at ts: the background with the wheel disc
// drawn in its own color.
func (s *Simulator) Frame(ts time.Duration) arsession.Frame {
	img := image.NewRGBA(image.Rect(0, 0, s.camera.Width, s.camera.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(toRGBA(s.background)), image.Point{}, draw.Src)
	if s.wheel != nil {
		s.drawWheel(img)
	}
	return arsession.Frame{Timestamp: ts, Image: img}
}

func (s *Simulator) drawWheel(img *image.RGBA) {
	c, ok := s.camera.Project(s.wheel.Center)
	if !ok {
		return
	}
	frame := surfaceFrame(s.wheel.Center, r3.Unit(s.wheel.Normal))
	edgeWorld := spatial.TransformPoint(frame, r3.Vec{X: s.wheel.Radius})
	e, ok := s.camera.Project(edgeWorld)
	if !ok {
		return
	}
	r := math.Hypot(e.X-c.X, e.Y-c.Y)
	fill := toRGBA(s.wheelColor)
	b := img.Bounds()
	minX := max(b.Min.X, int(math.Floor(c.X-r)))
	maxX := min(b.Max.X-1, int(math.Ceil(c.X+r)))
	minY := max(b.Min.Y, int(math.Floor(c.Y-r)))
	maxY := min(b.Max.Y-1, int(math.Ceil(c.Y+r)))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if math.Hypot(float64(x)+0.5-c.X, float64(y)+0.5-c.Y) <= r {
				img.SetRGBA(x, y, fill)
			}
		}
	}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
