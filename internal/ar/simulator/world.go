package simulator

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

// PlaneSpec describes a real-world planar surface. Width runs along the
// surface horizontal, Height along the surface vertical (or depth for
// horizontal planes). Detected optionally overrides the extent reported when
// the plane is first detected.
type PlaneSpec struct {
	Name      string            `yaml:"name"`
	Center    r3.Vec            `yaml:"center"`
	Normal    r3.Vec            `yaml:"normal"`
	Width     float64           `yaml:"width"`
	Height    float64           `yaml:"height"`
	Alignment string            `yaml:"alignment"` // "vertical" (default) or "horizontal"
	Detected  *arsession.Extent `yaml:"detected,omitempty"`
}

// WheelSpec describes the physical wheel that the segmentation model looks
// for. The wheel is drawn as a flat disc facing along Normal.
type WheelSpec struct {
	Center r3.Vec  `yaml:"center"`
	Normal r3.Vec  `yaml:"normal"`
	Radius float64 `yaml:"radius"`
	Color  string  `yaml:"color"` // hex
}

// WorldSpec is the full description of a simulated scene.
type WorldSpec struct {
	Camera           Camera      `yaml:"camera"`
	Planes           []PlaneSpec `yaml:"planes"`
	Wheel            *WheelSpec  `yaml:"wheel,omitempty"`
	Background       string      `yaml:"background"`        // hex
	FeatureSpacing   float64     `yaml:"feature_spacing"`   // metres between sampled feature points
	FeatureTolerance float64     `yaml:"feature_tolerance"` // max ray distance for a feature point hit
}

// DefaultWorld is a car body panel 1.2 m in front of the camera with a
// wheel at the view centre.
func DefaultWorld() WorldSpec {
	return WorldSpec{
		Camera: DefaultCamera(),
		Planes: []PlaneSpec{{
			Name:      "door",
			Center:    r3.Vec{Y: 0.4, Z: -1.2},
			Normal:    r3.Vec{Z: 1},
			Width:     3.0,
			Height:    1.2,
			Alignment: "vertical",
			Detected:  &arsession.Extent{Width: 1.0, Depth: 0.6},
		}},
		Wheel: &WheelSpec{
			Center: r3.Vec{Y: 0.4, Z: -1.19},
			Normal: r3.Vec{Z: 1},
			Radius: 0.3,
			Color:  "#1a1a1a",
		},
		Background:       "#c8ccd0",
		FeatureSpacing:   0.02,
		FeatureTolerance: 0.015,
	}
}

// PlaneID returns the stable anchor identifier for a named plane.
func PlaneID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("carstom:plane:"+name))
}

type plane struct {
	spec      PlaneSpec
	id        uuid.UUID
	alignment arsession.Alignment
	normal    r3.Vec
	transform mgl64.Mat4
	detected  bool
	extent    arsession.Extent
}

func newPlane(spec PlaneSpec) (*plane, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("plane name is required")
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("plane %q must have positive size", spec.Name)
	}
	if spatial.Length(spec.Normal) == 0 {
		return nil, fmt.Errorf("plane %q has a zero normal", spec.Name)
	}
	p := &plane{spec: spec, id: PlaneID(spec.Name), normal: r3.Unit(spec.Normal)}
	switch spec.Alignment {
	case "", "vertical":
		p.alignment = arsession.AlignmentVertical
	case "horizontal":
		p.alignment = arsession.AlignmentHorizontal
	default:
		return nil, fmt.Errorf("plane %q has unknown alignment %q", spec.Name, spec.Alignment)
	}
	p.transform = surfaceFrame(spec.Center, p.normal)
	return p, nil
}

// surfaceFrame returns an anchor transform at origin whose local +Y is
// normal and whose local +X is horizontal where possible.
func surfaceFrame(origin, normal r3.Vec) mgl64.Mat4 {
	x := r3.Cross(r3.Vec{Y: 1}, normal)
	if spatial.Length(x) < 1e-9 {
		x = r3.Vec{X: 1}
	}
	x = r3.Unit(x)
	z := r3.Cross(x, normal)
	return mgl64.Mat4FromCols(
		spatial.ToMgl(x).Vec4(0),
		spatial.ToMgl(normal).Vec4(0),
		spatial.ToMgl(z).Vec4(0),
		spatial.ToMgl(origin).Vec4(1),
	)
}

func (p *plane) anchor() arsession.PlaneAnchor {
	return arsession.PlaneAnchor{
		ID:        p.id,
		Transform: p.transform,
		Extent:    p.extent,
		Alignment: p.alignment,
	}
}

// withinExtent reports whether a world point on the plane lies inside the
// currently detected extent.
func (p *plane) withinExtent(world r3.Vec) bool {
	local := spatial.TransformPoint(p.transform.Inv(), world)
	return math.Abs(local.X) <= p.extent.Width/2 && math.Abs(local.Z) <= p.extent.Depth/2
}

// withinBounds reports whether a world point lies on the physical surface.
func (p *plane) withinBounds(world r3.Vec) bool {
	local := spatial.TransformPoint(p.transform.Inv(), world)
	return math.Abs(local.X) <= p.spec.Width/2 && math.Abs(local.Z) <= p.spec.Height/2
}

func parseHex(name, s string, fallback colorful.Color) (colorful.Color, error) {
	if s == "" {
		return fallback, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid %s color %q: %w", name, s, err)
	}
	return c, nil
}

// sampleFeatures scatters feature points over every physical plane and the
// wheel disc on a regular grid.
func sampleFeatures(planes []*plane, wheel *WheelSpec, spacing float64) []r3.Vec {
	var pts []r3.Vec
	for _, p := range planes {
		nx := int(math.Floor(p.spec.Width/spacing/2 + 1e-9))
		nz := int(math.Floor(p.spec.Height/spacing/2 + 1e-9))
		for i := -nx; i <= nx; i++ {
			for k := -nz; k <= nz; k++ {
				local := r3.Vec{X: float64(i) * spacing, Z: float64(k) * spacing}
				pts = append(pts, spatial.TransformPoint(p.transform, local))
			}
		}
	}
	if wheel != nil && wheel.Radius > 0 {
		frame := surfaceFrame(wheel.Center, r3.Unit(wheel.Normal))
		n := int(math.Ceil(wheel.Radius / spacing))
		for i := -n; i <= n; i++ {
			for k := -n; k <= n; k++ {
				local := r3.Vec{X: float64(i) * spacing, Z: float64(k) * spacing}
				if math.Hypot(local.X, local.Z) > wheel.Radius+1e-9 {
					continue
				}
				pts = append(pts, spatial.TransformPoint(frame, local))
			}
		}
	}
	return pts
}
