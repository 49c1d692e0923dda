// Package assembly builds the composite wheel object: a container holding
// interchangeable rim variants, the brake hardware and an occlusion mask.
package assembly

import (
	"errors"
	"math"

	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/scenegraph"
)

// ErrNoVariants is returned when a blueprint lists no rim variants.
var ErrNoVariants = errors.New("assembly needs at least one rim variant")

// Direction selects the neighbouring variant.
type Direction int

const (
	Next Direction = iota
	Previous
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Part is one model asset inside the assembly.
type Part struct {
	Name    string
	Asset   string
	Radius  float64 // bounding radius in asset units
	Texture string  // optional diffuse texture
}

// Blueprint describes how to build an assembly.
type Blueprint struct {
	Variants []Part
	// Brake parts that take a texture keep their own material; the rest
	// share the dark hardware material.
	Brake []Part

	// PartOffset, PartScale and PartYaw place every variant and the brake
	// inside the container.
	PartOffset r3.Vec
	PartScale  float64
	PartYaw    float64

	// PortalRadius is the radius of the circular cut-out shown through the
	// mask. MaskSize and MaskOffset place the occluding plane.
	PortalRadius float64
	MaskSize     float64
	MaskOffset   r3.Vec
	MaskTexture  string

	RimColor      colorful.Color
	HardwareColor colorful.Color
}

// DefaultBlueprint returns the stock three-rim assembly.
func DefaultBlueprint() Blueprint {
	return Blueprint{
		Variants: []Part{
			{Name: "rim_1", Asset: "rim_1.scn", Radius: 22.5},
			{Name: "rim_2", Asset: "rim_2.scn", Radius: 22.5},
			{Name: "rim_3", Asset: "rim_3.scn", Radius: 22.5},
		},
		Brake: []Part{
			{Name: "Disk", Asset: "brake.scn", Radius: 17, Texture: "brakeDisk.png"},
			{Name: "Caliper_Brembo_8P", Asset: "brake.scn", Radius: 18, Texture: "caliper.png"},
			{Name: "Wheel_mass_nuts", Asset: "brake.scn", Radius: 6},
			{Name: "Brake_rotor", Asset: "brake.scn", Radius: 17},
			{Name: "Object020", Asset: "brake.scn", Radius: 6},
		},
		PartOffset:    r3.Vec{Z: -0.115},
		PartScale:     0.01,
		PartYaw:       -math.Pi / 2,
		PortalRadius:  0.245,
		MaskSize:      1,
		MaskOffset:    r3.Vec{Z: -0.5},
		MaskTexture:   "mask.png",
		RimColor:      colorful.Color{R: 1, G: 1, B: 1},
		HardwareColor: colorful.Color{R: 0.333, G: 0.333, B: 0.333},
	}
}

// Assembly is a placed composite object. Exactly one variant is visible at
// any time.
type Assembly struct {
	ID        uuid.UUID
	SurfaceID uuid.UUID

	Container *scenegraph.Node
	Variants  []*scenegraph.Node
	Brake     *scenegraph.Node
	Portal    *scenegraph.Node
	Mask      *scenegraph.Node

	// RimMaterial is shared by every variant.
	RimMaterial      *scenegraph.Material
	HardwareMaterial *scenegraph.Material

	// ReferenceRadius is the rim radius in container units.
	ReferenceRadius float64

	active int
}

// Build assembles the node tree for bp. Only variant 0 is visible.
func Build(bp Blueprint) (*Assembly, error) {
	if len(bp.Variants) == 0 {
		return nil, ErrNoVariants
	}
	partScale := bp.PartScale
	if partScale <= 0 {
		partScale = 1
	}

	rim := scenegraph.NewMaterial("rim")
	rim.Lighting = scenegraph.LightingPhysicallyBased
	rim.Diffuse = bp.RimColor
	rim.Metalness = 1
	rim.Roughness = 0

	hardware := scenegraph.NewMaterial("hardware")
	hardware.Diffuse = bp.HardwareColor

	a := &Assembly{
		ID:               uuid.New(),
		Container:        scenegraph.NewNode("wheel"),
		RimMaterial:      rim,
		HardwareMaterial: hardware,
	}
	a.Container.Category = scenegraph.CategorySelectable

	place := func(n *scenegraph.Node) {
		n.Position = bp.PartOffset
		n.SetUniformScale(partScale)
		n.SetEulerAngles(0, bp.PartYaw, 0)
	}

	for i, v := range bp.Variants {
		n := scenegraph.NewNode(v.Name)
		n.Geometry = &scenegraph.Geometry{Kind: scenegraph.GeometryModel, Asset: v.Asset, Radius: v.Radius}
		n.Material = rim
		n.Hidden = i != 0
		place(n)
		a.Container.AddChild(n)
		a.Variants = append(a.Variants, n)
		if r := v.Radius * partScale; r > a.ReferenceRadius {
			a.ReferenceRadius = r
		}
	}

	a.Brake = scenegraph.NewNode("brake")
	place(a.Brake)
	for _, p := range bp.Brake {
		n := scenegraph.NewNode(p.Name)
		n.Geometry = &scenegraph.Geometry{Kind: scenegraph.GeometryModel, Asset: p.Asset, Radius: p.Radius}
		if p.Texture != "" {
			m := scenegraph.NewMaterial(p.Name)
			m.Texture = p.Texture
			n.Material = m
		} else {
			n.Material = hardware
		}
		a.Brake.AddChild(n)
	}
	a.Container.AddChild(a.Brake)

	if bp.PortalRadius > 0 {
		a.Portal = scenegraph.NewNode("portal")
		a.Portal.Geometry = &scenegraph.Geometry{Kind: scenegraph.GeometryDisc, Radius: bp.PortalRadius}
		a.Container.AddChild(a.Portal)
	}

	maskMat := scenegraph.NewMaterial("mask")
	maskMat.Texture = bp.MaskTexture
	maskMat.ColorWrite = false
	a.Mask = scenegraph.NewNode("mask")
	a.Mask.Category = scenegraph.CategoryMask
	a.Mask.Geometry = &scenegraph.Geometry{Kind: scenegraph.GeometryPlane, Width: bp.MaskSize, Height: bp.MaskSize}
	a.Mask.Material = maskMat
	a.Mask.Position = bp.MaskOffset
	a.Container.AddChild(a.Mask)
	return a, nil
}

// VariantCount returns the number of rim variants.
func (a *Assembly) VariantCount() int { return len(a.Variants) }

// ActiveVariant returns the index of the visible variant.
func (a *Assembly) ActiveVariant() int { return a.active }

// ActiveVariantName returns the name of the visible variant.
func (a *Assembly) ActiveVariantName() string { return a.Variants[a.active].Name }

// SetActiveVariant shows variant i and hides the rest. Out-of-range indexes
// wrap around.
func (a *Assembly) SetActiveVariant(i int) {
	n := len(a.Variants)
	i %= n
	if i < 0 {
		i += n
	}
	a.active = i
	for k, v := range a.Variants {
		v.Hidden = k != i
	}
}

// SwapVariant steps to the neighbouring variant, wrapping at both ends, and
// returns the new index.
func (a *Assembly) SwapVariant(dir Direction) int {
	if dir == Previous {
		a.SetActiveVariant(a.active - 1)
	} else {
		a.SetActiveVariant(a.active + 1)
	}
	return a.active
}

// VisibleVariants counts variants that are not hidden.
func (a *Assembly) VisibleVariants() int {
	n := 0
	for _, v := range a.Variants {
		if !v.Hidden {
			n++
		}
	}
	return n
}

// UniformScale returns the container X scale.
func (a *Assembly) UniformScale() float64 { return a.Container.Scale.X }

// SetUniformScale sets all three container scale components.
func (a *Assembly) SetUniformScale(s float64) { a.Container.SetUniformScale(s) }

// SetWorldPosition moves the container origin to p in world space.
func (a *Assembly) SetWorldPosition(p r3.Vec) { a.Container.SetWorldPosition(p) }

// WorldRadius returns the rim radius in world units.
func (a *Assembly) WorldRadius() float64 {
	return a.ReferenceRadius * a.Container.WorldScale()
}

// Color returns the shared rim color.
func (a *Assembly) Color() colorful.Color { return a.RimMaterial.Diffuse }

// Attached reports whether the container is part of a scene.
func (a *Assembly) Attached() bool { return a.Container.Parent() != nil }

// Detach removes the container from the scene.
func (a *Assembly) Detach() { a.Container.RemoveFromParent() }

// Snapshot is a read-only copy of the transform-bearing state.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Position  r3.Vec    `json:"position"`
	World     r3.Vec    `json:"world"`
	Scale     float64   `json:"scale"`
	Variant   int       `json:"variant"`
	Color     string    `json:"color"`
	Hidden    bool      `json:"hidden"`
	RadiusM   float64   `json:"radius_m"`
	SurfaceID uuid.UUID `json:"surface_id"`
}

// Snapshot captures the current state.
func (a *Assembly) Snapshot() Snapshot {
	return Snapshot{
		ID:        a.ID,
		Position:  a.Container.Position,
		World:     a.Container.WorldPosition(),
		Scale:     a.UniformScale(),
		Variant:   a.active,
		Color:     a.RimMaterial.Diffuse.Hex(),
		Hidden:    a.Container.Hidden,
		RadiusM:   roundMicro(a.WorldRadius()),
		SurfaceID: a.SurfaceID,
	}
}

func roundMicro(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
