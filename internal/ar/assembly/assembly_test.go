package assembly

import (
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/scenegraph"
)

func TestBuildDefault(t *testing.T) {
	a, err := Build(DefaultBlueprint())
	require.NoError(t, err)

	assert.Equal(t, 3, a.VariantCount())
	assert.Equal(t, 0, a.ActiveVariant())
	assert.Equal(t, 1, a.VisibleVariants())
	assert.Equal(t, "rim_1", a.ActiveVariantName())
	assert.Equal(t, scenegraph.CategorySelectable, a.Container.Category)
	assert.InDelta(t, 0.225, a.ReferenceRadius, 1e-12)

	for _, v := range a.Variants {
		assert.Same(t, a.RimMaterial, v.Material, "variants share one material")
		assert.Same(t, a.Container, v.Parent())
		assert.Equal(t, r3.Vec{Z: -0.115}, v.Position)
	}
	assert.Equal(t, scenegraph.LightingPhysicallyBased, a.RimMaterial.Lighting)
	assert.Equal(t, 1.0, a.RimMaterial.Metalness)

	require.NotNil(t, a.Brake.ChildNamed("Disk", false))
	assert.Equal(t, "brakeDisk.png", a.Brake.ChildNamed("Disk", false).Material.Texture)
	assert.Same(t, a.HardwareMaterial, a.Brake.ChildNamed("Wheel_mass_nuts", false).Material)
	assert.Same(t, a.HardwareMaterial, a.Brake.ChildNamed("Object020", false).Material)

	assert.Equal(t, r3.Vec{Z: -0.5}, a.Mask.Position)
	assert.False(t, a.Mask.Material.ColorWrite)
	assert.InDelta(t, 0.245, a.Portal.Geometry.Radius, 1e-12)
}

func TestBuildRejectsEmptyBlueprint(t *testing.T) {
	_, err := Build(Blueprint{})
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestSwapVariantWraps(t *testing.T) {
	a, err := Build(DefaultBlueprint())
	require.NoError(t, err)

	assert.Equal(t, 2, a.SwapVariant(Previous), "previous from 0 wraps to the last variant")
	assert.Equal(t, 0, a.SwapVariant(Next), "next from the last variant wraps to 0")

	// n forward swaps return to the start
	for i := 0; i < a.VariantCount(); i++ {
		a.SwapVariant(Next)
		assert.Equal(t, 1, a.VisibleVariants())
	}
	assert.Equal(t, 0, a.ActiveVariant())

	a.SetActiveVariant(-4)
	assert.Equal(t, 2, a.ActiveVariant())
	assert.False(t, a.Variants[2].Hidden)
}

func TestRecolorSharedMaterial(t *testing.T) {
	a, err := Build(DefaultBlueprint())
	require.NoError(t, err)
	purple, err := colorful.Hex("#724b8b")
	require.NoError(t, err)

	a.RimMaterial.Diffuse = purple
	for _, v := range a.Variants {
		assert.Equal(t, "#724b8b", v.Material.Diffuse.Hex())
	}
	assert.Equal(t, "#724b8b", a.Snapshot().Color)
}

func TestWorldRadiusAndDetach(t *testing.T) {
	a, err := Build(DefaultBlueprint())
	require.NoError(t, err)
	root := scenegraph.NewNode("root")
	root.AddChild(a.Container)
	a.SetUniformScale(2)

	assert.InDelta(t, 0.45, a.WorldRadius(), 1e-9)
	assert.InDelta(t, 0.45, a.Snapshot().RadiusM, 1e-9)
	assert.True(t, a.Attached())
	a.Detach()
	assert.False(t, a.Attached())
}
