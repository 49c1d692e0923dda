package surface

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/simulator"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

func doorAnchor(t *testing.T) (*simulator.Simulator, arsession.PlaneAnchor) {
	t.Helper()
	sim, err := simulator.New(simulator.DefaultWorld(), nil)
	require.NoError(t, err)
	a, _, err := sim.Detect("door")
	require.NoError(t, err)
	return sim, a
}

func TestOnSurfaceAddedCreatesProxy(t *testing.T) {
	root := scenegraph.NewNode("root")
	d := NewDetector(root, DefaultConfig())
	_, a := doorAnchor(t)

	s, added := d.OnSurfaceAdded(a)
	require.True(t, added)
	require.NotNil(t, s)
	assert.Equal(t, a.ID, s.ID)
	assert.Same(t, root, s.Anchor.Parent())
	assert.InDelta(t, 0.5, s.DebugMaterial.Alpha, 1e-12)
	assert.Equal(t, 1.0, s.Proxy.Geometry.Width)
	assert.Equal(t, 0.6, s.Proxy.Geometry.Height)
	assert.False(t, s.Placed)

	// the door faces the camera along +Z
	assert.True(t, spatial.ApproxEqual(s.Normal(), r3.Vec{Z: 1}, 1e-9), "normal %v", s.Normal())
	// content local +Z is the surface normal
	p := s.Content.ConvertToWorld(r3.Vec{Z: 0.01})
	assert.True(t, spatial.ApproxEqual(p, r3.Vec{Y: 0.4, Z: -1.19}, 1e-9), "got %v", p)
	// content local +Y is world up on a vertical surface
	up := s.Content.ConvertToWorld(r3.Vec{Y: 0.1})
	assert.True(t, spatial.ApproxEqual(up, r3.Vec{Y: 0.5, Z: -1.2}, 1e-9), "got %v", up)

	again, added := d.OnSurfaceAdded(a)
	assert.False(t, added)
	assert.Same(t, s, again)
	assert.Equal(t, 1, d.Len())
}

func TestOnSurfaceAddedIgnoresHorizontal(t *testing.T) {
	d := NewDetector(scenegraph.NewNode("root"), DefaultConfig())
	s, added := d.OnSurfaceAdded(arsession.PlaneAnchor{
		ID:        uuid.New(),
		Transform: mgl64.Ident4(),
		Extent:    arsession.Extent{Width: 1, Depth: 1},
		Alignment: arsession.AlignmentHorizontal,
	})
	assert.Nil(t, s)
	assert.False(t, added)
	assert.Zero(t, d.Len())
}

func TestOnSurfaceUpdatedMutatesInPlace(t *testing.T) {
	d := NewDetector(scenegraph.NewNode("root"), DefaultConfig())
	sim, a := doorAnchor(t)
	s, _ := d.OnSurfaceAdded(a)
	s.MarkPlaced()
	s.DebugMaterial.Alpha = 0

	grown, err := sim.Grow("door", 2.0, 1.1)
	require.NoError(t, err)
	grown.Center = r3.Vec{X: 0.2, Z: -0.1}
	require.True(t, d.OnSurfaceUpdated(grown))

	got := d.Surface(a.ID)
	assert.Same(t, s, got, "identity is never replaced")
	assert.Equal(t, arsession.Extent{Width: 2.0, Depth: 1.1}, got.Extent)
	assert.Equal(t, 2.0, got.Proxy.Geometry.Width)
	assert.Equal(t, r3.Vec{X: 0.2, Z: -0.1}, got.Proxy.Position)
	assert.Equal(t, r3.Vec{}, got.Content.Position, "placed content does not follow the extent center")
	assert.True(t, got.Placed)
	assert.Zero(t, got.DebugMaterial.Alpha, "placed surfaces stay transparent")

	assert.False(t, d.OnSurfaceUpdated(arsession.PlaneAnchor{ID: uuid.New(), Alignment: arsession.AlignmentVertical}))
}

func TestRemoveAndReset(t *testing.T) {
	root := scenegraph.NewNode("root")
	d := NewDetector(root, DefaultConfig())
	_, a := doorAnchor(t)
	s, _ := d.OnSurfaceAdded(a)

	other := a
	other.ID = uuid.New()
	d.OnSurfaceAdded(other)
	require.Equal(t, 2, d.Len())
	assert.Equal(t, []uuid.UUID{a.ID, other.ID}, []uuid.UUID{d.Surfaces()[0].ID, d.Surfaces()[1].ID})

	removed, ok := d.OnSurfaceRemoved(a.ID)
	require.True(t, ok)
	assert.Same(t, s, removed)
	assert.Nil(t, s.Anchor.Parent())
	assert.Nil(t, d.Surface(a.ID))

	_, ok = d.OnSurfaceRemoved(a.ID)
	assert.False(t, ok)

	dropped := d.Reset()
	assert.Len(t, dropped, 1)
	assert.Zero(t, d.Len())
	assert.Empty(t, root.Children())
}
