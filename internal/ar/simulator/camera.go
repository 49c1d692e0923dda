package simulator

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/spatial"
)

const (
	nearClip = 0.01
	farClip  = 100.0
)

// Camera is a pinhole camera. The viewport is measured in points and maps
// one to one onto frame pixels.
type Camera struct {
	Position r3.Vec  `yaml:"position"`
	Target   r3.Vec  `yaml:"target"`
	Up       r3.Vec  `yaml:"up"`
	FovY     float64 `yaml:"fov_y"` // degrees
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
}

// DefaultCamera looks down -Z from 0.4 m above the origin with a portrait
// 400x800 viewport.
func DefaultCamera() Camera {
	return Camera{
		Position: r3.Vec{Y: 0.4},
		Target:   r3.Vec{Y: 0.4, Z: -1},
		Up:       r3.Vec{Y: 1},
		FovY:     60,
		Width:    400,
		Height:   800,
	}
}

func (c Camera) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("camera viewport must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.FovY <= 0 || c.FovY >= 180 {
		return fmt.Errorf("camera fov_y must be in (0,180), got %f", c.FovY)
	}
	if spatial.Distance(c.Position, c.Target) == 0 {
		return fmt.Errorf("camera target must differ from position")
	}
	return nil
}

func (c Camera) view() mgl64.Mat4 {
	return mgl64.LookAtV(spatial.ToMgl(c.Position), spatial.ToMgl(c.Target), spatial.ToMgl(c.Up))
}

func (c Camera) projection() mgl64.Mat4 {
	aspect := float64(c.Width) / float64(c.Height)
	return mgl64.Perspective(mgl64.DegToRad(c.FovY), aspect, nearClip, farClip)
}

// Forward returns the unit viewing direction.
func (c Camera) Forward() r3.Vec {
	return r3.Unit(r3.Sub(c.Target, c.Position))
}

// Ray returns the world-space ray through a view point.
func (c Camera) Ray(pt arsession.ScreenPoint) (spatial.Ray, error) {
	win := mgl64.Vec3{pt.X, float64(c.Height) - pt.Y, 1}
	far, err := mgl64.UnProject(win, c.view(), c.projection(), 0, 0, c.Width, c.Height)
	if err != nil {
		return spatial.Ray{}, fmt.Errorf("failed to unproject %v: %w", pt, err)
	}
	return spatial.NewRay(c.Position, spatial.FromMgl(far)), nil
}

// Project maps a world point onto the viewport. ok is false for points
// behind the near plane.
func (c Camera) Project(p r3.Vec) (arsession.ScreenPoint, bool) {
	if r3.Dot(r3.Sub(p, c.Position), c.Forward()) <= nearClip {
		return arsession.ScreenPoint{}, false
	}
	win := mgl64.Project(spatial.ToMgl(p), c.view(), c.projection(), 0, 0, c.Width, c.Height)
	return arsession.ScreenPoint{X: win[0], Y: float64(c.Height) - win[1]}, true
}
