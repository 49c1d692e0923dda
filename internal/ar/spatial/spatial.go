// Package spatial holds the small amount of vector and transform math shared
// by the AR components. Vectors are gonum r3.Vec; 4x4 transforms are mgl64
// column-major matrices, matching what the renderer consumes.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sub returns a - b.
func Sub(a, b r3.Vec) r3.Vec {
	return r3.Sub(a, b)
}

// Length returns the Euclidean norm of v.
func Length(v r3.Vec) float64 {
	return r3.Norm(v)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// PositionFromTransform extracts the translation column of a 4x4 transform.
func PositionFromTransform(m mgl64.Mat4) r3.Vec {
	c := m.Col(3)
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}
}

// ToMgl converts an r3 vector to an mgl64 vector.
func ToMgl(v r3.Vec) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FromMgl converts an mgl64 vector to an r3 vector.
func FromMgl(v mgl64.Vec3) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// TransformPoint applies m to point p (w=1).
func TransformPoint(m mgl64.Mat4, p r3.Vec) r3.Vec {
	out := m.Mul4x1(ToMgl(p).Vec4(1))
	if out[3] != 0 && out[3] != 1 {
		return r3.Vec{X: out[0] / out[3], Y: out[1] / out[3], Z: out[2] / out[3]}
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}
}

// TransformDirection applies the linear part of m to direction d (w=0).
func TransformDirection(m mgl64.Mat4, d r3.Vec) r3.Vec {
	out := m.Mul4x1(ToMgl(d).Vec4(0))
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}
}

// Translation returns a transform that only translates by p.
func Translation(p r3.Vec) mgl64.Mat4 {
	return mgl64.Translate3D(p.X, p.Y, p.Z)
}

// Compose builds T * R * S.
func Compose(position r3.Vec, rotation mgl64.Quat, scale r3.Vec) mgl64.Mat4 {
	t := mgl64.Translate3D(position.X, position.Y, position.Z)
	s := mgl64.Scale3D(scale.X, scale.Y, scale.Z)
	return t.Mul4(rotation.Normalize().Mat4()).Mul4(s)
}

// Uniform returns a vector with all three components set to s.
func Uniform(s float64) r3.Vec {
	return r3.Vec{X: s, Y: s, Z: s}
}

// ApproxEqual reports whether every component of a and b differs by at
// most eps.
func ApproxEqual(a, b r3.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

// Ray is a half-line in world space. Direction is kept unit length by
// NewRay.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// NewRay returns a ray from origin through target.
func NewRay(origin, target r3.Vec) Ray {
	return Ray{Origin: origin, Direction: r3.Unit(r3.Sub(target, origin))}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// IntersectPlane returns the ray parameter where r crosses the plane through
// point with the given normal. ok is false for parallel planes and for
// intersections behind the origin.
func IntersectPlane(r Ray, point, normal r3.Vec) (t float64, ok bool) {
	denom := r3.Dot(normal, r.Direction)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t = r3.Dot(normal, r3.Sub(point, r.Origin)) / denom
	if t < 0 {
		return 0, false
	}
	return t, true
}

// DistanceToRay returns the perpendicular distance from p to the ray and the
// ray parameter of the closest point. Points behind the origin measure to
// the origin itself.
func DistanceToRay(r Ray, p r3.Vec) (dist, t float64) {
	t = r3.Dot(r3.Sub(p, r.Origin), r.Direction)
	if t < 0 {
		return Distance(p, r.Origin), 0
	}
	return Distance(p, r.At(t)), t
}
