package scene

import (
	"math"

	"github.com/golang/geo/r3"
)

// Camera defaults.
const (
	DefaultFOV  = 55.0
	DefaultNear = 0.1
	DefaultFar  = 100.0
)

// DefaultCameraPosition frames the whole unit globe.
var DefaultCameraPosition = r3.Vector{X: 0, Y: 0, Z: 3}

// Camera is a perspective camera looking at Target with +y up.
type Camera struct {
	FOV       float64 // vertical, degrees
	Aspect    float64
	Near, Far float64
	Position  r3.Vector
	Target    r3.Vector
}

// NewCamera returns the default globe camera for a viewport aspect ratio.
func NewCamera(aspect float64) *Camera {
	return &Camera{
		FOV:      DefaultFOV,
		Aspect:   aspect,
		Near:     DefaultNear,
		Far:      DefaultFar,
		Position: DefaultCameraPosition,
	}
}

// basis returns the forward, right and up unit vectors of the view.
func (c *Camera) basis() (fwd, right, up r3.Vector) {
	fwd = c.Target.Sub(c.Position).Normalize()
	worldUp := r3.Vector{Y: 1}
	right = fwd.Cross(worldUp)
	if right.Norm() < 1e-9 {
		// looking straight along y
		right = r3.Vector{X: 1}
	}
	right = right.Normalize()
	up = right.Cross(fwd)
	return fwd, right, up
}

func (c *Camera) tanHalfFOV() float64 {
	return math.Tan(c.FOV * math.Pi / 360)
}

// Project maps a world point to normalized device coordinates. ok is false
// when the point is outside the near/far range.
func (c *Camera) Project(p r3.Vector) (ndcX, ndcY float64, ok bool) {
	fwd, right, up := c.basis()
	d := p.Sub(c.Position)
	depth := d.Dot(fwd)
	if depth < c.Near || depth > c.Far {
		return 0, 0, false
	}
	t := c.tanHalfFOV()
	return d.Dot(right) / (depth * t * c.Aspect), d.Dot(up) / (depth * t), true
}

// Ray returns the world-space ray through a point in normalized device
// coordinates.
func (c *Camera) Ray(ndcX, ndcY float64) (origin, dir r3.Vector) {
	fwd, right, up := c.basis()
	t := c.tanHalfFOV()
	dir = fwd.Add(right.Mul(ndcX * t * c.Aspect)).Add(up.Mul(ndcY * t))
	return c.Position, dir.Normalize()
}

// ToNDC converts container pixels to normalized device coordinates.
func ToNDC(x, y float64, width, height int) (float64, float64) {
	return x/float64(width)*2 - 1, -(y/float64(height))*2 + 1
}

// FromNDC converts normalized device coordinates to container pixels.
func FromNDC(ndcX, ndcY float64, width, height int) (float64, float64) {
	return (ndcX + 1) / 2 * float64(width), (1 - ndcY) / 2 * float64(height)
}

// intersectSphere returns the nearest positive distance along a unit ray
// to a sphere, or false when the ray misses.
func intersectSphere(origin, dir, center r3.Vector, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t > 0 {
		return t, true
	}
	if t := -b + sq; t > 0 {
		return t, true
	}
	return 0, false
}
