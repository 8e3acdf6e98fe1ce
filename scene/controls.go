package scene

import (
	"math"

	"github.com/golang/geo/r3"
)

// OrbitControls rotates (and optionally dollies) a camera around its
// target in response to drags and wheel events. Pan is not supported.
type OrbitControls struct {
	cam *Camera

	EnableDamping bool
	DampingFactor float64
	EnableZoom    bool
	RotateSpeed   float64
	ZoomSpeed     float64
	MinDistance   float64
	MaxDistance   float64

	// viewport height in pixels; drag distances are measured against it
	height int

	dTheta, dPhi float64
	scale        float64

	dragging     bool
	lastX, lastY float64
	disposed     bool
}

// NewOrbitControls attaches controls to cam.
func NewOrbitControls(cam *Camera, height int, zoom bool) *OrbitControls {
	return &OrbitControls{
		cam:           cam,
		EnableDamping: true,
		DampingFactor: 0.05,
		EnableZoom:    zoom,
		RotateSpeed:   1,
		ZoomSpeed:     1,
		MaxDistance:   math.Inf(1),
		height:        height,
		scale:         1,
	}
}

// SetViewportHeight updates the reference height for drag rotation.
func (c *OrbitControls) SetViewportHeight(h int) {
	if h > 0 {
		c.height = h
	}
}

// Dragging reports whether a drag is in progress.
func (c *OrbitControls) Dragging() bool { return c.dragging }

// Start begins a drag at (x, y).
func (c *OrbitControls) Start(x, y float64) {
	if c.disposed {
		return
	}
	c.dragging = true
	c.lastX, c.lastY = x, y
}

// Move continues a drag.
func (c *OrbitControls) Move(x, y float64) {
	if c.disposed || !c.dragging {
		return
	}
	h := float64(c.height)
	if h <= 0 {
		h = 1
	}
	c.dTheta -= 2 * math.Pi * (x - c.lastX) / h * c.RotateSpeed
	c.dPhi -= 2 * math.Pi * (y - c.lastY) / h * c.RotateSpeed
	c.lastX, c.lastY = x, y
}

// End finishes a drag.
func (c *OrbitControls) End() {
	c.dragging = false
}

// Wheel dollies the camera; positive deltaY moves it away. It is ignored
// unless zoom is enabled.
func (c *OrbitControls) Wheel(deltaY float64) {
	if c.disposed || !c.EnableZoom || deltaY == 0 {
		return
	}
	step := math.Pow(0.95, c.ZoomSpeed)
	if deltaY > 0 {
		c.scale /= step
	} else {
		c.scale *= step
	}
}

// Update applies pending rotation and zoom to the camera and decays the
// rotation when damping is on. It reports whether the camera moved.
func (c *OrbitControls) Update() bool {
	if c.disposed || (c.dTheta == 0 && c.dPhi == 0 && c.scale == 1) {
		return false
	}
	offset := c.cam.Position.Sub(c.cam.Target)
	radius := offset.Norm()
	if radius == 0 {
		return false
	}
	theta := math.Atan2(offset.X, offset.Z)
	phi := math.Acos(math.Max(-1, math.Min(1, offset.Y/radius)))

	if c.EnableDamping {
		theta += c.dTheta * c.DampingFactor
		phi += c.dPhi * c.DampingFactor
	} else {
		theta += c.dTheta
		phi += c.dPhi
	}
	const eps = 1e-6
	phi = math.Max(eps, math.Min(math.Pi-eps, phi))
	radius = math.Max(c.MinDistance, math.Min(c.MaxDistance, radius*c.scale))

	sinPhi := math.Sin(phi)
	next := c.cam.Target.Add(r3.Vector{
		X: radius * sinPhi * math.Sin(theta),
		Y: radius * math.Cos(phi),
		Z: radius * sinPhi * math.Cos(theta),
	})
	moved := next.Sub(c.cam.Position).Norm() > 1e-9
	c.cam.Position = next

	if c.EnableDamping {
		c.dTheta *= 1 - c.DampingFactor
		c.dPhi *= 1 - c.DampingFactor
	} else {
		c.dTheta, c.dPhi = 0, 0
	}
	c.scale = 1
	return moved
}

// Dispose detaches the controls; later input is ignored.
func (c *OrbitControls) Dispose() {
	c.disposed = true
	c.dragging = false
}

// Disposed reports whether Dispose was called.
func (c *OrbitControls) Disposed() bool { return c.disposed }
