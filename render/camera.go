package render

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera defaults for the particle viewer.
const (
	DefaultFov            float32 = 75
	DefaultNear           float32 = 0.1
	DefaultFar            float32 = 1000
	DefaultCameraDistance float32 = 5
	DefaultDampingFactor  float32 = 0.05
)

// OrbitControls orbits a camera around Target on a sphere. Input is
// accumulated as pending deltas and bled into the position over several
// Update calls when damping is enabled.
type OrbitControls struct {
	Target   mgl32.Vec3
	Distance float32
	// Azimuth is measured about +Y from +Z; Polar from +Y.
	Azimuth float32
	Polar   float32

	EnableDamping bool
	DampingFactor float32
	RotateSpeed   float32
	ZoomSpeed     float32
	MinDistance   float32
	MaxDistance   float32

	Fov  float32
	Near float32
	Far  float32

	deltaAzimuth float32
	deltaPolar   float32
	scale        float32
}

func NewOrbitControls() *OrbitControls {
	return &OrbitControls{
		Distance:      DefaultCameraDistance,
		Polar:         math32.Pi / 2,
		EnableDamping: true,
		DampingFactor: DefaultDampingFactor,
		RotateSpeed:   1,
		ZoomSpeed:     1,
		MinDistance:   0.05,
		MaxDistance:   DefaultFar / 2,
		Fov:           DefaultFov,
		Near:          DefaultNear,
		Far:           DefaultFar,
		scale:         1,
	}
}

// Rotate queues a drag of dx, dy pixels on a viewport of the given height.
func (c *OrbitControls) Rotate(dx, dy float32, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	h := float32(viewportHeight)
	c.deltaAzimuth -= 2 * math32.Pi * dx / h * c.RotateSpeed
	c.deltaPolar -= 2 * math32.Pi * dy / h * c.RotateSpeed
}

// Zoom queues a scroll step; positive steps move the camera closer.
func (c *OrbitControls) Zoom(steps float32) {
	f := math32.Pow(0.95, c.ZoomSpeed*math32.Abs(steps))
	if steps > 0 {
		c.scale *= f
	} else if steps < 0 {
		c.scale /= f
	}
}

// Update applies pending input once per frame.
func (c *OrbitControls) Update() {
	if c.EnableDamping {
		c.Azimuth += c.deltaAzimuth * c.DampingFactor
		c.Polar += c.deltaPolar * c.DampingFactor
		c.deltaAzimuth *= 1 - c.DampingFactor
		c.deltaPolar *= 1 - c.DampingFactor
	} else {
		c.Azimuth += c.deltaAzimuth
		c.Polar += c.deltaPolar
		c.deltaAzimuth, c.deltaPolar = 0, 0
	}

	const eps = 1e-6
	c.Polar = mgl32.Clamp(c.Polar, eps, math32.Pi-eps)
	c.Distance = mgl32.Clamp(c.Distance*c.scale, c.MinDistance, c.MaxDistance)
	c.scale = 1
}

func (c *OrbitControls) Eye() mgl32.Vec3 {
	sinPolar := math32.Sin(c.Polar)
	offset := mgl32.Vec3{
		c.Distance * sinPolar * math32.Sin(c.Azimuth),
		c.Distance * math32.Cos(c.Polar),
		c.Distance * sinPolar * math32.Cos(c.Azimuth),
	}
	return c.Target.Add(offset)
}

func (c *OrbitControls) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitControls) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
}

// Reset returns the camera to its initial pose and drops pending input.
func (c *OrbitControls) Reset() {
	c.Azimuth = 0
	c.Polar = math32.Pi / 2
	c.Distance = DefaultCameraDistance
	c.deltaAzimuth, c.deltaPolar, c.scale = 0, 0, 1
}
