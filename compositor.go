package meshdust

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultFrameDelta is the nominal effect-clock step per frame (~60 Hz).
const DefaultFrameDelta float32 = 0.016

// EffectState carries everything the compositor reads besides the records.
// RotationAngle and EffectClock are owned by the engine and advanced once
// per frame by Advance.
type EffectState struct {
	RotationAngle float32
	OrbitSpeed    float32
	Orbit         bool
	Pulse         bool
	Glitter       bool
	EffectClock   float32
}

// WithParams copies the effect toggles and orbit speed out of p, keeping
// the accumulated clock and angle.
func (s EffectState) WithParams(p Params) EffectState {
	s.OrbitSpeed = p.OrbitSpeed
	s.Orbit = p.Orbit
	s.Pulse = p.Pulse
	s.Glitter = p.Glitter
	return s
}

// Advance steps the clock by dt and, when orbiting, the angle by OrbitSpeed.
func (s EffectState) Advance(dt float32) EffectState {
	s.EffectClock += dt
	if s.Orbit {
		s.RotationAngle += s.OrbitSpeed
	}
	return s
}

// PulseFactor oscillates in [0.8, 1.2], shifted per instance by phase.
func PulseFactor(clock, phase float32) float32 {
	return math32.Sin(clock*2+phase)*0.2 + 1
}

// GlitterFactor is a fresh uniform draw in [0.8, 1.2].
func GlitterFactor(rng Rand) float32 {
	return float32(rng.Float64())*0.4 + 0.8
}

// InstanceMatrix composes translation and scale with identity orientation.
func InstanceMatrix(position, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// ContainerMatrix is the whole-cloud rotation about the vertical axis.
func ContainerMatrix(angle float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(angle)
}

// Compose writes one transform per record into out, growing it if needed,
// and returns it. Orbit is not baked in; see ContainerMatrix.
func Compose(records []ParticleRecord, st EffectState, rng Rand, out []mgl32.Mat4) []mgl32.Mat4 {
	if rng == nil {
		rng = globalRand{}
	}
	if cap(out) < len(records) {
		out = make([]mgl32.Mat4, len(records))
	}
	out = out[:len(records)]

	for i := range records {
		r := &records[i]
		scale := r.BaseScale
		if st.Pulse {
			scale = scale.Mul(PulseFactor(st.EffectClock, r.Phase))
		}
		if st.Glitter {
			scale = scale.Mul(GlitterFactor(rng))
		}
		out[i] = InstanceMatrix(r.Position, scale)
	}
	return out
}
