package meshdust

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Parameter ranges enforced by Params.Clamped.
const (
	MinDensity      float32 = 0.01
	MaxDensity      float32 = 1
	MinParticleSize float32 = 0.001
	MaxParticleSize float32 = 0.05
	MinOrbitSpeed   float32 = 0
	MaxOrbitSpeed   float32 = 0.1
)

// Params is an immutable snapshot of every user-facing setting. Callers
// build a new value and hand it to Engine.SetParams; nothing holds on to a
// pointer.
type Params struct {
	Density      float32
	ParticleSize float32
	OrbitSpeed   float32
	Orbit        bool
	Pulse        bool
	Glitter      bool
	Material     Material
}

func DefaultParams() Params {
	return Params{
		Density:      1,
		ParticleSize: 0.01,
		OrbitSpeed:   0.01,
		Material:     DefaultMaterial(),
	}
}

// Clamped returns p with every field forced into its valid range. NaN
// values fall back to the defaults.
func (p Params) Clamped() Params {
	def := DefaultParams()
	p.Density = clampOr(p.Density, MinDensity, MaxDensity, def.Density)
	p.ParticleSize = clampOr(p.ParticleSize, MinParticleSize, MaxParticleSize, def.ParticleSize)
	p.OrbitSpeed = clampOr(p.OrbitSpeed, MinOrbitSpeed, MaxOrbitSpeed, def.OrbitSpeed)

	m := &p.Material
	if !m.Type.Valid() {
		m.Type = def.Material.Type
	}
	m.Metalness = clampOr(m.Metalness, 0, 1, def.Material.Metalness)
	m.Roughness = clampOr(m.Roughness, 0, 1, def.Material.Roughness)
	if m.Shininess <= 0 || math32.IsNaN(m.Shininess) {
		m.Shininess = def.Material.Shininess
	}
	for i := 0; i < 3; i++ {
		m.Color[i] = clampOr(m.Color[i], 0, 1, 1)
		m.Emissive[i] = clampOr(m.Emissive[i], 0, 1, 0)
	}
	return p
}

// NeedsRegeneration reports whether moving from p to next changes anything
// the sampled instance set depends on.
func (p Params) NeedsRegeneration(next Params) bool {
	return p.Density != next.Density ||
		p.ParticleSize != next.ParticleSize ||
		p.Material != next.Material
}

// EffectsActive reports whether any per-instance effect is on.
func (p Params) EffectsActive() bool {
	return p.Pulse || p.Glitter
}

func clampOr(v, lo, hi, fallback float32) float32 {
	if math32.IsNaN(v) {
		return fallback
	}
	return mgl32.Clamp(v, lo, hi)
}
