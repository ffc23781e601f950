package meshdust

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Clamped(t *testing.T) {
	p := Params{
		Density:      0,
		ParticleSize: 1,
		OrbitSpeed:   -0.5,
		Material: Material{
			Type:      "lambert",
			Color:     mgl32.Vec3{2, -1, 0.5},
			Metalness: 3,
			Roughness: math32.NaN(),
		},
	}
	c := p.Clamped()
	assert.Equal(t, MinDensity, c.Density)
	assert.Equal(t, MaxParticleSize, c.ParticleSize)
	assert.Equal(t, MinOrbitSpeed, c.OrbitSpeed)
	assert.Equal(t, MaterialPhong, c.Material.Type)
	assert.Equal(t, mgl32.Vec3{1, 0, 0.5}, c.Material.Color)
	assert.Equal(t, float32(1), c.Material.Metalness)
	assert.Equal(t, float32(0.5), c.Material.Roughness)
	assert.Equal(t, float32(100), c.Material.Shininess)
}

func TestParams_ClampedNaNFallsBack(t *testing.T) {
	p := DefaultParams()
	p.Density = math32.NaN()
	assert.Equal(t, DefaultParams().Density, p.Clamped().Density)
}

func TestParams_DefaultsAreInRange(t *testing.T) {
	assert.Equal(t, DefaultParams(), DefaultParams().Clamped())
}

func TestParams_NeedsRegeneration(t *testing.T) {
	base := DefaultParams()

	toggles := base
	toggles.Orbit = true
	toggles.Pulse = true
	toggles.Glitter = true
	toggles.OrbitSpeed = 0.09
	assert.False(t, base.NeedsRegeneration(toggles))

	for name, mutate := range map[string]func(*Params){
		"density":  func(p *Params) { p.Density = 0.5 },
		"size":     func(p *Params) { p.ParticleSize = 0.02 },
		"color":    func(p *Params) { p.Material.Color = mgl32.Vec3{1, 0, 0} },
		"emissive": func(p *Params) { p.Material.Emissive = mgl32.Vec3{0, 0.2, 0} },
		"type":     func(p *Params) { p.Material.Type = MaterialStandard },
		"rough":    func(p *Params) { p.Material.Roughness = 0.9 },
		"metal":    func(p *Params) { p.Material.Metalness = 0.3 },
	} {
		next := base
		mutate(&next)
		assert.True(t, base.NeedsRegeneration(next), name)
	}
}

func TestMaterialType_Next(t *testing.T) {
	assert.Equal(t, MaterialPhong, MaterialBasic.Next())
	assert.Equal(t, MaterialBasic, MaterialToon.Next())
	assert.Equal(t, MaterialBasic, MaterialType("glass").Next())
	assert.Equal(t, uint32(2), MaterialStandard.ShaderModel())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want mgl32.Vec3
	}{
		{"#ff0000", mgl32.Vec3{1, 0, 0}},
		{"0x00FF00", mgl32.Vec3{0, 1, 0}},
		{"#00f", mgl32.Vec3{0, 0, 1}},
		{"White", mgl32.Vec3{1, 1, 1}},
		{" black ", mgl32.Vec3{0, 0, 0}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "#12", "#gggggg", "notacolour"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatColor_RoundTrip(t *testing.T) {
	assert.Equal(t, "#16124a", FormatColor(mustColor(t, "#16124a")))
	assert.Equal(t, "#ffffff", FormatColor(mgl32.Vec3{1.5, 1, 1}))
}

func mustColor(t *testing.T, s string) mgl32.Vec3 {
	t.Helper()
	c, err := ParseColor(s)
	require.NoError(t, err)
	return c
}
