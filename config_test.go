package meshdust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, LoadConfig(t.TempDir()))
	cfg, err := ConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 800, cfg.Height)
	assert.Equal(t, "meshdust", cfg.Title)
	assert.True(t, cfg.VSync)
	assert.Equal(t, "#16124a", cfg.Background)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SamplingReservoir, cfg.Sampling)
	assert.InDelta(t, DefaultFrameDelta, cfg.FrameDelta, 1e-9)
	assert.Equal(t, DefaultParams(), cfg.Params)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `
logLevel: debug
sampling: bernoulli
window:
  width: 640
  title: bunny
particles:
  density: 0.3
  size: 0.5
effects:
  pulse: true
material:
  type: toon
  color: "#ff8800"
  emissive: navy
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meshdust.yaml"), []byte(cfg), 0644))
	require.NoError(t, LoadConfig(dir))

	c, err := ConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, SamplingBernoulli, c.Sampling)
	assert.Equal(t, 640, c.Width)
	assert.Equal(t, 800, c.Height)
	assert.Equal(t, "bunny", c.Title)
	assert.Equal(t, float32(0.3), c.Params.Density)
	assert.Equal(t, MaxParticleSize, c.Params.ParticleSize)
	assert.True(t, c.Params.Pulse)
	assert.False(t, c.Params.Glitter)
	assert.Equal(t, MaterialToon, c.Params.Material.Type)
	assert.Equal(t, mgl32.Vec3{1, float32(0x88) / 255, 0}, c.Params.Material.Color)
	assert.Equal(t, mgl32.Vec3{0, 0, float32(0x80) / 255}, c.Params.Material.Emissive)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("MESHDUST_PARTICLES_DENSITY", "0.2")
	t.Setenv("MESHDUST_EFFECTS_ORBIT", "true")

	require.NoError(t, LoadConfig(""))
	c, err := ConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, float32(0.2), c.Params.Density)
	assert.True(t, c.Params.Orbit)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meshdust.json"), []byte(`{"logLevel": `), 0644))
	err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfigFromViper_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, LoadConfig(""))

	viper.Set("sampling", "stratified")
	_, err := ConfigFromViper()
	assert.Error(t, err)

	viper.Set("sampling", "reservoir")
	viper.Set("material.type", "glass")
	_, err = ConfigFromViper()
	assert.Error(t, err)

	viper.Set("material.type", "basic")
	viper.Set("material.color", "#zz0000")
	_, err = ConfigFromViper()
	assert.ErrorContains(t, err, "material.color")
}
