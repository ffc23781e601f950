package meshdust

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigName is the config file base name; any extension viper understands
// (yaml, json, toml) is accepted.
const ConfigName = "meshdust"

// Config is the viewer's startup configuration.
type Config struct {
	Width      int
	Height     int
	Title      string
	VSync      bool
	Background string

	LogLevel   string
	Sampling   SamplingMode
	FrameDelta float32

	Params Params
}

// LoadConfig sets defaults, reads an optional meshdust.* file from dir and
// binds MESHDUST_* environment variables. A missing file is not an error.
func LoadConfig(dir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("sampling", "reservoir")
	viper.SetDefault("frameDelta", DefaultFrameDelta)

	viper.SetDefault("window.width", 1280)
	viper.SetDefault("window.height", 800)
	viper.SetDefault("window.title", "meshdust")
	viper.SetDefault("window.vsync", true)
	viper.SetDefault("window.background", "#16124a")

	def := DefaultParams()
	viper.SetDefault("particles.density", def.Density)
	viper.SetDefault("particles.size", def.ParticleSize)
	viper.SetDefault("particles.orbitSpeed", def.OrbitSpeed)

	viper.SetDefault("effects.orbit", false)
	viper.SetDefault("effects.pulse", false)
	viper.SetDefault("effects.glitter", false)

	viper.SetDefault("material.type", string(def.Material.Type))
	viper.SetDefault("material.color", FormatColor(def.Material.Color))
	viper.SetDefault("material.emissive", FormatColor(def.Material.Emissive))
	viper.SetDefault("material.metalness", def.Material.Metalness)
	viper.SetDefault("material.roughness", def.Material.Roughness)
	viper.SetDefault("material.shininess", def.Material.Shininess)

	viper.SetEnvPrefix("MESHDUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if dir == "" {
		return nil
	}
	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(dir)

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ConfigFromViper builds a Config from the loaded viper state. Params are
// returned clamped.
func ConfigFromViper() (Config, error) {
	mode, err := ParseSamplingMode(viper.GetString("sampling"))
	if err != nil {
		return Config{}, err
	}

	mat := Material{
		Type:      MaterialType(strings.ToLower(viper.GetString("material.type"))),
		Metalness: float32(viper.GetFloat64("material.metalness")),
		Roughness: float32(viper.GetFloat64("material.roughness")),
		Shininess: float32(viper.GetFloat64("material.shininess")),
	}
	if !mat.Type.Valid() {
		return Config{}, fmt.Errorf("unknown material type %q", mat.Type)
	}
	if mat.Color, err = ParseColor(viper.GetString("material.color")); err != nil {
		return Config{}, fmt.Errorf("material.color: %w", err)
	}
	if mat.Emissive, err = ParseColor(viper.GetString("material.emissive")); err != nil {
		return Config{}, fmt.Errorf("material.emissive: %w", err)
	}
	if _, err := ParseColor(viper.GetString("window.background")); err != nil {
		return Config{}, fmt.Errorf("window.background: %w", err)
	}

	p := Params{
		Density:      float32(viper.GetFloat64("particles.density")),
		ParticleSize: float32(viper.GetFloat64("particles.size")),
		OrbitSpeed:   float32(viper.GetFloat64("particles.orbitSpeed")),
		Orbit:        viper.GetBool("effects.orbit"),
		Pulse:        viper.GetBool("effects.pulse"),
		Glitter:      viper.GetBool("effects.glitter"),
		Material:     mat,
	}

	return Config{
		Width:      viper.GetInt("window.width"),
		Height:     viper.GetInt("window.height"),
		Title:      viper.GetString("window.title"),
		VSync:      viper.GetBool("window.vsync"),
		Background: viper.GetString("window.background"),
		LogLevel:   viper.GetString("logLevel"),
		Sampling:   mode,
		FrameDelta: float32(viper.GetFloat64("frameDelta")),
		Params:     p.Clamped(),
	}, nil
}
