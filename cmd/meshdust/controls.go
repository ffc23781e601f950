package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gekko3d/meshdust"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Slider steps for keyboard adjustment.
const (
	densityStep    float32 = 0.05
	sizeStep       float32 = 0.001
	orbitSpeedStep float32 = 0.005
)

type viewMode int

const (
	modeEdit viewMode = iota
	modeShowcase
)

func (m viewMode) String() string {
	if m == modeShowcase {
		return "showcase"
	}
	return "edit"
}

// applyKey maps a key press onto new params. Showcase mode only accepts
// the orbit toggle. The bool reports whether p changed.
func applyKey(p meshdust.Params, mode viewMode, key glfw.Key) (meshdust.Params, bool) {
	before := p
	if key == glfw.KeyO {
		p.Orbit = !p.Orbit
		return p, true
	}
	if mode == modeShowcase {
		return p, false
	}

	switch key {
	case glfw.KeyP:
		p.Pulse = !p.Pulse
	case glfw.KeyG:
		p.Glitter = !p.Glitter
	case glfw.KeyEqual, glfw.KeyKPAdd:
		p.Density += densityStep
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		p.Density -= densityStep
	case glfw.KeyRightBracket:
		p.ParticleSize += sizeStep
	case glfw.KeyLeftBracket:
		p.ParticleSize -= sizeStep
	case glfw.KeyPeriod:
		p.OrbitSpeed += orbitSpeedStep
	case glfw.KeyComma:
		p.OrbitSpeed -= orbitSpeedStep
	case glfw.KeyM:
		p.Material.Type = p.Material.Type.Next()
	default:
		return p, false
	}
	p = p.Clamped()
	return p, p != before
}

// windowTitle summarises the viewer state for the title bar.
func windowTitle(base, path string, particles int, p meshdust.Params, mode viewMode, status string) string {
	parts := []string{base}
	if path != "" {
		parts = append(parts, filepath.Base(path))
	}
	parts = append(parts,
		fmt.Sprintf("%d particles", particles),
		fmt.Sprintf("density %.2f size %.3f %s", p.Density, p.ParticleSize, p.Material.Type),
	)

	var fx []string
	if p.Orbit {
		fx = append(fx, fmt.Sprintf("orbit %.3f", p.OrbitSpeed))
	}
	if p.Pulse {
		fx = append(fx, "pulse")
	}
	if p.Glitter {
		fx = append(fx, "glitter")
	}
	if len(fx) > 0 {
		parts = append(parts, strings.Join(fx, "+"))
	}
	parts = append(parts, mode.String())
	if status != "" {
		parts = append(parts, status)
	}
	return strings.Join(parts, " | ")
}
