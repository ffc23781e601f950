package meshdust

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/colornames"
)

type MaterialType string

const (
	MaterialBasic    MaterialType = "basic"
	MaterialPhong    MaterialType = "phong"
	MaterialStandard MaterialType = "standard"
	MaterialToon     MaterialType = "toon"
)

// MaterialTypes lists the material types in cycling order.
var MaterialTypes = []MaterialType{MaterialBasic, MaterialPhong, MaterialStandard, MaterialToon}

// Material is opaque to the sampling and effect code; it is handed through
// to the instance set for the renderer.
type Material struct {
	Type      MaterialType
	Color     mgl32.Vec3
	Emissive  mgl32.Vec3
	Metalness float32
	Roughness float32
	Shininess float32
}

func DefaultMaterial() Material {
	return Material{
		Type:      MaterialPhong,
		Color:     mgl32.Vec3{1, 1, 1},
		Emissive:  mgl32.Vec3{0, 0, 0},
		Metalness: 0,
		Roughness: 0.5,
		Shininess: 100,
	}
}

// Next returns the material type following t in MaterialTypes.
func (t MaterialType) Next() MaterialType {
	for i, mt := range MaterialTypes {
		if mt == t {
			return MaterialTypes[(i+1)%len(MaterialTypes)]
		}
	}
	return MaterialTypes[0]
}

func (t MaterialType) Valid() bool {
	for _, mt := range MaterialTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// ShaderModel maps the type to the index the instance shader switches on.
func (t MaterialType) ShaderModel() uint32 {
	for i, mt := range MaterialTypes {
		if mt == t {
			return uint32(i)
		}
	}
	return 0
}

// ParseColor accepts "#rgb", "#rrggbb", "0xrrggbb" or an SVG colour name.
func ParseColor(s string) (mgl32.Vec3, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := colornames.Map[s]; ok {
		return mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}, nil
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return mgl32.Vec3{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return mgl32.Vec3{}, fmt.Errorf("invalid color %q", s)
	}
	return mgl32.Vec3{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// FormatColor renders c as "#rrggbb".
func FormatColor(c mgl32.Vec3) string {
	b := func(f float32) int {
		return int(mgl32.Clamp(f, 0, 1)*255 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]))
}
