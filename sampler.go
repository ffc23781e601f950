package meshdust

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gekko3d/meshdust/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

// Rand is the random source used for sampling, phases and glitter.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a seeded generator; tests use it for repeatable runs.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// SamplingMode selects how vertices are picked.
type SamplingMode int

const (
	// SamplingReservoir draws exactly min(target, vertexCount) vertices
	// uniformly and keeps them in source order.
	SamplingReservoir SamplingMode = iota
	// SamplingBernoulli accepts each vertex with probability density and
	// stops at the target, favouring early vertices in the buffer. A pass
	// that accepts nothing falls back to one random vertex.
	SamplingBernoulli
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingBernoulli:
		return "bernoulli"
	default:
		return "reservoir"
	}
}

func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reservoir":
		return SamplingReservoir, nil
	case "bernoulli":
		return SamplingBernoulli, nil
	}
	return SamplingReservoir, fmt.Errorf("unknown sampling mode %q", s)
}

// ParticleRecord is one sampled vertex plus its animation inputs.
type ParticleRecord struct {
	Position  mgl32.Vec3
	BaseScale mgl32.Vec3
	Phase     float32
}

// Sample is the outcome of one sampling pass. Source[i] is the vertex index
// that produced Records[i].
type Sample struct {
	Records []ParticleRecord
	Source  []int
}

// TargetCount is max(1, floor(vertexCount*density)).
func TargetCount(vertexCount int, density float32) int {
	n := int(math32.Floor(float32(vertexCount) * density))
	if n < 1 {
		n = 1
	}
	return n
}

// SampleMesh picks vertices of m and builds one record per pick. density
// must already be clamped to (0,1].
func SampleMesh(m *mesh.NormalizedMesh, density, particleSize float32, mode SamplingMode, rng Rand) Sample {
	if rng == nil {
		rng = globalRand{}
	}
	count := m.VertexCount()
	if count == 0 {
		return Sample{}
	}
	target := TargetCount(count, density)

	var picked []int
	switch mode {
	case SamplingBernoulli:
		picked = pickBernoulli(count, target, density, rng)
	default:
		picked = pickReservoir(count, target, rng)
	}

	scale := mgl32.Vec3{particleSize, particleSize, particleSize}
	s := Sample{
		Records: make([]ParticleRecord, len(picked)),
		Source:  picked,
	}
	for i, vi := range picked {
		s.Records[i] = ParticleRecord{
			Position:  m.Positions[vi],
			BaseScale: scale,
			Phase:     randomPhase(rng),
		}
	}
	return s
}

// randomPhase draws from [0, 2π).
func randomPhase(rng Rand) float32 {
	phase := float32(rng.Float64() * 2 * math.Pi)
	if phase >= 2*math32.Pi {
		phase = 0
	}
	return phase
}

func pickBernoulli(count, target int, density float32, rng Rand) []int {
	picked := make([]int, 0, target)
	for i := 0; i < count; i++ {
		if rng.Float64() > float64(density) {
			continue
		}
		if len(picked) >= target {
			break
		}
		picked = append(picked, i)
	}
	// every trial can reject on a small mesh; keep at least one vertex
	if len(picked) == 0 && count > 0 {
		picked = append(picked, rng.IntN(count))
	}
	return picked
}

func pickReservoir(count, target int, rng Rand) []int {
	if target >= count {
		picked := make([]int, count)
		for i := range picked {
			picked[i] = i
		}
		return picked
	}
	picked := make([]int, target)
	for i := range picked {
		picked[i] = i
	}
	for i := target; i < count; i++ {
		if j := rng.IntN(i + 1); j < target {
			picked[j] = i
		}
	}
	slices.Sort(picked)
	return picked
}
