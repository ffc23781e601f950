package meshdust

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/meshdust/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrNoMesh         = errors.New("no mesh loaded")
	ErrTransformCount = errors.New("transform count does not match instance count")
)

// InstanceSet pairs the sampled records with the renderer-facing instance
// data. Records, Matrices and Colors (when present) always have the same
// length; index i in each refers to the same instance.
type InstanceSet struct {
	ID           uuid.UUID
	Records      []ParticleRecord
	Matrices     []mgl32.Mat4
	Colors       []mgl32.Vec3
	Material     Material
	ParticleSize float32

	// Rotation is the container's angle about Y.
	Rotation float32
	// Version increases whenever Matrices or Rotation change.
	Version uint64
}

func (s *InstanceSet) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// ResourceReleaser frees whatever a renderer allocated for a set.
type ResourceReleaser interface {
	ReleaseInstances(set *InstanceSet) error
}

// Regeneration describes one regenerate call. NewMesh marks regenerations
// caused by loading a mesh; those reset the container rotation.
type Regeneration struct {
	Mesh    *mesh.NormalizedMesh
	Params  Params
	NewMesh bool
}

// InstanceStore owns the current InstanceSet. Regenerate is the only
// operation that replaces it; ApplyTransforms only writes matrices in place.
type InstanceStore struct {
	mu       sync.RWMutex
	set      *InstanceSet
	rotation float32

	mode     SamplingMode
	rng      Rand
	releaser ResourceReleaser
	logger   Logger
}

func NewInstanceStore(mode SamplingMode, rng Rand, logger Logger) *InstanceStore {
	if rng == nil {
		rng = globalRand{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &InstanceStore{mode: mode, rng: rng, logger: logger}
}

// SetReleaser installs the renderer hook called when a set is discarded.
func (s *InstanceStore) SetReleaser(r ResourceReleaser) {
	s.mu.Lock()
	s.releaser = r
	s.mu.Unlock()
}

// Regenerate samples a fresh set and swaps it in. The new set is fully
// built before the old one is released and replaced.
func (s *InstanceStore) Regenerate(req Regeneration) (*InstanceSet, error) {
	if req.Mesh == nil {
		return nil, ErrNoMesh
	}
	if err := req.Mesh.Validate(); err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}
	p := req.Params.Clamped()

	sample := SampleMesh(req.Mesh, p.Density, p.ParticleSize, s.mode, s.rng)
	next := &InstanceSet{
		ID:           uuid.New(),
		Records:      sample.Records,
		Matrices:     make([]mgl32.Mat4, len(sample.Records)),
		Material:     p.Material,
		ParticleSize: p.ParticleSize,
	}
	for i, r := range sample.Records {
		next.Matrices[i] = InstanceMatrix(r.Position, r.BaseScale)
	}
	if req.Mesh.HasColors() {
		next.Colors = make([]mgl32.Vec3, len(sample.Source))
		for i, vi := range sample.Source {
			next.Colors[i] = req.Mesh.Colors[vi]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.NewMesh {
		s.rotation = 0
	}
	next.Rotation = s.rotation
	s.releaseLocked()
	s.set = next

	s.logger.Debugf("regenerated %d/%d instances (set %s, %s sampling)",
		next.Count(), req.Mesh.VertexCount(), next.ID, s.mode)
	return next, nil
}

// Current returns the live set, or nil before the first regeneration.
func (s *InstanceStore) Current() *InstanceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// CurrentRecords is a read-only view; callers must not modify it.
func (s *InstanceStore) CurrentRecords() []ParticleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.set == nil {
		return nil
	}
	return s.set.Records
}

// ApplyTransforms copies transforms over the live set's matrices in index
// order without reallocating.
func (s *InstanceStore) ApplyTransforms(transforms []mgl32.Mat4) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		if len(transforms) == 0 {
			return nil
		}
		return ErrTransformCount
	}
	if len(transforms) != len(s.set.Matrices) {
		return fmt.Errorf("%w: got %d, have %d", ErrTransformCount, len(transforms), len(s.set.Matrices))
	}
	copy(s.set.Matrices, transforms)
	s.set.Version++
	return nil
}

// ContainerRotation is the whole-cloud angle about Y.
func (s *InstanceStore) ContainerRotation() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

func (s *InstanceStore) SetContainerRotation(angle float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = angle
	if s.set != nil && s.set.Rotation != angle {
		s.set.Rotation = angle
		s.set.Version++
	}
}

// Release drops the live set and frees its renderer resources.
func (s *InstanceStore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.set = nil
}

func (s *InstanceStore) releaseLocked() {
	if s.set == nil || s.releaser == nil {
		return
	}
	if err := s.releaser.ReleaseInstances(s.set); err != nil {
		s.logger.Warnf("releasing instance set %s: %v", s.set.ID, err)
	}
}
