package mesh

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Format names one of the supported source formats.
type Format string

const (
	FormatPLY Format = "ply"
	FormatOBJ Format = "obj"
	FormatFBX Format = "fbx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyMesh         = errors.New("mesh has no vertices")
	ErrNoSurface         = errors.New("no drawable surface found")
)

// DecodeError is returned by Decode for every failure. Err is one of the
// sentinel errors above or the underlying parse error.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NormalizedMesh is a flat vertex buffer. Colors is either nil or parallel
// to Positions. Normals are always filled after a successful Decode.
type NormalizedMesh struct {
	Positions []mgl32.Vec3
	Colors    []mgl32.Vec3
	Normals   []mgl32.Vec3
}

func (m *NormalizedMesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Positions)
}

func (m *NormalizedMesh) HasColors() bool {
	return m != nil && m.Colors != nil
}

// Validate checks the parallel-buffer invariants.
func (m *NormalizedMesh) Validate() error {
	if m == nil {
		return ErrEmptyMesh
	}
	if m.Colors != nil && len(m.Colors) != len(m.Positions) {
		return fmt.Errorf("color count %d does not match vertex count %d", len(m.Colors), len(m.Positions))
	}
	if m.Normals != nil && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("normal count %d does not match vertex count %d", len(m.Normals), len(m.Positions))
	}
	return nil
}

// Decoder turns raw file contents into a mesh. Implementations return the
// triangle list they found in tris (indices into Positions) so that normals
// can be derived; a nil tris means consecutive triples form triangles.
type Decoder interface {
	Format() Format
	Decode(raw []byte) (m *NormalizedMesh, tris []uint32, err error)
}

var decoders = map[Format]Decoder{
	FormatPLY: plyDecoder{},
	FormatOBJ: objDecoder{},
	FormatFBX: fbxDecoder{},
}

// DecoderFor returns the decoder registered for format.
func DecoderFor(format Format) (Decoder, bool) {
	d, ok := decoders[Format(strings.ToLower(string(format)))]
	return d, ok
}

// FormatFromPath derives the format hint from a file extension.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return Format(strings.ToLower(ext))
}

// Decode parses raw with the decoder for hint, computes normals when the
// source has none and validates the result. Every error is a *DecodeError.
func Decode(raw []byte, hint Format) (*NormalizedMesh, error) {
	d, ok := DecoderFor(hint)
	if !ok {
		return nil, &DecodeError{Format: hint, Err: ErrUnsupportedFormat}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &DecodeError{Format: d.Format(), Err: ErrEmptyMesh}
	}

	m, tris, err := d.Decode(raw)
	if err != nil {
		return nil, &DecodeError{Format: d.Format(), Err: err}
	}
	if m.VertexCount() == 0 {
		return nil, &DecodeError{Format: d.Format(), Err: ErrEmptyMesh}
	}
	if m.Normals == nil {
		m.Normals = ComputeNormals(m.Positions, tris)
	}
	if err := m.Validate(); err != nil {
		return nil, &DecodeError{Format: d.Format(), Err: err}
	}
	return m, nil
}
