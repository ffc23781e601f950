package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# unit quad
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
f 1/1/1 2/1/1 3/1/1 4/1/1
`

func TestOBJ_QuadIsFanTriangulated(t *testing.T) {
	m, err := Decode([]byte(quadOBJ), FormatOBJ)
	require.NoError(t, err)

	require.Equal(t, 6, m.VertexCount())
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.Positions[0])
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Positions[1])
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.Positions[2])
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.Positions[3])
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, m.Positions[5])
	assert.Nil(t, m.Colors)

	require.Len(t, m.Normals, 6)
	for _, n := range m.Normals {
		assert.InDelta(t, 1.0, n.Z(), 1e-6)
	}
}

func TestOBJ_NegativeIndicesAndColors(t *testing.T) {
	src := `v 0 0 0 1 0 0
v 1 0 0 0 1 0
v 0 1 0 0 0 1
f -3 -2 -1
`
	m, err := Decode([]byte(src), FormatOBJ)
	require.NoError(t, err)

	require.Equal(t, 3, m.VertexCount())
	require.Len(t, m.Colors, 3)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Colors[0])
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, m.Colors[2])
}

func TestOBJ_MergesGroups(t *testing.T) {
	src := `o A
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
o B
v 0 0 1
v 1 0 1
v 0 1 1
f 4 5 6
`
	m, err := Decode([]byte(src), FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, 6, m.VertexCount())
	assert.Equal(t, float32(1), m.Positions[5].Z())
}

func TestOBJ_Errors(t *testing.T) {
	_, err := Decode([]byte("v 0 0 0\nv 1 1 1\n"), FormatOBJ)
	assert.ErrorIs(t, err, ErrNoSurface)

	_, err = Decode([]byte("# only a comment\n"), FormatOBJ)
	assert.ErrorIs(t, err, ErrEmptyMesh)

	_, err = Decode([]byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n"), FormatOBJ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = Decode([]byte("v 0 zero 0\n"), FormatOBJ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero")

	_, err = Decode([]byte("v 0 0 0 1 0 0\nv 1 0 0 1 red 0\nv 0 1 0 0 0 1\nf 1 2 3\n"), FormatOBJ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestOBJ_MaterialLibraryIsIgnored(t *testing.T) {
	src := `mtllib missing.mtl
g Body
usemtl Skin
v 0 0 0
v 1 0 0
v 0 1 0
s 1
f 1 2 3
`
	m, err := Decode([]byte(src), FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount())
}

func TestOBJ_PartialColorsAreDropped(t *testing.T) {
	src := `v 0 0 0 1 0 0
v 1 0 0
v 0 1 0 0 0 1
f 1 2 3
`
	m, err := Decode([]byte(src), FormatOBJ)
	require.NoError(t, err)
	assert.Nil(t, m.Colors)
}
