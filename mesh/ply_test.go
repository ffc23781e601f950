package mesh

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asciiPLY = `ply
format ascii 1.0
comment made by hand
element vertex 4
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
element face 1
property list uchar int vertex_indices
end_header
0 0 0 255 0 0
1 0 0 0 255 0
1 1 0 0 0 255
0 1 0 255 255 255
4 0 1 2 3
`

func TestPLY_ASCIIWithColorsAndFaces(t *testing.T) {
	m, err := Decode([]byte(asciiPLY), FormatPLY)
	require.NoError(t, err)

	require.Equal(t, 4, m.VertexCount())
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.Positions[2])

	require.Len(t, m.Colors, 4)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Colors[0])
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, m.Colors[3])

	require.Len(t, m.Normals, 4)
	for _, n := range m.Normals {
		assert.InDelta(t, 1.0, n.Z(), 1e-6)
	}
}

func TestPLY_PointCloudWithoutFaces(t *testing.T) {
	src := "ply\nformat ascii 1.0\nelement vertex 2\nproperty double x\nproperty double y\nproperty double z\nend_header\n1 2 3\n4 5 6\n"
	m, err := Decode([]byte(src), FormatPLY)
	require.NoError(t, err)
	assert.Equal(t, 2, m.VertexCount())
	assert.Nil(t, m.Colors)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, m.Positions[1])
}

func writeBinaryPLY(order binary.ByteOrder, format string) []byte {
	var buf bytes.Buffer
	buf.WriteString("ply\r\nformat " + format + " 1.0\r\n")
	buf.WriteString("element vertex 3\r\nproperty float x\r\nproperty float y\r\nproperty float z\r\n")
	buf.WriteString("element face 1\r\nproperty list uchar uint vertex_indices\r\nend_header\r\n")
	for _, v := range [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}} {
		for _, c := range v {
			var b [4]byte
			order.PutUint32(b[:], math.Float32bits(c))
			buf.Write(b[:])
		}
	}
	buf.WriteByte(3)
	for _, i := range []uint32{0, 1, 2} {
		var b [4]byte
		order.PutUint32(b[:], i)
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func TestPLY_Binary(t *testing.T) {
	cases := map[string]binary.ByteOrder{
		"binary_little_endian": binary.LittleEndian,
		"binary_big_endian":    binary.BigEndian,
	}
	for format, order := range cases {
		t.Run(format, func(t *testing.T) {
			m, err := Decode(writeBinaryPLY(order, format), FormatPLY)
			require.NoError(t, err)
			require.Equal(t, 3, m.VertexCount())
			assert.Equal(t, mgl32.Vec3{2, 0, 0}, m.Positions[1])
			assert.InDelta(t, 1.0, m.Normals[0].Z(), 1e-6)
		})
	}
}

func TestPLY_Errors(t *testing.T) {
	_, err := Decode([]byte("not ply\nend_header\n"), FormatPLY)
	assert.Error(t, err)

	_, err = Decode([]byte("ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n"), FormatPLY)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not fit")

	_, err = Decode([]byte("ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0 1 1\n"), FormatPLY)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected end of data")

	_, err = Decode([]byte("ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nend_header\n0\n"), FormatPLY)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x/y/z")

	_, err = Decode([]byte("ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nproperty float y\nproperty float z\nend_header\n"), FormatPLY)
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

const plyTriangleHeader = `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
`

func TestPLY_MalformedCountsAreRejected(t *testing.T) {
	cases := map[string][]byte{
		"negative list length":   []byte(plyTriangleHeader + "-1 0 1 2\n"),
		"nan list length":        []byte(plyTriangleHeader + "nan 0 1 2\n"),
		"fractional list length": []byte(plyTriangleHeader + "2.5 0 1 2\n"),
		"list longer than data":  []byte(plyTriangleHeader + "1000000000 0 1 2\n"),
		"fractional index":       []byte(plyTriangleHeader + "3 0 1.5 2\n"),
		"nan index":              []byte(plyTriangleHeader + "3 0 nan 2\n"),
		"huge vertex count": []byte("ply\nformat ascii 1.0\nelement vertex 2000000000\n" +
			"property float x\nproperty float y\nproperty float z\nend_header\n"),
		"huge binary vertex count": []byte("ply\nformat binary_little_endian 1.0\nelement vertex 2000000000\n" +
			"property float x\nproperty float y\nproperty float z\nend_header\n\x00\x00\x00\x00"),
		"huge skipped element": []byte("ply\nformat ascii 1.0\nelement vertex 1\n" +
			"property float x\nproperty float y\nproperty float z\nelement edge 9000000000\nproperty int a\n" +
			"end_header\n0 0 0\n1\n"),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := Decode(src, FormatPLY)
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, FormatPLY, de.Format)
			})
		})
	}
}

func TestPLY_BinaryListLengthBoundedByData(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 3\n")
	buf.WriteString("property float x\nproperty float y\nproperty float z\n")
	buf.WriteString("element face 1\nproperty list uint int vertex_indices\nend_header\n")
	buf.Write(make([]byte, 3*3*4))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := Decode(buf.Bytes(), FormatPLY)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the remaining data")
}

func TestPLY_ElementWithoutPropertiesIsSkipped(t *testing.T) {
	src := "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\n" +
		"element marker 9000000000\nend_header\n1 2 3\n"
	m, err := Decode([]byte(src), FormatPLY)
	require.NoError(t, err)
	assert.Equal(t, 1, m.VertexCount())
}

func FuzzDecodePLY(f *testing.F) {
	f.Add([]byte(asciiPLY))
	f.Add([]byte(plyTriangleHeader + "-1 0 1 2\n"))
	f.Add(writeBinaryPLY(binary.LittleEndian, "binary_little_endian"))
	f.Fuzz(func(t *testing.T, raw []byte) {
		m, err := Decode(raw, FormatPLY)
		if err == nil {
			assert.NoError(t, m.Validate())
		}
	})
}
