package mesh

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const fbxMagic = "Kaydara FBX Binary  \x00"

const (
	// maxFBXDepth bounds node nesting; exported files stay far below it.
	maxFBXDepth = 64
	// maxFBXArrayBytes bounds one decoded array property.
	maxFBXArrayBytes = 1 << 28
	// zlib cannot expand input by more than about 1032:1.
	maxDeflateRatio = 1032
)

// fbxDecoder reads binary FBX 7.x files. Each Geometry node's Vertices and
// PolygonVertexIndex arrays are triangulated, expanded and merged.
type fbxDecoder struct{}

type fbxNode struct {
	name     string
	props    []any
	children []*fbxNode
}

func (n *fbxNode) child(name string) *fbxNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (fbxDecoder) Format() Format { return FormatFBX }

func (fbxDecoder) Decode(raw []byte) (*NormalizedMesh, []uint32, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(";")) {
		return nil, nil, fmt.Errorf("ascii fbx: %w", ErrUnsupportedFormat)
	}
	if len(raw) < 27 || string(raw[:len(fbxMagic)]) != fbxMagic {
		return nil, nil, errors.New("not a binary fbx file")
	}
	version := binary.LittleEndian.Uint32(raw[23:27])

	p := &fbxParser{buf: raw, pos: 27, wide: version >= 7500}
	root := &fbxNode{}
	for {
		n, err := p.node(0)
		if err != nil {
			return nil, nil, err
		}
		if n == nil {
			break
		}
		root.children = append(root.children, n)
	}

	var (
		m     NormalizedMesh
		found bool
	)
	var walk func(n *fbxNode) error
	walk = func(n *fbxNode) error {
		if n.name == "Geometry" {
			ok, err := appendFBXGeometry(n, &m)
			if err != nil {
				return err
			}
			found = found || ok
		}
		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrNoSurface
	}
	return &m, nil, nil
}

func appendFBXGeometry(g *fbxNode, m *NormalizedMesh) (bool, error) {
	vn, in := g.child("Vertices"), g.child("PolygonVertexIndex")
	if vn == nil || in == nil || len(vn.props) == 0 || len(in.props) == 0 {
		return false, nil
	}
	coords, ok := fbxFloats(vn.props[0])
	if !ok {
		return false, errors.New("geometry Vertices is not a float array")
	}
	indices, ok := in.props[0].([]int32)
	if !ok {
		return false, errors.New("geometry PolygonVertexIndex is not an int array")
	}
	count := len(coords) / 3
	vertex := func(i int32) (mgl32.Vec3, error) {
		if i < 0 || int(i) >= count {
			return mgl32.Vec3{}, fmt.Errorf("polygon index %d out of range (%d vertices)", i, count)
		}
		return mgl32.Vec3{float32(coords[3*i]), float32(coords[3*i+1]), float32(coords[3*i+2])}, nil
	}

	var poly []int32
	added := false
	for _, raw := range indices {
		last := raw < 0
		if last {
			raw = ^raw
		}
		poly = append(poly, raw)
		if !last {
			continue
		}
		for k := 1; k+1 < len(poly); k++ {
			for _, i := range [3]int32{poly[0], poly[k], poly[k+1]} {
				v, err := vertex(i)
				if err != nil {
					return false, err
				}
				m.Positions = append(m.Positions, v)
				added = true
			}
		}
		poly = poly[:0]
	}
	return added, nil
}

func fbxFloats(v any) ([]float64, bool) {
	switch a := v.(type) {
	case []float64:
		return a, true
	case []float32:
		out := make([]float64, len(a))
		for i, f := range a {
			out[i] = float64(f)
		}
		return out, true
	}
	return nil, false
}

type fbxParser struct {
	buf  []byte
	pos  int
	wide bool
}

var errFBXTruncated = errors.New("truncated fbx data")

func (p *fbxParser) take(n int) ([]byte, error) {
	if n < 0 || p.pos+n > len(p.buf) {
		return nil, errFBXTruncated
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *fbxParser) uint() (uint64, error) {
	if p.wide {
		b, err := p.take(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	}
	b, err := p.take(4)
	if err != nil {
		return 0, err
	}
	return uint64(binary.LittleEndian.Uint32(b)), nil
}

// node reads one node record. A nil node with nil error is the null record
// that terminates a node list. Every node must end past its own start, so
// parsing always moves forward.
func (p *fbxParser) node(depth int) (*fbxNode, error) {
	if p.pos >= len(p.buf) {
		return nil, nil
	}
	if depth > maxFBXDepth {
		return nil, fmt.Errorf("nodes nested deeper than %d", maxFBXDepth)
	}
	start := p.pos
	end, err := p.uint()
	if err != nil {
		return nil, err
	}
	numProps, err := p.uint()
	if err != nil {
		return nil, err
	}
	if _, err := p.uint(); err != nil {
		return nil, err
	}
	nameLen, err := p.take(1)
	if err != nil {
		return nil, err
	}
	if end == 0 {
		return nil, nil
	}
	if end > uint64(len(p.buf)) {
		return nil, errFBXTruncated
	}
	if end <= uint64(start) {
		return nil, fmt.Errorf("node at offset %d ends at %d", start, end)
	}
	name, err := p.take(int(nameLen[0]))
	if err != nil {
		return nil, err
	}

	n := &fbxNode{name: string(name)}
	for i := uint64(0); i < numProps; i++ {
		v, err := p.property()
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.name, err)
		}
		n.props = append(n.props, v)
	}
	if uint64(p.pos) > end {
		return nil, fmt.Errorf("node %s: properties overrun its end offset", n.name)
	}
	for uint64(p.pos) < end {
		c, err := p.node(depth + 1)
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		n.children = append(n.children, c)
	}
	if uint64(p.pos) > end {
		return nil, fmt.Errorf("node %s: children overrun its end offset", n.name)
	}
	p.pos = int(end)
	return n, nil
}

func (p *fbxParser) property() (any, error) {
	code, err := p.take(1)
	if err != nil {
		return nil, err
	}
	switch code[0] {
	case 'Y':
		b, err := p.take(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case 'C':
		b, err := p.take(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case 'I':
		b, err := p.take(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case 'F':
		b, err := p.take(4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case 'D':
		b, err := p.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case 'L':
		b, err := p.take(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case 'S', 'R':
		b, err := p.take(4)
		if err != nil {
			return nil, err
		}
		data, err := p.take(int(binary.LittleEndian.Uint32(b)))
		if err != nil {
			return nil, err
		}
		if code[0] == 'S' {
			return string(data), nil
		}
		return append([]byte(nil), data...), nil
	case 'f', 'd', 'l', 'i', 'b':
		return p.array(code[0])
	}
	return nil, fmt.Errorf("unknown property type %q", code[0])
}

func (p *fbxParser) array(code byte) (any, error) {
	hdr, err := p.take(12)
	if err != nil {
		return nil, err
	}
	length := int(binary.LittleEndian.Uint32(hdr[0:4]))
	encoding := binary.LittleEndian.Uint32(hdr[4:8])
	compressed := int(binary.LittleEndian.Uint32(hdr[8:12]))
	data, err := p.take(compressed)
	if err != nil {
		return nil, err
	}

	elem := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[code]
	size := uint64(length) * uint64(elem)
	if size > maxFBXArrayBytes {
		return nil, fmt.Errorf("array of %d elements is too large", length)
	}
	switch encoding {
	case 0:
	case 1:
		if size > uint64(compressed)*maxDeflateRatio {
			return nil, fmt.Errorf("array of %d elements cannot inflate from %d bytes", length, compressed)
		}
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out := make([]byte, int(size))
		if _, err := io.ReadFull(zr, out); err != nil {
			return nil, fmt.Errorf("inflate array: %w", err)
		}
		data = out
	default:
		return nil, fmt.Errorf("unknown array encoding %d", encoding)
	}
	if uint64(len(data)) < size {
		return nil, errFBXTruncated
	}

	le := binary.LittleEndian
	switch code {
	case 'f':
		out := make([]float32, length)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(data[4*i:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, length)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(data[8*i:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, length)
		for i := range out {
			out[i] = int64(le.Uint64(data[8*i:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, length)
		for i := range out {
			out[i] = int32(le.Uint32(data[4*i:]))
		}
		return out, nil
	default:
		out := make([]bool, length)
		for i := range out {
			out[i] = data[i] != 0
		}
		return out, nil
	}
}
