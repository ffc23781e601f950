package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// plyDecoder reads the Stanford polygon format in ascii, binary little
// endian and binary big endian encodings. The vertex list is used as is;
// faces only contribute to normal generation.
type plyDecoder struct{}

type plyProperty struct {
	name     string
	typ      string
	list     bool
	countTyp string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	elements []plyElement
}

var plyTypeSize = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

func (plyDecoder) Format() Format { return FormatPLY }

func (plyDecoder) Decode(raw []byte) (*NormalizedMesh, []uint32, error) {
	hdr, body, err := parsePLYHeader(raw)
	if err != nil {
		return nil, nil, err
	}

	var rd plyValueReader
	switch hdr.format {
	case "ascii":
		rd = &plyASCIIReader{fields: strings.Fields(string(body))}
	case "binary_little_endian":
		rd = &plyBinaryReader{buf: body, order: binary.LittleEndian}
	case "binary_big_endian":
		rd = &plyBinaryReader{buf: body, order: binary.BigEndian}
	default:
		return nil, nil, fmt.Errorf("unknown ply format %q", hdr.format)
	}

	var (
		m    NormalizedMesh
		tris []uint32
	)
	for _, el := range hdr.elements {
		if err := checkPLYElement(rd, el); err != nil {
			return nil, nil, err
		}
		switch el.name {
		case "vertex":
			if err := readPLYVertices(rd, el, &m); err != nil {
				return nil, nil, err
			}
		case "face":
			t, err := readPLYFaces(rd, el)
			if err != nil {
				return nil, nil, err
			}
			tris = append(tris, t...)
		default:
			if err := skipPLYElement(rd, el); err != nil {
				return nil, nil, err
			}
		}
	}
	if tris != nil {
		for _, i := range tris {
			if int(i) >= len(m.Positions) {
				return nil, nil, fmt.Errorf("face index %d out of range (%d vertices)", i, len(m.Positions))
			}
		}
	}
	return &m, tris, nil
}

func parsePLYHeader(raw []byte) (*plyHeader, []byte, error) {
	const marker = "end_header"
	end := bytes.Index(raw, []byte(marker))
	if end < 0 {
		return nil, nil, errors.New("missing end_header")
	}
	bodyStart := end + len(marker)
	if bodyStart < len(raw) && raw[bodyStart] == '\r' {
		bodyStart++
	}
	if bodyStart < len(raw) && raw[bodyStart] == '\n' {
		bodyStart++
	}

	lines := strings.Split(strings.ReplaceAll(string(raw[:end]), "\r", ""), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "ply" {
		return nil, nil, errors.New("not a ply file")
	}

	hdr := &plyHeader{}
	for n, line := range lines[1:] {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "format":
			if len(f) < 2 {
				return nil, nil, fmt.Errorf("header line %d: bad format line", n+2)
			}
			hdr.format = f[1]
		case "element":
			if len(f) < 3 {
				return nil, nil, fmt.Errorf("header line %d: bad element line", n+2)
			}
			count, err := strconv.Atoi(f[2])
			if err != nil || count < 0 {
				return nil, nil, fmt.Errorf("header line %d: bad element count %q", n+2, f[2])
			}
			hdr.elements = append(hdr.elements, plyElement{name: f[1], count: count})
		case "property":
			if len(hdr.elements) == 0 {
				return nil, nil, fmt.Errorf("header line %d: property before element", n+2)
			}
			el := &hdr.elements[len(hdr.elements)-1]
			var p plyProperty
			if len(f) >= 5 && f[1] == "list" {
				p = plyProperty{name: f[4], typ: f[3], list: true, countTyp: f[2]}
			} else if len(f) >= 3 {
				p = plyProperty{name: f[2], typ: f[1]}
			} else {
				return nil, nil, fmt.Errorf("header line %d: bad property line", n+2)
			}
			if _, ok := plyTypeSize[p.typ]; !ok {
				return nil, nil, fmt.Errorf("header line %d: unknown type %q", n+2, p.typ)
			}
			if p.list {
				if _, ok := plyTypeSize[p.countTyp]; !ok {
					return nil, nil, fmt.Errorf("header line %d: unknown type %q", n+2, p.countTyp)
				}
			}
			el.props = append(el.props, p)
		}
	}
	if hdr.format == "" {
		return nil, nil, errors.New("missing format line")
	}
	return hdr, raw[bodyStart:], nil
}

// checkPLYElement rejects an element whose declared row count cannot fit in
// the data that is left, before anything is allocated for it.
func checkPLYElement(rd plyValueReader, el plyElement) error {
	if el.count == 0 || len(el.props) == 0 {
		return nil
	}
	row := 0
	for _, p := range el.props {
		if p.list {
			row += rd.width(p.countTyp)
		} else {
			row += rd.width(p.typ)
		}
	}
	if el.count > rd.left()/row {
		return fmt.Errorf("element %s: %d rows do not fit in the remaining data", el.name, el.count)
	}
	return nil
}

// readPLYCount reads a list length and checks it against the data left.
func readPLYCount(rd plyValueReader, p plyProperty) (int, error) {
	v, err := rd.next(p.countTyp)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("bad list length %v", v)
	}
	if v > float64(rd.left()/rd.width(p.typ)) {
		return 0, fmt.Errorf("list length %v exceeds the remaining data", v)
	}
	return int(v), nil
}

func readPLYVertices(rd plyValueReader, el plyElement, m *NormalizedMesh) error {
	slot := func(name string) int {
		for i, p := range el.props {
			if p.name == name {
				return i
			}
		}
		return -1
	}
	xi, yi, zi := slot("x"), slot("y"), slot("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return errors.New("vertex element lacks x/y/z")
	}
	ri, gi, bi := slot("red"), slot("green"), slot("blue")
	hasColor := ri >= 0 && gi >= 0 && bi >= 0

	m.Positions = make([]mgl32.Vec3, el.count)
	if hasColor {
		m.Colors = make([]mgl32.Vec3, el.count)
	}
	values := make([]float64, len(el.props))
	for v := 0; v < el.count; v++ {
		for i, p := range el.props {
			if p.list {
				if err := skipPLYList(rd, p); err != nil {
					return err
				}
				continue
			}
			val, err := rd.next(p.typ)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", v, err)
			}
			values[i] = val
		}
		m.Positions[v] = mgl32.Vec3{float32(values[xi]), float32(values[yi]), float32(values[zi])}
		if hasColor {
			m.Colors[v] = mgl32.Vec3{
				plyColor(values[ri], el.props[ri].typ),
				plyColor(values[gi], el.props[gi].typ),
				plyColor(values[bi], el.props[bi].typ),
			}
		}
	}
	return nil
}

func plyColor(v float64, typ string) float32 {
	switch typ {
	case "uchar", "uint8":
		return float32(v / 255)
	case "ushort", "uint16":
		return float32(v / 65535)
	}
	return float32(v)
}

func readPLYFaces(rd plyValueReader, el plyElement) ([]uint32, error) {
	var tris []uint32
	for f := 0; f < el.count; f++ {
		for _, p := range el.props {
			if !p.list {
				if _, err := rd.next(p.typ); err != nil {
					return nil, fmt.Errorf("face %d: %w", f, err)
				}
				continue
			}
			n, err := readPLYCount(rd, p)
			if err != nil {
				return nil, fmt.Errorf("face %d: %w", f, err)
			}
			idx := make([]uint32, n)
			for k := range idx {
				val, err := rd.next(p.typ)
				if err != nil {
					return nil, fmt.Errorf("face %d: %w", f, err)
				}
				if math.IsNaN(val) || val < 0 || val > math.MaxUint32 || val != math.Trunc(val) {
					return nil, fmt.Errorf("face %d: bad vertex index %v", f, val)
				}
				idx[k] = uint32(val)
			}
			if p.name != "vertex_indices" && p.name != "vertex_index" {
				continue
			}
			for k := 1; k+1 < len(idx); k++ {
				tris = append(tris, idx[0], idx[k], idx[k+1])
			}
		}
	}
	return tris, nil
}

func skipPLYElement(rd plyValueReader, el plyElement) error {
	if len(el.props) == 0 {
		return nil
	}
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if p.list {
				if err := skipPLYList(rd, p); err != nil {
					return err
				}
				continue
			}
			if _, err := rd.next(p.typ); err != nil {
				return fmt.Errorf("%s %d: %w", el.name, i, err)
			}
		}
	}
	return nil
}

func skipPLYList(rd plyValueReader, p plyProperty) error {
	n, err := readPLYCount(rd, p)
	if err != nil {
		return err
	}
	for k := 0; k < n; k++ {
		if _, err := rd.next(p.typ); err != nil {
			return err
		}
	}
	return nil
}

type plyValueReader interface {
	next(typ string) (float64, error)
	// left is the unread data in the same unit as width.
	left() int
	// width is the least amount of data one value of typ takes.
	width(typ string) int
}

type plyASCIIReader struct {
	fields []string
	pos    int
}

func (r *plyASCIIReader) left() int       { return len(r.fields) - r.pos }
func (r *plyASCIIReader) width(string) int { return 1 }

func (r *plyASCIIReader) next(string) (float64, error) {
	if r.pos >= len(r.fields) {
		return 0, errors.New("unexpected end of data")
	}
	tok := r.fields[r.pos]
	r.pos++
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", tok)
	}
	return v, nil
}

type plyBinaryReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (r *plyBinaryReader) left() int           { return len(r.buf) - r.pos }
func (r *plyBinaryReader) width(typ string) int { return plyTypeSize[typ] }

func (r *plyBinaryReader) next(typ string) (float64, error) {
	size := plyTypeSize[typ]
	if r.pos+size > len(r.buf) {
		return 0, errors.New("unexpected end of data")
	}
	b := r.buf[r.pos : r.pos+size]
	r.pos += size
	switch typ {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(r.order.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(r.order.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(r.order.Uint32(b))), nil
	case "uint", "uint32":
		return float64(r.order.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(r.order.Uint32(b))), nil
	case "double", "float64":
		return math.Float64frombits(r.order.Uint64(b)), nil
	}
	return 0, fmt.Errorf("unknown type %q", typ)
}
