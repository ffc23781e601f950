package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// objDecoder reads Wavefront OBJ text through g3n's obj loader. Faces are
// fan-triangulated and expanded so that every face corner becomes its own
// vertex; all objects and groups in the file are merged into one buffer.
type objDecoder struct{}

func (objDecoder) Format() Format { return FormatOBJ }

func (objDecoder) Decode(raw []byte) (*NormalizedMesh, []uint32, error) {
	// materials are not used; an empty library keeps the loader off the
	// filesystem when the file names an mtllib
	dec, err := obj.DecodeReader(bytes.NewReader(raw), strings.NewReader(""))
	if err != nil {
		return nil, nil, err
	}
	count := len(dec.Vertices) / 3
	colors, err := objVertexColors(raw, count)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    NormalizedMesh
		outCol []mgl32.Vec3
		faces  int
	)
	for oi := range dec.Objects {
		ob := &dec.Objects[oi]
		for fi := range ob.Faces {
			idx := ob.Faces[fi].Vertices
			for _, i := range idx {
				if i < 0 || i >= count {
					return nil, nil, fmt.Errorf("object %s: face index %d out of range (%d vertices)", ob.Name, i+1, count)
				}
			}
			faces++
			for k := 1; k+1 < len(idx); k++ {
				for _, i := range [3]int{idx[0], idx[k], idx[k+1]} {
					out.Positions = append(out.Positions, mgl32.Vec3{
						dec.Vertices[3*i], dec.Vertices[3*i+1], dec.Vertices[3*i+2],
					})
					if colors != nil {
						outCol = append(outCol, colors[i])
					}
				}
			}
		}
	}
	if faces == 0 {
		if count == 0 {
			return nil, nil, ErrEmptyMesh
		}
		return nil, nil, ErrNoSurface
	}
	out.Colors = outCol
	return &out, nil, nil
}

// objVertexColors collects the "v x y z r g b" colour extension, which the
// loader drops. It returns nil unless every one of the count vertices
// carries a colour.
func objVertexColors(raw []byte, count int) ([]mgl32.Vec3, error) {
	colors := make([]mgl32.Vec3, 0, count)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "v" {
			continue
		}
		if len(fields) < 7 {
			return nil, nil
		}
		var c mgl32.Vec3
		for i, tok := range fields[4:7] {
			f, err := strconv.ParseFloat(tok, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad colour %q", line, tok)
			}
			c[i] = float32(f)
		}
		colors = append(colors, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(colors) != count || count == 0 {
		return nil, nil
	}
	return colors, nil
}
