package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ComputeNormals returns one normal per position. Face normals are summed
// unnormalised, so larger faces weigh more. With tris == nil every three
// consecutive positions form a triangle and a trailing partial triple is
// left with a zero normal.
func ComputeNormals(positions []mgl32.Vec3, tris []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))

	accumulate := func(a, b, c uint32) {
		if int(a) >= len(positions) || int(b) >= len(positions) || int(c) >= len(positions) {
			return
		}
		pa, pb, pc := positions[a], positions[b], positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	if tris == nil {
		for i := 0; i+2 < len(positions); i += 3 {
			accumulate(uint32(i), uint32(i+1), uint32(i+2))
		}
	} else {
		for i := 0; i+2 < len(tris); i += 3 {
			accumulate(tris[i], tris[i+1], tris[i+2])
		}
	}

	for i, n := range normals {
		if l := n.Len(); l > 0 {
			normals[i] = n.Mul(1 / l)
		}
	}
	return normals
}
