package terrain

import (
	"github.com/Faultbox/terrastream/internal/stream"
	"github.com/Faultbox/terrastream/pkg/math"
)

// BuildMesh creates a mesh from a chunk's lattice positions, UVs and
// triangle list. Normals are the area-weighted average of the faces sharing
// each vertex.
func BuildMesh(cell stream.Cell, positions []math.Vec3, uvs []math.Vec2, indices []uint32) *Mesh {
	vertices := make([]Vertex, len(positions))

	lo := math.Vec3{X: 1e10, Y: 1e10, Z: 1e10}
	hi := math.Vec3{X: -1e10, Y: -1e10, Z: -1e10}

	for i, p := range positions {
		vertices[i].Position = [3]float32{p.X, p.Y, p.Z}
		if i < len(uvs) {
			vertices[i].TexCoord = [2]float32{uvs[i].X, uvs[i].Y}
		}
		lo = lo.Min(p)
		hi = hi.Max(p)
	}

	RecalculateNormals(vertices, indices)

	return &Mesh{
		Cell:     cell,
		Vertices: vertices,
		Indices:  append([]uint32(nil), indices...),
		Bounds:   Bounds{Min: array(lo), Max: array(hi)},
		Side:     latticeSide(len(vertices)),
	}
}

// RecalculateNormals accumulates each triangle's face normal into its three
// vertices and normalizes the sums. Vertices on no triangle point up.
func RecalculateNormals(vertices []Vertex, indices []uint32) {
	sums := make([]math.Vec3, len(vertices))

	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		pa := vec(vertices[a].Position)
		pb := vec(vertices[b].Position)
		pc := vec(vertices[c].Position)

		// Unnormalized, so larger faces weigh more.
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		sums[a] = sums[a].Add(face)
		sums[b] = sums[b].Add(face)
		sums[c] = sums[c].Add(face)
	}

	for i := range vertices {
		vertices[i].Normal = normalize(sums[i])
	}
}

// latticeSide returns n for a square lattice of n*n vertices, or 0.
func latticeSide(count int) int {
	n := 0
	for n*n < count {
		n++
	}
	if n*n != count {
		return 0
	}
	return n
}

// Helper functions

func array(v math.Vec3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

func vec(p [3]float32) math.Vec3 {
	return math.Vec3{X: p[0], Y: p[1], Z: p[2]}
}

func normalize(v math.Vec3) [3]float32 {
	if v.Length() < 0.0001 {
		return [3]float32{0, 1, 0}
	}
	return array(v.Normalize())
}
