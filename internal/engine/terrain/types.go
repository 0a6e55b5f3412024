// Package terrain turns streamed chunk geometry into renderable meshes and
// answers height queries against whatever is currently resident.
package terrain

import "github.com/Faultbox/terrastream/internal/stream"

// Vertex represents a terrain mesh vertex with all attributes.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Mesh holds one chunk's renderable data, laid out for GPU upload.
type Mesh struct {
	Cell     stream.Cell
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds

	// Side is the vertex count along one lattice edge.
	Side int
}

// Bounds holds the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Contains reports whether (x, z) lies inside the bounds' ground footprint.
func (b Bounds) Contains(x, z float32) bool {
	return x >= b.Min[0] && x <= b.Max[0] && z >= b.Min[2] && z <= b.Max[2]
}

// Bytes returns the memory held by the mesh buffers.
func (m *Mesh) Bytes() int64 {
	const vertexSize = 8 * 4
	return int64(len(m.Vertices))*vertexSize + int64(len(m.Indices))*4
}

// Stats summarises the meshes a MeshBuilder holds.
type Stats struct {
	Meshes    int
	Bytes     int64
	Built     uint64
	Destroyed uint64
	Rejected  uint64
}
