package terrain

import (
	stdmath "math"

	"github.com/Faultbox/terrastream/internal/stream"
	"github.com/Faultbox/terrastream/pkg/math"
)

// CellAt returns the chunk cell containing world position (x, z). ok is
// false outside the terrain.
func (b *MeshBuilder) CellAt(x, z float32) (cell stream.Cell, ok bool) {
	sx, sz := b.desc.Origin()
	node := b.desc.NodeSize()
	col := int(stdmath.Floor(float64((x - sx) / node)))
	row := int(stdmath.Floor(float64((sz - z) / node)))

	n := b.desc.ChunksPerRow()
	if row < 0 || col < 0 || row >= n || col >= n {
		return stream.Cell{}, false
	}
	return stream.Cell{Row: row, Col: col}, true
}

// HeightAt returns the bilinearly interpolated terrain height at world
// position (x, z). ok is false when no mesh is resident there.
func (b *MeshBuilder) HeightAt(x, z float32) (h float32, ok bool) {
	cell, ok := b.CellAt(x, z)
	if !ok {
		return 0, false
	}

	b.mu.RLock()
	mesh := b.meshes[cell]
	b.mu.RUnlock()
	if mesh == nil || mesh.Side < 2 {
		return 0, false
	}
	return mesh.heightAt(x, z, b.desc.GridSize), true
}

// heightAt interpolates within the mesh lattice. Vertex (0, 0) is the
// chunk's north-west corner; columns run +X and rows run -Z.
func (m *Mesh) heightAt(x, z, step float32) float32 {
	origin := m.Vertices[0].Position
	last := float32(m.Side - 2)

	fx := (x - origin[0]) / step
	fz := (origin[2] - z) / step

	col := int(math.Clamp(float32(stdmath.Floor(float64(fx))), 0, last))
	row := int(math.Clamp(float32(stdmath.Floor(float64(fz))), 0, last))

	tx := math.Clamp(fx-float32(col), 0, 1)
	tz := math.Clamp(fz-float32(row), 0, 1)

	at := func(r, c int) float32 {
		return m.Vertices[r*m.Side+c].Position[1]
	}

	north := math.Lerp(at(row, col), at(row, col+1), tx)
	south := math.Lerp(at(row+1, col), at(row+1, col+1), tx)
	return math.Lerp(north, south, tz)
}
