// Package stream keeps a bounded working set of terrain chunks resident
// around a moving viewpoint.
//
// A Streamer owns a Grid (the per-frame visibility scan over every chunk
// cell) and a Loader (one background goroutine that reads chunk records and
// builds their geometry). Everything except chunk loading runs on the
// goroutine that calls Tick.
package stream

import (
	"errors"
	"sync/atomic"

	"github.com/Faultbox/terrastream/pkg/math"
)

// Chunk state errors.
var (
	ErrDuplicateRequest = errors.New("chunk already has a load request in flight")
	ErrAlreadyFilled    = errors.New("chunk geometry already filled")
	ErrNoRawData        = errors.New("chunk raw data missing or short")
)

// IsStateError reports whether err comes from misusing a chunk rather than
// from reading terrain data.
func IsStateError(err error) bool {
	return errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrAlreadyFilled) ||
		errors.Is(err, ErrNoRawData)
}

// Cell addresses one chunk in the terrain grid.
type Cell struct {
	Row, Col int
}

// Chunk is one square patch of terrain and its load state.
//
// Ownership of the geometry fields moves with the chunk: the goroutine that
// calls Tick owns it until it is submitted, the loader owns it until it is
// published to the completed queue, and it returns to the Tick goroutine once
// drained. cancelLoading is the only field written across that boundary.
type Chunk struct {
	cell Cell

	inLoadingList bool
	cancelLoading atomic.Bool

	positions []math.Vec3
	uvs       []math.Vec2
	indices   []uint32
	filled    bool
	loadErr   error

	handle    Handle
	hasHandle bool
	destroyed bool
}

// NewChunk creates an empty chunk for the given cell.
func NewChunk(row, col int) *Chunk {
	return &Chunk{cell: Cell{Row: row, Col: col}}
}

// Cell returns the chunk's grid address.
func (c *Chunk) Cell() Cell { return c.cell }

// InLoadingList reports whether the chunk has an undrained load request.
func (c *Chunk) InLoadingList() bool { return c.inLoadingList }

// Cancelled reports whether the chunk's load was cancelled.
func (c *Chunk) Cancelled() bool { return c.cancelLoading.Load() }

// Cancel flags an in-flight load as no longer wanted.
func (c *Chunk) Cancel() { c.cancelLoading.Store(true) }

// HasGeometry reports whether FillData has completed.
func (c *Chunk) HasGeometry() bool { return c.filled }

// LoadErr returns the error of the last load attempt, if any.
func (c *Chunk) LoadErr() error { return c.loadErr }

// Positions returns the vertex positions in row-major lattice order.
func (c *Chunk) Positions() []math.Vec3 { return c.positions }

// UVs returns the per-vertex texture coordinates.
func (c *Chunk) UVs() []math.Vec2 { return c.uvs }

// Indices returns the triangle list.
func (c *Chunk) Indices() []uint32 { return c.indices }

// Handle returns the renderable built for this chunk.
func (c *Chunk) Handle() (Handle, bool) { return c.handle, c.hasHandle }

// Destroyed reports whether the chunk has been released.
func (c *Chunk) Destroyed() bool { return c.destroyed }

// GeometryBytes returns the memory held by the chunk's geometry buffers.
func (c *Chunk) GeometryBytes() int64 {
	return int64(len(c.positions))*12 + int64(len(c.uvs))*8 + int64(len(c.indices))*4
}

// FillData builds positions, UVs and the triangle list for a
// (chunkGrid+1)^2 lattice from raw interleaved (x, y, z) triples.
// It touches no rendering state and is safe to call off the Tick goroutine.
func (c *Chunk) FillData(raw []float32, chunkGrid int) error {
	if c.filled {
		return ErrAlreadyFilled
	}
	side := chunkGrid + 1
	numVerts := side * side
	if chunkGrid < 1 || len(raw) < numVerts*3 {
		return ErrNoRawData
	}

	positions := make([]math.Vec3, 0, numVerts)
	uvs := make([]math.Vec2, 0, numVerts)
	indices := make([]uint32, 0, chunkGrid*chunkGrid*6)

	grid := float32(chunkGrid)
	i := 0
	for r := 0; r <= chunkGrid; r++ {
		v := float32(r) / grid
		for col := 0; col <= chunkGrid; col++ {
			off := i * 3
			positions = append(positions, math.Vec3{X: raw[off], Y: raw[off+1], Z: raw[off+2]})
			uvs = append(uvs, math.Vec2{X: float32(col) / grid, Y: v})

			if r < chunkGrid && col < chunkGrid {
				k := uint32(i)
				step := uint32(chunkGrid)
				indices = append(indices,
					k, k+1, k+step+2,
					k, k+step+2, k+step+1,
				)
			}
			i++
		}
	}

	c.positions = positions
	c.uvs = uvs
	c.indices = indices
	c.filled = true
	return nil
}

// release destroys the renderable, if any, and drops geometry buffers.
// Releasing twice is a no-op.
func (c *Chunk) release(r Renderer) {
	if c.destroyed {
		return
	}
	if c.hasHandle && r != nil {
		r.Destroy(c.handle)
	}
	c.handle = nil
	c.hasHandle = false
	c.positions = nil
	c.uvs = nil
	c.indices = nil
	c.inLoadingList = false
	c.destroyed = true
}
