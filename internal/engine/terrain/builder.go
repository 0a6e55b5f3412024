package terrain

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastream/internal/stream"
	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

// Build errors.
var (
	ErrNoGeometry     = errors.New("chunk has no geometry")
	ErrBudgetExceeded = errors.New("mesh memory budget exceeded")
	ErrForeignHandle  = errors.New("handle was not built by this builder")
)

// MeshBuilder is a CPU-side stream.Renderer. It keeps one Mesh per built
// chunk so the resident terrain can be inspected and height-queried.
//
// Build and Destroy are called from the streaming goroutine; Stats and
// HeightAt may be called from any goroutine.
type MeshBuilder struct {
	desc terrainfile.Descriptor
	log  *zap.Logger

	// MaxBytes caps live mesh memory. Zero means unlimited.
	MaxBytes int64

	mu     sync.RWMutex
	meshes map[stream.Cell]*Mesh
	stats  Stats
}

// NewMeshBuilder creates a builder for chunks of the given terrain.
func NewMeshBuilder(desc terrainfile.Descriptor, log *zap.Logger) *MeshBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &MeshBuilder{
		desc:   desc,
		log:    log,
		meshes: make(map[stream.Cell]*Mesh),
	}
}

// Build creates a mesh from c's geometry. The returned handle is the *Mesh.
func (b *MeshBuilder) Build(c *stream.Chunk) (stream.Handle, error) {
	if !c.HasGeometry() || len(c.Positions()) == 0 {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrNoGeometry, c.Cell().Row, c.Cell().Col)
	}

	mesh := BuildMesh(c.Cell(), c.Positions(), c.UVs(), c.Indices())

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.MaxBytes > 0 && b.stats.Bytes+mesh.Bytes() > b.MaxBytes {
		b.stats.Rejected++
		return nil, fmt.Errorf("%w: %d + %d > %d", ErrBudgetExceeded, b.stats.Bytes, mesh.Bytes(), b.MaxBytes)
	}
	if old, ok := b.meshes[mesh.Cell]; ok {
		// A cell rebuilt before its old mesh was destroyed.
		b.log.Warn("replacing live mesh", zap.Int("row", mesh.Cell.Row), zap.Int("col", mesh.Cell.Col))
		b.stats.Bytes -= old.Bytes()
		b.stats.Meshes--
	}

	b.meshes[mesh.Cell] = mesh
	b.stats.Meshes++
	b.stats.Bytes += mesh.Bytes()
	b.stats.Built++
	return mesh, nil
}

// Destroy drops a mesh returned by Build.
func (b *MeshBuilder) Destroy(h stream.Handle) {
	mesh, ok := h.(*Mesh)
	if !ok {
		b.log.Error("destroy called with foreign handle", zap.Error(ErrForeignHandle), zap.Any("handle", h))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.meshes[mesh.Cell] != mesh {
		return
	}
	delete(b.meshes, mesh.Cell)
	b.stats.Meshes--
	b.stats.Bytes -= mesh.Bytes()
	b.stats.Destroyed++
}

// Mesh returns the live mesh of a cell, or nil.
func (b *MeshBuilder) Mesh(row, col int) *Mesh {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meshes[stream.Cell{Row: row, Col: col}]
}

// Stats returns a snapshot of the builder's counters.
func (b *MeshBuilder) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}
