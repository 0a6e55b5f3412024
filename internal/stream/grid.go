package stream

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastream/pkg/math"
	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

const emptySlot = -1

// Action is the visibility classification of one grid cell.
type Action int

// Cell classifications.
const (
	ActionKeep Action = iota
	ActionLoad
	ActionUnload
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionLoad:
		return "load"
	case ActionUnload:
		return "unload"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Classify decides what to do with a cell whose center lies d away from the
// viewpoint, d being the larger of the X and Z deltas. A cell loads once both
// deltas are within loadRadius and unloads once either exceeds unloadRadius;
// between the two it keeps its current state.
func Classify(d, loadRadius, unloadRadius float32) Action {
	if d < loadRadius {
		return ActionLoad
	}
	if d > unloadRadius {
		return ActionUnload
	}
	return ActionKeep
}

// requester accepts load requests.
type requester interface {
	Submit(c *Chunk) error
}

type requestFunc func(c *Chunk) error

func (f requestFunc) Submit(c *Chunk) error { return f(c) }

// ScanResult summarises one visibility scan.
type ScanResult struct {
	Kept      int // Resident chunks carried into the next frame
	Requested int // New chunks submitted for loading
	Released  int // Loaded chunks destroyed immediately
	Cancelled int // In-flight chunks flagged for deferred destruction
}

// Grid tracks which chunk cells are resident.
//
// slots maps every cell to an index into the active cache, or emptySlot.
// The two caches alternate each scan: the active one holds last frame's
// resident set and is read, the building one receives this frame's set.
// A chunk that stays resident is moved between them, never copied.
type Grid struct {
	desc terrainfile.Descriptor
	n    int

	slots  []int32
	caches [2][]*Chunk
	cur    int

	viewDistance float32
	hysteresis   float32

	loader  requester
	release func(*Chunk)
	strict  bool
	log     *zap.Logger
}

// NewGrid creates an empty grid for desc. release is called for every chunk
// the scan destroys directly.
func NewGrid(desc terrainfile.Descriptor, loader requester, release func(*Chunk), opts Options) *Grid {
	n := desc.ChunksPerRow()
	g := &Grid{
		desc:         desc,
		n:            n,
		slots:        make([]int32, n*n),
		viewDistance: opts.ViewDistance,
		hysteresis:   opts.Hysteresis,
		loader:       loader,
		release:      release,
		strict:       opts.Strict,
		log:          opts.Logger,
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	for i := range g.slots {
		g.slots[i] = emptySlot
	}

	capacity := g.estimateCapacity()
	g.caches[0] = make([]*Chunk, 0, capacity)
	g.caches[1] = make([]*Chunk, 0, capacity)
	return g
}

// estimateCapacity returns the number of cells inside the unload square.
func (g *Grid) estimateCapacity() int {
	node := g.desc.NodeSize()
	across := 2*int(g.UnloadRadius()/node) + 2
	if across > g.n {
		across = g.n
	}
	return across * across
}

// ChunksPerRow returns the grid edge length.
func (g *Grid) ChunksPerRow() int { return g.n }

// SetViewDistance changes the load radius for subsequent scans.
func (g *Grid) SetViewDistance(d float32) { g.viewDistance = d }

// ViewDistance returns the current view distance.
func (g *Grid) ViewDistance() float32 { return g.viewDistance }

// HalfNodeSize returns half a chunk's world-space edge length.
func (g *Grid) HalfNodeSize() float32 { return g.desc.NodeSize() / 2 }

// Hysteresis returns the width of the band between the load and unload
// radii. A negative configured value means half a chunk.
func (g *Grid) Hysteresis() float32 {
	if g.hysteresis < 0 {
		return g.HalfNodeSize()
	}
	return g.hysteresis
}

// LoadRadius is the per-axis center distance under which a cell loads.
func (g *Grid) LoadRadius() float32 {
	return g.viewDistance + g.HalfNodeSize()
}

// UnloadRadius is the per-axis center distance over which a cell unloads.
func (g *Grid) UnloadRadius() float32 {
	return g.LoadRadius() + g.Hysteresis()
}

// CellCenter returns the world-space X and Z of a cell's center.
func (g *Grid) CellCenter(row, col int) (x, z float32) {
	sx, sz := g.desc.Origin()
	node := g.desc.NodeSize()
	half := node / 2
	return sx + node*float32(col) + half, sz - node*float32(row) - half
}

// Update runs the visibility scan for the viewpoint. It must be called from
// the Tick goroutine and performs no I/O.
func (g *Grid) Update(view math.Vec3) ScanResult {
	var res ScanResult

	active := g.caches[g.cur]
	building := g.caches[g.cur^1][:0]

	loadR := g.LoadRadius()
	unloadR := g.UnloadRadius()
	eye := view.XZ()

	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			cx, cz := g.CellCenter(r, c)
			d := eye.Chebyshev(math.Vec2{X: cx, Y: cz})

			idx := r*g.n + c
			slot := g.slots[idx]

			switch Classify(d, loadR, unloadR) {
			case ActionKeep:
				if slot != emptySlot {
					building = g.move(active, building, idx)
					res.Kept++
				}

			case ActionLoad:
				if slot != emptySlot {
					building = g.move(active, building, idx)
					res.Kept++
					continue
				}
				chunk := NewChunk(r, c)
				g.slots[idx] = int32(len(building))
				building = append(building, chunk)
				g.submit(chunk)
				res.Requested++

			case ActionUnload:
				if slot == emptySlot {
					continue
				}
				chunk := active[slot]
				active[slot] = nil
				g.slots[idx] = emptySlot

				if chunk.inLoadingList {
					// The loader may be writing into it; drain destroys it.
					chunk.Cancel()
					res.Cancelled++
				} else {
					g.release(chunk)
					res.Released++
				}
			}
		}
	}

	clear(active)
	g.caches[g.cur] = active[:0]
	g.caches[g.cur^1] = building
	g.cur ^= 1

	return res
}

// move transfers the chunk of cell idx from active to building.
func (g *Grid) move(active, building []*Chunk, idx int) []*Chunk {
	slot := g.slots[idx]
	g.slots[idx] = int32(len(building))
	building = append(building, active[slot])
	active[slot] = nil
	return building
}

func (g *Grid) submit(c *Chunk) {
	if err := g.loader.Submit(c); err != nil {
		if g.strict {
			panic(err)
		}
		g.log.Error("load request rejected",
			zap.Int("row", c.cell.Row),
			zap.Int("col", c.cell.Col),
			zap.Error(err))
	}
}

// Active returns the current resident set. The slice is owned by the grid
// and valid until the next Update.
func (g *Grid) Active() []*Chunk {
	return g.caches[g.cur]
}

// Slot returns the active cache index of a cell, or -1 if it is empty.
func (g *Grid) Slot(row, col int) int {
	return int(g.slots[row*g.n+col])
}

// Resident returns the chunk of a cell, or nil.
func (g *Grid) Resident(row, col int) *Chunk {
	slot := g.slots[row*g.n+col]
	if slot == emptySlot {
		return nil
	}
	return g.caches[g.cur][slot]
}

// CheckConsistency verifies that every occupied slot points at a live chunk
// for that cell in the active cache, and that the cache holds nothing else.
func (g *Grid) CheckConsistency() error {
	active := g.caches[g.cur]
	occupied := 0
	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			slot := int(g.slots[r*g.n+c])
			if slot == emptySlot {
				continue
			}
			occupied++
			if slot < 0 || slot >= len(active) {
				return fmt.Errorf("cell (%d, %d): slot %d outside cache of %d", r, c, slot, len(active))
			}
			chunk := active[slot]
			if chunk == nil || chunk.destroyed {
				return fmt.Errorf("cell (%d, %d): slot %d holds no live chunk", r, c, slot)
			}
			if chunk.cell != (Cell{Row: r, Col: c}) {
				return fmt.Errorf("cell (%d, %d): slot %d holds chunk for (%d, %d)", r, c, slot, chunk.cell.Row, chunk.cell.Col)
			}
		}
	}
	if occupied != len(active) {
		return fmt.Errorf("%d occupied slots but %d cached chunks", occupied, len(active))
	}
	return nil
}

// Reset releases every resident chunk and empties the grid.
func (g *Grid) Reset() {
	for _, c := range g.caches[g.cur] {
		if c != nil {
			g.release(c)
		}
	}
	for i := range g.caches {
		clear(g.caches[i])
		g.caches[i] = g.caches[i][:0]
	}
	for i := range g.slots {
		g.slots[i] = emptySlot
	}
}
