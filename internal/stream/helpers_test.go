package stream

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/terrastream/pkg/math"
	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

// 16x16 chunks of 16 units; the terrain spans [-128, 128] on both axes.
var testDesc = terrainfile.Descriptor{HeightMapWidth: 257, WidthInGrids: 256, ChunkWidth: 16, GridSize: 1}

// The 128x128-chunk terrain the load scenarios are stated against.
var largeDesc = terrainfile.Descriptor{HeightMapWidth: 4097, WidthInGrids: 4096, ChunkWidth: 32, GridSize: 1}

func memFile(t testing.TB, d terrainfile.Descriptor, h terrainfile.HeightFunc) *terrainfile.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, terrainfile.Generate(&buf, d, h, nil))
	f, err := terrainfile.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return f
}

// gatedSource blocks every read until open is called.
type gatedSource struct {
	ChunkSource
	gate    chan struct{}
	entered chan Cell
}

func newGatedSource(src ChunkSource) *gatedSource {
	return &gatedSource{
		ChunkSource: src,
		gate:        make(chan struct{}),
		entered:     make(chan Cell, 4096),
	}
}

func (g *gatedSource) ReadChunk(row, col int, out []float32) error {
	select {
	case g.entered <- Cell{Row: row, Col: col}:
	default:
	}
	<-g.gate
	return g.ChunkSource.ReadChunk(row, col, out)
}

func (g *gatedSource) open() { close(g.gate) }

func (g *gatedSource) waitEntered(t *testing.T) Cell {
	t.Helper()
	select {
	case c := <-g.entered:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("loader never started reading")
		return Cell{}
	}
}

// failingSource fails reads of one cell.
type failingSource struct {
	ChunkSource
	fail Cell
}

func (f *failingSource) ReadChunk(row, col int, out []float32) error {
	if (Cell{Row: row, Col: col}) == f.fail {
		return fmt.Errorf("%w: injected at (%d, %d)", terrainfile.ErrShortRead, row, col)
	}
	return f.ChunkSource.ReadChunk(row, col, out)
}

// recordingRenderer hands out integer handles and tracks which are live.
type recordingRenderer struct {
	next          int
	live          map[int]Cell
	built         []Cell
	destroyed     int
	doubleDestroy int
	failOn        map[Cell]bool
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{live: make(map[int]Cell), failOn: make(map[Cell]bool)}
}

func (r *recordingRenderer) Build(c *Chunk) (Handle, error) {
	if r.failOn[c.Cell()] {
		return nil, errors.New("upload failed")
	}
	if !c.HasGeometry() {
		return nil, errors.New("no geometry")
	}
	r.next++
	r.live[r.next] = c.Cell()
	r.built = append(r.built, c.Cell())
	return r.next, nil
}

func (r *recordingRenderer) Destroy(h Handle) {
	id := h.(int)
	if _, ok := r.live[id]; !ok {
		r.doubleDestroy++
		return
	}
	delete(r.live, id)
	r.destroyed++
}

// fakeRequester records submissions without loading anything. With
// inFlight set, submitted chunks stay marked as loading, as with a loader
// that never finishes.
type fakeRequester struct {
	submitted []*Chunk
	inFlight  bool
	err       error
}

func (f *fakeRequester) Submit(c *Chunk) error {
	if f.err != nil {
		return f.err
	}
	if f.inFlight {
		c.inLoadingList = true
	}
	f.submitted = append(f.submitted, c)
	return nil
}

type releaseLog struct {
	chunks []*Chunk
}

func (l *releaseLog) release(c *Chunk) {
	c.release(nil)
	l.chunks = append(l.chunks, c)
}

func newTestGrid(d terrainfile.Descriptor, req requester, opts Options) (*Grid, *releaseLog) {
	rl := &releaseLog{}
	return NewGrid(d, req, rl.release, opts), rl
}

// settle ticks until every request has been drained.
func settle(t *testing.T, s *Streamer, view math.Vec3) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.Tick(view)
		if s.Stats().InFlight == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("streamer did not settle at %+v: %+v", view, s.Stats())
}

// cellsAround lists the cells whose centers lie within the load radius.
func cellsAround(g *Grid, view math.Vec3) map[Cell]bool {
	cells := make(map[Cell]bool)
	for r := 0; r < g.ChunksPerRow(); r++ {
		for c := 0; c < g.ChunksPerRow(); c++ {
			x, z := g.CellCenter(r, c)
			if view.XZ().Chebyshev(math.Vec2{X: x, Y: z}) < g.LoadRadius() {
				cells[Cell{Row: r, Col: c}] = true
			}
		}
	}
	return cells
}
