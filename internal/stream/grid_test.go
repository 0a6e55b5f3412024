package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/terrastream/pkg/math"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		dx, dz float32
		want   Action
	}{
		{"center", 0, 0, ActionLoad},
		{"inside both", 215, 10, ActionLoad},
		{"on load edge", 216, 0, ActionKeep},
		{"in band", 220, 220, ActionKeep},
		{"on unload edge", 232, 0, ActionKeep},
		{"past unload x", 233, 0, ActionUnload},
		{"past unload z", 0, 300, ActionUnload},
		{"negative deltas", -100, -215, ActionLoad},
		{"negative past unload", -240, 5, ActionUnload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := math.Vec2{}.Chebyshev(math.Vec2{X: tt.dx, Y: tt.dz})
			assert.Equal(t, tt.want, Classify(d, 216, 232))
		})
	}
	assert.Equal(t, "unload", ActionUnload.String())
}

func TestGrid_Radii(t *testing.T) {
	g, _ := newTestGrid(largeDesc, &fakeRequester{}, DefaultOptions())
	assert.Equal(t, 128, g.ChunksPerRow())
	assert.Equal(t, float32(16), g.HalfNodeSize())
	assert.Equal(t, float32(216), g.LoadRadius())
	assert.Equal(t, float32(232), g.UnloadRadius())

	x, z := g.CellCenter(0, 0)
	assert.Equal(t, float32(-2032), x)
	assert.Equal(t, float32(2032), z)

	opts := DefaultOptions()
	opts.Hysteresis = 0
	g, _ = newTestGrid(largeDesc, &fakeRequester{}, opts)
	assert.Equal(t, g.LoadRadius(), g.UnloadRadius())
}

func TestGrid_InitialLoadAtOrigin(t *testing.T) {
	req := &fakeRequester{}
	g, released := newTestGrid(largeDesc, req, DefaultOptions())

	res := g.Update(math.Vec3{})

	assert.Equal(t, ScanResult{Requested: 196}, res)
	require.Len(t, req.submitted, 196)
	assert.Empty(t, released.chunks)

	for r := 0; r < 128; r++ {
		for c := 0; c < 128; c++ {
			want := r >= 57 && r <= 70 && c >= 57 && c <= 70
			assert.Equal(t, want, g.Resident(r, c) != nil, "cell (%d, %d)", r, c)
		}
	}
	for _, c := range req.submitted {
		assert.True(t, c.Cell().Row >= 57 && c.Cell().Row <= 70)
		assert.True(t, c.Cell().Col >= 57 && c.Cell().Col <= 70)
	}
	require.NoError(t, g.CheckConsistency())

	// A second scan from the same spot changes nothing.
	res = g.Update(math.Vec3{})
	assert.Equal(t, ScanResult{Kept: 196}, res)
	assert.Len(t, req.submitted, 196)
	require.NoError(t, g.CheckConsistency())
}

func TestGrid_HysteresisAbsorbsOscillation(t *testing.T) {
	req := &fakeRequester{}
	g, released := newTestGrid(largeDesc, req, DefaultOptions())
	g.Update(math.Vec3{})

	// Column 70's center sits at x=208: 218 away from x=-10, inside the band.
	for i := 0; i < 10; i++ {
		x := float32(-10)
		if i%2 == 1 {
			x = 0
		}
		res := g.Update(math.Vec3{X: x})
		assert.Equal(t, ScanResult{Kept: 196}, res, "step %d", i)
	}
	assert.Len(t, req.submitted, 196)
	assert.Empty(t, released.chunks)

	// Past the band: column 70 goes, column 56 (center -240) comes.
	res := g.Update(math.Vec3{X: -30})
	assert.Equal(t, 14, res.Released)
	assert.Equal(t, 14, res.Requested)
	assert.Equal(t, 182, res.Kept)
	assert.Nil(t, g.Resident(60, 70))
	assert.NotNil(t, g.Resident(60, 56))
	require.NoError(t, g.CheckConsistency())
}

func TestGrid_ZeroBandChurns(t *testing.T) {
	opts := DefaultOptions()
	opts.Hysteresis = 0
	req := &fakeRequester{}
	g, released := newTestGrid(largeDesc, req, opts)
	g.Update(math.Vec3{})

	for i := 0; i < 4; i++ {
		g.Update(math.Vec3{X: -10})
		g.Update(math.Vec3{})
	}
	assert.Len(t, released.chunks, 4*14)
	assert.Len(t, req.submitted, 196+4*14)
	require.NoError(t, g.CheckConsistency())
}

func TestGrid_CancelsInFlightOnUnload(t *testing.T) {
	req := &fakeRequester{inFlight: true}
	g, released := newTestGrid(largeDesc, req, DefaultOptions())
	g.Update(math.Vec3{})

	res := g.Update(math.Vec3{X: -30})
	assert.Equal(t, 14, res.Cancelled)
	assert.Zero(t, res.Released)
	assert.Empty(t, released.chunks, "in-flight chunks are destroyed at drain, not by the scan")

	cancelled := 0
	for _, c := range req.submitted {
		if c.Cancelled() {
			cancelled++
			assert.Equal(t, 70, c.Cell().Col)
			assert.False(t, c.Destroyed())
		}
	}
	assert.Equal(t, 14, cancelled)
	require.NoError(t, g.CheckConsistency())
}

func TestGrid_ConsistentAlongPath(t *testing.T) {
	live := make(map[Cell]*Chunk)
	submits := 0
	req := requestFunc(func(c *Chunk) error {
		if prev, ok := live[c.Cell()]; ok && !prev.Destroyed() {
			t.Errorf("cell %+v submitted while still resident", c.Cell())
		}
		live[c.Cell()] = c
		submits++
		return nil
	})

	opts := DefaultOptions()
	opts.ViewDistance = 40
	g, released := newTestGrid(testDesc, req, opts)

	for step := 0; step <= 60; step++ {
		s := float32(step)
		view := math.Vec3{X: -120 + 4*s, Z: 100 - 3.3*s}
		g.Update(view)
		require.NoError(t, g.CheckConsistency(), "step %d", step)

		// Everything in load range is resident; nothing past unload range is.
		for cell := range cellsAround(g, view) {
			assert.NotNil(t, g.Resident(cell.Row, cell.Col), "step %d cell %+v", step, cell)
		}
		for _, c := range g.Active() {
			x, z := g.CellCenter(c.Cell().Row, c.Cell().Col)
			assert.LessOrEqual(t, view.XZ().Chebyshev(math.Vec2{X: x, Y: z}), g.UnloadRadius())
			assert.False(t, c.Destroyed())
		}
	}

	assert.Equal(t, submits, len(released.chunks)+len(g.Active()))

	g.Reset()
	assert.Empty(t, g.Active())
	assert.Equal(t, submits, len(released.chunks))
	require.NoError(t, g.CheckConsistency())
}

func TestGrid_SubmitRejected(t *testing.T) {
	opts := DefaultOptions()
	opts.ViewDistance = 40

	g, _ := newTestGrid(testDesc, &fakeRequester{err: ErrDuplicateRequest}, opts)
	assert.NotPanics(t, func() { g.Update(math.Vec3{}) })

	opts.Strict = true
	g, _ = newTestGrid(testDesc, &fakeRequester{err: ErrDuplicateRequest}, opts)
	assert.PanicsWithError(t, ErrDuplicateRequest.Error(), func() { g.Update(math.Vec3{}) })
}

func TestGrid_ViewDistanceChange(t *testing.T) {
	opts := DefaultOptions()
	opts.ViewDistance = 40
	g, released := newTestGrid(testDesc, &fakeRequester{}, opts)

	g.Update(math.Vec3{})
	assert.Len(t, g.Active(), 36)

	g.SetViewDistance(16)
	res := g.Update(math.Vec3{})
	assert.Equal(t, 20, res.Released)
	assert.Len(t, g.Active(), 16)
	assert.Len(t, released.chunks, 20)
	require.NoError(t, g.CheckConsistency())
}
