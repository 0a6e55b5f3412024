package terrainfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// HeightFunc returns the terrain height at a world position.
type HeightFunc func(x, z float32) float32

// SineHeight is a smooth rolling height field, 50 units in amplitude.
func SineHeight(x, z float32) float32 {
	return float32(math.Sin(float64(x)*0.01) * math.Sin(float64(z)*0.012) * 50.0)
}

// FlatHeight returns zero everywhere.
func FlatHeight(x, z float32) float32 {
	return 0
}

// Writer writes a terrain file sequentially.
type Writer struct {
	w       io.Writer
	desc    Descriptor
	written int
}

// NewWriter creates a writer for the given header.
func NewWriter(w io.Writer, d Descriptor) (*Writer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Writer{w: w, desc: d}, nil
}

// WriteHeader writes the file header. It must be called once, first.
func (w *Writer) WriteHeader() error {
	return binary.Write(w.w, binary.LittleEndian, w.desc)
}

// WriteChunk appends one chunk record.
func (w *Writer) WriteChunk(verts []float32) error {
	if len(verts) != w.desc.FloatsPerChunk() {
		return fmt.Errorf("chunk record has %d floats, want %d", len(verts), w.desc.FloatsPerChunk())
	}
	if err := binary.Write(w.w, binary.LittleEndian, verts); err != nil {
		return fmt.Errorf("writing chunk %d: %w", w.written, err)
	}
	w.written++
	return nil
}

// Written returns the number of chunk records written so far.
func (w *Writer) Written() int {
	return w.written
}

// ChunkVertices fills buf with the lattice of chunk (row, col), sampling
// height at every vertex.
func ChunkVertices(d Descriptor, row, col int, height HeightFunc, buf []float32) {
	sx, sz := d.Origin()
	cw := int(d.ChunkWidth)
	x0 := sx + float32(col*cw)*d.GridSize
	z0 := sz - float32(row*cw)*d.GridSize

	i := 0
	for vr := 0; vr <= cw; vr++ {
		for vc := 0; vc <= cw; vc++ {
			x := x0 + float32(vc)*d.GridSize
			z := z0 - float32(vr)*d.GridSize
			buf[i] = x
			buf[i+1] = height(x, z)
			buf[i+2] = z
			i += 3
		}
	}
}

// Generate writes a complete terrain file for d, with heights from height.
// The progress callback, if set, is called after every chunk row.
func Generate(out io.Writer, d Descriptor, height HeightFunc, progress func(row, rows int)) error {
	w, err := NewWriter(out, d)
	if err != nil {
		return err
	}
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	buf := make([]float32, d.FloatsPerChunk())
	n := d.ChunksPerRow()
	for r := range n {
		for c := range n {
			ChunkVertices(d, r, c, height, buf)
			if err := w.WriteChunk(buf); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(r+1, n)
		}
	}
	return nil
}
