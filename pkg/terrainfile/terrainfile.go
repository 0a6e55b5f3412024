// Package terrainfile reads and writes chunked height-field terrain data files.
//
// A terrain file is a fixed 16-byte little-endian header followed by one
// fixed-size record per chunk, stored in row-major chunk order. Each record
// holds (ChunkWidth+1)^2 vertices as interleaved float32 (x, y, z) triples,
// local row outer and local column inner.
package terrainfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// HeaderSize is the size of the file header in bytes.
const HeaderSize = 16

// Terrain file errors.
var (
	ErrOpen            = errors.New("cannot open terrain file")
	ErrTruncatedHeader = errors.New("truncated terrain header")
	ErrInvalidHeader   = errors.New("invalid terrain header")
	ErrChunkOutOfRange = errors.New("chunk out of range")
	ErrShortRead       = errors.New("short chunk read")
	ErrBufferTooSmall  = errors.New("chunk buffer too small")
)

// Descriptor is the terrain file header.
type Descriptor struct {
	HeightMapWidth int32   // Height map width in samples
	WidthInGrids   int32   // Terrain width in grid cells
	ChunkWidth     int32   // Chunk width in grid cells
	GridSize       float32 // Grid cell size in world units
}

// Validate checks the header fields for consistency.
func (d Descriptor) Validate() error {
	if d.HeightMapWidth < 2 || d.WidthInGrids < 1 || d.ChunkWidth < 1 {
		return fmt.Errorf("%w: dimensions %d/%d/%d", ErrInvalidHeader, d.HeightMapWidth, d.WidthInGrids, d.ChunkWidth)
	}
	if d.GridSize <= 0 {
		return fmt.Errorf("%w: grid size %f", ErrInvalidHeader, d.GridSize)
	}
	if d.ChunksPerRow() < 1 {
		return fmt.Errorf("%w: chunk width %d exceeds height map", ErrInvalidHeader, d.ChunkWidth)
	}
	return nil
}

// ChunksPerRow returns the number of chunks along one terrain edge.
func (d Descriptor) ChunksPerRow() int {
	return int(d.HeightMapWidth-1) / int(d.ChunkWidth)
}

// ChunkCount returns the total number of chunk records.
func (d Descriptor) ChunkCount() int {
	n := d.ChunksPerRow()
	return n * n
}

// VertsPerChunk returns the vertex count of one chunk lattice.
func (d Descriptor) VertsPerChunk() int {
	w := int(d.ChunkWidth) + 1
	return w * w
}

// FloatsPerChunk returns the float32 count of one chunk record.
func (d Descriptor) FloatsPerChunk() int {
	return d.VertsPerChunk() * 3
}

// ChunkRecordSize returns the byte size of one chunk record.
func (d Descriptor) ChunkRecordSize() int64 {
	return int64(d.FloatsPerChunk()) * 4
}

// DataOffset returns the byte offset of the first chunk record.
func (d Descriptor) DataOffset() int64 {
	return HeaderSize
}

// RecordOffset returns the byte offset of the record for chunk (row, col).
func (d Descriptor) RecordOffset(row, col int) int64 {
	return d.DataOffset() + d.ChunkRecordSize()*int64(row*d.ChunksPerRow()+col)
}

// NodeSize returns the world-space edge length of one chunk.
func (d Descriptor) NodeSize() float32 {
	return float32(d.ChunkWidth) * d.GridSize
}

// Origin returns the world-space X and Z of the terrain's top-left corner.
// Rows advance toward -Z and columns toward +X.
func (d Descriptor) Origin() (x, z float32) {
	x = -float32(d.WidthInGrids/2) * d.GridSize
	return x, -x
}

// ParseHeader reads and validates a header.
func ParseHeader(r io.Reader) (Descriptor, error) {
	var d Descriptor
	if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrTruncatedHeader, err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// File is an opened terrain file supporting random-access chunk reads.
// ReadChunk uses positional reads, so a File may be read from a goroutine
// other than the one that opened it.
type File struct {
	r    io.ReaderAt
	c    io.Closer
	desc Descriptor
}

// Open opens a terrain file and parses its header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	tf, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	tf.c = f
	return tf, nil
}

// NewReader parses the header from r and returns a File reading chunks from it.
func NewReader(r io.ReaderAt) (*File, error) {
	desc, err := ParseHeader(io.NewSectionReader(r, 0, HeaderSize))
	if err != nil {
		return nil, err
	}
	return &File{r: r, desc: desc}, nil
}

// Descriptor returns the parsed header.
func (f *File) Descriptor() Descriptor {
	return f.desc
}

// ReadChunk reads the record of chunk (row, col) into out, which must hold
// at least FloatsPerChunk values.
func (f *File) ReadChunk(row, col int, out []float32) error {
	n := f.desc.ChunksPerRow()
	if row < 0 || col < 0 || row >= n || col >= n {
		return fmt.Errorf("%w: (%d, %d)", ErrChunkOutOfRange, row, col)
	}

	count := f.desc.FloatsPerChunk()
	if len(out) < count {
		return fmt.Errorf("%w: have %d, need %d", ErrBufferTooSmall, len(out), count)
	}

	sr := io.NewSectionReader(f.r, f.desc.RecordOffset(row, col), f.desc.ChunkRecordSize())
	if err := binary.Read(sr, binary.LittleEndian, out[:count]); err != nil {
		return fmt.Errorf("%w: chunk (%d, %d): %v", ErrShortRead, row, col, err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (f *File) Close() error {
	if f.c != nil {
		err := f.c.Close()
		f.c = nil
		return err
	}
	return nil
}
