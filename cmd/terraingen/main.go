// terraingen writes and inspects chunked terrain files.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "generate", "gen":
		err = cmdGenerate(args)
	case "info":
		err = cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`terraingen - chunked terrain file utility

Usage:
  terraingen <command> [options]

Commands:
  generate [flags] <out.bin>   Write a synthetic terrain file
  info <file.bin> [row col]    Show header and height range of one chunk

Generate flags:
  -grids N      Terrain width in grids (default 4096)
  -chunk N      Chunk width in grids (default 32)
  -grid-size F  World units per grid (default 1)
  -height NAME  sine, perlin or flat (default sine)
  -seed N       Perlin seed (default 1)

Examples:
  terraingen generate terrain.bin
  terraingen generate -grids 1024 -height perlin -seed 7 hills.bin
  terraingen info terrain.bin 64 64`)
}

func cmdGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	grids := fs.Int("grids", 4096, "terrain width in grids")
	chunk := fs.Int("chunk", 32, "chunk width in grids")
	gridSize := fs.Float64("grid-size", 1, "world units per grid")
	heightName := fs.String("height", "sine", "height function: sine, perlin or flat")
	seed := fs.Int64("seed", 1, "perlin seed")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: terraingen generate [flags] <out.bin>")
	}
	out := fs.Arg(0)

	desc := terrainfile.Descriptor{
		HeightMapWidth: int32(*grids + 1),
		WidthInGrids:   int32(*grids),
		ChunkWidth:     int32(*chunk),
		GridSize:       float32(*gridSize),
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	height, err := heightFunc(*heightName, *seed)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	size := desc.DataOffset() + desc.ChunkRecordSize()*int64(desc.ChunkCount())
	fmt.Printf("Writing %s: %dx%d chunks, %s\n", out, desc.ChunksPerRow(), desc.ChunksPerRow(), humanize.Bytes(uint64(size)))

	progress := func(row, rows int) {
		if row%16 == 0 || row == rows {
			fmt.Printf("  %d/%d rows\n", row, rows)
		}
	}
	if err := terrainfile.Generate(w, desc, height, progress); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: terraingen info <file.bin> [row col]")
	}

	f, err := terrainfile.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	desc := f.Descriptor()
	x, z := desc.Origin()
	fmt.Printf("File:          %s\n", args[0])
	fmt.Printf("Height map:    %d samples\n", desc.HeightMapWidth)
	fmt.Printf("Width:         %d grids of %g units\n", desc.WidthInGrids, desc.GridSize)
	fmt.Printf("Chunks:        %d x %d of %d grids (%s each)\n",
		desc.ChunksPerRow(), desc.ChunksPerRow(), desc.ChunkWidth, humanize.Bytes(uint64(desc.ChunkRecordSize())))
	fmt.Printf("Origin:        (%g, %g)\n", x, z)

	row, col := desc.ChunksPerRow()/2, desc.ChunksPerRow()/2
	if len(args) >= 3 {
		if _, err := fmt.Sscan(args[1], &row); err != nil {
			return fmt.Errorf("row: %w", err)
		}
		if _, err := fmt.Sscan(args[2], &col); err != nil {
			return fmt.Errorf("col: %w", err)
		}
	}

	buf := make([]float32, desc.FloatsPerChunk())
	if err := f.ReadChunk(row, col, buf); err != nil {
		return err
	}
	lo, hi := heightRange(buf)
	fmt.Printf("Chunk (%d, %d): heights %.2f .. %.2f\n", row, col, lo, hi)
	return nil
}

// heightRange returns the min and max Y of interleaved (x, y, z) triples.
func heightRange(verts []float32) (lo, hi float32) {
	if len(verts) < 3 {
		return 0, 0
	}
	lo, hi = verts[1], verts[1]
	for i := 4; i < len(verts); i += 3 {
		lo = min(lo, verts[i])
		hi = max(hi, verts[i])
	}
	return lo, hi
}
