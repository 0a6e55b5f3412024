package stream

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/terrastream/internal/logger"
	"github.com/Faultbox/terrastream/pkg/math"
	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

// Handle is a renderer-owned object built from a chunk.
type Handle any

// Renderer turns loaded chunk geometry into presentable objects. Both
// methods are called only from the Tick goroutine.
type Renderer interface {
	// Build creates a renderable from c's positions, UVs and indices.
	Build(c *Chunk) (Handle, error)
	// Destroy releases a renderable returned by Build.
	Destroy(h Handle)
}

// Options configures a Streamer.
type Options struct {
	// ViewDistance is the per-axis distance from the viewpoint to a chunk's
	// nearest edge under which the chunk loads.
	ViewDistance float32
	// Hysteresis widens the unload radius past the load radius. Negative
	// means half a chunk; zero unloads as soon as a chunk stops qualifying
	// for load.
	Hysteresis float32
	// Strict panics on state errors such as duplicate load requests
	// instead of logging them.
	Strict bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// DefaultOptions returns the standard settings.
func DefaultOptions() Options {
	return Options{
		ViewDistance: 200,
		Hysteresis:   -1,
	}
}

// Stats is a snapshot of streamer activity.
type Stats struct {
	Resident      int
	InFlight      int
	Requested     uint64
	Built         uint64
	Cancelled     uint64
	Failed        uint64
	Released      uint64
	GeometryBytes int64
}

// Streamer is the per-frame entry point: Tick runs the visibility scan and
// then hands finished chunks to the renderer.
type Streamer struct {
	session  string
	src      ChunkSource
	grid     *Grid
	loader   *Loader
	renderer Renderer
	log      *zap.Logger
	metrics  *Metrics

	drained []*Chunk
	stats   Stats
	strict  bool
	ready   bool
	closed  bool
}

// Open opens the terrain file at path and starts streaming from it.
// If the file cannot be opened, Open returns an inert Streamer, whose Tick
// does nothing, together with the error.
func Open(path string, r Renderer, opts Options) (*Streamer, error) {
	f, err := terrainfile.Open(path)
	if err != nil {
		log := opts.Logger
		if log == nil {
			log = logger.Named("stream")
		}
		log.Error("terrain streaming disabled", zap.String("path", path), zap.Error(err))
		return &Streamer{log: log, renderer: r}, err
	}

	s, err := New(f, r, opts)
	if err != nil {
		f.Close()
		return &Streamer{log: zap.NewNop(), renderer: r}, err
	}
	return s, nil
}

// New starts streaming from src. The Streamer takes ownership of src and
// closes it in Close.
func New(src ChunkSource, r Renderer, opts Options) (*Streamer, error) {
	if src == nil {
		return nil, errors.New("stream: nil chunk source")
	}
	if r == nil {
		return nil, errors.New("stream: nil renderer")
	}
	if opts.ViewDistance <= 0 {
		return nil, fmt.Errorf("stream: view distance must be positive, got %f", opts.ViewDistance)
	}
	desc := src.Descriptor()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	session := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logger.Named("stream")
	}
	log = log.With(zap.String("session", session))
	opts.Logger = log

	s := &Streamer{
		session:  session,
		src:      src,
		renderer: r,
		log:      log,
		metrics:  opts.Metrics,
		strict:   opts.Strict,
		ready:    true,
	}
	s.loader = NewLoader(src, log.Named("loader"), opts.Metrics)
	s.loader.strict = opts.Strict
	s.grid = NewGrid(desc, requestFunc(s.submit), s.destroy, opts)
	s.loader.Start()

	log.Info("terrain streaming started",
		zap.Int("chunks_per_row", desc.ChunksPerRow()),
		zap.Int32("chunk_width", desc.ChunkWidth),
		zap.Float32("grid_size", desc.GridSize),
		zap.Float32("view_distance", s.grid.ViewDistance()),
		zap.Float32("hysteresis", s.grid.Hysteresis()))
	return s, nil
}

// Ready reports whether the streamer has a data source to stream from.
func (s *Streamer) Ready() bool { return s.ready && !s.closed }

// Session returns the ID attached to this streamer's log lines.
func (s *Streamer) Session() string { return s.session }

// Grid returns the visibility grid.
func (s *Streamer) Grid() *Grid { return s.grid }

// Loader returns the background loader.
func (s *Streamer) Loader() *Loader { return s.loader }

// SetViewDistance changes the load radius from the next Tick on.
func (s *Streamer) SetViewDistance(d float32) {
	if !s.Ready() || d <= 0 {
		return
	}
	s.grid.SetViewDistance(d)
}

// submit forwards a load request to the loader and tracks it.
func (s *Streamer) submit(c *Chunk) error {
	if err := s.loader.Submit(c); err != nil {
		return err
	}
	s.stats.Requested++
	s.stats.InFlight++
	return nil
}

// Tick updates the resident set for the viewpoint and builds renderables
// for chunks the loader has finished.
func (s *Streamer) Tick(view math.Vec3) {
	if !s.Ready() {
		return
	}

	res := s.grid.Update(view)
	if res.Requested > 0 || res.Released > 0 || res.Cancelled > 0 {
		s.log.Debug("visibility scan",
			zap.Float32("x", view.X),
			zap.Float32("z", view.Z),
			zap.Int("kept", res.Kept),
			zap.Int("requested", res.Requested),
			zap.Int("released", res.Released),
			zap.Int("cancelled", res.Cancelled))
	}
	s.metrics.resident(len(s.grid.Active()))

	s.drain()
}

// drain takes every published chunk off the completed queue. Cancelled
// chunks are destroyed without reaching the renderer. In strict mode a chunk
// that failed with a state error panics here.
func (s *Streamer) drain() {
	s.drained = s.loader.Completed(s.drained[:0])
	if len(s.drained) == 0 {
		return
	}

	for _, c := range s.drained {
		s.stats.InFlight--
		s.metrics.drained()

		if c.Cancelled() {
			s.stats.Cancelled++
			s.metrics.cancelled()
			s.destroy(c)
			continue
		}

		switch {
		case c.loadErr != nil:
			if s.strict && IsStateError(c.loadErr) {
				panic(c.loadErr)
			}
			s.stats.Failed++
		case c.filled:
			s.build(c)
		}
		c.inLoadingList = false
	}

	clear(s.drained)
	s.drained = s.drained[:0]
}

func (s *Streamer) build(c *Chunk) {
	h, err := s.renderer.Build(c)
	if err != nil {
		s.log.Warn("renderable build failed",
			zap.Int("row", c.cell.Row),
			zap.Int("col", c.cell.Col),
			zap.Error(err))
		return
	}
	c.handle = h
	c.hasHandle = true
	s.stats.Built++
	s.metrics.built()
}

// destroy releases a chunk and its renderable.
func (s *Streamer) destroy(c *Chunk) {
	if c.destroyed {
		return
	}
	c.release(s.renderer)
	s.stats.Released++
	s.metrics.released()
}

// Stats returns a snapshot of streamer activity.
func (s *Streamer) Stats() Stats {
	st := s.stats
	if s.grid == nil {
		return st
	}
	active := s.grid.Active()
	st.Resident = len(active)
	for _, c := range active {
		if !c.inLoadingList {
			st.GeometryBytes += c.GeometryBytes()
		}
	}
	return st
}

// Close stops the loader, waits for it to exit and destroys every chunk
// still queued or resident.
func (s *Streamer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ready {
		return nil
	}

	s.loader.Stop()

	leftover := s.loader.Pending(nil)
	leftover = s.loader.Completed(leftover)
	for _, c := range leftover {
		s.stats.InFlight--
		s.metrics.drained()
		s.destroy(c)
	}
	s.grid.Reset()

	s.log.Info("terrain streaming stopped",
		zap.Int("leftover", len(leftover)),
		zap.Uint64("requested", s.stats.Requested),
		zap.Uint64("released", s.stats.Released))

	return s.src.Close()
}
