package stream

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

// ChunkSource provides random-access chunk records. *terrainfile.File
// implements it.
type ChunkSource interface {
	Descriptor() terrainfile.Descriptor
	ReadChunk(row, col int, out []float32) error
	Close() error
}

// LoaderState is the loader goroutine's current phase.
type LoaderState int32

// Loader states.
const (
	LoaderIdle LoaderState = iota
	LoaderDraining
	LoaderProcessing
	LoaderPublishing
	LoaderExited
)

// String returns the state name.
func (s LoaderState) String() string {
	switch s {
	case LoaderIdle:
		return "idle"
	case LoaderDraining:
		return "draining"
	case LoaderProcessing:
		return "processing"
	case LoaderPublishing:
		return "publishing"
	case LoaderExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Loader reads requested chunks on a single background goroutine.
//
// Requests go in through Submit; finished chunks, including cancelled and
// failed ones, come back out through Completed. Both queues are spliced
// whole, so each lock is held for a slice append at most.
type Loader struct {
	src       ChunkSource
	chunkGrid int
	log       *zap.Logger
	metrics   *Metrics
	strict    bool

	pending   chunkQueue
	completed chunkQueue

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	state   atomic.Int32
	started bool
	stopped bool

	// Owned by the loader goroutine.
	working []*Chunk
	buf     []float32
}

// NewLoader creates a loader reading from src. Call Start to launch it.
func NewLoader(src ChunkSource, log *zap.Logger, metrics *Metrics) *Loader {
	desc := src.Descriptor()
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		src:       src,
		chunkGrid: int(desc.ChunkWidth),
		log:       log,
		metrics:   metrics,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		buf:       make([]float32, desc.FloatsPerChunk()),
	}
}

// Start launches the loader goroutine.
func (l *Loader) Start() {
	if l.started {
		return
	}
	l.started = true
	go l.run()
}

// State returns the loader's current phase.
func (l *Loader) State() LoaderState {
	return LoaderState(l.state.Load())
}

// Submit queues c for loading and wakes the loader. It never blocks beyond
// the pending queue's lock. A chunk is loaded at most once: chunks already
// queued, filled or destroyed are rejected.
func (l *Loader) Submit(c *Chunk) error {
	if c.inLoadingList || c.filled || c.destroyed || (l.strict && l.pending.contains(c)) {
		return fmt.Errorf("%w: (%d, %d)", ErrDuplicateRequest, c.cell.Row, c.cell.Col)
	}
	c.inLoadingList = true
	l.pending.push(c)
	l.metrics.requested()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Completed appends every published chunk to dst and returns it.
func (l *Loader) Completed(dst []*Chunk) []*Chunk {
	return l.completed.splice(dst)
}

// Pending appends every not-yet-drained request to dst and returns it.
// Only meaningful after Stop.
func (l *Loader) Pending(dst []*Chunk) []*Chunk {
	return l.pending.splice(dst)
}

// Stop asks the loader to exit and waits until it has. A chunk being read
// when Stop is called is finished first. After Stop returns, no further
// chunks are published.
func (l *Loader) Stop() {
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.quit)
	if l.started {
		<-l.done
	}
	l.state.Store(int32(LoaderExited))
}

func (l *Loader) run() {
	defer close(l.done)

	for {
		l.state.Store(int32(LoaderIdle))
		select {
		case <-l.quit:
			l.exit()
			return
		case <-l.wake:
			if !l.handleRequests() {
				l.exit()
				return
			}
		}
	}
}

func (l *Loader) exit() {
	l.state.Store(int32(LoaderExited))
	l.log.Debug("loader exited")
}

// handleRequests drains the pending queue, loads every chunk and publishes
// the batch. It returns false if exit was requested mid-batch.
func (l *Loader) handleRequests() bool {
	l.state.Store(int32(LoaderDraining))
	l.working = l.pending.splice(l.working[:0])

	l.state.Store(int32(LoaderProcessing))
	keepRunning := true
	for _, c := range l.working {
		if l.quitRequested() {
			keepRunning = false
			break
		}
		l.load(c)
	}

	// Unprocessed chunks are published too, so none is left stranded.
	l.state.Store(int32(LoaderPublishing))
	l.completed.pushAll(l.working)
	clear(l.working)
	l.working = l.working[:0]

	return keepRunning
}

func (l *Loader) quitRequested() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}

// load reads and fills one chunk. Failures stay local to the chunk.
func (l *Loader) load(c *Chunk) {
	if c.Cancelled() {
		l.metrics.skipped()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.loadErr = fmt.Errorf("loading chunk (%d, %d): panic: %v", c.cell.Row, c.cell.Col, r)
			l.log.Error("chunk load panicked",
				zap.Int("row", c.cell.Row),
				zap.Int("col", c.cell.Col),
				zap.Any("panic", r))
			l.metrics.failed()
		}
	}()

	start := time.Now()
	if err := l.src.ReadChunk(c.cell.Row, c.cell.Col, l.buf); err != nil {
		l.fail(c, err)
		return
	}

	if c.Cancelled() {
		l.metrics.skipped()
		return
	}

	if err := c.FillData(l.buf, l.chunkGrid); err != nil {
		l.fail(c, err)
		return
	}

	l.metrics.loaded(time.Since(start))
}

func (l *Loader) fail(c *Chunk, err error) {
	c.loadErr = fmt.Errorf("loading chunk (%d, %d): %w", c.cell.Row, c.cell.Col, err)
	if IsStateError(err) {
		// Not an I/O failure; drain reports it on the Tick goroutine.
		l.log.Error("chunk state error",
			zap.Int("row", c.cell.Row),
			zap.Int("col", c.cell.Col),
			zap.Error(err))
		return
	}
	l.log.Warn("chunk load failed",
		zap.Int("row", c.cell.Row),
		zap.Int("col", c.cell.Col),
		zap.Error(err))
	l.metrics.failed()
}
