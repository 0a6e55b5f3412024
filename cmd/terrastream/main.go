// Package main runs the terrain streamer against a terrain file, moving the
// viewpoint along a circular path and reporting what stays resident.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/terrastream/internal/config"
	"github.com/Faultbox/terrastream/internal/engine/terrain"
	"github.com/Faultbox/terrastream/internal/logger"
	"github.com/Faultbox/terrastream/internal/stream"
	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

const (
	frameInterval = time.Second / 60
	reportEvery   = 60
	eyeHeight     = 2
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== terrastream ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("streaming demo failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("demo finished")
}

func run(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f, err := terrainfile.Open(cfg.Terrain.DataFile)
	if err != nil {
		return err
	}
	desc := f.Descriptor()

	builder := terrain.NewMeshBuilder(desc, logger.Named("mesh"))

	opts := stream.DefaultOptions()
	opts.ViewDistance = cfg.Streaming.ViewDistance
	opts.Hysteresis = cfg.Streaming.Hysteresis
	opts.Strict = cfg.Streaming.Strict
	opts.Logger = logger.Named("stream")
	opts.Metrics = stream.NewMetrics(reg)

	s, err := stream.New(f, builder, opts)
	if err != nil {
		f.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	ctx, finish := context.WithCancel(ctx)
	defer finish()

	g.Go(func() error {
		// Ends the metrics server once the path is done.
		defer finish()
		return frameLoop(ctx, cfg.Demo, s, builder)
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	loopErr := g.Wait()

	// The frame loop has exited, so Close runs on the only goroutine that
	// has touched the streamer since.
	closeErr := s.Close()
	report(s, builder)

	return errors.Join(loopErr, closeErr)
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// frameLoop ticks the streamer once per frame along a circle of
// demo.Radius, keeping the eye just above the resident terrain.
func frameLoop(ctx context.Context, demo config.DemoConfig, s *stream.Streamer, builder *terrain.MeshBuilder) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	path := newCirclePath(demo.Radius, demo.Speed)
	prev := path.at(0)
	var travelled float32
	for frame := 0; demo.Frames == 0 || frame < demo.Frames; frame++ {
		select {
		case <-ctx.Done():
			logger.Info("frame loop interrupted", zap.Int("frame", frame))
			return nil
		case <-ticker.C:
		}

		view := path.at(frame)
		travelled += view.Distance(prev)
		prev = view
		if h, ok := builder.HeightAt(view.X, view.Z); ok {
			view.Y = h + eyeHeight
		}
		s.Tick(view)

		if frame%reportEvery == 0 {
			st := s.Stats()
			logger.Debug("frame",
				zap.Int("frame", frame),
				zap.Float32("x", view.X),
				zap.Float32("y", view.Y),
				zap.Float32("z", view.Z),
				zap.Float32("travelled", travelled),
				zap.Int("resident", st.Resident),
				zap.Int("in_flight", st.InFlight),
				zap.String("geometry", humanize.Bytes(uint64(st.GeometryBytes))))
		}
	}
	logger.Info("path finished", zap.Float32("travelled", travelled))
	return nil
}

// report logs the final streamer and mesh counters and the process RSS.
func report(s *stream.Streamer, builder *terrain.MeshBuilder) {
	st := s.Stats()
	ms := builder.Stats()

	fields := []zap.Field{
		zap.String("session", s.Session()),
		zap.Uint64("requested", st.Requested),
		zap.Uint64("built", st.Built),
		zap.Uint64("cancelled", st.Cancelled),
		zap.Uint64("failed", st.Failed),
		zap.Uint64("released", st.Released),
		zap.Uint64("meshes_built", ms.Built),
		zap.Uint64("meshes_destroyed", ms.Destroyed),
		zap.Int("meshes_live", ms.Meshes),
	}
	if rss, err := residentMemory(); err == nil {
		fields = append(fields, zap.String("rss", humanize.Bytes(rss)))
	} else {
		logger.Warn("cannot read process memory", zap.Error(err))
	}
	logger.Info("streaming summary", fields...)
}

func residentMemory() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
