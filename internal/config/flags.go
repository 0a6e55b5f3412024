package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagData         = flag.String("data", "", "Terrain data file")
	flagViewDistance = flag.Float64("view-distance", 0, "Chunk load distance in world units")
	flagStrict       = flag.Bool("strict", false, "Panic on chunk state errors")
	flagMetricsAddr  = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flagFrames       = flag.Int("frames", -1, "Number of demo frames to run (0 runs until interrupted)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagData != "" {
		cfg.Terrain.DataFile = *flagData
	}
	if *flagViewDistance > 0 {
		cfg.Streaming.ViewDistance = float32(*flagViewDistance)
	}
	if *flagStrict {
		cfg.Streaming.Strict = true
	}
	if *flagMetricsAddr != "" {
		cfg.Metrics.Addr = *flagMetricsAddr
	}
	if *flagFrames >= 0 {
		cfg.Demo.Frames = *flagFrames
	}
}
