// Package config handles terrastream configuration loading and management.
package config

// Config holds all streaming and demo settings.
type Config struct {
	Terrain   TerrainConfig   `yaml:"terrain"`
	Streaming StreamingConfig `yaml:"streaming"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Demo      DemoConfig      `yaml:"demo"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TerrainConfig holds terrain data file paths.
type TerrainConfig struct {
	DataFile string `yaml:"data_file"` // Chunked terrain file
}

// StreamingConfig holds chunk streaming settings.
type StreamingConfig struct {
	ViewDistance float32 `yaml:"view_distance"`
	Hysteresis   float32 `yaml:"hysteresis"` // negative: half a chunk
	Strict       bool    `yaml:"strict"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// DemoConfig drives the viewpoint of the demo frame loop.
type DemoConfig struct {
	Frames int     `yaml:"frames"`
	Speed  float32 `yaml:"speed"`  // world units per frame
	Radius float32 `yaml:"radius"` // radius of the circular path
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			DataFile: "terrain.bin",
		},
		Streaming: StreamingConfig{
			ViewDistance: 200,
			Hysteresis:   -1,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Demo: DemoConfig{
			Frames: 600,
			Speed:  4,
			Radius: 600,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
