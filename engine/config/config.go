package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultConfig []byte

// Config holds the full pipeline configuration. Values are loaded from the
// embedded defaults and optionally overridden by a user-supplied YAML file.
type Config struct {
	Resolution ResolutionConfig `yaml:"resolution"`
	Culling    CullingConfig    `yaml:"culling"`
	Camera     CameraConfig     `yaml:"camera"`
	Workers    WorkerConfig     `yaml:"workers"`
}

// ResolutionConfig defines the render target dimensions in pixels.
type ResolutionConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CullingConfig defines the tiled light-culling parameters.
type CullingConfig struct {
	// TileSize is the edge length of a screen tile in pixels.
	TileSize int `yaml:"tile_size"`
	// MaxLightIndices is the total capacity of the shared light index list.
	MaxLightIndices int `yaml:"max_light_indices"`
	// MaxLightsPerTile bounds how many lights a single tile may reference.
	MaxLightsPerTile int `yaml:"max_lights_per_tile"`
	// MaxLights is the capacity of the GPU light buffer.
	MaxLights int `yaml:"max_lights"`
}

// CameraConfig defines the default projection parameters.
type CameraConfig struct {
	FOVDegrees float64 `yaml:"fov_degrees"`
	Near       float64 `yaml:"near"`
	Far        float64 `yaml:"far"`
}

// WorkerConfig defines the CPU culling worker pool parameters.
type WorkerConfig struct {
	// MaxWorkers caps the pool size; 0 means NumCPU - 1.
	MaxWorkers int `yaml:"max_workers"`
	// QueueSize is the pending task queue depth.
	QueueSize int `yaml:"queue_size"`
}

// Default returns the embedded default configuration.
//
// Returns:
//   - *Config: the defaults, already validated
func Default() *Config {
	var cfg Config
	// The embedded defaults are maintained alongside this file and must parse.
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return &cfg
}

// Load reads a YAML configuration file, layering it over the embedded
// defaults, and validates the result.
//
// Parameters:
//   - path: path to the YAML file
//
// Returns:
//   - *Config: the merged and validated configuration
//   - error: read, parse, or validation failure
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would make the pipeline
// unable to run. Failures here are fatal setup errors: no frame should be
// attempted with an invalid configuration.
//
// Returns:
//   - error: description of the first invalid value found, or nil
func (c *Config) Validate() error {
	if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", c.Resolution.Width, c.Resolution.Height)
	}
	if c.Culling.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %d", c.Culling.TileSize)
	}
	if c.Culling.MaxLightIndices <= 0 {
		return fmt.Errorf("max_light_indices must be positive, got %d", c.Culling.MaxLightIndices)
	}
	if c.Culling.MaxLightsPerTile <= 0 {
		return fmt.Errorf("max_lights_per_tile must be positive, got %d", c.Culling.MaxLightsPerTile)
	}
	if c.Culling.MaxLights <= 0 {
		return fmt.Errorf("max_lights must be positive, got %d", c.Culling.MaxLights)
	}
	if c.Camera.Near <= 0 {
		return fmt.Errorf("camera near plane must be positive, got %v", c.Camera.Near)
	}
	if c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera far plane (%v) must exceed near plane (%v)", c.Camera.Far, c.Camera.Near)
	}
	if c.Camera.FOVDegrees <= 0 || c.Camera.FOVDegrees >= 180 {
		return fmt.Errorf("camera fov must be in (0, 180) degrees, got %v", c.Camera.FOVDegrees)
	}
	if c.Workers.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must not be negative, got %d", c.Workers.MaxWorkers)
	}
	if c.Workers.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.Workers.QueueSize)
	}
	return nil
}
