package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded defaults failed validation: %v", err)
	}
	if cfg.Culling.TileSize != 16 {
		t.Errorf("default tile_size = %d, want 16", cfg.Culling.TileSize)
	}
	if cfg.Resolution.Width != 1280 || cfg.Resolution.Height != 720 {
		t.Errorf("default resolution = %dx%d, want 1280x720", cfg.Resolution.Width, cfg.Resolution.Height)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	data := `
culling:
  tile_size: 32
resolution:
  width: 640
  height: 480
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Culling.TileSize != 32 {
		t.Errorf("tile_size = %d, want 32", cfg.Culling.TileSize)
	}
	if cfg.Resolution.Width != 640 {
		t.Errorf("width = %d, want 640", cfg.Resolution.Width)
	}
	// Untouched values keep their defaults.
	if cfg.Culling.MaxLightsPerTile != 256 {
		t.Errorf("max_lights_per_tile = %d, want default 256", cfg.Culling.MaxLightsPerTile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero tile size", func(c *Config) { c.Culling.TileSize = 0 }, "tile_size"},
		{"negative tile size", func(c *Config) { c.Culling.TileSize = -4 }, "tile_size"},
		{"zero width", func(c *Config) { c.Resolution.Width = 0 }, "resolution"},
		{"zero index capacity", func(c *Config) { c.Culling.MaxLightIndices = 0 }, "max_light_indices"},
		{"zero per-tile cap", func(c *Config) { c.Culling.MaxLightsPerTile = 0 }, "max_lights_per_tile"},
		{"near behind eye", func(c *Config) { c.Camera.Near = 0 }, "near"},
		{"far before near", func(c *Config) { c.Camera.Far = 0.05 }, "far"},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}
