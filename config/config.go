// Package config loads ambient tuning for the allocator and the
// reference runtime from YAML, following the struct-tag convention the
// teacher uses throughout x/marshaller/yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAlignment is the allocator's default byte alignment: the
// widest scalar width among the supported element types (float64/int64,
// both 8 bytes).
const DefaultAlignment = 8

// Allocator holds tuning for core/alloc.Allocator.
type Allocator struct {
	// Alignment every offset and free-block size is rounded up to.
	// Zero means "use DefaultAlignment".
	Alignment int `yaml:"alignment"`
}

// Runtime holds tuning for the reference CPU runtime.
type Runtime struct {
	// ArenaHint preallocates this many bytes of backing storage up
	// front; 0 means "size exactly to the planned peak".
	ArenaHint int `yaml:"arena_hint"`
}

// Config is the top-level tuning document.
type Config struct {
	Allocator Allocator `yaml:"allocator"`
	Runtime   Runtime   `yaml:"runtime"`
}

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{Allocator: Allocator{Alignment: DefaultAlignment}}
}

// Load reads and parses a YAML tuning file at path. Missing fields fall
// back to the built-in defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Allocator.Alignment <= 0 {
		cfg.Allocator.Alignment = DefaultAlignment
	}
	return cfg, nil
}
