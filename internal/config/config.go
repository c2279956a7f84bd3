// Package config loads geko's JSON settings. Every field is optional: the
// Get* accessors fall back to built-in defaults, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/geko/internal/resample"
	"github.com/banshee-data/geko/internal/sidecar"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/geko.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Built-in defaults used when a field is absent.
const (
	DefaultOutputDir     = "output"
	DefaultCheckpointDir = "."
	DefaultCatalogPath   = "geko.db"
	DefaultListenAddr    = "localhost:8090"
	DefaultShape         = sidecar.DefaultShape
)

// Config is the root configuration.
type Config struct {
	// Directory every exported artifact is written under.
	OutputDir *string `json:"output_dir,omitempty"`
	// Directory scanned by "geko ls" when -dir is not given.
	CheckpointDir *string `json:"checkpoint_dir,omitempty"`
	CatalogPath   *string `json:"catalog_path,omitempty"`
	ListenAddr    *string `json:"listen_addr,omitempty"`

	DefaultBins *int `json:"default_bins,omitempty"`
	DefaultHist *int `json:"default_hist,omitempty"`

	// Profile discretization: a positive step wins over the point count.
	ProfilePoints *int     `json:"profile_points,omitempty"`
	ProfileStep   *float64 `json:"profile_step,omitempty"`

	PreciseCoefficients *bool `json:"precise_coefficients,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a .json file of at most 1MB and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FindDefault looks for DefaultConfigPath under dir and up to four of its
// parents.
func FindDefault(dir string) (string, bool) {
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, DefaultConfigPath)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// LoadDefault loads the defaults file found from the working directory and
// returns its path. Without one it returns an empty Config and "".
func LoadDefault() (*Config, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get working directory: %w", err)
	}
	path, ok := FindDefault(wd)
	if !ok {
		return Empty(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Validate checks the fields that are set.
func (c *Config) Validate() error {
	if c.OutputDir != nil && *c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.DefaultBins != nil && *c.DefaultBins <= 0 {
		return fmt.Errorf("default_bins must be positive, got %d", *c.DefaultBins)
	}
	if c.DefaultHist != nil && *c.DefaultHist <= 0 {
		return fmt.Errorf("default_hist must be positive, got %d", *c.DefaultHist)
	}
	if c.ProfilePoints != nil && *c.ProfilePoints < 2 {
		return fmt.Errorf("profile_points must be at least 2, got %d", *c.ProfilePoints)
	}
	if c.ProfileStep != nil {
		if s := *c.ProfileStep; s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("profile_step must be finite and non-negative, got %g", s)
		}
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetOutputDir returns output_dir or "output".
func (c *Config) GetOutputDir() string { return stringOr(c.OutputDir, DefaultOutputDir) }

// GetCheckpointDir returns checkpoint_dir or ".".
func (c *Config) GetCheckpointDir() string { return stringOr(c.CheckpointDir, DefaultCheckpointDir) }

// GetCatalogPath returns catalog_path or "geko.db".
func (c *Config) GetCatalogPath() string { return stringOr(c.CatalogPath, DefaultCatalogPath) }

// GetListenAddr returns listen_addr or "localhost:8090".
func (c *Config) GetListenAddr() string { return stringOr(c.ListenAddr, DefaultListenAddr) }

// GetDefaultBins returns default_bins or 100.
func (c *Config) GetDefaultBins() int {
	if c.DefaultBins == nil {
		return DefaultShape
	}
	return *c.DefaultBins
}

// GetDefaultHist returns default_hist or 100.
func (c *Config) GetDefaultHist() int {
	if c.DefaultHist == nil {
		return DefaultShape
	}
	return *c.DefaultHist
}

// GridShape is the bins x hist assumed for grids that have no header.
func (c *Config) GridShape() sidecar.Shape {
	return sidecar.Shape{Bins: c.GetDefaultBins(), Hist: c.GetDefaultHist()}
}

// GetProfilePoints returns profile_points or resample.DefaultProfilePoints.
func (c *Config) GetProfilePoints() int {
	if c.ProfilePoints == nil {
		return resample.DefaultProfilePoints
	}
	return *c.ProfilePoints
}

// GetProfileStep returns profile_step, 0 meaning count mode.
func (c *Config) GetProfileStep() float64 {
	if c.ProfileStep == nil {
		return 0
	}
	return *c.ProfileStep
}

// GetPreciseCoefficients reports whether reports print full precision.
func (c *Config) GetPreciseCoefficients() bool {
	return c.PreciseCoefficients != nil && *c.PreciseCoefficients
}

// Sampling returns the configured profile discretization.
func (c *Config) Sampling() resample.Sampling {
	if step := c.GetProfileStep(); step > 0 {
		return resample.ByStep(step)
	}
	return resample.ByCount(c.GetProfilePoints())
}
