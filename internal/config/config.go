// Package config loads and saves holefill configuration files.
// Missing files yield the defaults; CLI flags override loaded values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/metric"
	"github.com/cwbudde/holefill/internal/synth"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Solver parameters
	Solver struct {
		// PatchSize is the odd side length of compared patches
		PatchSize int `yaml:"patchSize"`

		// Metric is one of ssd, zeromean or sad
		Metric string `yaml:"metric"`

		// SpatialTiebreak prefers nearby sources when costs tie
		SpatialTiebreak bool `yaml:"spatialTiebreak"`

		// SearchSteps is the number of random search candidates per visit (1-12)
		SearchSteps int `yaml:"searchSteps"`

		// Seed makes runs reproducible with a single worker
		Seed int64 `yaml:"seed"`
	} `yaml:"solver"`

	// Pyramid parameters
	Pyramid struct {
		Iterations         int  `yaml:"iterations"`
		CoarsestIterations int  `yaml:"coarsestIterations"`
		MinSize            int  `yaml:"minSize"`
		MaxLevels          int  `yaml:"maxLevels"`
		Refine             bool `yaml:"refine"`
		ProtectRadius      int  `yaml:"protectRadius"`
	} `yaml:"pyramid"`

	Synthesis struct {
		// Offset sub-samples the voting grid; must divide the patch size
		Offset int `yaml:"offset"`
	} `yaml:"synthesis"`

	Convergence struct {
		Enabled   bool    `yaml:"enabled"`
		Patience  int     `yaml:"patience"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"convergence"`

	Runtime struct {
		// Workers is the number of solver goroutines; 0 uses all CPUs
		Workers int `yaml:"workers"`
	} `yaml:"runtime"`

	Server struct {
		Addr    string `yaml:"addr"`
		DataDir string `yaml:"dataDir"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	opts := inpaint.DefaultOptions()
	cfg := &Config{}

	cfg.Solver.PatchSize = opts.Params.PatchSize
	cfg.Solver.Metric = opts.Params.Metric.String()
	cfg.Solver.SpatialTiebreak = opts.Params.SpatialTiebreak
	cfg.Solver.SearchSteps = opts.Params.SearchSteps
	cfg.Solver.Seed = opts.Seed

	cfg.Pyramid.Iterations = opts.Iterations
	cfg.Pyramid.CoarsestIterations = opts.CoarsestIterations
	cfg.Pyramid.MinSize = opts.MinSize
	cfg.Pyramid.MaxLevels = opts.MaxLevels
	cfg.Pyramid.Refine = opts.Refine
	cfg.Pyramid.ProtectRadius = opts.ProtectRadius

	cfg.Synthesis.Offset = opts.Offset

	cfg.Convergence.Enabled = opts.Convergence.Enabled
	cfg.Convergence.Patience = opts.Convergence.Patience
	cfg.Convergence.Threshold = opts.Convergence.Threshold

	cfg.Runtime.Workers = runtime.NumCPU()

	cfg.Server.Addr = ":8080"
	cfg.Server.DataDir = "./data"

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if _, err := cfg.Options(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Options converts the configuration into validated fill options.
func (c *Config) Options() (inpaint.Options, error) {
	kind, err := metric.ParseKind(c.Solver.Metric)
	if err != nil {
		return inpaint.Options{}, err
	}

	opts := inpaint.Options{
		Params: synth.Params{
			PatchSize:       c.Solver.PatchSize,
			Metric:          kind,
			SpatialTiebreak: c.Solver.SpatialTiebreak,
			SearchSteps:     c.Solver.SearchSteps,
		},
		Iterations:         c.Pyramid.Iterations,
		CoarsestIterations: c.Pyramid.CoarsestIterations,
		Offset:             c.Synthesis.Offset,
		MinSize:            c.Pyramid.MinSize,
		MaxLevels:          c.Pyramid.MaxLevels,
		Refine:             c.Pyramid.Refine,
		ProtectRadius:      c.Pyramid.ProtectRadius,
		Seed:               c.Solver.Seed,
		Convergence: inpaint.ConvergenceConfig{
			Enabled:   c.Convergence.Enabled,
			Patience:  c.Convergence.Patience,
			Threshold: c.Convergence.Threshold,
		},
	}
	if err := opts.Validate(); err != nil {
		return inpaint.Options{}, err
	}
	return opts, nil
}
