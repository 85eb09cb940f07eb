// Package config provides configuration loading and management for tractseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"tractseg/pkg/criteria"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many goroutines evaluate streamlines in parallel
		NumWorkers int `yaml:"numWorkers"`

		// ToleranceMM is the distance at which a node counts as touching an ROI voxel.
		// Zero uses half the voxel diagonal of the ROI's grid.
		ToleranceMM float64 `yaml:"toleranceMM"`

		// NodeMode is the default node selection of ROI criteria: any, all, either_end, both_ends
		NodeMode string `yaml:"nodeMode"`
	} `yaml:"processing"`

	// Connectivity mapping parameters
	Connectivity struct {
		// Symmetric merges (A,B) and (B,A) buckets
		Symmetric bool `yaml:"symmetric"`

		// Labels restricts the matrix axis; empty maps every atlas label
		Labels []int `yaml:"labels"`

		// Names is the label lookup table used in reports
		Names map[int]string `yaml:"names"`
	} `yaml:"connectivity"`

	// Logging parameters
	Logging struct {
		// Env selects the encoder: local, dev (console) or prod (JSON)
		Env string `yaml:"env"`

		// Level overrides the environment default level
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Metrics parameters
	Metrics struct {
		// Enabled logs a snapshot of the run counters on exit
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	// Output parameters
	Output struct {
		// IncludeIndices writes selected streamline indices, not just counts
		IncludeIndices bool `yaml:"includeIndices"`

		// Indent pretty-prints the JSON report
		Indent bool `yaml:"indent"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.ToleranceMM = 0
	cfg.Processing.NodeMode = criteria.AnyNode.String()

	cfg.Connectivity.Symmetric = true

	cfg.Logging.Env = "local"
	cfg.Logging.Level = "info"

	cfg.Metrics.Enabled = false

	cfg.Output.IncludeIndices = true
	cfg.Output.Indent = true

	return cfg
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.Processing.NumWorkers < 0 {
		return fmt.Errorf("processing.numWorkers must be >= 0, got %d", c.Processing.NumWorkers)
	}
	if c.Processing.ToleranceMM < 0 {
		return fmt.Errorf("processing.toleranceMM must be >= 0, got %g", c.Processing.ToleranceMM)
	}
	if _, err := criteria.ParseNodeMode(c.Processing.NodeMode); err != nil {
		return fmt.Errorf("processing.nodeMode: %w", err)
	}
	switch c.Logging.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf(`logging.env must be "local", "dev" or "prod", got %q`, c.Logging.Env)
	}
	for _, l := range c.Connectivity.Labels {
		if l <= 0 {
			return fmt.Errorf("connectivity.labels must be positive, got %d", l)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
