// Package config provides configuration loading and management for sinusct.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"sinusct/pkg/anatomy"
	"sinusct/pkg/calibration"
	"sinusct/pkg/cyst"
	"sinusct/pkg/omc"
	"sinusct/pkg/roi"
	"sinusct/pkg/sclerosis"
	"sinusct/pkg/threshold"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many regions are measured concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Calibration controls the air/bone drift correction
	Calibration calibration.Params `yaml:"calibration"`

	// Threshold controls the adaptive air/tissue boundary
	Threshold threshold.Params `yaml:"threshold"`

	// Reference locates the cortical bone used to z-score sinus walls
	Reference roi.ReferenceParams `yaml:"reference"`

	// OMC holds the patency cut points and candidate search
	OMC omc.Params `yaml:"omc"`

	// Sclerosis holds the wall shell margins and z criterion
	Sclerosis sclerosis.Params `yaml:"sclerosis"`

	// Cyst parameters
	Cyst struct {
		cyst.Params `yaml:",inline"`

		// CavityMarginMM keeps only fluid components that come within this
		// distance of the sinus air cavity. Zero keeps every component in the
		// region box.
		CavityMarginMM float64 `yaml:"cavityMarginMM"`
	} `yaml:"cyst"`

	// Anatomy places the sinus regions in fractional coordinates
	Anatomy anatomy.Layout `yaml:"anatomy"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogFormat is "text" or "json"
		LogFormat string `yaml:"logFormat"`

		// OverlayDir, when set, receives OMC audit images
		OverlayDir string `yaml:"overlayDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Calibration = calibration.DefaultParams()
	cfg.Threshold = threshold.DefaultParams()
	cfg.Reference = roi.DefaultReferenceParams()
	cfg.OMC = omc.DefaultParams()
	cfg.Sclerosis = sclerosis.DefaultParams()
	cfg.Cyst.Params = cyst.DefaultParams()
	cfg.Cyst.CavityMarginMM = 5
	cfg.Anatomy = anatomy.DefaultLayout()

	cfg.Output.Verbose = false
	cfg.Output.LogFormat = "text"

	return cfg
}

// Validate checks every section and returns the first problem found
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}

	checks := []struct {
		section string
		check   func() error
	}{
		{"calibration", c.Calibration.Validate},
		{"threshold", c.Threshold.Validate},
		{"reference", c.Reference.ROI.Validate},
		{"omc", c.OMC.Validate},
		{"sclerosis", c.Sclerosis.Validate},
		{"cyst", c.Cyst.Params.Validate},
		{"anatomy", c.Anatomy.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("invalid %s config: %w", ch.section, err)
		}
	}

	if c.Reference.MinVoxels < 1 {
		return fmt.Errorf("invalid reference config: minVoxels must be positive")
	}
	if c.Cyst.CavityMarginMM < 0 {
		return fmt.Errorf("invalid cyst config: cavityMarginMM must not be negative")
	}
	switch c.Output.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output config: logFormat %q must be text or json", c.Output.LogFormat)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Fields missing from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
