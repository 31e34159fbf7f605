// Package config provides configuration loading and management for pointsetmatch.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"pointsetmatch/pkg/matching"
)

// Output formats understood by the command line tool
const (
	FormatYAML = "yaml"
	FormatText = "text"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Matching parameters
	Matching struct {
		// MaximumDifferenceInNumberOfPoints caps how many more points one set
		// may hold than the other for a search to be attempted
		MaximumDifferenceInNumberOfPoints int `yaml:"maximumDifferenceInNumberOfPoints"`

		// TolerableDistanceErrorMultiple is the acceptable RMS error as a
		// fraction of the largest distance between two target points
		TolerableDistanceErrorMultiple float64 `yaml:"tolerableDistanceErrorMultiple"`

		// AmbiguityDistanceErrorMultiple is how close two candidate residuals
		// must be, as a fraction of the same distance, to flag ambiguity
		AmbiguityDistanceErrorMultiple float64 `yaml:"ambiguityDistanceErrorMultiple"`

		// MaximumPointsForSearch is the largest set size searched exhaustively.
		// It cannot exceed the matcher's hard limit.
		MaximumPointsForSearch int `yaml:"maximumPointsForSearch"`
	} `yaml:"matching"`

	// Input parameters
	Input struct {
		// SelectedOnly drops fiducials that are not selected in the input files
		SelectedOnly bool `yaml:"selectedOnly"`
	} `yaml:"input"`

	// Logging parameters
	Logging struct {
		// Verbosity is the logr V-level that is still printed
		Verbosity int `yaml:"verbosity"`

		// Development switches to human readable console output
		Development bool `yaml:"development"`
	} `yaml:"logging"`

	// Output parameters
	Output struct {
		// Format is either "yaml" or "text"
		Format string `yaml:"format"`

		// IncludeTransform adds the 4x4 registration matrix to the report
		IncludeTransform bool `yaml:"includeTransform"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default matching parameters
	cfg.Matching.MaximumDifferenceInNumberOfPoints = matching.DefaultMaximumDifferenceInNumberOfPoints
	cfg.Matching.TolerableDistanceErrorMultiple = matching.DefaultTolerableDistanceErrorMultiple
	cfg.Matching.AmbiguityDistanceErrorMultiple = matching.DefaultAmbiguityDistanceErrorMultiple
	cfg.Matching.MaximumPointsForSearch = matching.SearchPointLimit

	cfg.Input.SelectedOnly = true

	cfg.Logging.Verbosity = 0
	cfg.Logging.Development = true

	cfg.Output.Format = FormatYAML
	cfg.Output.IncludeTransform = true

	return cfg
}

// Validate corrects out-of-range values in place, logging each change
func (c *Config) Validate(log logr.Logger) {
	if c.Matching.MaximumDifferenceInNumberOfPoints < 0 {
		log.Info("negative maximumDifferenceInNumberOfPoints, using magnitude",
			"value", c.Matching.MaximumDifferenceInNumberOfPoints)
		c.Matching.MaximumDifferenceInNumberOfPoints = -c.Matching.MaximumDifferenceInNumberOfPoints
	}
	if c.Matching.TolerableDistanceErrorMultiple < 0 {
		log.Info("negative tolerableDistanceErrorMultiple, using magnitude",
			"value", c.Matching.TolerableDistanceErrorMultiple)
		c.Matching.TolerableDistanceErrorMultiple = -c.Matching.TolerableDistanceErrorMultiple
	}
	if c.Matching.AmbiguityDistanceErrorMultiple < 0 {
		log.Info("negative ambiguityDistanceErrorMultiple, using magnitude",
			"value", c.Matching.AmbiguityDistanceErrorMultiple)
		c.Matching.AmbiguityDistanceErrorMultiple = -c.Matching.AmbiguityDistanceErrorMultiple
	}
	if c.Matching.MaximumPointsForSearch < matching.MinimumSubsetSize || c.Matching.MaximumPointsForSearch > matching.SearchPointLimit {
		log.Info("maximumPointsForSearch out of range, clamping",
			"value", c.Matching.MaximumPointsForSearch, "limit", matching.SearchPointLimit)
		c.Matching.MaximumPointsForSearch = matching.SearchPointLimit
	}
	if c.Logging.Verbosity < 0 {
		c.Logging.Verbosity = 0
	}
	if c.Output.Format != FormatYAML && c.Output.Format != FormatText {
		log.Info("unknown output format, using yaml", "format", c.Output.Format)
		c.Output.Format = FormatYAML
	}
}

// Apply copies the matching settings onto m
func (c *Config) Apply(m *matching.Matcher) {
	m.SetMaximumDifferenceInNumberOfPoints(c.Matching.MaximumDifferenceInNumberOfPoints)
	m.SetTolerableDistanceErrorMultiple(c.Matching.TolerableDistanceErrorMultiple)
	m.SetAmbiguityDistanceErrorMultiple(c.Matching.AmbiguityDistanceErrorMultiple)
	m.SetMaximumPointsForSearch(c.Matching.MaximumPointsForSearch)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
