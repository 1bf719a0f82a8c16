package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/internal/ifc"
	"github.com/Faultbox/steelifc/internal/logger"
	"github.com/Faultbox/steelifc/internal/mesh"
)

// ErrInvalidWorkers is returned for a negative worker count.
var ErrInvalidWorkers = errors.New("config: workers must not be negative")

// ErrInvalidTimeout is returned for a negative element timeout.
var ErrInvalidTimeout = errors.New("config: element_timeout must not be negative")

// Load loads configuration with priority: defaults < file. An empty path
// searches the standard locations; finding nothing there is not an error.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile looks for config in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"./steelifc.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "steelifc")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "steelifc")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "steelifc")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "steelifc")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
// A rules list in the file replaces the default rules.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := mesh.ValidateTolerance(c.Export.Tolerance); err != nil {
		return err
	}
	if c.Export.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Export.Workers)
	}
	if c.Export.ElementTimeout < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.Export.ElementTimeout)
	}
	if err := classify.ValidateRules(c.Classification.Rules); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return c.DocumentOptions().Validate()
}

// DocumentOptions returns the IFC document options described by c. The
// classifier is left nil; see Classifier.
func (c *Config) DocumentOptions() ifc.Options {
	opts := ifc.DefaultOptions()
	opts.Tolerance = c.Export.Tolerance
	opts.Precision = c.Export.Precision
	if c.Project.Name != "" {
		opts.ProjectName = c.Project.Name
	}
	if c.Project.Site != "" {
		opts.SiteName = c.Project.Site
	}
	if c.Project.Building != "" {
		opts.BuildingName = c.Project.Building
	}
	if c.Project.Storey != "" {
		opts.StoreyName = c.Project.Storey
	}
	opts.Author = c.Project.Author
	opts.Organization = c.Project.Organization
	return opts
}

// Classifier builds the classifier for the configured rules.
func (c *Config) Classifier() (*classify.Classifier, error) {
	return classify.New(c.Classification.Rules)
}
