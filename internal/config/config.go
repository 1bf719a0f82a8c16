// Package config handles exporter configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/internal/ifc"
	"github.com/Faultbox/steelifc/internal/mesh"
)

// Config holds all exporter settings.
type Config struct {
	Export         ExportConfig         `yaml:"export"`
	Project        ProjectConfig        `yaml:"project"`
	Classification ClassificationConfig `yaml:"classification"`
	Logging        LoggingConfig        `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// ExportConfig holds meshing and output settings.
type ExportConfig struct {
	Output         string        `yaml:"output"`
	Tolerance      float64       `yaml:"tolerance"`       // linear deflection, model units
	Precision      float64       `yaml:"precision"`       // representation context precision
	ElementTimeout time.Duration `yaml:"element_timeout"` // 0 disables the per-element deadline
	Workers        int           `yaml:"workers"`         // parallel triangulation; 0 or 1 is sequential
}

// ProjectConfig holds the names of the spatial hierarchy and file header.
type ProjectConfig struct {
	Name         string `yaml:"name"`
	Site         string `yaml:"site"`
	Building     string `yaml:"building"`
	Storey       string `yaml:"storey"`
	Author       string `yaml:"author"`
	Organization string `yaml:"organization"`
}

// ClassificationConfig holds the ordered name rules.
type ClassificationConfig struct {
	Rules []classify.Rule `yaml:"rules"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	// Textfile is written in the Prometheus text format after each export.
	Textfile string `yaml:"textfile"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	opts := ifc.DefaultOptions()
	return &Config{
		Export: ExportConfig{
			Output:    "output.ifc",
			Tolerance: mesh.DefaultTolerance,
			Precision: ifc.DefaultPrecision,
			Workers:   1,
		},
		Project: ProjectConfig{
			Name:     opts.ProjectName,
			Site:     opts.SiteName,
			Building: opts.BuildingName,
			Storey:   opts.StoreyName,
		},
		Classification: ClassificationConfig{
			Rules: classify.DefaultRules(),
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
