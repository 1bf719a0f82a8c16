package config

import "time"

// Overrides holds command-line values. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	Output         string
	Tolerance      float64
	Precision      float64
	ElementTimeout time.Duration
	Workers        int
	LogLevel       string
	LogFile        string
	MetricsFile    string
	Debug          bool
}

// ApplyOverrides applies CLI overrides to the config (highest priority).
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Output != "" {
		c.Export.Output = o.Output
	}
	if o.Tolerance != 0 {
		c.Export.Tolerance = o.Tolerance
	}
	if o.Precision != 0 {
		c.Export.Precision = o.Precision
	}
	if o.ElementTimeout != 0 {
		c.Export.ElementTimeout = o.ElementTimeout
	}
	if o.Workers != 0 {
		c.Export.Workers = o.Workers
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFile != "" {
		c.Logging.LogFile = o.LogFile
	}
	if o.MetricsFile != "" {
		c.Metrics.Textfile = o.MetricsFile
	}
	if o.Debug {
		c.Logging.Level = "debug"
	}
}
