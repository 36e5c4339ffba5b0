package config

import "time"

// Config represents the main application configuration
type Config struct {
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format,omitempty"` // json or text
	Bridge    Bridge   `yaml:"bridge"`
	Output    Output   `yaml:"output"`
	Database  Database `yaml:"database"`
}

// Bridge represents the CAD bridge connection settings
type Bridge struct {
	Addr           string `yaml:"addr"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ConnectRetries int    `yaml:"connect_retries"`
}

// Output represents artifact output settings
type Output struct {
	Dir          string `yaml:"dir"`
	ExportFormat string `yaml:"export_format"` // step or stl
}

// Database represents the sweep history database settings
type Database struct {
	Path string `yaml:"path"`
}

// Sweep represents a sweep definition file
type Sweep struct {
	Parameter string  `yaml:"parameter"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Steps     int     `yaml:"steps"`
	StepMode  string  `yaml:"step_mode,omitempty"` // linear or geometric
	ModelFile string  `yaml:"model_file"`
	Notes     string  `yaml:"notes,omitempty"`
}

// Default returns a configuration with working defaults for a local
// bridge and an output directory under the working directory.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Bridge: Bridge{
			Addr:           "http://localhost:9875",
			TimeoutSeconds: 30,
			ConnectRetries: 3,
		},
		Output: Output{
			Dir:          "output",
			ExportFormat: "step",
		},
		Database: Database{
			Path: "sweeps.db",
		},
	}
}

// GetTimeout returns the bridge request timeout as a duration
func (b *Bridge) GetTimeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}
