package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadSweep loads and parses a sweep definition file
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep file %s: %w", path, err)
	}
	sweep, err := ParseSweepYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sweep file %s: %w", path, err)
	}
	return sweep, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	// Validate log format
	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	// Validate bridge settings
	if cfg.Bridge.Addr == "" {
		return fmt.Errorf("bridge addr cannot be empty")
	}
	if !strings.HasPrefix(cfg.Bridge.Addr, "http://") && !strings.HasPrefix(cfg.Bridge.Addr, "https://") {
		return fmt.Errorf("bridge addr must start with http:// or https://, got %s", cfg.Bridge.Addr)
	}
	if cfg.Bridge.TimeoutSeconds <= 0 {
		return fmt.Errorf("bridge timeout_seconds must be positive, got %d", cfg.Bridge.TimeoutSeconds)
	}
	if cfg.Bridge.ConnectRetries < 0 {
		return fmt.Errorf("bridge connect_retries cannot be negative, got %d", cfg.Bridge.ConnectRetries)
	}

	// Validate output settings
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	switch strings.ToLower(cfg.Output.ExportFormat) {
	case "step", "stl":
	default:
		return fmt.Errorf("invalid export_format: %s (must be step or stl)", cfg.Output.ExportFormat)
	}

	// Validate database settings
	if cfg.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	return nil
}

// validateSweep performs validation on a sweep definition
func validateSweep(sweep *Sweep) error {
	if sweep.Parameter == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if sweep.ModelFile == "" {
		return fmt.Errorf("model_file cannot be empty")
	}
	if sweep.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", sweep.Steps)
	}
	if sweep.Min >= sweep.Max {
		return fmt.Errorf("min must be less than max, got min=%g max=%g", sweep.Min, sweep.Max)
	}
	switch sweep.StepMode {
	case "", "linear":
	case "geometric":
		if sweep.Min <= 0 {
			return fmt.Errorf("geometric step mode requires min > 0, got %g", sweep.Min)
		}
	default:
		return fmt.Errorf("invalid step_mode: %s (must be linear or geometric)", sweep.StepMode)
	}
	return nil
}
