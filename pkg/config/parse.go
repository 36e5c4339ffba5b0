package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes and validates it.
// Omitted sections keep their defaults.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseSweepYAML parses a Sweep from YAML bytes and validates it.
func ParseSweepYAML(data []byte) (*Sweep, error) {
	var sweep Sweep
	if err := yaml.Unmarshal(data, &sweep); err != nil {
		return nil, fmt.Errorf("failed to parse sweep yaml: %w", err)
	}

	if err := validateSweep(&sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep: %w", err)
	}

	return &sweep, nil
}

// ParseSweepYAMLString parses a Sweep from a YAML string and validates it.
func ParseSweepYAMLString(yamlText string) (*Sweep, error) {
	return ParseSweepYAML([]byte(yamlText))
}
