package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file at path, expands ${VAR}/${VAR:-default}/$VAR
// environment references in its raw text, applies defaults, and validates
// the result. A ".env" file next to path is loaded first (if present) so
// its variables are available for expansion.
func Load(path string) (*Config, error) {
	if err := LoadDotEnvForConfig(path); err != nil {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML bytes into a validated Config, the shared
// implementation behind Load (also used directly by tests, which would
// otherwise need a temp file per case).
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}
