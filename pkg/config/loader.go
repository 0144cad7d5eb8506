package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, expands environment variables,
// merges the result over the package defaults, and validates the final
// configuration.
func Load(path string) (*GatewayConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrConfigNotFound, err))
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var cfg GatewayConfig
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}

	return &cfg, nil
}

// Merge layers override on top of base, with non-zero fields in
// override taking precedence. Used to apply a per-environment overlay
// file on top of a shared base configuration.
func Merge(base, override *GatewayConfig) (*GatewayConfig, error) {
	merged := *base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return nil, err
	}
	return &merged, nil
}
