// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for thaw environment variables.
const EnvPrefix = "THAW_"

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "THAW_CONFIG_PATH"

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"thaw.yaml",
	"thaw.yml",
	"/etc/thaw/config.yaml",
	"/etc/thaw/config.yml",
}

// envSections maps environment-variable section prefixes (after EnvPrefix
// is stripped) to config sections. Longest prefixes are listed first so
// COLD_START_ wins over a hypothetical COLD_.
var envSections = []struct {
	prefix  string
	section string
}{
	{"COLD_START_", "cold_start"},
	{"TRAINING_", "training"},
	{"LOGGING_", "logging"},
	{"HYBRID_", "hybrid"},
}

// sliceConfigPaths are int-slice fields that arrive from environment
// variables as comma-separated strings.
var sliceConfigPaths = []string{
	"hybrid.metadata_layer_dims",
	"hybrid.combined_layer_dims",
}

// Load builds the configuration from three layers, later layers winning:
// struct defaults, an optional YAML file, then THAW_-prefixed environment
// variables. The merged result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// THAW_COLD_START_EMBEDDING_DIM -> cold_start.embedding_dim
	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps a THAW_ environment variable name to a koanf
// config path.
//
// Examples:
//   - THAW_COLD_START_EMBEDDING_DIM -> cold_start.embedding_dim
//   - THAW_HYBRID_LEARNING_RATE -> hybrid.learning_rate
//   - THAW_MODEL_DIR -> model_dir
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)

	if key == "CONFIG_PATH" {
		// handled by findConfigFile, not a config key
		return ""
	}

	for _, s := range envSections {
		if strings.HasPrefix(key, s.prefix) {
			field := strings.ToLower(strings.TrimPrefix(key, s.prefix))
			return s.section + "." + field
		}
	}

	return strings.ToLower(key)
}

// processSliceFields converts comma-separated string values to int slices
// for known slice fields. Env vars arrive as strings, but the config
// expects []int.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		str, ok := raw.(string)
		if !ok {
			continue
		}

		str = strings.TrimSpace(str)
		if str == "" {
			if err := k.Set(path, []int{}); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
			continue
		}

		parts := strings.Split(str, ",")
		dims := make([]int, 0, len(parts))
		for _, part := range parts {
			dim, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			dims = append(dims, dim)
		}

		if err := k.Set(path, dims); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}

	return nil
}
