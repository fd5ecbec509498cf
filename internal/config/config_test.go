// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}

	if cfg.ColdStart.EmbeddingDim != 30 {
		t.Errorf("EmbeddingDim = %d, want 30", cfg.ColdStart.EmbeddingDim)
	}
	if cfg.ColdStart.ItemBucketsOptimizer != "adam" {
		t.Errorf("ItemBucketsOptimizer = %q, want adam", cfg.ColdStart.ItemBucketsOptimizer)
	}
	if got := cfg.Hybrid.CombinedLayerDims; len(got) != 3 || got[0] != 128 || got[1] != 64 || got[2] != 32 {
		t.Errorf("CombinedLayerDims = %v, want [128 64 32]", got)
	}
	if !cfg.Hybrid.FreezeEmbeddings {
		t.Error("FreezeEmbeddings should default to true")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{
			name:   "zero embedding dim",
			mutate: func(cfg *Config) { cfg.ColdStart.EmbeddingDim = 0 },
		},
		{
			name:   "dropout of one",
			mutate: func(cfg *Config) { cfg.ColdStart.DropoutP = 1.0 },
		},
		{
			name:   "unknown optimizer",
			mutate: func(cfg *Config) { cfg.ColdStart.ItemBucketsOptimizer = "rmsprop" },
		},
		{
			name:   "negative learning rate",
			mutate: func(cfg *Config) { cfg.Hybrid.LearningRate = -1 },
		},
		{
			name:   "empty combined layers",
			mutate: func(cfg *Config) { cfg.Hybrid.CombinedLayerDims = nil },
		},
		{
			name:   "unknown log level",
			mutate: func(cfg *Config) { cfg.Logging.Level = "verbose" },
		},
		{
			name:   "empty model dir",
			mutate: func(cfg *Config) { cfg.ModelDir = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "THAW_COLD_START_EMBEDDING_DIM", want: "cold_start.embedding_dim"},
		{in: "THAW_COLD_START_ITEM_BUCKETS_LR", want: "cold_start.item_buckets_lr"},
		{in: "THAW_HYBRID_LEARNING_RATE", want: "hybrid.learning_rate"},
		{in: "THAW_HYBRID_COMBINED_LAYER_DIMS", want: "hybrid.combined_layer_dims"},
		{in: "THAW_TRAINING_EPOCHS", want: "training.epochs"},
		{in: "THAW_LOGGING_LEVEL", want: "logging.level"},
		{in: "THAW_MODEL_DIR", want: "model_dir"},
		{in: "THAW_CONFIG_PATH", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "thaw.yaml")
	yaml := `
cold_start:
  embedding_dim: 16
hybrid:
  combined_layer_dims: [64, 32]
model_dir: /tmp/from-file
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("THAW_COLD_START_EMBEDDING_DIM", "64")
	t.Setenv("THAW_HYBRID_METADATA_LAYER_DIMS", "8,4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Env beats file.
	if cfg.ColdStart.EmbeddingDim != 64 {
		t.Errorf("EmbeddingDim = %d, want 64 (env override)", cfg.ColdStart.EmbeddingDim)
	}
	// File beats defaults.
	if cfg.ModelDir != "/tmp/from-file" {
		t.Errorf("ModelDir = %q, want /tmp/from-file", cfg.ModelDir)
	}
	if got := cfg.Hybrid.CombinedLayerDims; len(got) != 2 || got[0] != 64 || got[1] != 32 {
		t.Errorf("CombinedLayerDims = %v, want [64 32]", got)
	}
	// Comma-separated env slice is parsed.
	if got := cfg.Hybrid.MetadataLayerDims; len(got) != 2 || got[0] != 8 || got[1] != 4 {
		t.Errorf("MetadataLayerDims = %v, want [8 4]", got)
	}
	// Untouched values keep their defaults.
	if cfg.Training.Epochs != 10 {
		t.Errorf("Epochs = %d, want default 10", cfg.Training.Epochs)
	}
}

func TestLoad_InvalidEnvValueFailsValidation(t *testing.T) {
	t.Setenv("THAW_COLD_START_ITEM_BUCKETS_OPTIMIZER", "rmsprop")

	if _, err := Load(); err == nil {
		t.Error("Load() with invalid optimizer should fail validation")
	}
}

func TestLoad_BadSliceValue(t *testing.T) {
	t.Setenv("THAW_HYBRID_COMBINED_LAYER_DIMS", "64,abc")

	if _, err := Load(); err == nil {
		t.Error("Load() with unparseable slice should fail")
	}
}
