// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

// Package config provides layered configuration for thaw: struct defaults,
// an optional YAML file, then environment variables, with validation on
// the merged result.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	ColdStart ColdStartConfig `koanf:"cold_start" validate:"required"`
	Hybrid    HybridConfig    `koanf:"hybrid" validate:"required"`
	Training  TrainingConfig  `koanf:"training" validate:"required"`
	Logging   LoggingConfig   `koanf:"logging" validate:"required"`

	// ModelDir is where trained models are saved.
	ModelDir string `koanf:"model_dir" validate:"required"`
}

// ColdStartConfig configures the staged cold-start model.
type ColdStartConfig struct {
	EmbeddingDim         int     `koanf:"embedding_dim" validate:"gt=0"`
	DropoutP             float64 `koanf:"dropout_p" validate:"gte=0,lt=1"`
	ItemBucketsLR        float64 `koanf:"item_buckets_lr" validate:"gt=0"`
	NoBucketsLR          float64 `koanf:"no_buckets_lr" validate:"gt=0"`
	ItemBucketsOptimizer string  `koanf:"item_buckets_optimizer" validate:"oneof=sgd adam"`
	NoBucketsOptimizer   string  `koanf:"no_buckets_optimizer" validate:"oneof=sgd adam"`
	Seed                 int64   `koanf:"seed"`
}

// HybridConfig configures the hybrid pretrained model.
type HybridConfig struct {
	MetadataLayerDims []int   `koanf:"metadata_layer_dims" validate:"dive,gt=0"`
	CombinedLayerDims []int   `koanf:"combined_layer_dims" validate:"min=1,dive,gt=0"`
	DropoutP          float64 `koanf:"dropout_p" validate:"gte=0,lt=1"`
	FreezeEmbeddings  bool    `koanf:"freeze_embeddings"`
	LearningRate      float64 `koanf:"learning_rate" validate:"gt=0"`
	Optimizer         string  `koanf:"optimizer" validate:"oneof=sgd adam"`
	Seed              int64   `koanf:"seed"`
}

// TrainingConfig configures the trainer.
type TrainingConfig struct {
	Epochs        int     `koanf:"epochs" validate:"gt=0"`
	LRDecayEvery  int     `koanf:"lr_decay_every" validate:"gt=0"`
	LRDecayFactor float64 `koanf:"lr_decay_factor" validate:"gt=0,lte=1"`
	Seed          int64   `koanf:"seed"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		ColdStart: ColdStartConfig{
			EmbeddingDim:         30,
			DropoutP:             0.0,
			ItemBucketsLR:        1e-3,
			NoBucketsLR:          1e-3,
			ItemBucketsOptimizer: "adam",
			NoBucketsOptimizer:   "adam",
			Seed:                 42,
		},
		Hybrid: HybridConfig{
			MetadataLayerDims: nil,
			CombinedLayerDims: []int{128, 64, 32},
			DropoutP:          0.0,
			FreezeEmbeddings:  true,
			LearningRate:      1e-3,
			Optimizer:         "adam",
			Seed:              42,
		},
		Training: TrainingConfig{
			Epochs:        10,
			LRDecayEvery:  10,
			LRDecayFactor: 0.95,
			Seed:          42,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		ModelDir: "./models",
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
