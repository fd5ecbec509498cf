// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
)

// MFConfig contains configuration for MatrixFactorizationModel.
type MFConfig struct {
	// NumUsers is the number of users in the interaction space.
	NumUsers int

	// NumItems is the number of items in the interaction space.
	NumItems int

	// EmbeddingDim is the latent factor width. Default: 30.
	EmbeddingDim int

	// DropoutP is the dropout probability applied to latent vectors
	// during training. Must be in [0, 1). Default: 0.
	DropoutP float64

	// LearningRate for training. Default: 1e-3.
	LearningRate float64

	// Optimizer kind for training. Default: adam.
	Optimizer OptimizerKind

	// Seed for reproducible initialization and dropout.
	// If 0, uses a default seed.
	Seed int64
}

// DefaultMFConfig returns default matrix-factorization configuration.
func DefaultMFConfig() MFConfig {
	return MFConfig{
		EmbeddingDim: 30,
		DropoutP:     0.0,
		LearningRate: 1e-3,
		Optimizer:    OptimizerAdam,
		Seed:         42,
	}
}

// MatrixFactorizationModel is a plain biased matrix-factorization scorer:
// the single-stage baseline the cold-start pipeline builds on, and a
// second possible source of pretrained embeddings for HybridModel.
type MatrixFactorizationModel struct {
	config MFConfig

	userBiases     *EmbeddingTable
	userEmbeddings *EmbeddingTable
	itemBiases     *EmbeddingTable
	itemEmbeddings *EmbeddingTable

	training bool

	rng    *rand.Rand
	logger zerolog.Logger
}

// NewMatrixFactorizationModel creates a single-stage factorization model.
func NewMatrixFactorizationModel(cfg MFConfig, logger zerolog.Logger) (*MatrixFactorizationModel, error) {
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 30
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 1e-3
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	if cfg.NumUsers <= 0 {
		return nil, fmt.Errorf("matrix factorization requires NumUsers > 0, got %d", cfg.NumUsers)
	}
	if cfg.NumItems <= 0 {
		return nil, fmt.Errorf("matrix factorization requires NumItems > 0, got %d", cfg.NumItems)
	}
	if cfg.DropoutP < 0 || cfg.DropoutP >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %g", cfg.DropoutP)
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	return &MatrixFactorizationModel{
		config: cfg,
		logger: logger.With().Str("model", "matrix_factorization").Logger(),
		rng:    rng,

		userBiases:     NewZeroEmbedding("user_biases", cfg.NumUsers, 1),
		userEmbeddings: NewScaledEmbedding("user_embeddings", cfg.NumUsers, cfg.EmbeddingDim, rng),
		itemBiases:     NewZeroEmbedding("item_biases", cfg.NumItems, 1),
		itemEmbeddings: NewScaledEmbedding("item_embeddings", cfg.NumItems, cfg.EmbeddingDim, rng),
	}, nil
}

// Train puts the model in training mode (dropout active).
func (m *MatrixFactorizationModel) Train() {
	m.training = true
}

// Eval puts the model in evaluation mode (dropout disabled).
func (m *MatrixFactorizationModel) Eval() {
	m.training = false
}

// Forward scores each (user, item) pair as the dot product of the latent
// vectors plus both biases.
func (m *MatrixFactorizationModel) Forward(users, items []int) ([]float64, error) {
	if len(users) != len(items) {
		return nil, fmt.Errorf("users and items must have equal length: %d != %d", len(users), len(items))
	}

	scores := make([]float64, len(users))
	for i := range users {
		userVec, err := m.userEmbeddings.Row(users[i])
		if err != nil {
			return nil, err
		}
		userBias, err := m.userBiases.Row(users[i])
		if err != nil {
			return nil, err
		}
		itemVec, err := m.itemEmbeddings.Row(items[i])
		if err != nil {
			return nil, err
		}
		itemBias, err := m.itemBiases.Row(items[i])
		if err != nil {
			return nil, err
		}

		if m.training && m.config.DropoutP > 0 {
			userVec = applyDropout(userVec, m.config.DropoutP, m.rng)
			itemVec = applyDropout(itemVec, m.config.DropoutP, m.rng)
		}

		var dot float64
		for f := range userVec {
			dot += userVec[f] * itemVec[f]
		}
		scores[i] = dot + userBias[0] + itemBias[0]
	}

	return scores, nil
}

// ActiveScoringTables returns the tables the trainer optimizes. Item IDs
// index the item tables directly.
func (m *MatrixFactorizationModel) ActiveScoringTables() ScoringTables {
	return ScoringTables{
		UserBiases:     m.userBiases,
		UserEmbeddings: m.userEmbeddings,
		ItemBiases:     m.itemBiases,
		ItemEmbeddings: m.itemEmbeddings,
		MapItem:        func(item int) (int, error) { return item, nil },
	}
}

// ActiveOptimizer returns the configured learning rate and optimizer kind.
func (m *MatrixFactorizationModel) ActiveOptimizer() (float64, OptimizerKind) {
	return m.config.LearningRate, m.config.Optimizer
}

// EmbeddingTables exposes the user and item latent tables so the model
// can seed a HybridModel. The hybrid model deep-copies both.
func (m *MatrixFactorizationModel) EmbeddingTables() (user, item *EmbeddingTable) {
	return m.userEmbeddings, m.itemEmbeddings
}

// ItemEmbeddings returns a copy of the item latent table.
func (m *MatrixFactorizationModel) ItemEmbeddings() [][]float64 {
	return m.itemEmbeddings.Values()
}

// StateDict returns a deep copy of every parameter table.
func (m *MatrixFactorizationModel) StateDict() StateDict {
	sd := make(StateDict)
	for _, t := range []*EmbeddingTable{m.userBiases, m.userEmbeddings, m.itemBiases, m.itemEmbeddings} {
		tableStateInto(sd, t)
	}
	return sd
}

// LoadStateDict overwrites every parameter table from the given mapping.
func (m *MatrixFactorizationModel) LoadStateDict(sd StateDict) error {
	for _, t := range []*EmbeddingTable{m.userBiases, m.userEmbeddings, m.itemBiases, m.itemEmbeddings} {
		if err := tableStateFrom(sd, t); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the model's configuration.
func (m *MatrixFactorizationModel) Config() MFConfig {
	return m.config
}
