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

// Stage names for the cold-start pipeline, in training order.
const (
	// StageItemBuckets trains user parameters against bucket-level item
	// parameters.
	StageItemBuckets = "item_buckets"

	// StageNoBuckets trains user parameters against full item-level
	// parameters, warm-started from the expanded bucket rows.
	StageNoBuckets = "no_buckets"
)

// ColdStartConfig contains configuration for ColdStartModel.
type ColdStartConfig struct {
	// NumUsers is the number of users in the interaction space.
	NumUsers int

	// NumItems is the number of items in the interaction space.
	NumItems int

	// EmbeddingDim is the latent factor width for users and items.
	// Default: 30.
	EmbeddingDim int

	// DropoutP is the dropout probability applied to latent vectors
	// during training. Must be in [0, 1). Default: 0.
	DropoutP float64

	// ItemBucketsLR is the learning rate for the item_buckets stage.
	// Default: 1e-3.
	ItemBucketsLR float64

	// NoBucketsLR is the learning rate for the no_buckets stage.
	// Default: 1e-3.
	NoBucketsLR float64

	// ItemBucketsOptimizer is the optimizer for the item_buckets stage.
	// Default: adam.
	ItemBucketsOptimizer OptimizerKind

	// NoBucketsOptimizer is the optimizer for the no_buckets stage.
	// Default: adam.
	NoBucketsOptimizer OptimizerKind

	// Seed for reproducible initialization and dropout.
	// If 0, uses a default seed.
	Seed int64
}

// DefaultColdStartConfig returns default cold-start configuration.
func DefaultColdStartConfig() ColdStartConfig {
	return ColdStartConfig{
		EmbeddingDim:         30,
		DropoutP:             0.0,
		ItemBucketsLR:        1e-3,
		NoBucketsLR:          1e-3,
		ItemBucketsOptimizer: OptimizerAdam,
		NoBucketsOptimizer:   OptimizerAdam,
		Seed:                 42,
	}
}

// activeItemTables is the tagged per-stage view of the item parameters
// read by the forward pass. It is swapped by stage transitions, so
// scoring never dispatches on the stage name.
type activeItemTables struct {
	biases     *EmbeddingTable
	embeddings *EmbeddingTable

	// useBuckets maps item IDs through the bucket assignment before
	// indexing the tables.
	useBuckets bool
}

// ColdStartModel is a matrix-factorization model trained in two stages to
// mitigate the item cold-start problem: first on coarse item buckets,
// then on the full item space warm-started by bucket expansion.
type ColdStartModel struct {
	config     ColdStartConfig
	buckets    BucketAssignment
	numBuckets int

	userBiases     *EmbeddingTable
	userEmbeddings *EmbeddingTable

	itemBucketBiases     *EmbeddingTable
	itemBucketEmbeddings *EmbeddingTable

	itemBiases     *EmbeddingTable
	itemEmbeddings *EmbeddingTable

	stages   *StageRegistry
	active   activeItemTables
	training bool

	rng    *rand.Rand
	logger zerolog.Logger
}

// NewColdStartModel creates a cold-start model for the given item-bucket
// assignment. The assignment must be dense, 0-based, and surjective;
// violations fail here, at construction.
func NewColdStartModel(cfg ColdStartConfig, buckets []int, logger zerolog.Logger) (*ColdStartModel, error) {
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 30
	}
	if cfg.ItemBucketsLR <= 0 {
		cfg.ItemBucketsLR = 1e-3
	}
	if cfg.NoBucketsLR <= 0 {
		cfg.NoBucketsLR = 1e-3
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	if cfg.NumUsers <= 0 {
		return nil, fmt.Errorf("cold-start model requires NumUsers > 0, got %d", cfg.NumUsers)
	}
	if cfg.NumItems <= 0 {
		return nil, fmt.Errorf("cold-start model requires NumItems > 0, got %d", cfg.NumItems)
	}
	if cfg.DropoutP < 0 || cfg.DropoutP >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %g", cfg.DropoutP)
	}

	numBuckets, err := ValidateBucketAssignment(buckets, cfg.NumItems)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	assignment := make(BucketAssignment, len(buckets))
	copy(assignment, buckets)

	m := &ColdStartModel{
		config:     cfg,
		buckets:    assignment,
		numBuckets: numBuckets,
		rng:        rng,
		logger:     logger.With().Str("model", "cold_start").Logger(),

		itemBucketBiases:     NewZeroEmbedding("item_bucket_biases", numBuckets, 1),
		itemBucketEmbeddings: NewScaledEmbedding("item_bucket_embeddings", numBuckets, cfg.EmbeddingDim, rng),

		userBiases:     NewZeroEmbedding("user_biases", cfg.NumUsers, 1),
		userEmbeddings: NewScaledEmbedding("user_embeddings", cfg.NumUsers, cfg.EmbeddingDim, rng),

		itemBiases:     NewZeroEmbedding("item_biases", cfg.NumItems, 1),
		itemEmbeddings: NewScaledEmbedding("item_embeddings", cfg.NumItems, cfg.EmbeddingDim, rng),
	}

	params := m.parameters()

	stages, err := NewStageRegistry(m.logger, params, []StageConfig{
		{
			Name:          StageItemBuckets,
			ParamPrefixes: []string{"user_embed", "user_bias", "item_bucket_embed", "item_bucket_bias"},
			LearningRate:  cfg.ItemBucketsLR,
			Optimizer:     cfg.ItemBucketsOptimizer,
		},
		{
			Name:          StageNoBuckets,
			ParamPrefixes: []string{"user_embed", "user_bias", "item_embed", "item_bias"},
			LearningRate:  cfg.NoBucketsLR,
			Optimizer:     cfg.NoBucketsOptimizer,
		},
	})
	if err != nil {
		return nil, err
	}

	stages.OnTransition(StageItemBuckets, StageNoBuckets, m.expandToItems)

	m.stages = stages
	m.active = activeItemTables{
		biases:     m.itemBucketBiases,
		embeddings: m.itemBucketEmbeddings,
		useBuckets: true,
	}

	return m, nil
}

// parameters returns handles to every trainable table.
func (m *ColdStartModel) parameters() []*Parameter {
	tables := []*EmbeddingTable{
		m.userBiases, m.userEmbeddings,
		m.itemBucketBiases, m.itemBucketEmbeddings,
		m.itemBiases, m.itemEmbeddings,
	}

	params := make([]*Parameter, len(tables))
	for i, t := range tables {
		params[i] = &Parameter{Name: t.Name(), Table: t}
	}
	return params
}

// expandToItems copies every bucket's bias and latent rows into the item
// tables according to the assignment. Runs on the
// item_buckets -> no_buckets transition.
func (m *ColdStartModel) expandToItems() error {
	if err := ExpandEmbeddings(m.itemBucketBiases, m.itemBiases, m.buckets); err != nil {
		return err
	}
	if err := ExpandEmbeddings(m.itemBucketEmbeddings, m.itemEmbeddings, m.buckets); err != nil {
		return err
	}

	m.active = activeItemTables{
		biases:     m.itemBiases,
		embeddings: m.itemEmbeddings,
		useBuckets: false,
	}

	m.logger.Info().Msg("item embeddings initialized")
	return nil
}

// AdvanceStage moves the model to the named stage, running the bucket
// expansion when transitioning from item_buckets to no_buckets. An
// unknown name fails, listing the valid stages, and leaves the current
// stage unchanged.
func (m *ColdStartModel) AdvanceStage(name string) error {
	return m.stages.Advance(name)
}

// Stage returns the current stage name.
func (m *ColdStartModel) Stage() string {
	return m.stages.CurrentName()
}

// StageNames returns the declared stage names in training order.
func (m *ColdStartModel) StageNames() []string {
	return m.stages.Names()
}

// NumBuckets returns the number of item buckets.
func (m *ColdStartModel) NumBuckets() int {
	return m.numBuckets
}

// Train puts the model in training mode (dropout active).
func (m *ColdStartModel) Train() {
	m.training = true
}

// Eval puts the model in evaluation mode (dropout disabled).
func (m *ColdStartModel) Eval() {
	m.training = false
}

// Forward scores each (user, item) pair. Users and items are parallel
// arrays of equal length. Depending on the current stage, item IDs are
// either mapped through the bucket assignment to bucket-level tables or
// looked up directly in the item-level tables.
func (m *ColdStartModel) Forward(users, items []int) ([]float64, error) {
	if len(users) != len(items) {
		return nil, fmt.Errorf("users and items must have equal length: %d != %d", len(users), len(items))
	}
	if m.active.biases == nil || m.active.embeddings == nil {
		panic("cold-start model: active stage tables not initialized")
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

		itemID, err := m.mapItem(items[i])
		if err != nil {
			return nil, err
		}
		itemVec, err := m.active.embeddings.Row(itemID)
		if err != nil {
			return nil, err
		}
		itemBias, err := m.active.biases.Row(itemID)
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

// mapItem translates an item ID to the row index of the active item
// tables: the bucket ID during the item_buckets stage, the item ID itself
// afterwards.
func (m *ColdStartModel) mapItem(item int) (int, error) {
	if !m.active.useBuckets {
		return item, nil
	}
	if item < 0 || item >= len(m.buckets) {
		return 0, fmt.Errorf("item id %d out of range [0, %d)", item, len(m.buckets))
	}
	return m.buckets[item], nil
}

// ItemEmbeddings returns a copy of the full item latent table as a
// [NumItems][EmbeddingDim] matrix.
func (m *ColdStartModel) ItemEmbeddings() [][]float64 {
	return m.itemEmbeddings.Values()
}

// EmbeddingTables exposes the user and item latent tables so the model
// can seed a HybridModel. The hybrid model deep-copies both.
func (m *ColdStartModel) EmbeddingTables() (user, item *EmbeddingTable) {
	return m.userEmbeddings, m.itemEmbeddings
}

// ActiveScoringTables returns the tables the current stage scores with,
// for use by the trainer.
func (m *ColdStartModel) ActiveScoringTables() ScoringTables {
	return ScoringTables{
		UserBiases:     m.userBiases,
		UserEmbeddings: m.userEmbeddings,
		ItemBiases:     m.active.biases,
		ItemEmbeddings: m.active.embeddings,
		MapItem:        m.mapItem,
	}
}

// ActiveOptimizer returns the current stage's learning rate and
// optimizer kind.
func (m *ColdStartModel) ActiveOptimizer() (float64, OptimizerKind) {
	stage := m.stages.Current()
	return stage.LearningRate, stage.Optimizer
}

// StateDict returns a deep copy of every parameter table.
func (m *ColdStartModel) StateDict() StateDict {
	sd := make(StateDict)
	for _, p := range m.parameters() {
		tableStateInto(sd, p.Table)
	}
	return sd
}

// LoadStateDict overwrites every parameter table from the given mapping.
func (m *ColdStartModel) LoadStateDict(sd StateDict) error {
	for _, p := range m.parameters() {
		if err := tableStateFrom(sd, p.Table); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the model's configuration.
func (m *ColdStartModel) Config() ColdStartConfig {
	return m.config
}

// Buckets returns a copy of the item-to-bucket assignment.
func (m *ColdStartModel) Buckets() BucketAssignment {
	out := make(BucketAssignment, len(m.buckets))
	copy(out, m.buckets)
	return out
}

// ScoringTables is the per-stage view of the parameters a dot-product
// scorer reads: user bias/latent tables, the active item bias/latent
// tables, and the item-ID translation the stage applies.
type ScoringTables struct {
	UserBiases     *EmbeddingTable
	UserEmbeddings *EmbeddingTable
	ItemBiases     *EmbeddingTable
	ItemEmbeddings *EmbeddingTable

	// MapItem translates an external item ID to a row index of the item
	// tables.
	MapItem func(item int) (int, error)
}
