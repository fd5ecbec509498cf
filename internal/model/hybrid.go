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

// sourceParamPrefix marks state-dict entries that belong to the model a
// hybrid was seeded from. The hybrid owns deep copies of everything it
// scores with, so these entries should never exist; the save path still
// filters them as a safety net.
const sourceParamPrefix = "pretrained_source."

// PretrainedSource is any model that can donate its user and item latent
// tables to a HybridModel. Both ColdStartModel and
// MatrixFactorizationModel satisfy it.
type PretrainedSource interface {
	EmbeddingTables() (user, item *EmbeddingTable)
}

// HybridConfig contains configuration for HybridModel.
type HybridConfig struct {
	// MetadataLayerDims are the hidden widths of the optional metadata
	// sub-network. Empty means raw metadata rows feed the combined
	// network directly.
	MetadataLayerDims []int

	// CombinedLayerDims are the hidden widths of the combined scoring
	// network. A final width-1 output layer is always appended.
	// Default: [128, 64, 32].
	CombinedLayerDims []int

	// DropoutP is the dropout probability applied inside both
	// sub-networks during training. Must be in [0, 1). Default: 0.
	DropoutP float64

	// FreezeEmbeddings controls whether the copied latent tables are
	// excluded from gradient updates. Default: true.
	FreezeEmbeddings bool

	// LearningRate for training. Default: 1e-3.
	LearningRate float64

	// Optimizer kind for training. Default: adam.
	Optimizer OptimizerKind

	// MetadataForLoss and MetadataForLossWeights are partial-credit
	// weighting inputs consumed by an external loss component. Stored
	// and round-tripped verbatim, never interpreted here.
	MetadataForLoss        [][]float64
	MetadataForLossWeights []float64

	// Seed for reproducible initialization and dropout.
	// If 0, uses a default seed.
	Seed int64
}

// DefaultHybridConfig returns default hybrid configuration.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		CombinedLayerDims: []int{128, 64, 32},
		DropoutP:          0.0,
		FreezeEmbeddings:  true,
		LearningRate:      1e-3,
		Optimizer:         OptimizerAdam,
		Seed:              42,
	}
}

// HybridModel fuses pretrained collaborative embeddings with per-item
// metadata. It deep-copies the source model's latent tables at
// construction, feeds metadata through an optional sub-network, and
// scores the concatenation of user vector, item vector, and metadata
// vector with a small feed-forward network.
type HybridModel struct {
	config      HybridConfig
	metadataDim int

	userEmbeddings *EmbeddingTable
	itemEmbeddings *EmbeddingTable

	itemMetadata [][]float64

	metadataLayers []*LinearLayer
	combinedLayers []*LinearLayer

	training bool

	rng    *rand.Rand
	logger zerolog.Logger
}

// NewHybridModel builds a hybrid model seeded by a pretrained source. The
// source's user and item latent tables are deep-copied, so the hybrid is
// independent of the source from this point on. itemMetadata must have one
// row per item; all rows must share the same width.
func NewHybridModel(source PretrainedSource, itemMetadata [][]float64, cfg HybridConfig, logger zerolog.Logger) (*HybridModel, error) {
	if source == nil {
		return nil, fmt.Errorf("hybrid model requires a pretrained source")
	}
	if cfg.CombinedLayerDims == nil {
		cfg.CombinedLayerDims = []int{128, 64, 32}
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 1e-3
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.DropoutP < 0 || cfg.DropoutP >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %g", cfg.DropoutP)
	}

	srcUser, srcItem := source.EmbeddingTables()

	metadataDim, err := validateMetadata(itemMetadata, srcItem.Count())
	if err != nil {
		return nil, err
	}

	metadata := make([][]float64, len(itemMetadata))
	for i, row := range itemMetadata {
		metadata[i] = make([]float64, len(row))
		copy(metadata[i], row)
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &HybridModel{
		config:      cfg,
		metadataDim: metadataDim,
		rng:         rng,
		logger:      logger.With().Str("model", "hybrid").Logger(),

		userEmbeddings: srcUser.Clone("user_embeddings"),
		itemEmbeddings: srcItem.Clone("item_embeddings"),
		itemMetadata:   metadata,
	}

	m.buildLayers()
	m.setFrozen(cfg.FreezeEmbeddings)

	return m, nil
}

// validateMetadata checks the metadata matrix shape and returns its width.
func validateMetadata(metadata [][]float64, numItems int) (int, error) {
	if len(metadata) != numItems {
		return 0, fmt.Errorf("item metadata must have one row per item: %d != %d", len(metadata), numItems)
	}
	if len(metadata) == 0 || len(metadata[0]) == 0 {
		return 0, fmt.Errorf("item metadata must not be empty")
	}

	width := len(metadata[0])
	for i, row := range metadata {
		if len(row) != width {
			return 0, fmt.Errorf("item metadata row %d has width %d, want %d", i, len(row), width)
		}
	}
	return width, nil
}

// buildLayers constructs the metadata sub-network and the combined scoring
// network from the configured widths. Deterministic given the model's rng.
func (m *HybridModel) buildLayers() {
	metaOut := m.metadataDim
	m.metadataLayers = nil
	for _, dim := range m.config.MetadataLayerDims {
		m.metadataLayers = append(m.metadataLayers, NewLinearLayer(metaOut, dim, m.rng))
		metaOut = dim
	}

	in := m.userEmbeddings.Dim() + m.itemEmbeddings.Dim() + metaOut
	m.combinedLayers = nil
	for _, dim := range m.config.CombinedLayerDims {
		m.combinedLayers = append(m.combinedLayers, NewLinearLayer(in, dim, m.rng))
		in = dim
	}
	m.combinedLayers = append(m.combinedLayers, NewLinearLayer(in, 1, m.rng))
}

// setFrozen toggles gradient participation of the copied latent tables.
func (m *HybridModel) setFrozen(frozen bool) {
	m.userEmbeddings.SetRequiresGrad(!frozen)
	m.itemEmbeddings.SetRequiresGrad(!frozen)
}

// Freeze excludes the copied latent tables from gradient updates.
func (m *HybridModel) Freeze() {
	m.setFrozen(true)
	m.logger.Debug().Msg("embeddings frozen")
}

// Unfreeze includes the copied latent tables in gradient updates, for
// fine-tuning after the scoring network has converged.
func (m *HybridModel) Unfreeze() {
	m.setFrozen(false)
	m.logger.Debug().Msg("embeddings unfrozen")
}

// Frozen reports whether the copied latent tables are frozen.
func (m *HybridModel) Frozen() bool {
	return !m.userEmbeddings.RequiresGrad()
}

// Train puts the model in training mode (dropout active).
func (m *HybridModel) Train() {
	m.training = true
}

// Eval puts the model in evaluation mode (dropout disabled).
func (m *HybridModel) Eval() {
	m.training = false
}

// Forward scores each (user, item) pair. The item's metadata row passes
// through the metadata sub-network, then the user vector, item vector, and
// metadata vector are concatenated and scored by the combined network.
func (m *HybridModel) Forward(users, items []int) ([]float64, error) {
	if len(users) != len(items) {
		return nil, fmt.Errorf("users and items must have equal length: %d != %d", len(users), len(items))
	}

	scores := make([]float64, len(users))
	for i := range users {
		userVec, err := m.userEmbeddings.Row(users[i])
		if err != nil {
			return nil, err
		}
		itemVec, err := m.itemEmbeddings.Row(items[i])
		if err != nil {
			return nil, err
		}
		if items[i] < 0 || items[i] >= len(m.itemMetadata) {
			return nil, fmt.Errorf("item id %d out of range [0, %d)", items[i], len(m.itemMetadata))
		}

		metaVec := m.itemMetadata[items[i]]
		for _, layer := range m.metadataLayers {
			metaVec = applyLeakyReLU(layer.Forward(metaVec))
			if m.training && m.config.DropoutP > 0 {
				metaVec = applyDropout(metaVec, m.config.DropoutP, m.rng)
			}
		}

		combined := make([]float64, 0, len(userVec)+len(itemVec)+len(metaVec))
		combined = append(combined, userVec...)
		combined = append(combined, itemVec...)
		combined = append(combined, metaVec...)

		for l, layer := range m.combinedLayers {
			combined = layer.Forward(combined)
			if l < len(m.combinedLayers)-1 {
				combined = applyLeakyReLU(combined)
				if m.training && m.config.DropoutP > 0 {
					combined = applyDropout(combined, m.config.DropoutP, m.rng)
				}
			}
		}

		scores[i] = combined[0]
	}

	return scores, nil
}

// ItemEmbeddings returns a copy of the borrowed item latent table as a
// [NumItems][EmbeddingDim] matrix.
func (m *HybridModel) ItemEmbeddings() [][]float64 {
	return m.itemEmbeddings.Values()
}

// ItemMetadata returns the metadata row for an item.
func (m *HybridModel) ItemMetadata(item int) ([]float64, error) {
	if item < 0 || item >= len(m.itemMetadata) {
		return nil, fmt.Errorf("item id %d out of range [0, %d)", item, len(m.itemMetadata))
	}
	return m.itemMetadata[item], nil
}

// StateDict returns a deep copy of the hybrid's own parameters: the copied
// latent tables and both networks.
func (m *HybridModel) StateDict() StateDict {
	sd := make(StateDict)
	tableStateInto(sd, m.userEmbeddings)
	tableStateInto(sd, m.itemEmbeddings)
	for i, layer := range m.metadataLayers {
		layer.stateInto(sd, fmt.Sprintf("metadata_layers.%d", i))
	}
	for i, layer := range m.combinedLayers {
		layer.stateInto(sd, fmt.Sprintf("combined_layers.%d", i))
	}
	return sd
}

// LoadStateDict overwrites the hybrid's parameters from the given mapping.
// Entries carrying the pretrained-source prefix are ignored.
func (m *HybridModel) LoadStateDict(sd StateDict) error {
	if err := tableStateFrom(sd, m.userEmbeddings); err != nil {
		return err
	}
	if err := tableStateFrom(sd, m.itemEmbeddings); err != nil {
		return err
	}
	for i, layer := range m.metadataLayers {
		if err := layer.stateFrom(sd, fmt.Sprintf("metadata_layers.%d", i)); err != nil {
			return err
		}
	}
	for i, layer := range m.combinedLayers {
		if err := layer.stateFrom(sd, fmt.Sprintf("combined_layers.%d", i)); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the model's configuration.
func (m *HybridModel) Config() HybridConfig {
	return m.config
}

// MetadataDim returns the width of the item metadata rows.
func (m *HybridModel) MetadataDim() int {
	return m.metadataDim
}

// NumUsers returns the number of users the model scores.
func (m *HybridModel) NumUsers() int {
	return m.userEmbeddings.Count()
}

// NumItems returns the number of items the model scores.
func (m *HybridModel) NumItems() int {
	return m.itemEmbeddings.Count()
}

// EmbeddingDim returns the latent factor width.
func (m *HybridModel) EmbeddingDim() int {
	return m.userEmbeddings.Dim()
}
