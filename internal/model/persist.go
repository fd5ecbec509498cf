// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openrec/thaw/internal/storage"
)

// File names inside a model directory.
const (
	metadataFile = "metadata.gob.gz"
	stateFile    = "model.gob.gz"
)

// coldStartRecord is the serializable description of a ColdStartModel:
// everything needed to rebuild the model before restoring its parameters.
type coldStartRecord struct {
	Config  ColdStartConfig
	Buckets []int
	Stage   string
}

// Save writes the model to dir as a metadata blob, a parameter blob, and
// a manifest. A non-empty directory fails unless overwrite is set.
func (m *ColdStartModel) Save(dir string, overwrite bool) error {
	if err := storage.PrepareDir(dir, overwrite); err != nil {
		return err
	}

	record := coldStartRecord{
		Config:  m.config,
		Buckets: m.Buckets(),
		Stage:   m.Stage(),
	}

	manifest := storage.NewManifest("cold_start")

	meta, err := storage.WriteBlob(filepath.Join(dir, metadataFile), "cold_start_metadata", record)
	if err != nil {
		return err
	}
	manifest.Blobs[metadataFile] = meta.Checksum

	meta, err = storage.WriteBlob(filepath.Join(dir, stateFile), "cold_start_state", m.StateDict())
	if err != nil {
		return err
	}
	manifest.Blobs[stateFile] = meta.Checksum

	if err := storage.WriteManifest(dir, manifest); err != nil {
		return err
	}

	m.logger.Info().Str("dir", dir).Msg("model saved")
	return nil
}

// LoadColdStartModel restores a model saved by (*ColdStartModel).Save.
// The model is returned in evaluation mode at its saved stage.
func LoadColdStartModel(dir string, logger zerolog.Logger) (*ColdStartModel, error) {
	var record coldStartRecord
	if _, err := storage.ReadBlob(filepath.Join(dir, metadataFile), &record); err != nil {
		return nil, err
	}

	m, err := NewColdStartModel(record.Config, record.Buckets, logger)
	if err != nil {
		return nil, fmt.Errorf("rebuild cold-start model: %w", err)
	}

	// Replay the stage so the active tables match the saved model. The
	// expansion hook runs on stale values; the state dict restore below
	// overwrites them.
	if record.Stage != m.Stage() {
		if err := m.AdvanceStage(record.Stage); err != nil {
			return nil, fmt.Errorf("restore stage: %w", err)
		}
	}

	var sd StateDict
	if _, err := storage.ReadBlob(filepath.Join(dir, stateFile), &sd); err != nil {
		return nil, err
	}
	if err := m.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("restore parameters: %w", err)
	}

	m.Eval()
	return m, nil
}

// hybridRecord is the serializable description of a HybridModel.
type hybridRecord struct {
	NumUsers     int
	NumItems     int
	EmbeddingDim int
	MetadataDim  int
	ItemMetadata [][]float64
	Config       HybridConfig
}

// Save writes the model to dir as a metadata blob, a parameter blob, and
// a manifest. Parameters inherited from the pretrained source are the
// hybrid's own copies and are saved; stray source-prefixed entries are
// dropped. A non-empty directory fails unless overwrite is set.
func (m *HybridModel) Save(dir string, overwrite bool) error {
	if err := storage.PrepareDir(dir, overwrite); err != nil {
		return err
	}

	record := hybridRecord{
		NumUsers:     m.NumUsers(),
		NumItems:     m.NumItems(),
		EmbeddingDim: m.EmbeddingDim(),
		MetadataDim:  m.metadataDim,
		ItemMetadata: m.itemMetadata,
		Config:       m.config,
	}

	sd := m.StateDict()
	for key := range sd {
		if strings.HasPrefix(key, sourceParamPrefix) {
			delete(sd, key)
		}
	}

	manifest := storage.NewManifest("hybrid")

	meta, err := storage.WriteBlob(filepath.Join(dir, metadataFile), "hybrid_metadata", record)
	if err != nil {
		return err
	}
	manifest.Blobs[metadataFile] = meta.Checksum

	meta, err = storage.WriteBlob(filepath.Join(dir, stateFile), "hybrid_state", sd)
	if err != nil {
		return err
	}
	manifest.Blobs[stateFile] = meta.Checksum

	if err := storage.WriteManifest(dir, manifest); err != nil {
		return err
	}

	m.logger.Info().Str("dir", dir).Msg("model saved")
	return nil
}

// newHybridShell rebuilds a hybrid model's architecture from a record,
// with freshly initialized parameters, ready for a state dict restore.
func newHybridShell(record hybridRecord, logger zerolog.Logger) (*HybridModel, error) {
	metadataDim, err := validateMetadata(record.ItemMetadata, record.NumItems)
	if err != nil {
		return nil, err
	}
	if metadataDim != record.MetadataDim {
		return nil, fmt.Errorf("metadata width mismatch: got %d, want %d", metadataDim, record.MetadataDim)
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(record.Config.Seed))

	m := &HybridModel{
		config:      record.Config,
		metadataDim: metadataDim,
		rng:         rng,
		logger:      logger.With().Str("model", "hybrid").Logger(),

		userEmbeddings: NewScaledEmbedding("user_embeddings", record.NumUsers, record.EmbeddingDim, rng),
		itemEmbeddings: NewScaledEmbedding("item_embeddings", record.NumItems, record.EmbeddingDim, rng),
		itemMetadata:   record.ItemMetadata,
	}

	m.buildLayers()
	m.setFrozen(record.Config.FreezeEmbeddings)

	return m, nil
}

// LoadHybridModel restores a model saved by (*HybridModel).Save. The model
// is returned in evaluation mode.
func LoadHybridModel(dir string, logger zerolog.Logger) (*HybridModel, error) {
	var record hybridRecord
	if _, err := storage.ReadBlob(filepath.Join(dir, metadataFile), &record); err != nil {
		return nil, err
	}

	m, err := newHybridShell(record, logger)
	if err != nil {
		return nil, fmt.Errorf("rebuild hybrid model: %w", err)
	}

	var sd StateDict
	if _, err := storage.ReadBlob(filepath.Join(dir, stateFile), &sd); err != nil {
		return nil, err
	}
	if err := m.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("restore parameters: %w", err)
	}

	m.Eval()
	return m, nil
}

// LoadFromHybridModel builds a new hybrid model with the same architecture
// and parameters as an existing one, without going through disk. The copy
// is independent of the original and returned in evaluation mode.
func LoadFromHybridModel(other *HybridModel, logger zerolog.Logger) (*HybridModel, error) {
	record := hybridRecord{
		NumUsers:     other.NumUsers(),
		NumItems:     other.NumItems(),
		EmbeddingDim: other.EmbeddingDim(),
		MetadataDim:  other.metadataDim,
		ItemMetadata: other.itemMetadata,
		Config:       other.config,
	}

	// Deep-copy the metadata so the models do not share rows.
	record.ItemMetadata = make([][]float64, len(other.itemMetadata))
	for i, row := range other.itemMetadata {
		record.ItemMetadata[i] = make([]float64, len(row))
		copy(record.ItemMetadata[i], row)
	}

	m, err := newHybridShell(record, logger)
	if err != nil {
		return nil, fmt.Errorf("rebuild hybrid model: %w", err)
	}
	if err := m.LoadStateDict(other.StateDict()); err != nil {
		return nil, fmt.Errorf("copy parameters: %w", err)
	}

	m.Eval()
	return m, nil
}
