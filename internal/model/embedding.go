// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
	"math"
	"math/rand"
)

// EmbeddingTable maps discrete entity IDs to trainable vectors. The row
// count is fixed at construction and indexing with an out-of-range ID is
// an error, never a silent zero row.
type EmbeddingTable struct {
	name string
	rows [][]float64
	dim  int

	// requiresGrad marks whether optimizers may update this table.
	// Toggled by HybridModel freeze/unfreeze.
	requiresGrad bool
}

// NewZeroEmbedding creates a table with every value initialized to zero.
// Used for additive bias terms so they contribute nothing until trained.
func NewZeroEmbedding(name string, count, dim int) *EmbeddingTable {
	rows := make([][]float64, count)
	for i := range rows {
		rows[i] = make([]float64, dim)
	}

	return &EmbeddingTable{
		name:         name,
		rows:         rows,
		dim:          dim,
		requiresGrad: true,
	}
}

// NewScaledEmbedding creates a table with normal draws scaled by
// 1/sqrt(dim), keeping dot-product magnitudes stable as the embedding
// dimension grows.
func NewScaledEmbedding(name string, count, dim int, rng *rand.Rand) *EmbeddingTable {
	scale := 1.0 / math.Sqrt(float64(dim))

	rows := make([][]float64, count)
	for i := range rows {
		rows[i] = make([]float64, dim)
		for j := range rows[i] {
			rows[i][j] = rng.NormFloat64() * scale
		}
	}

	return &EmbeddingTable{
		name:         name,
		rows:         rows,
		dim:          dim,
		requiresGrad: true,
	}
}

// Name returns the parameter name used in state dictionaries.
func (t *EmbeddingTable) Name() string {
	return t.name
}

// Count returns the number of rows.
func (t *EmbeddingTable) Count() int {
	return len(t.rows)
}

// Dim returns the vector width.
func (t *EmbeddingTable) Dim() int {
	return t.dim
}

// RequiresGrad reports whether optimizers may update this table.
func (t *EmbeddingTable) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad toggles whether optimizers may update this table.
func (t *EmbeddingTable) SetRequiresGrad(v bool) {
	t.requiresGrad = v
}

// Row returns the vector for a single ID. The returned slice aliases the
// table's storage so in-place training updates are possible.
func (t *EmbeddingTable) Row(id int) ([]float64, error) {
	if id < 0 || id >= len(t.rows) {
		return nil, fmt.Errorf("embedding %s: id %d out of range [0, %d)", t.name, id, len(t.rows))
	}
	return t.rows[id], nil
}

// Lookup returns the vectors for a batch of IDs. Any ID outside
// [0, Count()) fails the whole lookup.
func (t *EmbeddingTable) Lookup(ids []int) ([][]float64, error) {
	out := make([][]float64, len(ids))
	for i, id := range ids {
		row, err := t.Row(id)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// Clone returns an independently-owned deep copy. Mutating the clone
// never affects the source table.
func (t *EmbeddingTable) Clone(name string) *EmbeddingTable {
	rows := make([][]float64, len(t.rows))
	for i := range t.rows {
		rows[i] = make([]float64, len(t.rows[i]))
		copy(rows[i], t.rows[i])
	}

	return &EmbeddingTable{
		name:         name,
		rows:         rows,
		dim:          t.dim,
		requiresGrad: t.requiresGrad,
	}
}

// Values returns a deep copy of the full table as a [Count][Dim] matrix.
func (t *EmbeddingTable) Values() [][]float64 {
	out := make([][]float64, len(t.rows))
	for i := range t.rows {
		out[i] = make([]float64, len(t.rows[i]))
		copy(out[i], t.rows[i])
	}
	return out
}

// SetValues overwrites the table contents from a matrix of identical shape.
func (t *EmbeddingTable) SetValues(values [][]float64) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("embedding %s: row count mismatch: got %d, want %d", t.name, len(values), len(t.rows))
	}
	for i := range values {
		if len(values[i]) != t.dim {
			return fmt.Errorf("embedding %s: row %d width mismatch: got %d, want %d", t.name, i, len(values[i]), t.dim)
		}
		copy(t.rows[i], values[i])
	}
	return nil
}
