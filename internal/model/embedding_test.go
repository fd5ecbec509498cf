// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"math/rand"
	"testing"
)

func TestNewZeroEmbedding(t *testing.T) {
	table := NewZeroEmbedding("biases", 5, 1)

	if table.Count() != 5 {
		t.Errorf("Count() = %d, want 5", table.Count())
	}
	if table.Dim() != 1 {
		t.Errorf("Dim() = %d, want 1", table.Dim())
	}
	if !table.RequiresGrad() {
		t.Error("new table should require grad")
	}

	for i := 0; i < table.Count(); i++ {
		row, err := table.Row(i)
		if err != nil {
			t.Fatalf("Row(%d) error = %v", i, err)
		}
		for _, v := range row {
			if v != 0 {
				t.Errorf("Row(%d) = %v, want all zeros", i, row)
			}
		}
	}
}

func TestNewScaledEmbedding(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	table := NewScaledEmbedding("latent", 10, 16, rng)

	if table.Count() != 10 {
		t.Errorf("Count() = %d, want 10", table.Count())
	}
	if table.Dim() != 16 {
		t.Errorf("Dim() = %d, want 16", table.Dim())
	}

	// Scaled init should produce at least one nonzero value per row.
	for i := 0; i < table.Count(); i++ {
		row, err := table.Row(i)
		if err != nil {
			t.Fatalf("Row(%d) error = %v", i, err)
		}
		nonzero := false
		for _, v := range row {
			if v != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			t.Errorf("Row(%d) is all zeros, want random values", i)
		}
	}
}

func TestEmbeddingTable_RowBounds(t *testing.T) {
	table := NewZeroEmbedding("biases", 3, 1)

	tests := []struct {
		name    string
		id      int
		wantErr bool
	}{
		{name: "first row", id: 0, wantErr: false},
		{name: "last row", id: 2, wantErr: false},
		{name: "negative id", id: -1, wantErr: true},
		{name: "id past end", id: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Row(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("Row(%d) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingTable_LookupFailsWhole(t *testing.T) {
	table := NewZeroEmbedding("biases", 3, 1)

	if _, err := table.Lookup([]int{0, 1, 5}); err == nil {
		t.Error("Lookup with out-of-range id should fail")
	}

	rows, err := table.Lookup([]int{0, 2})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Lookup() returned %d rows, want 2", len(rows))
	}
}

func TestEmbeddingTable_CloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := NewScaledEmbedding("latent", 4, 8, rng)

	clone := src.Clone("latent_copy")
	if clone.Name() != "latent_copy" {
		t.Errorf("clone name = %q, want %q", clone.Name(), "latent_copy")
	}

	srcRow, _ := src.Row(0)
	cloneRow, _ := clone.Row(0)
	for f := range srcRow {
		if srcRow[f] != cloneRow[f] {
			t.Fatalf("clone row differs at %d before mutation", f)
		}
	}

	// Mutating the clone must not touch the source.
	cloneRow[0] += 100
	if srcRow[0] == cloneRow[0] {
		t.Error("mutating clone changed the source table")
	}
}

func TestEmbeddingTable_SetValues(t *testing.T) {
	table := NewZeroEmbedding("biases", 2, 3)

	if err := table.SetValues([][]float64{{1, 2, 3}}); err == nil {
		t.Error("SetValues with wrong row count should fail")
	}
	if err := table.SetValues([][]float64{{1, 2}, {3, 4}}); err == nil {
		t.Error("SetValues with wrong width should fail")
	}

	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if err := table.SetValues(want); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	got := table.Values()
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("Values()[%d][%d] = %v, want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}
