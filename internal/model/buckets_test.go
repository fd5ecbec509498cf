// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"strings"
	"testing"
)

func TestBucketAssignment_NumBuckets(t *testing.T) {
	tests := []struct {
		name       string
		assignment BucketAssignment
		want       int
	}{
		{name: "three buckets", assignment: BucketAssignment{1, 0, 2, 2, 1}, want: 3},
		{name: "single bucket", assignment: BucketAssignment{0, 0, 0}, want: 1},
		{name: "empty assignment", assignment: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.assignment.NumBuckets(); got != tt.want {
				t.Errorf("NumBuckets() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateBucketAssignment(t *testing.T) {
	tests := []struct {
		name        string
		assignment  []int
		numItems    int
		wantBuckets int
		wantErr     string
	}{
		{
			name:        "valid dense assignment",
			assignment:  []int{1, 0, 2, 2, 1},
			numItems:    5,
			wantBuckets: 3,
		},
		{
			name:        "single bucket",
			assignment:  []int{0, 0, 0},
			numItems:    3,
			wantBuckets: 1,
		},
		{
			name:       "empty assignment",
			assignment: nil,
			numItems:   0,
			wantErr:    "must not be empty",
		},
		{
			name:       "length mismatch",
			assignment: []int{0, 1},
			numItems:   3,
			wantErr:    "length of bucket assignment must equal the number of items",
		},
		{
			name:       "ids start at one",
			assignment: []int{1, 2, 1},
			numItems:   3,
			wantErr:    "bucket IDs must start at 0, not 1",
		},
		{
			name:       "gap in bucket ids",
			assignment: []int{0, 3, 0, 3},
			numItems:   4,
			wantErr:    "missing 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBucketAssignment(tt.assignment, tt.numItems)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ValidateBucketAssignment() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateBucketAssignment() error = %v", err)
			}
			if got != tt.wantBuckets {
				t.Errorf("buckets = %d, want %d", got, tt.wantBuckets)
			}
		})
	}
}

func TestExpandEmbeddings(t *testing.T) {
	src := NewZeroEmbedding("bucket_biases", 3, 1)
	if err := src.SetValues([][]float64{{9}, {8}, {7}}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	dst := NewZeroEmbedding("item_biases", 5, 1)
	assignment := BucketAssignment{1, 0, 2, 2, 1}

	if err := ExpandEmbeddings(src, dst, assignment); err != nil {
		t.Fatalf("ExpandEmbeddings() error = %v", err)
	}

	want := [][]float64{{8}, {9}, {7}, {7}, {8}}
	got := dst.Values()
	for i := range want {
		if got[i][0] != want[i][0] {
			t.Errorf("dst row %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Source must be untouched.
	srcValues := src.Values()
	for i, v := range []float64{9, 8, 7} {
		if srcValues[i][0] != v {
			t.Errorf("src row %d = %v, want %v", i, srcValues[i][0], v)
		}
	}
}

func TestExpandEmbeddings_Idempotent(t *testing.T) {
	rng := newTestRand()
	src := NewScaledEmbedding("bucket_latent", 2, 4, rng)
	dst := NewScaledEmbedding("item_latent", 4, 4, rng)
	assignment := BucketAssignment{0, 1, 1, 0}

	if err := ExpandEmbeddings(src, dst, assignment); err != nil {
		t.Fatalf("first expand error = %v", err)
	}
	first := dst.Values()

	if err := ExpandEmbeddings(src, dst, assignment); err != nil {
		t.Fatalf("second expand error = %v", err)
	}
	second := dst.Values()

	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("row %d changed between expansions", i)
			}
		}
	}
}

func TestExpandEmbeddings_ShapeErrors(t *testing.T) {
	rng := newTestRand()

	t.Run("width mismatch", func(t *testing.T) {
		src := NewScaledEmbedding("src", 2, 4, rng)
		dst := NewScaledEmbedding("dst", 4, 8, rng)
		if err := ExpandEmbeddings(src, dst, BucketAssignment{0, 1, 1, 0}); err == nil {
			t.Error("expected width mismatch error")
		}
	})

	t.Run("assignment length mismatch", func(t *testing.T) {
		src := NewScaledEmbedding("src", 2, 4, rng)
		dst := NewScaledEmbedding("dst", 4, 4, rng)
		if err := ExpandEmbeddings(src, dst, BucketAssignment{0, 1}); err == nil {
			t.Error("expected assignment length error")
		}
	})
}
