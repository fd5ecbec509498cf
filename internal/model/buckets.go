// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
)

// BucketAssignment maps each item ID (the index) to its bucket ID (the
// value). A valid assignment is dense and surjective: bucket IDs start at
// zero and every integer up to the maximum appears at least once.
// Immutable once a model is constructed around it.
type BucketAssignment []int

// NumBuckets returns the bucket count (max value + 1) without validating.
func (a BucketAssignment) NumBuckets() int {
	maxID := -1
	for _, b := range a {
		if b > maxID {
			maxID = b
		}
	}
	return maxID + 1
}

// ValidateBucketAssignment checks an item-to-bucket assignment against the
// item count and returns the number of buckets. Violations are
// configuration errors meant to surface at model construction.
func ValidateBucketAssignment(assignment []int, numItems int) (int, error) {
	if len(assignment) == 0 {
		return 0, fmt.Errorf("bucket assignment must not be empty")
	}
	if len(assignment) != numItems {
		return 0, fmt.Errorf("length of bucket assignment must equal the number of items: %d != %d", len(assignment), numItems)
	}

	minID := assignment[0]
	for _, b := range assignment {
		if b < minID {
			minID = b
		}
	}
	if minID != 0 {
		return 0, fmt.Errorf("bucket IDs must start at 0, not %d", minID)
	}

	numBuckets := BucketAssignment(assignment).NumBuckets()

	seen := make([]bool, numBuckets)
	for _, b := range assignment {
		seen[b] = true
	}
	for b, ok := range seen {
		if !ok {
			return 0, fmt.Errorf("bucket assignment must contain every integer between 0 and %d: missing %d", numBuckets-1, b)
		}
	}

	return numBuckets, nil
}

// ExpandEmbeddings copies each bucket's row from src into every item row
// of dst that is assigned to that bucket: dst.row[i] = src.row[assignment[i]].
//
// This is the knowledge-transfer step of the cold-start pipeline: items
// unseen during bucket training still inherit their bucket's learned
// representation. The copy is a full overwrite, so running it twice leaves
// dst in the same state as running it once, and src is never mutated.
func ExpandEmbeddings(src, dst *EmbeddingTable, assignment BucketAssignment) error {
	if src.Dim() != dst.Dim() {
		return fmt.Errorf("expand %s -> %s: width mismatch: %d != %d", src.Name(), dst.Name(), src.Dim(), dst.Dim())
	}
	if len(assignment) != dst.Count() {
		return fmt.Errorf("expand %s -> %s: assignment length %d does not match destination rows %d",
			src.Name(), dst.Name(), len(assignment), dst.Count())
	}

	for i, b := range assignment {
		srcRow, err := src.Row(b)
		if err != nil {
			return fmt.Errorf("expand %s -> %s: %w", src.Name(), dst.Name(), err)
		}
		copy(dst.rows[i], srcRow)
	}

	return nil
}
