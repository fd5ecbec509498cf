// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

// Package model implements staged matrix-factorization models for
// collaborative filtering.
//
// Two model families are provided:
//
//   - ColdStartModel trains in ordered stages: first on coarse item buckets
//     ("item_buckets"), then on the full item space ("no_buckets"). On the
//     transition between the two, each bucket's learned embedding and bias
//     rows are copied into every item belonging to that bucket, so items
//     with little or no interaction history start fine-grained training
//     from a bucket-informed point instead of random noise.
//
//   - HybridModel fuses user and item embeddings borrowed (deep-copied)
//     from a previously trained model with an item-metadata sub-network
//     and a combined scoring sub-network that outputs one score per
//     (user, item) pair.
//
// # Thread Safety
//
// Models are not safe for concurrent mutation. Stage transitions, training
// updates, and freeze/unfreeze calls must be serialized by the caller;
// the forward pass may be shared only once the model is no longer being
// mutated.
package model
