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

// LinearLayer is a fully-connected transform y = W*x + b with weights
// stored as [out][in] rows.
type LinearLayer struct {
	In      int
	Out     int
	Weights [][]float64
	Bias    []float64
}

// NewLinearLayer creates a linear layer with Xavier-normal initialized
// weights (stddev = sqrt(2 / (in + out))) and zero bias.
func NewLinearLayer(in, out int, rng *rand.Rand) *LinearLayer {
	stddev := math.Sqrt(2.0 / float64(in+out))

	weights := make([][]float64, out)
	for o := range weights {
		weights[o] = make([]float64, in)
		for i := range weights[o] {
			weights[o][i] = rng.NormFloat64() * stddev
		}
	}

	return &LinearLayer{
		In:      in,
		Out:     out,
		Weights: weights,
		Bias:    make([]float64, out),
	}
}

// Forward applies the transform to a single input vector.
func (l *LinearLayer) Forward(x []float64) []float64 {
	out := make([]float64, l.Out)
	for o := 0; o < l.Out; o++ {
		sum := l.Bias[o]
		w := l.Weights[o]
		for i := range w {
			sum += w[i] * x[i]
		}
		out[o] = sum
	}
	return out
}

// stateInto records the layer's weights and bias under the given key.
func (l *LinearLayer) stateInto(sd StateDict, key string) {
	weights := make([][]float64, len(l.Weights))
	for i := range l.Weights {
		weights[i] = make([]float64, len(l.Weights[i]))
		copy(weights[i], l.Weights[i])
	}
	sd[key+".weight"] = weights

	bias := make([]float64, len(l.Bias))
	copy(bias, l.Bias)
	sd[key+".bias"] = [][]float64{bias}
}

// stateFrom restores the layer's weights and bias from the given key.
func (l *LinearLayer) stateFrom(sd StateDict, key string) error {
	weights, ok := sd[key+".weight"]
	if !ok {
		return fmt.Errorf("state dict missing entry %q", key+".weight")
	}
	if len(weights) != l.Out {
		return fmt.Errorf("layer %s: weight rows mismatch: got %d, want %d", key, len(weights), l.Out)
	}
	for o := range weights {
		if len(weights[o]) != l.In {
			return fmt.Errorf("layer %s: weight row %d width mismatch: got %d, want %d", key, o, len(weights[o]), l.In)
		}
		copy(l.Weights[o], weights[o])
	}

	bias, ok := sd[key+".bias"]
	if !ok {
		return fmt.Errorf("state dict missing entry %q", key+".bias")
	}
	if len(bias) != 1 || len(bias[0]) != l.Out {
		return fmt.Errorf("layer %s: bias shape mismatch", key)
	}
	copy(l.Bias, bias[0])

	return nil
}

// leakyReLU applies the leaky rectifier with the conventional 0.01
// negative slope.
func leakyReLU(v float64) float64 {
	if v >= 0 {
		return v
	}
	return 0.01 * v
}

// applyLeakyReLU rectifies a vector in place and returns it.
func applyLeakyReLU(vec []float64) []float64 {
	for i, v := range vec {
		vec[i] = leakyReLU(v)
	}
	return vec
}

// applyDropout zeroes each element with probability p and rescales the
// survivors by 1/(1-p) (inverted dropout), so evaluation needs no
// rescaling. Returns a new slice; p <= 0 returns the input unchanged.
func applyDropout(vec []float64, p float64, rng *rand.Rand) []float64 {
	if p <= 0 {
		return vec
	}

	keep := 1.0 - p
	out := make([]float64, len(vec))
	for i, v := range vec {
		if rng.Float64() < keep {
			out[i] = v / keep
		}
	}
	return out
}
