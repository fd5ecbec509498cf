// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package trainer

import "math"

// optimizer applies one gradient update to a single parameter row.
// Rows are identified by table name and row index so stateful optimizers
// can keep per-row moment estimates.
type optimizer interface {
	update(table string, row int, params, grads []float64, lr float64)
}

// sgd is plain stochastic gradient descent. Stateless.
type sgd struct{}

func (sgd) update(_ string, _ int, params, grads []float64, lr float64) {
	for i := range params {
		params[i] -= lr * grads[i]
	}
}

// adam keeps exponential moving averages of gradients and squared
// gradients per parameter row, with per-row step counts for bias
// correction. Rows are touched at different rates in stochastic training,
// so a global step count would over-correct cold rows.
type adam struct {
	beta1 float64
	beta2 float64
	eps   float64

	m     map[string][][]float64
	v     map[string][][]float64
	steps map[string][]int
}

func newAdam() *adam {
	return &adam{
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make(map[string][][]float64),
		v:     make(map[string][][]float64),
		steps: make(map[string][]int),
	}
}

// ensure lazily allocates moment storage for a table row.
func (a *adam) ensure(table string, row, width int) ([]float64, []float64) {
	mt := a.m[table]
	vt := a.v[table]
	for len(mt) <= row {
		mt = append(mt, nil)
		vt = append(vt, nil)
		a.steps[table] = append(a.steps[table], 0)
	}
	if mt[row] == nil {
		mt[row] = make([]float64, width)
		vt[row] = make([]float64, width)
	}
	a.m[table] = mt
	a.v[table] = vt
	return mt[row], vt[row]
}

func (a *adam) update(table string, row int, params, grads []float64, lr float64) {
	mRow, vRow := a.ensure(table, row, len(params))

	a.steps[table][row]++
	t := float64(a.steps[table][row])

	biasCorr1 := 1.0 - math.Pow(a.beta1, t)
	biasCorr2 := 1.0 - math.Pow(a.beta2, t)

	for i := range params {
		g := grads[i]
		mRow[i] = a.beta1*mRow[i] + (1.0-a.beta1)*g
		vRow[i] = a.beta2*vRow[i] + (1.0-a.beta2)*g*g

		mHat := mRow[i] / biasCorr1
		vHat := vRow[i] / biasCorr2

		params[i] -= lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}
