// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

// Package trainer fits factorization models to implicit-feedback
// interactions with pointwise logistic loss. Gradients for the biased
// dot-product score are closed-form, so no autograd machinery is needed.
package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/openrec/thaw/internal/model"
)

// Interaction is one observed (user, item) pair with a binary label:
// 1 for an observed interaction, 0 for a sampled negative.
type Interaction struct {
	UserID int
	ItemID int
	Label  float64
}

// Config contains training configuration.
type Config struct {
	// Epochs is the number of passes over the interactions. Default: 10.
	Epochs int

	// LRDecayEvery decays the learning rate every N epochs. Default: 10.
	LRDecayEvery int

	// LRDecayFactor is the multiplicative decay. Default: 0.95.
	LRDecayFactor float64

	// Seed for the per-epoch shuffle. If 0, uses a default seed.
	Seed int64
}

// DefaultConfig returns default training configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:        10,
		LRDecayEvery:  10,
		LRDecayFactor: 0.95,
		Seed:          42,
	}
}

// Model is a factorization model the trainer can fit: it exposes the
// bias/latent tables its current stage scores with and that stage's
// optimizer settings. Both ColdStartModel and MatrixFactorizationModel
// satisfy it.
type Model interface {
	ActiveScoringTables() model.ScoringTables
	ActiveOptimizer() (float64, model.OptimizerKind)
	Train()
	Eval()
}

// Result summarizes a training run.
type Result struct {
	Epochs    int
	FinalLoss float64
}

// Fit trains the model's active stage on the interactions. Each epoch
// shuffles the interactions with the configured seed and applies one
// stochastic update per sample. The model is left in evaluation mode.
func Fit(ctx context.Context, m Model, interactions []Interaction, cfg Config, logger zerolog.Logger) (*Result, error) {
	if len(interactions) == 0 {
		return nil, fmt.Errorf("no interactions to train on")
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 10
	}
	if cfg.LRDecayEvery <= 0 {
		cfg.LRDecayEvery = 10
	}
	if cfg.LRDecayFactor <= 0 || cfg.LRDecayFactor > 1 {
		cfg.LRDecayFactor = 0.95
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	tables := m.ActiveScoringTables()
	lr, kind := m.ActiveOptimizer()

	var opt optimizer
	switch kind {
	case model.OptimizerAdam:
		opt = newAdam()
	case model.OptimizerSGD:
		opt = sgd{}
	default:
		return nil, fmt.Errorf("unknown optimizer kind %v", kind)
	}

	//nolint:gosec // G404: math/rand is acceptable for training shuffles (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	order := make([]int, len(interactions))
	for i := range order {
		order[i] = i
	}

	m.Train()
	defer m.Eval()

	var epochLoss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("training cancelled: %w", ctx.Err())
		default:
		}

		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		epochLoss = 0
		for _, idx := range order {
			loss, err := step(tables, opt, interactions[idx], lr)
			if err != nil {
				return nil, err
			}
			epochLoss += loss
		}
		epochLoss /= float64(len(interactions))

		if (epoch+1)%cfg.LRDecayEvery == 0 {
			lr *= cfg.LRDecayFactor
		}

		logger.Debug().
			Int("epoch", epoch+1).
			Float64("loss", epochLoss).
			Float64("lr", lr).
			Msg("epoch complete")
	}

	logger.Info().
		Int("epochs", cfg.Epochs).
		Float64("loss", epochLoss).
		Msg("training complete")

	return &Result{Epochs: cfg.Epochs, FinalLoss: epochLoss}, nil
}

// step applies one stochastic update for a single interaction and returns
// its logistic loss. Tables whose gradients are disabled are scored but
// not updated.
func step(t model.ScoringTables, opt optimizer, in Interaction, lr float64) (float64, error) {
	userVec, err := t.UserEmbeddings.Row(in.UserID)
	if err != nil {
		return 0, err
	}
	userBias, err := t.UserBiases.Row(in.UserID)
	if err != nil {
		return 0, err
	}

	itemID, err := t.MapItem(in.ItemID)
	if err != nil {
		return 0, err
	}
	itemVec, err := t.ItemEmbeddings.Row(itemID)
	if err != nil {
		return 0, err
	}
	itemBias, err := t.ItemBiases.Row(itemID)
	if err != nil {
		return 0, err
	}

	var dot float64
	for f := range userVec {
		dot += userVec[f] * itemVec[f]
	}
	score := dot + userBias[0] + itemBias[0]

	pred := sigmoid(score)
	grad := pred - in.Label

	// d(score)/d(userVec) = itemVec and vice versa; snapshot the user
	// row so the item update sees pre-update values.
	userSnap := make([]float64, len(userVec))
	copy(userSnap, userVec)

	if t.UserEmbeddings.RequiresGrad() {
		gradVec := make([]float64, len(itemVec))
		for f := range itemVec {
			gradVec[f] = grad * itemVec[f]
		}
		opt.update(t.UserEmbeddings.Name(), in.UserID, userVec, gradVec, lr)
	}
	if t.ItemEmbeddings.RequiresGrad() {
		gradVec := make([]float64, len(userSnap))
		for f := range userSnap {
			gradVec[f] = grad * userSnap[f]
		}
		opt.update(t.ItemEmbeddings.Name(), itemID, itemVec, gradVec, lr)
	}
	if t.UserBiases.RequiresGrad() {
		opt.update(t.UserBiases.Name(), in.UserID, userBias, []float64{grad}, lr)
	}
	if t.ItemBiases.RequiresGrad() {
		opt.update(t.ItemBiases.Name(), itemID, itemBias, []float64{grad}, lr)
	}

	return logisticLoss(score, in.Label), nil
}

// MeanLoss computes the mean logistic loss of the model's current stage
// over the interactions, without updating any parameters.
func MeanLoss(m Model, interactions []Interaction) (float64, error) {
	if len(interactions) == 0 {
		return 0, fmt.Errorf("no interactions to evaluate")
	}

	t := m.ActiveScoringTables()

	var total float64
	for _, in := range interactions {
		userVec, err := t.UserEmbeddings.Row(in.UserID)
		if err != nil {
			return 0, err
		}
		userBias, err := t.UserBiases.Row(in.UserID)
		if err != nil {
			return 0, err
		}

		itemID, err := t.MapItem(in.ItemID)
		if err != nil {
			return 0, err
		}
		itemVec, err := t.ItemEmbeddings.Row(itemID)
		if err != nil {
			return 0, err
		}
		itemBias, err := t.ItemBiases.Row(itemID)
		if err != nil {
			return 0, err
		}

		var dot float64
		for f := range userVec {
			dot += userVec[f] * itemVec[f]
		}
		total += logisticLoss(dot+userBias[0]+itemBias[0], in.Label)
	}

	return total / float64(len(interactions)), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// logisticLoss is binary cross-entropy on a raw score, computed in the
// numerically stable log-sum-exp form.
func logisticLoss(score, label float64) float64 {
	// max(s, 0) - s*y + log(1 + exp(-|s|))
	return math.Max(score, 0) - score*label + math.Log1p(math.Exp(-math.Abs(score)))
}
