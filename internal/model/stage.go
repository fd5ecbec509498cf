// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// OptimizerKind identifies the optimizer a stage trains with.
type OptimizerKind int

const (
	// OptimizerSGD is plain stochastic gradient descent.
	OptimizerSGD OptimizerKind = iota
	// OptimizerAdam is the adaptive-moment optimizer.
	OptimizerAdam
)

// String returns the configuration name for the optimizer kind.
func (k OptimizerKind) String() string {
	switch k {
	case OptimizerSGD:
		return "sgd"
	case OptimizerAdam:
		return "adam"
	default:
		return "unknown"
	}
}

// ParseOptimizerKind parses a configuration name into an OptimizerKind.
func ParseOptimizerKind(s string) (OptimizerKind, error) {
	switch strings.ToLower(s) {
	case "sgd":
		return OptimizerSGD, nil
	case "adam":
		return OptimizerAdam, nil
	default:
		return 0, fmt.Errorf("unknown optimizer %q (supported: sgd, adam)", s)
	}
}

// StageConfig declares one training stage: the parameter-name prefixes it
// optimizes, its learning rate, and its optimizer kind. Stages are
// declared in training order at model construction.
type StageConfig struct {
	Name          string
	ParamPrefixes []string
	LearningRate  float64
	Optimizer     OptimizerKind
}

// Stage is a declared stage with its parameter group resolved to table
// handles. Resolution happens once, at registry construction.
type Stage struct {
	StageConfig
	Params []*Parameter
}

type transitionKey struct {
	from, to string
}

// StageRegistry holds the ordered stages of a multi-stage model and
// tracks which one is current. Advancing runs the hook registered for
// that specific transition (bucket expansion, for the cold-start model)
// and emits a status notification; the notification is observability
// only and never affects control flow.
type StageRegistry struct {
	stages  []Stage
	index   map[string]int
	current int
	hooks   map[transitionKey]func() error
	logger  zerolog.Logger
}

// NewStageRegistry resolves each stage's parameter prefixes against the
// model's parameters and returns a registry positioned at the first stage.
func NewStageRegistry(logger zerolog.Logger, params []*Parameter, configs []StageConfig) (*StageRegistry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one stage must be declared")
	}

	r := &StageRegistry{
		index:  make(map[string]int, len(configs)),
		hooks:  make(map[transitionKey]func() error),
		logger: logger,
	}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("stage name must not be empty")
		}
		if _, ok := r.index[cfg.Name]; ok {
			return nil, fmt.Errorf("duplicate stage %q", cfg.Name)
		}

		resolved, err := resolveByPrefix(params, cfg.ParamPrefixes)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", cfg.Name, err)
		}

		r.index[cfg.Name] = len(r.stages)
		r.stages = append(r.stages, Stage{StageConfig: cfg, Params: resolved})
	}

	return r, nil
}

// Names returns the stage names in declaration order.
func (r *StageRegistry) Names() []string {
	names := make([]string, len(r.stages))
	for i := range r.stages {
		names[i] = r.stages[i].Name
	}
	return names
}

// Current returns the current stage.
func (r *StageRegistry) Current() Stage {
	return r.stages[r.current]
}

// CurrentName returns the current stage name.
func (r *StageRegistry) CurrentName() string {
	return r.stages[r.current].Name
}

// OnTransition registers a hook invoked when Advance moves from one
// specific stage to another. Only that exact transition triggers it.
func (r *StageRegistry) OnTransition(from, to string, hook func() error) {
	r.hooks[transitionKey{from: from, to: to}] = hook
}

// Advance moves the registry to the named stage.
//
// An unregistered name fails, listing the valid names, and leaves the
// current stage unchanged. Moving to an earlier stage fails: the
// bucket-to-item expansion has no defined reverse. Otherwise the hook
// registered for this transition (if any) runs first, then the current
// stage is set unconditionally, hook or not.
func (r *StageRegistry) Advance(target string) error {
	idx, ok := r.index[target]
	if !ok {
		return fmt.Errorf("%q is not a valid stage, please choose one of %v", target, r.Names())
	}
	if idx < r.current {
		return fmt.Errorf("cannot advance from stage %q back to %q: earlier stages cannot be revisited", r.CurrentName(), target)
	}

	if hook, ok := r.hooks[transitionKey{from: r.CurrentName(), to: target}]; ok {
		if err := hook(); err != nil {
			return fmt.Errorf("transition %q -> %q: %w", r.CurrentName(), target, err)
		}
	}

	r.current = idx
	r.logger.Info().Str("stage", target).Msg("set stage")

	return nil
}
