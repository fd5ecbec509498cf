// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"errors"
	"strings"
	"testing"
)

func testParams() []*Parameter {
	tables := []*EmbeddingTable{
		NewZeroEmbedding("user_biases", 2, 1),
		NewZeroEmbedding("user_embeddings", 2, 4),
		NewZeroEmbedding("item_bucket_biases", 2, 1),
		NewZeroEmbedding("item_bucket_embeddings", 2, 4),
		NewZeroEmbedding("item_biases", 2, 1),
		NewZeroEmbedding("item_embeddings", 2, 4),
	}

	params := make([]*Parameter, len(tables))
	for i, table := range tables {
		params[i] = &Parameter{Name: table.Name(), Table: table}
	}
	return params
}

func testStageConfigs() []StageConfig {
	return []StageConfig{
		{
			Name:          "first",
			ParamPrefixes: []string{"user_embed", "user_bias", "item_bucket_embed", "item_bucket_bias"},
			LearningRate:  1e-3,
			Optimizer:     OptimizerAdam,
		},
		{
			Name:          "second",
			ParamPrefixes: []string{"user_embed", "user_bias", "item_embed", "item_bias"},
			LearningRate:  1e-2,
			Optimizer:     OptimizerSGD,
		},
	}
}

func TestNewStageRegistry(t *testing.T) {
	tests := []struct {
		name    string
		configs []StageConfig
		wantErr string
	}{
		{
			name:    "valid stages",
			configs: testStageConfigs(),
		},
		{
			name:    "no stages",
			configs: nil,
			wantErr: "at least one stage",
		},
		{
			name: "duplicate stage name",
			configs: []StageConfig{
				{Name: "first", ParamPrefixes: []string{"user_bias"}},
				{Name: "first", ParamPrefixes: []string{"user_bias"}},
			},
			wantErr: "duplicate stage",
		},
		{
			name: "unmatched prefix",
			configs: []StageConfig{
				{Name: "first", ParamPrefixes: []string{"nonexistent"}},
			},
			wantErr: "matches no parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewStageRegistry(testLogger(), testParams(), tt.configs)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("NewStageRegistry() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStageRegistry() error = %v", err)
			}
			if r.CurrentName() != "first" {
				t.Errorf("CurrentName() = %q, want %q", r.CurrentName(), "first")
			}
		})
	}
}

func TestStageRegistry_ResolvesParamGroups(t *testing.T) {
	r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
	if err != nil {
		t.Fatalf("NewStageRegistry() error = %v", err)
	}

	first := r.Current()
	if len(first.Params) != 4 {
		t.Fatalf("first stage resolved %d params, want 4", len(first.Params))
	}
	for _, p := range first.Params {
		if strings.HasPrefix(p.Name, "item_embed") || strings.HasPrefix(p.Name, "item_bias") {
			t.Errorf("first stage resolved %q, which belongs to the second stage", p.Name)
		}
	}
}

func TestStageRegistry_AdvanceUnknown(t *testing.T) {
	r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
	if err != nil {
		t.Fatalf("NewStageRegistry() error = %v", err)
	}

	err = r.Advance("bogus")
	if err == nil {
		t.Fatal("Advance(bogus) should fail")
	}
	if !strings.Contains(err.Error(), "not a valid stage") {
		t.Errorf("error = %q, want it to name the invalid stage", err.Error())
	}
	if !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Errorf("error = %q, want it to list the valid stages", err.Error())
	}
	if r.CurrentName() != "first" {
		t.Errorf("current stage changed to %q after failed advance", r.CurrentName())
	}
}

func TestStageRegistry_AdvanceBackward(t *testing.T) {
	r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
	if err != nil {
		t.Fatalf("NewStageRegistry() error = %v", err)
	}

	if err := r.Advance("second"); err != nil {
		t.Fatalf("Advance(second) error = %v", err)
	}
	if err := r.Advance("first"); err == nil {
		t.Error("Advance back to an earlier stage should fail")
	}
	if r.CurrentName() != "second" {
		t.Errorf("current stage changed to %q after failed advance", r.CurrentName())
	}
}

func TestStageRegistry_TransitionHook(t *testing.T) {
	t.Run("hook runs on exact transition", func(t *testing.T) {
		r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
		if err != nil {
			t.Fatalf("NewStageRegistry() error = %v", err)
		}

		ran := false
		r.OnTransition("first", "second", func() error {
			ran = true
			return nil
		})

		if err := r.Advance("second"); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		if !ran {
			t.Error("transition hook did not run")
		}
	})

	t.Run("hook error aborts without advancing", func(t *testing.T) {
		r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
		if err != nil {
			t.Fatalf("NewStageRegistry() error = %v", err)
		}

		hookErr := errors.New("expansion failed")
		r.OnTransition("first", "second", func() error { return hookErr })

		err = r.Advance("second")
		if !errors.Is(err, hookErr) {
			t.Fatalf("Advance() error = %v, want wrapped hook error", err)
		}
		if r.CurrentName() != "first" {
			t.Errorf("stage advanced to %q despite hook failure", r.CurrentName())
		}
	})

	t.Run("advance to current stage does not rerun hook", func(t *testing.T) {
		r, err := NewStageRegistry(testLogger(), testParams(), testStageConfigs())
		if err != nil {
			t.Fatalf("NewStageRegistry() error = %v", err)
		}

		runs := 0
		r.OnTransition("first", "second", func() error {
			runs++
			return nil
		})

		if err := r.Advance("second"); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		if err := r.Advance("second"); err != nil {
			t.Fatalf("repeat Advance() error = %v", err)
		}
		if runs != 1 {
			t.Errorf("hook ran %d times, want 1", runs)
		}
	})
}

func TestParseOptimizerKind(t *testing.T) {
	tests := []struct {
		in      string
		want    OptimizerKind
		wantErr bool
	}{
		{in: "sgd", want: OptimizerSGD},
		{in: "adam", want: OptimizerAdam},
		{in: "ADAM", want: OptimizerAdam},
		{in: "rmsprop", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOptimizerKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOptimizerKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseOptimizerKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
