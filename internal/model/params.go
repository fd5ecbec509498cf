// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

package model

import (
	"fmt"
	"strings"
)

// Parameter is a named handle to a trainable embedding table. Stage
// registries resolve their parameter-name prefixes to these handles once
// at construction, so nothing downstream matches strings at training time.
type Parameter struct {
	Name  string
	Table *EmbeddingTable
}

// StateDict is a named parameter mapping used for persistence and for
// copying state between models. Values are deep copies.
type StateDict map[string][][]float64

// matchesAnyPrefix reports whether name starts with one of the prefixes.
func matchesAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// resolveByPrefix selects the parameters whose names match any of the
// given prefixes. Every prefix must match at least one parameter;
// a prefix that binds nothing is a configuration error.
func resolveByPrefix(params []*Parameter, prefixes []string) ([]*Parameter, error) {
	var out []*Parameter
	for _, p := range prefixes {
		matched := false
		for _, param := range params {
			if strings.HasPrefix(param.Name, p) {
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("parameter prefix %q matches no parameters", p)
		}
	}

	for _, param := range params {
		if matchesAnyPrefix(param.Name, prefixes) {
			out = append(out, param)
		}
	}
	return out, nil
}

// tableStateInto records a table's values into a state dict.
func tableStateInto(sd StateDict, t *EmbeddingTable) {
	sd[t.Name()] = t.Values()
}

// tableStateFrom restores a table's values from a state dict entry.
func tableStateFrom(sd StateDict, t *EmbeddingTable) error {
	values, ok := sd[t.Name()]
	if !ok {
		return fmt.Errorf("state dict missing entry %q", t.Name())
	}
	return t.SetValues(values)
}
