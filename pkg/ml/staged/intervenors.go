// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package staged

import (
	"maps"
	"slices"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/xslices"
)

// Intervenor is a hook run before a stage: it may modify the stage input and the state.
// Hooks of a stage run in registration order, each one seeing the changes of the previous.
type Intervenor func(in *tensors.Tensor, st state.NetworkState) (*tensors.Tensor, state.NetworkState)

// Intervenors maps stage labels to their ordered hooks. A nil Intervenors has no hooks.
type Intervenors map[string][]Intervenor

// Add returns a new Intervenors with the hooks appended to those of the given stage.
func (iv Intervenors) Add(label string, hooks ...Intervenor) Intervenors {
	out := iv.Clone()
	out[label] = append(out[label], hooks...)
	return out
}

// Merge returns a new Intervenors with the hooks of other appended after those of iv.
func (iv Intervenors) Merge(other Intervenors) Intervenors {
	out := iv.Clone()
	for label, hooks := range other {
		out[label] = append(out[label], hooks...)
	}
	return out
}

// Clone returns a copy, with its own hook slices.
func (iv Intervenors) Clone() Intervenors {
	out := make(Intervenors, len(iv))
	for label, hooks := range iv {
		out[label] = slices.Clone(hooks)
	}
	return out
}

// Count returns the total number of hooks.
func (iv Intervenors) Count() int {
	count := 0
	for hooks := range maps.Values(iv) {
		count += len(hooks)
	}
	return count
}

// Validate returns a configuration error if any hook is registered for a label that is not a
// stage of spec.
func (iv Intervenors) Validate(spec *Spec) error {
	for _, label := range xslices.SortedKeys(iv) {
		if _, found := spec.Index(label); !found {
			return errs.Configurationf("intervenors registered for unknown stage %q, stages are %v", label, spec.Labels())
		}
	}
	return nil
}
