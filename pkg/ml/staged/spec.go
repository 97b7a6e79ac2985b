// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package staged

import (
	"iter"
	"slices"

	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/nn"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/sets"
)

// Selector selects the input of a stage from the raw step input and the current state.
type Selector struct {
	name string
	fn   func(input *tensors.Tensor, st state.NetworkState) *tensors.Tensor
}

// SelectorFunc creates a Selector with a custom function. The name is used for printing.
func SelectorFunc(name string, fn func(input *tensors.Tensor, st state.NetworkState) *tensors.Tensor) Selector {
	return Selector{name: name, fn: fn}
}

// FromRawInput selects the raw step input, flattened to a vector.
func FromRawInput() Selector {
	return SelectorFunc("raw_input", func(input *tensors.Tensor, _ state.NetworkState) *tensors.Tensor {
		return ops.Flatten(input)
	})
}

// FromState selects a field of the current state. It panics with a state error if the field is absent.
func FromState(f state.Field) Selector {
	return SelectorFunc(f.String(), func(_ *tensors.Tensor, st state.NetworkState) *tensors.Tensor {
		return f.MustGet(st)
	})
}

// Select returns the stage input.
func (s Selector) Select(input *tensors.Tensor, st state.NetworkState) *tensors.Tensor {
	return s.fn(input, st)
}

// String returns the selector name.
func (s Selector) String() string { return s.name }

// Stage is one named step of a staged model: it reads its input with WhereInput, calls Callable
// and writes the result to the state field WhereState.
type Stage struct {
	Label      string
	Callable   Callable
	WhereInput Selector
	WhereState state.Field
}

// Spec is an immutable ordered sequence of stages with unique labels, with their callables resolved.
type Spec struct {
	stages []Stage
	fns    []StepFn
}

// Len returns the number of stages.
func (s *Spec) Len() int { return len(s.stages) }

// Stage returns the ii-th stage.
func (s *Spec) Stage(ii int) Stage { return s.stages[ii] }

// Labels returns the stage labels, in order.
func (s *Spec) Labels() []string {
	labels := make([]string, len(s.stages))
	for ii, stage := range s.stages {
		labels[ii] = stage.Label
	}
	return labels
}

// Index returns the position of the stage with the given label.
func (s *Spec) Index(label string) (int, bool) {
	idx := slices.IndexFunc(s.stages, func(stage Stage) bool { return stage.Label == label })
	return idx, idx >= 0
}

// All iterates over the stages, in order.
func (s *Spec) All() iter.Seq2[int, Stage] {
	return func(yield func(int, Stage) bool) {
		for ii, stage := range s.stages {
			if !yield(ii, stage) {
				return
			}
		}
	}
}

// SpecBuilder accumulates stages. Errors are reported by Done.
type SpecBuilder struct {
	stages []Stage
}

// NewSpecBuilder creates an empty SpecBuilder.
func NewSpecBuilder() *SpecBuilder {
	return &SpecBuilder{}
}

// Add appends a stage.
func (b *SpecBuilder) Add(label string, callable Callable, whereInput Selector, whereState state.Field) *SpecBuilder {
	b.stages = append(b.stages, Stage{Label: label, Callable: callable, WhereInput: whereInput, WhereState: whereState})
	return b
}

// AddIf appends a stage only if cond is true.
func (b *SpecBuilder) AddIf(cond bool, label string, callable Callable, whereInput Selector, whereState state.Field) *SpecBuilder {
	if cond {
		b.Add(label, callable, whereInput, whereState)
	}
	return b
}

// Done validates the stages and resolves their callables. It returns a configuration error for
// empty or duplicate labels, stages without input selector, invalid state fields, and callables
// whose arity cannot be determined.
func (b *SpecBuilder) Done() (*Spec, error) {
	spec := &Spec{
		stages: slices.Clone(b.stages),
		fns:    make([]StepFn, len(b.stages)),
	}
	seen := sets.Make[string](len(b.stages))
	for ii, stage := range spec.stages {
		if stage.Label == "" {
			return nil, errs.Configurationf("stage #%d has an empty label", ii)
		}
		if seen.Has(stage.Label) {
			return nil, errs.Configurationf("duplicate stage label %q", stage.Label)
		}
		seen.Insert(stage.Label)
		if stage.WhereInput.fn == nil {
			return nil, errs.Configurationf("stage %q has no input selector", stage.Label)
		}
		if !stage.WhereState.IsAField() {
			return nil, errs.Configurationf("stage %q writes to invalid state field %s", stage.Label, stage.WhereState)
		}
		fn, err := stage.Callable.Adapt()
		if err != nil {
			return nil, errs.Configurationf("stage %q: %v", stage.Label, err)
		}
		spec.fns[ii] = fn
	}
	return spec, nil
}

// isStateful returns whether the ii-th stage reads its previous sub-state.
func (s *Spec) isStateful(ii int) bool {
	return s.stages[ii].Callable.Capability() == nn.CapabilityStateful
}
