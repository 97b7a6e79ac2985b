// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package staged

import (
	"fmt"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/nn"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// StepFn is the uniform signature every stage callable is adapted to: it takes the stage input,
// the current value of the sub-state the stage writes to (nil if absent) and a key, and returns
// the new value of the sub-state.
type StepFn func(in, sub *tensors.Tensor, key random.Key) *tensors.Tensor

// Callable is a stage computation tagged with its capability: whether it reads its previous
// sub-state (nn.CapabilityStateful) or not (nn.CapabilityStateless).
//
// Create it with Stateful, Stateless, Keyless or AdaptLayer. The capability is never inferred
// from the function itself.
type Callable struct {
	capability nn.Capability
	stateful   StepFn
	stateless  func(in *tensors.Tensor, key random.Key) *tensors.Tensor
	layer      nn.Layer
}

// Stateful wraps a function that takes the previous sub-state.
func Stateful(fn StepFn) Callable {
	return Callable{capability: nn.CapabilityStateful, stateful: fn}
}

// Stateless wraps a function that ignores the previous sub-state: its output becomes the new sub-state.
func Stateless(fn func(in *tensors.Tensor, key random.Key) *tensors.Tensor) Callable {
	return Callable{capability: nn.CapabilityStateless, stateless: fn}
}

// Keyless wraps a stateless function that doesn't use randomness.
func Keyless(fn func(in *tensors.Tensor) *tensors.Tensor) Callable {
	if fn == nil {
		return Callable{capability: nn.CapabilityStateless}
	}
	return Stateless(func(in *tensors.Tensor, _ random.Key) *tensors.Tensor { return fn(in) })
}

// AdaptLayer wraps a layer, using its declared nn.Capability.
func AdaptLayer(layer nn.Layer) Callable {
	c := Callable{layer: layer}
	if layer != nil {
		c.capability = layer.Capability()
	}
	return c
}

// Capability returns the declared capability of the callable.
func (c Callable) Capability() nn.Capability { return c.capability }

// Layer returns the wrapped layer, or nil if the callable wraps a function.
func (c Callable) Layer() nn.Layer { return c.layer }

// Adapt returns the callable with the uniform StepFn signature. It returns a configuration
// error if the arity of the callable cannot be determined: no function or layer was given, or
// the layer capability is unknown or inconsistent with the methods it implements.
func (c Callable) Adapt() (StepFn, error) {
	if c.layer != nil {
		return adaptLayer(c.layer)
	}
	switch {
	case c.capability == nn.CapabilityStateful && c.stateful != nil:
		return c.stateful, nil
	case c.capability == nn.CapabilityStateless && c.stateless != nil:
		fn := c.stateless
		return func(in, _ *tensors.Tensor, key random.Key) *tensors.Tensor { return fn(in, key) }, nil
	default:
		return nil, errs.Configurationf("arity of callable %s cannot be determined: no function given", c)
	}
}

func adaptLayer(layer nn.Layer) (StepFn, error) {
	switch layer.Capability() {
	case nn.CapabilityStateful:
		if l, ok := layer.(nn.StatefulLayer); ok {
			return l.Step, nil
		}
	case nn.CapabilityStateless:
		if l, ok := layer.(nn.StatelessLayer); ok {
			return func(in, _ *tensors.Tensor, key random.Key) *tensors.Tensor { return l.Forward(in, key) }, nil
		}
	}
	return nil, errs.Configurationf("arity of layer %T cannot be determined: capability %q doesn't match its methods",
		layer, layer.Capability())
}

// String implements fmt.Stringer.
func (c Callable) String() string {
	if c.layer != nil {
		return fmt.Sprintf("%s %T(%d→%d)", c.capability, c.layer, c.layer.InputSize(), c.layer.OutputSize())
	}
	return fmt.Sprintf("%s func", c.capability)
}
