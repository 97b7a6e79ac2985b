// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nn implements the layers used as stages of a staged network: linear maps, masked linear
// maps and recurrent cells (GRU and leaky RNN).
//
// Layers create their variables in a context.Context at construction, and read their current values
// on every call. Each layer declares its call signature with a Capability tag:
//
//   - CapabilityStateless layers implement StatelessLayer: out = Forward(x, key).
//   - CapabilityStateful layers implement StatefulLayer: newState = Step(x, state, key).
//
// Layers that ignore randomness still take a key, so every layer has a uniform signature.
package nn

import (
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/pkg/errors"
)

// Capability tags the call signature of a layer.
type Capability int

const (
	// CapabilityUnknown is the zero value, and is never valid.
	CapabilityUnknown Capability = iota

	// CapabilityStateless layers are called as Forward(x, key).
	CapabilityStateless

	// CapabilityStateful layers are called as Step(x, state, key).
	CapabilityStateful
)

// String implements fmt.Stringer.
func (c Capability) String() string {
	switch c {
	case CapabilityStateless:
		return "stateless"
	case CapabilityStateful:
		return "stateful"
	default:
		return "unknown"
	}
}

// Layer is the common interface of all layers.
type Layer interface {
	// Capability tags how the layer is called, see StatelessLayer and StatefulLayer.
	Capability() Capability

	// InputSize is the expected length of the input vector.
	InputSize() int

	// OutputSize is the length of the output (or new state) vector.
	OutputSize() int

	// Variables returns the variables owned by the layer.
	Variables() []*context.Variable
}

// StatelessLayer maps an input to an output.
type StatelessLayer interface {
	Layer
	Forward(x *tensors.Tensor, key random.Key) *tensors.Tensor
}

// StatefulLayer maps an input and its previous state to a new state.
type StatefulLayer interface {
	Layer
	Step(x, state *tensors.Tensor, key random.Key) *tensors.Tensor
}

// InputMaskable is implemented by layers whose input weights can carry a fixed connectivity mask.
//
// The mask has shape (InputBlocks()*OutputSize(), InputSize()): the input weights of layers with
// several gates are stacked by rows, one block per gate. Once set, the effective input weights are
// weights⊙mask on every call, and the stored weights are multiplied by the mask once.
// SetInputMask must be called before the layer is used.
type InputMaskable interface {
	InputBlocks() int
	SetInputMask(mask *tensors.Tensor) error
}

// BiasZeroer is implemented by layers that can reset their bias to zero.
type BiasZeroer interface {
	ZeroBias() error
}

// Affine is implemented by layers that may report whether their output is an affine function of
// their input.
type Affine interface {
	IsAffine() bool
}

// checkInput panics with a shape error if x is not a vector of the given size.
func checkInput(layerName string, x *tensors.Tensor, size int) {
	if err := x.Shape().CheckDims(size); err != nil {
		panic(errors.WithMessagef(err, "%s input", layerName))
	}
}

// nonNilVariables returns the non-nil variables, in order.
func nonNilVariables(vars ...*context.Variable) []*context.Variable {
	out := make([]*context.Variable, 0, len(vars))
	for _, v := range vars {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
