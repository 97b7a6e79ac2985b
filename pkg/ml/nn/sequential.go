// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"slices"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// NLayerLinear is a stack of Linear layers with a nonlinearity between consecutive layers (but not
// after the last one). It's a stateless layer, used as encoder or readout.
//
// It doesn't implement InputMaskable: the rows of its first layer are intermediate units, not
// the units of its output, so a population input mask has no meaning for it.
//
// Layer i creates its variables in the sub-scope "layer_<i>".
type NLayerLinear struct {
	layers       []*Linear
	nonlinearity activations.Type
}

var (
	_ StatelessLayer = (*NLayerLinear)(nil)
	_ BiasZeroer     = (*NLayerLinear)(nil)
	_ Affine         = (*NLayerLinear)(nil)
)

// NewNLayerLinear creates len(hiddenSizes)+1 Linear layers mapping inputSize through each of the
// hiddenSizes to outputSize.
func NewNLayerLinear(ctx *context.Context, hiddenSizes []int, inputSize, outputSize int, useBias bool,
	nonlinearity activations.Type, key random.Key) (*NLayerLinear, error) {
	sizes := slices.Concat([]int{inputSize}, hiddenSizes, []int{outputSize})
	keys := key.Split(len(sizes) - 1)
	n := &NLayerLinear{nonlinearity: nonlinearity}
	for ii := range len(sizes) - 1 {
		l, err := NewLinear(ctx.Inf("layer_%d", ii), sizes[ii], sizes[ii+1], useBias, keys[ii])
		if err != nil {
			return nil, errs.Configurationf("nn.NewNLayerLinear(): layer %d: %v", ii, err)
		}
		n.layers = append(n.layers, l)
	}
	return n, nil
}

// NewTwoLayerLinear is a shortcut to NewNLayerLinear with a single hidden layer.
func NewTwoLayerLinear(ctx *context.Context, hiddenSize, inputSize, outputSize int, useBias bool,
	nonlinearity activations.Type, key random.Key) (*NLayerLinear, error) {
	return NewNLayerLinear(ctx, []int{hiddenSize}, inputSize, outputSize, useBias, nonlinearity, key)
}

// Capability implements Layer.
func (n *NLayerLinear) Capability() Capability { return CapabilityStateless }

// InputSize implements Layer.
func (n *NLayerLinear) InputSize() int { return n.layers[0].InputSize() }

// OutputSize implements Layer.
func (n *NLayerLinear) OutputSize() int { return n.layers[len(n.layers)-1].OutputSize() }

// Variables implements Layer.
func (n *NLayerLinear) Variables() []*context.Variable {
	var vars []*context.Variable
	for _, l := range n.layers {
		vars = append(vars, l.Variables()...)
	}
	return vars
}

// Layers returns the linear layers, in order.
func (n *NLayerLinear) Layers() []*Linear { return slices.Clone(n.layers) }

// Forward implements StatelessLayer.
func (n *NLayerLinear) Forward(x *tensors.Tensor, key random.Key) *tensors.Tensor {
	for ii, l := range n.layers {
		x = l.Forward(x, key)
		if ii < len(n.layers)-1 {
			x = activations.Apply(n.nonlinearity, x)
		}
	}
	return x
}

// IsAffine implements Affine: true for a single layer, or if there is no nonlinearity in between.
func (n *NLayerLinear) IsAffine() bool {
	return len(n.layers) == 1 || n.nonlinearity == activations.TypeNone
}

// ZeroBias implements BiasZeroer for the last layer, the one producing the outputs.
func (n *NLayerLinear) ZeroBias() error {
	return n.layers[len(n.layers)-1].ZeroBias()
}
