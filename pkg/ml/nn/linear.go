// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/initializer"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// Linear performs a linear transformation y = weights · x + biases, with weights shaped
// [outputSize, inputSize]. It's a stateless layer.
//
// Variables ("weights", "biases") are created in the scope of the given context, and initialized
// uniformly in ±1/sqrt(inputSize).
type Linear struct {
	inputSize, outputSize int
	weights, biases       *context.Variable

	// mask, if set, is multiplied into the weights on every call.
	mask *tensors.Tensor
}

var (
	_ StatelessLayer = (*Linear)(nil)
	_ InputMaskable  = (*Linear)(nil)
	_ BiasZeroer     = (*Linear)(nil)
	_ Affine         = (*Linear)(nil)
)

// NewLinear creates a Linear layer. biases are only created if useBias is true.
func NewLinear(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (*Linear, error) {
	if inputSize < 0 || outputSize <= 0 {
		return nil, errs.Configurationf("nn.NewLinear(): invalid sizes input=%d, output=%d", inputSize, outputSize)
	}
	wKey, bKey := key.Split2()
	ctx = ctx.WithInitializer(initializer.UniformFanIn(inputSize))
	l := &Linear{
		inputSize:  inputSize,
		outputSize: outputSize,
		weights:    ctx.VariableWithShape("weights", shapes.Make(outputSize, inputSize), wKey),
	}
	if useBias {
		l.biases = ctx.VariableWithShape("biases", shapes.Make(outputSize), bKey)
	}
	return l, nil
}

// Capability implements Layer.
func (l *Linear) Capability() Capability { return CapabilityStateless }

// InputSize implements Layer.
func (l *Linear) InputSize() int { return l.inputSize }

// OutputSize implements Layer.
func (l *Linear) OutputSize() int { return l.outputSize }

// Variables implements Layer.
func (l *Linear) Variables() []*context.Variable { return nonNilVariables(l.weights, l.biases) }

// Weights returns the weights variable.
func (l *Linear) Weights() *context.Variable { return l.weights }

// Biases returns the biases variable, or nil if the layer has no bias.
func (l *Linear) Biases() *context.Variable { return l.biases }

// Mask returns the connectivity mask, or nil if there is none.
func (l *Linear) Mask() *tensors.Tensor { return l.mask }

// EffectiveWeights returns the weights used in the forward pass: weights⊙mask, if there is a mask.
func (l *Linear) EffectiveWeights() *tensors.Tensor {
	w := l.weights.Value()
	if l.mask != nil {
		w = ops.Mul(w, l.mask)
	}
	return w
}

// Forward implements StatelessLayer. The key is not used.
func (l *Linear) Forward(x *tensors.Tensor, _ random.Key) *tensors.Tensor {
	checkInput("nn.Linear", x, l.inputSize)
	var b *tensors.Tensor
	if l.biases != nil {
		b = l.biases.Value()
	}
	return Dense(x, l.EffectiveWeights(), b)
}

// IsAffine implements Affine: always true.
func (l *Linear) IsAffine() bool { return true }

// InputBlocks implements InputMaskable: a Linear layer has a single block.
func (l *Linear) InputBlocks() int { return 1 }

// SetInputMask implements InputMaskable. It combines with a previously set mask.
func (l *Linear) SetInputMask(mask *tensors.Tensor) error {
	if err := mask.Shape().CheckDims(l.outputSize, l.inputSize); err != nil {
		return err
	}
	if l.mask != nil {
		mask = ops.Mul(l.mask, mask)
	}
	l.mask = mask
	return l.weights.SetValue(ops.Mul(l.weights.Value(), mask))
}

// ZeroBias implements BiasZeroer. It's a no-op if the layer has no bias.
func (l *Linear) ZeroBias() error {
	if l.biases == nil {
		return nil
	}
	return l.biases.SetValue(tensors.Zeros(l.outputSize))
}
