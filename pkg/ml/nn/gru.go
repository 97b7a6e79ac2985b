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

// GRUGate identifies one of the 3 gates of a GRU cell, in the order their weights are stacked.
type GRUGate int

const (
	GRUGateReset GRUGate = iota
	GRUGateUpdate
	GRUGateCandidate
)

// NumGRUGates is the number of blocks in the stacked GRU weights.
const NumGRUGates = 3

// GRUGateRows returns the range [from, to) of rows of the stacked GRU weights (shaped
// [3*hiddenSize, ...]) that belong to the given gate.
func GRUGateRows(gate GRUGate, hiddenSize int) (from, to int) {
	from = int(gate) * hiddenSize
	return from, from + hiddenSize
}

// GRUCell is a gated recurrent unit:
//
//	r = σ(W_ir·x + b_r + W_hr·h)
//	z = σ(W_iz·x + b_z + W_hz·h)
//	n = tanh(W_in·x + b_n + r⊙(W_hn·h + b_nh))
//	h' = (1-z)⊙n + z⊙h
//
// Input and recurrent weights are stacked by rows in the order reset, update, candidate: "weight_ih" is
// shaped [3*hiddenSize, inputSize] and "weight_hh" [3*hiddenSize, hiddenSize]. With useBias, "bias" is
// shaped [3*hiddenSize] and "bias_n" (the candidate's recurrent bias) [hiddenSize].
type GRUCell struct {
	inputSize, hiddenSize int
	weightIH, weightHH    *context.Variable
	bias, biasN           *context.Variable

	inputMask *tensors.Tensor
}

var (
	_ StatefulLayer = (*GRUCell)(nil)
	_ InputMaskable = (*GRUCell)(nil)
)

// NewGRUCell creates a GRUCell, with all variables initialized uniformly in ±1/sqrt(hiddenSize).
func NewGRUCell(ctx *context.Context, inputSize, hiddenSize int, useBias bool, key random.Key) (*GRUCell, error) {
	if inputSize < 0 || hiddenSize <= 0 {
		return nil, errs.Configurationf("nn.NewGRUCell(): invalid sizes input=%d, hidden=%d", inputSize, hiddenSize)
	}
	keys := key.Split(4)
	ctx = ctx.WithInitializer(initializer.UniformFanIn(hiddenSize))
	c := &GRUCell{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		weightIH:   ctx.VariableWithShape("weight_ih", shapes.Make(NumGRUGates*hiddenSize, inputSize), keys[0]),
		weightHH:   ctx.VariableWithShape("weight_hh", shapes.Make(NumGRUGates*hiddenSize, hiddenSize), keys[1]),
	}
	if useBias {
		c.bias = ctx.VariableWithShape("bias", shapes.Make(NumGRUGates*hiddenSize), keys[2])
		c.biasN = ctx.VariableWithShape("bias_n", shapes.Make(hiddenSize), keys[3])
	}
	return c, nil
}

// NewOrthogonalGRUCell creates a GRUCell whose recurrent weights are initialized, for each gate,
// with an orthogonal matrix times scale.
func NewOrthogonalGRUCell(ctx *context.Context, inputSize, hiddenSize int, useBias bool, scale float64, key random.Key) (*GRUCell, error) {
	cellKey, orthoKey := key.Split2()
	c, err := NewGRUCell(ctx, inputSize, hiddenSize, useBias, cellKey)
	if err != nil {
		return nil, err
	}
	orthogonal := initializer.Orthogonal(scale)
	blocks := make([]*tensors.Tensor, NumGRUGates)
	for ii, k := range orthoKey.Split(NumGRUGates) {
		blocks[ii] = orthogonal(k, shapes.Make(hiddenSize, hiddenSize))
	}
	if err = c.weightHH.SetValue(ops.ConcatRows(blocks...)); err != nil {
		return nil, err
	}
	return c, nil
}

// Capability implements Layer.
func (c *GRUCell) Capability() Capability { return CapabilityStateful }

// InputSize implements Layer.
func (c *GRUCell) InputSize() int { return c.inputSize }

// OutputSize implements Layer: the hidden state size.
func (c *GRUCell) OutputSize() int { return c.hiddenSize }

// Variables implements Layer.
func (c *GRUCell) Variables() []*context.Variable {
	return nonNilVariables(c.weightIH, c.weightHH, c.bias, c.biasN)
}

// WeightIH returns the stacked input weights variable.
func (c *GRUCell) WeightIH() *context.Variable { return c.weightIH }

// WeightHH returns the stacked recurrent weights variable.
func (c *GRUCell) WeightHH() *context.Variable { return c.weightHH }

// InputBlocks implements InputMaskable: one block per gate.
func (c *GRUCell) InputBlocks() int { return NumGRUGates }

// SetInputMask implements InputMaskable.
func (c *GRUCell) SetInputMask(mask *tensors.Tensor) error {
	if err := mask.Shape().CheckDims(NumGRUGates*c.hiddenSize, c.inputSize); err != nil {
		return err
	}
	if c.inputMask != nil {
		mask = ops.Mul(c.inputMask, mask)
	}
	c.inputMask = mask
	return c.weightIH.SetValue(ops.Mul(c.weightIH.Value(), mask))
}

// EffectiveWeightIH returns the input weights used in the step: weight_ih⊙mask if there is a mask.
func (c *GRUCell) EffectiveWeightIH() *tensors.Tensor {
	w := c.weightIH.Value()
	if c.inputMask != nil {
		w = ops.Mul(w, c.inputMask)
	}
	return w
}

// Step implements StatefulLayer. The key is not used.
func (c *GRUCell) Step(x, state *tensors.Tensor, _ random.Key) *tensors.Tensor {
	checkInput("nn.GRUCell", x, c.inputSize)
	checkInput("nn.GRUCell state", state, c.hiddenSize)
	var bias *tensors.Tensor
	if c.bias != nil {
		bias = c.bias.Value()
	}
	igates := ops.SplitRows(Dense(x, c.EffectiveWeightIH(), bias), NumGRUGates)
	hgates := ops.SplitRows(ops.MatVec(c.weightHH.Value(), state), NumGRUGates)
	hCandidate := hgates[GRUGateCandidate]
	if c.biasN != nil {
		hCandidate = ops.Add(hCandidate, c.biasN.Value())
	}
	r := ops.Sigmoid(ops.Add(igates[GRUGateReset], hgates[GRUGateReset]))
	z := ops.Sigmoid(ops.Add(igates[GRUGateUpdate], hgates[GRUGateUpdate]))
	n := ops.Tanh(ops.Add(igates[GRUGateCandidate], ops.Mul(r, hCandidate)))
	// h' = (1-z)⊙n + z⊙h = n + z⊙(h-n)
	return ops.Add(n, ops.Mul(z, ops.Sub(state, n)))
}
