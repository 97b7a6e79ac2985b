// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// MaskedLinear is a Linear layer with a fixed connectivity mask shaped [outputSize, inputSize].
//
// The mask is not a variable: it never changes. Weights are multiplied by the mask at construction,
// and the effective weights weights⊙mask are recomputed on every call, so structural zeros hold
// whatever values an optimizer writes into the weights variable.
type MaskedLinear struct {
	Linear
}

// NewMaskedLinear creates a MaskedLinear whose sizes are given by the mask dimensions.
func NewMaskedLinear(ctx *context.Context, mask *tensors.Tensor, useBias bool, key random.Key) (*MaskedLinear, error) {
	if mask == nil || mask.Rank() != 2 {
		return nil, errs.Configurationf("nn.NewMaskedLinear(): mask must be a matrix, got %v", mask)
	}
	outputSize, inputSize := mask.Shape().Dim(0), mask.Shape().Dim(1)
	l, err := NewLinear(ctx, inputSize, outputSize, useBias, key)
	if err != nil {
		return nil, err
	}
	m := &MaskedLinear{Linear: *l}
	if err = m.SetInputMask(mask); err != nil {
		return nil, err
	}
	return m, nil
}
