// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
)

// Dense performs a dense (linear) transformation with optional activation:
//
//	y = activation(weight · x + bias)
//
// weight has shape [out_features, in_features] and x shape [in_features]. bias is optional
// (nil means no bias). in_features can be 0, in which case the result is activation(bias).
//
// activation is optional; if omitted or activations.TypeNone, no activation is applied.
func Dense(x, weight, bias *tensors.Tensor, activation ...activations.Type) *tensors.Tensor {
	act := activations.TypeNone
	if len(activation) > 0 {
		if len(activation) > 1 {
			exceptions.Panicf("nn.Dense() can only take one optional activation, got %v", activation)
		}
		act = activation[0]
	}
	y := ops.MatVec(weight, x)
	if bias != nil {
		y = ops.Add(y, bias)
	}
	return activations.Apply(act, y)
}
