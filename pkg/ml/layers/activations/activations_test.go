// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"math"
	"testing"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-4

func values(x *tensors.Tensor) []float64 { return x.Flat() }

func TestRelu(t *testing.T) {
	x := tensors.FromValue([]float64{0, -1, 2, -3, 4, -5, 6})
	assert.Equal(t, []float64{0, 0, 2, 0, 4, 0, 6}, values(Apply(TypeRelu, x)))
}

func TestLeakyRelu(t *testing.T) {
	x := tensors.FromValue([]float64{0, -1, 2})
	assert.InDeltaSlice(t, []float64{0, -0.3, 2}, values(Apply(TypeLeakyRelu, x)), epsilon)
}

func TestSmoothActivations(t *testing.T) {
	x := tensors.FromValue([]float64{-1, 0, 1})
	assert.InDeltaSlice(t, []float64{math.Tanh(-1), 0, math.Tanh(1)}, values(Apply(TypeTanh, x)), epsilon)
	assert.InDeltaSlice(t, []float64{0.26894, 0.5, 0.73106}, values(Apply(TypeSigmoid, x)), epsilon)
	assert.InDeltaSlice(t, []float64{-0.26894, 0, 0.73106}, values(Apply(TypeSwish, x)), epsilon)
	assert.InDeltaSlice(t, values(Apply(TypeSwish, x)), values(Apply(TypeSilu, x)), epsilon)
	assert.InDeltaSlice(t, []float64{-0.33333, 0, 0.66667}, values(Apply(TypeHardSwish, x)), epsilon)
	assert.InDeltaSlice(t, []float64{-1.11133, 0, 1.05070}, values(Apply(TypeSelu, x)), epsilon)
	assert.InDeltaSlice(t, []float64{-0.15866, 0, 0.84134}, values(Apply(TypeGelu, x)), epsilon)
	assert.InDeltaSlice(t, []float64{-0.15880, 0, 0.84120}, values(Apply(TypeGeluApprox, x)), epsilon)
}

func TestNone(t *testing.T) {
	x := tensors.FromValue([]float64{-1, 2})
	assert.Same(t, x, Apply(TypeNone, x))
}

func TestFromName(t *testing.T) {
	assert.Equal(t, TypeNone, FromName(""))
	assert.Equal(t, TypeLeakyRelu, FromName("leaky_relu"))
	assert.Equal(t, TypeTanh, FromName("Tanh"))
	assert.Equal(t, "gelu_approx", TypeGeluApprox.String())
	assert.Panics(t, func() { FromName("softmax") })
	_, err := Parse("softmax")
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.True(t, TypeSelu.IsAType())
	assert.False(t, Type(100).IsAType())
}

func TestApplyFromContext(t *testing.T) {
	ctx := context.New()
	x := tensors.FromValue([]float64{-1, 1})
	assert.Equal(t, []float64{-1, 1}, values(ApplyFromContext(ctx, x)))
	ctx.SetParam(ParamActivation, "relu")
	assert.Equal(t, []float64{0, 1}, values(ApplyFromContext(ctx, x)))
}
