// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops_test

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(values ...float64) *tensors.Tensor { return tensors.FromValue(values) }

func TestElementWise(t *testing.T) {
	x, y := vec(1, 2, 3), vec(4, 5, 6)
	assert.Equal(t, []float64{5, 7, 9}, ops.Add(x, y).Value())
	assert.Equal(t, []float64{-3, -3, -3}, ops.Sub(x, y).Value())
	assert.Equal(t, []float64{4, 10, 18}, ops.Mul(x, y).Value())
	assert.Equal(t, []float64{2, 4, 6}, ops.MulScalar(x, 2).Value())
	assert.Equal(t, []float64{2, 3, 4}, ops.AddScalar(x, 1).Value())
	assert.Equal(t, []float64{1, 4, 9}, ops.Square(x).Value())
	assert.Equal(t, []float64{2.5, 3.5, 4.5}, ops.Lerp(x, y, 0.5).Value())
	assert.Equal(t, []float64{1, 2, 3}, x.Value(), "operands must not be modified")
	assert.InDelta(t, 0.5, ops.Sigmoid(vec(0)).Flat()[0], 1e-12)
	assert.InDelta(t, math.Tanh(0.3), ops.Tanh(vec(0.3)).Flat()[0], 1e-12)
	assert.Equal(t, 6.0, ops.Sum(x))
	assert.Equal(t, 14.0, ops.SumSquares(x))
	assert.Equal(t, 2.0, ops.Mean(x))
	assert.True(t, math.IsNaN(ops.Mean(vec())))

	err := exceptions.TryCatch[error](func() { ops.Add(x, vec(1, 2)) })
	require.Error(t, err)
	assert.True(t, errs.IsShape(err))
}

func TestMatVec(t *testing.T) {
	w := tensors.FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, []float64{5, 11, 17}, ops.MatVec(w, vec(1, 2)).Value())

	// Placeholder weights for zero inputs.
	got := ops.MatVec(tensors.Zeros(3, 0), vec())
	assert.Equal(t, []float64{0, 0, 0}, got.Value())

	err := exceptions.TryCatch[error](func() { ops.MatVec(w, vec(1, 2, 3)) })
	assert.True(t, errs.IsShape(err))
}

func TestMatrixOps(t *testing.T) {
	a := tensors.FromValue([][]float64{{1, 2}, {3, 4}})
	assert.Equal(t, [][]float64{{7, 10}, {15, 22}}, ops.MatMul(a, a).Value())
	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, ops.Transpose(a).Value())
	assert.Equal(t, []int{3, 0}, ops.MatMul(tensors.Zeros(3, 2), tensors.Zeros(2, 0)).Shape().Dimensions)

	tiled := ops.TileRows(a, 3)
	assert.Equal(t, []int{6, 2}, tiled.Shape().Dimensions)
	assert.Equal(t, []float64{1, 2}, tiled.Row(4))
	parts := ops.SplitRows(tiled, 3)
	require.Len(t, parts, 3)
	for _, part := range parts {
		assert.True(t, part.Equal(a))
	}
	assert.True(t, ops.ConcatRows(parts...).Equal(tiled))
	assert.Equal(t, []float64{3, 4}, ops.SliceRows(vec(1, 2, 3, 4), 2, 4).Value())

	assert.Equal(t, [][]float64{{1, 1}, {0, 0}}, ops.SetRows(tensors.Zeros(2, 2), []int{0}, 1).Value())
	assert.Equal(t, [][]float64{{0, 1}, {0, 1}}, ops.SetColumns(tensors.Zeros(2, 2), []int{1}, 1).Value())
	assert.Panics(t, func() { ops.SetRows(tensors.Zeros(2, 2), []int{2}, 1) })
}

func TestFlattenAndStack(t *testing.T) {
	flat := ops.Flatten(tensors.FromValue([][]float64{{1, 2}, {3, 4}}), vec(5), tensors.FromScalar(6))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat.Value())
	assert.Equal(t, 0, ops.Flatten().Size())

	stacked := ops.Stack(vec(1, 2), vec(3, 4), vec(5, 6))
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, stacked.Value())
	assert.Equal(t, []float64{1, 2}, ops.Stack(tensors.FromScalar(1), tensors.FromScalar(2)).Value())
}
