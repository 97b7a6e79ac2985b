// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package random_test

import (
	"math"
	"slices"
	"testing"

	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/sets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterminism(t *testing.T) {
	k0, k1 := random.NewKey(42), random.NewKey(42)
	assert.Equal(t, k0, k1)
	assert.True(t, k0.Normal(shapes.Make(10)).Equal(k1.Normal(shapes.Make(10))))
	assert.Equal(t, k0.Split(3), k1.Split(3))
	assert.NotEqual(t, random.NewKey(42), random.NewKey(43))
}

func TestSplitIndependence(t *testing.T) {
	key := random.NewKey(0)
	keys := key.Split(16)
	seen := sets.Make[random.Key]()
	for _, k := range keys {
		require.False(t, seen.Has(k), "split produced a repeated key")
		seen.Insert(k)
	}
	a, b := key.Split2()
	assert.Equal(t, keys[0], a)
	assert.Equal(t, keys[1], b)
	assert.NotEqual(t, key.Fold(0), keys[0])
	assert.NotEqual(t, key.Fold(1), key.Fold(2))
	assert.Empty(t, key.Split(0))
}

func TestNormal(t *testing.T) {
	values := random.NewKey(7).Normal(shapes.Make(20_000))
	mean := ops.Mean(values)
	variance := ops.SumSquares(ops.AddScalar(values, -mean)) / float64(values.Size())
	assert.InDelta(t, 0.0, mean, 0.05)
	assert.InDelta(t, 1.0, math.Sqrt(variance), 0.05)
}

func TestUniformAndPermutation(t *testing.T) {
	values := random.NewKey(1).Uniform(shapes.Make(3, 5), -0.5, 0.5)
	assert.Equal(t, []int{3, 5}, values.Shape().Dimensions)
	for _, v := range values.Flat() {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.Less(t, v, 0.5)
	}

	perm := random.NewKey(3).Permutation(10)
	sorted := slices.Clone(perm)
	slices.Sort(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sorted)
	assert.Equal(t, perm, random.NewKey(3).Permutation(10))
}
