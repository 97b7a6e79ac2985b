// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package populations_test

import (
	"slices"
	"testing"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/populations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContiguous(t *testing.T) {
	s, err := populations.Create(6, populations.Sizes{2, 2, 1, 1}, populations.Contiguous, random.NewKey(0))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, s.Indices(populations.InputOnly))
	assert.Equal(t, []int{2, 3}, s.Indices(populations.ReadoutOnly))
	assert.Equal(t, []int{4}, s.Indices(populations.RecurrentOnly))
	assert.Equal(t, []int{5}, s.Indices(populations.InputReadout))
	assert.Equal(t, []int{0, 1, 5}, s.InputIndices())
	assert.Equal(t, []int{2, 3, 5}, s.ReadoutIndices())

	p, err := s.PopulationOf(4)
	require.NoError(t, err)
	assert.Equal(t, populations.RecurrentOnly, p)
	_, err = s.PopulationOf(6)
	assert.Error(t, err)

	// Accessors return copies.
	s.Indices(populations.InputOnly)[0] = 100
	assert.Equal(t, []int{0, 1}, s.Indices(populations.InputOnly))
}

func TestMasks(t *testing.T) {
	s, err := populations.Create(6, populations.Sizes{2, 2, 1, 1}, populations.Contiguous, random.NewKey(0))
	require.NoError(t, err)

	inputMask := s.InputMask(2, 1)
	assert.Equal(t, []int{6, 2}, inputMask.Shape().Dimensions)
	want := tensors.FromValue([][]float64{{1, 1}, {1, 1}, {0, 0}, {0, 0}, {0, 0}, {1, 1}})
	assert.True(t, inputMask.Equal(want), "got %s", inputMask)

	gruMask := s.InputMask(2, 3)
	assert.Equal(t, []int{18, 2}, gruMask.Shape().Dimensions)
	for block := range 3 {
		for row := range 6 {
			assert.Equal(t, want.Row(row), gruMask.Row(block*6+row))
		}
	}

	readoutMask := s.ReadoutMask(2)
	wantReadout := tensors.FromValue([][]float64{{0, 0, 1, 1, 0, 1}, {0, 0, 1, 1, 0, 1}})
	assert.True(t, readoutMask.Equal(wantReadout), "got %s", readoutMask)
}

func TestRandom(t *testing.T) {
	sizes := populations.Sizes{3, 4, 5, 2}
	s1, err := populations.Create(14, sizes, nil, random.NewKey(42))
	require.NoError(t, err)
	s2, err := populations.Create(14, sizes, populations.Random, random.NewKey(42))
	require.NoError(t, err)
	var all []int
	for p := range populations.NumPopulations {
		assert.Len(t, s1.Indices(p), sizes[p])
		assert.Equal(t, s1.Indices(p), s2.Indices(p), "same key must give the same assignment")
		all = append(all, s1.Indices(p)...)
	}
	slices.Sort(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}, all)
	assert.Equal(t, 14, s1.HiddenSize())
	assert.Equal(t, 5, s1.Size(populations.RecurrentOnly))
}

func TestCreateErrors(t *testing.T) {
	key := random.NewKey(0)
	_, err := populations.Create(6, populations.Sizes{2, 2, 1, 2}, nil, key)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	_, err = populations.Create(2, populations.Sizes{3, -1, 0, 0}, nil, key)
	assert.True(t, errs.IsConfiguration(err))

	overlapping := func(int, populations.Sizes, random.Key) populations.Indices {
		return populations.Indices{{0}, {0}, {1}, {2}}
	}
	_, err = populations.Create(4, populations.Sizes{1, 1, 1, 1}, overlapping, key)
	assert.True(t, errs.IsConfiguration(err))

	wrongSizes := func(int, populations.Sizes, random.Key) populations.Indices {
		return populations.Indices{{0, 1}, {2}, {3}, nil}
	}
	_, err = populations.Create(4, populations.Sizes{1, 1, 1, 1}, wrongSizes, key)
	assert.True(t, errs.IsConfiguration(err))

	outOfRange := func(int, populations.Sizes, random.Key) populations.Indices {
		return populations.Indices{{0}, {1}, {2}, {7}}
	}
	_, err = populations.Create(4, populations.Sizes{1, 1, 1, 1}, outOfRange, key)
	assert.True(t, errs.IsConfiguration(err))

	// Empty populations are fine.
	s, err := populations.Create(3, populations.Sizes{0, 0, 3, 0}, populations.Contiguous, key)
	require.NoError(t, err)
	assert.Empty(t, s.InputIndices())
	assert.Equal(t, 0.0, s.InputMask(2, 1).Flat()[0])
}

func TestParseSizes(t *testing.T) {
	sizes, err := populations.ParseSizes("2, 2,1,1")
	require.NoError(t, err)
	assert.Equal(t, populations.Sizes{2, 2, 1, 1}, sizes)
	assert.Equal(t, 6, sizes.Total())
	assert.Equal(t, "input_only=2, readout_only=2, recurrent_only=1, input_readout=1", sizes.String())

	_, err = populations.ParseSizes("1,2,3")
	assert.True(t, errs.IsConfiguration(err))
	_, err = populations.ParseSizes("1,2,x,4")
	assert.True(t, errs.IsConfiguration(err))
}
