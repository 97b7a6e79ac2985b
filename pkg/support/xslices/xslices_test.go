// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastAndNormalizeIndex(t *testing.T) {
	assert.Equal(t, 3, Last([]int{0, 1, 2, 3}))

	idx, ok := NormalizeIndex(-1, 4)
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	_, ok = NormalizeIndex(4, 4)
	assert.False(t, ok)
	_, ok = NormalizeIndex(-5, 4)
	assert.False(t, ok)
}

func TestMapAndKeys(t *testing.T) {
	assert.Equal(t, []int{2, 3, 4}, Iota(2, 3))
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}

func TestFlag(t *testing.T) {
	f := &genericSliceFlagImpl[int]{parserFn: strconv.Atoi}
	require.NoError(t, f.Set("2, 2,1,1"))
	assert.Equal(t, []int{2, 2, 1, 1}, f.parsedSlice)
	assert.Equal(t, "2,2,1,1", f.String())
	assert.Error(t, f.Set("2,x"))
	require.NoError(t, f.Set(""))
	assert.Empty(t, f.parsedSlice)
}
