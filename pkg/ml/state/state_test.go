// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package state_test

import (
	"testing"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	. "github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields(t *testing.T) {
	st := NetworkState{Input: tensors.Zeros(0), Hidden: tensors.Ones(3)}
	assert.True(t, FieldInput.Present(st))
	assert.False(t, FieldOutput.Present(st))

	_, err := FieldOutput.Get(st)
	require.Error(t, err)
	assert.True(t, errs.IsState(err))
	assert.Contains(t, err.Error(), `"output"`)
	assert.Panics(t, func() { FieldEncoding.MustGet(st) })

	st2 := FieldOutput.With(st, tensors.FromValue([]float64{1, 2}))
	assert.False(t, FieldOutput.Present(st), "With must not modify the original state")
	out, err := FieldOutput.Get(st2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out.Value())
	assert.Same(t, st.Hidden, st2.Hidden)

	assert.True(t, st.Equal(FieldHidden.With(st, tensors.Ones(3))))
	assert.False(t, st.Equal(st2))
	assert.Equal(t, "NetworkState{input: (0), hidden: (3), output: <absent>, encoding: <absent>}", st.String())

	f, err := FieldString("encoding")
	require.NoError(t, err)
	assert.Equal(t, FieldEncoding, f)
}

func TestTrajectory(t *testing.T) {
	var tr Trajectory
	for ii := range 3 {
		tr.States = append(tr.States, NetworkState{
			Input:  tensors.Zeros(1),
			Hidden: tensors.FromValue([]float64{float64(ii), -float64(ii)}),
		})
	}
	assert.Equal(t, 3, tr.Len())
	hidden, err := tr.Field(FieldHidden)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}, {1, -1}, {2, -2}}, hidden.Value())
	assert.Equal(t, []float64{2, -2}, tr.Last().Hidden.Value())

	_, err = tr.Field(FieldOutput)
	assert.True(t, errs.IsState(err))
}
