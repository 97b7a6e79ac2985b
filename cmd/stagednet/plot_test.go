// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomTrials(t *testing.T) {
	trials := randomTrials(random.NewKey(0), 3, 5, 2, 0.5)
	require.Len(t, trials, 3)
	for _, trial := range trials {
		require.Len(t, trial, 5)
		for _, input := range trial {
			assert.Equal(t, []int{2}, input.Shape().Dimensions)
		}
	}
	again := randomTrials(random.NewKey(0), 3, 5, 2, 0.5)
	assert.True(t, trials[2][4].Equal(again[2][4]))
	assert.False(t, trials[0][0].Equal(trials[1][0]))
}

func TestPlotHiddenActivity(t *testing.T) {
	traj := &state.Trajectory{}
	for step := range 4 {
		traj.States = append(traj.States, state.NetworkState{
			Hidden: tensors.FromFlatDataAndDimensions([]float64{float64(step), -float64(step), 0.5}, 3),
		})
	}
	filePath := filepath.Join(t.TempDir(), "plots", "hidden.png")
	require.NoError(t, plotHiddenActivity(traj, filePath))
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// No hidden state.
	require.Error(t, plotHiddenActivity(&state.Trajectory{States: []state.NetworkState{{}}}, filePath))
}
