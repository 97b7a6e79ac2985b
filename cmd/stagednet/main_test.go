// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"runtime"
	"testing"

	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/network"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/train/losses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setFlags sets the run flags to small values, and restores them at the end of the test.
func setFlags(t *testing.T, numTrials, numSteps int) {
	prevTrials, prevSteps := *flagNumTrials, *flagNumSteps
	*flagNumTrials, *flagNumSteps = numTrials, numSteps
	t.Cleanup(func() {
		*flagNumTrials, *flagNumSteps = prevTrials, prevSteps
	})
}

func TestRunWithDefaultHyperparameters(t *testing.T) {
	setFlags(t, 2, 3)
	ctx := context.New()
	network.SetDefaultHyperparameters(ctx)
	require.NoError(t, run(ctx))

	ctx = context.New()
	network.SetDefaultHyperparameters(ctx)
	ctx.SetParam(network.ParamOutSize, 2)
	require.NoError(t, run(ctx))
}

func TestNewLoss(t *testing.T) {
	key := random.NewKey(0)
	trials := randomTrials(key, 2, 3, 1, 1.0)
	for _, outSize := range []int{0, 2} {
		ctx := context.New()
		network.SetDefaultHyperparameters(ctx)
		ctx.SetParam(network.ParamOutSize, outSize)
		builder, err := network.FromContext(ctx, key)
		require.NoError(t, err)
		net, err := builder.Done(key)
		require.NoError(t, err)

		loss, err := newLoss(net, 1e-3)
		require.NoError(t, err)
		wantLabels := []string{"activity"}
		if outSize > 0 {
			wantLabels = append(wantLabels, "output")
		}
		assert.Equal(t, wantLabels, loss.Labels(), "out_size=%d", outSize)

		trajs, err := staged.RunBatch(net, trials, key, nil)
		require.NoError(t, err)
		lossDict, err := losses.Evaluate(loss, trajs, nil, net)
		require.NoError(t, err, "out_size=%d", outSize)
		assert.Equal(t, wantLabels, lossDict.Labels())
	}
}

func TestNewPool(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), newPool(0).MaxParallelism())
	assert.Equal(t, 3, newPool(3).MaxParallelism())
	assert.Negative(t, newPool(-1).MaxParallelism())
}
