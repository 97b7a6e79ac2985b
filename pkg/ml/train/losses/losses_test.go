// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses_test

import (
	"math"
	"testing"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/state"
	. "github.com/gomlx/stagednet/pkg/ml/train/losses"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(values ...float64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(values, len(values))
}

// trajectory with the given hidden states after the zero initial state, and outputs equal to twice
// the hidden state if withOutput.
func trajectory(withOutput bool, hidden ...*tensors.Tensor) *state.Trajectory {
	size := hidden[0].Size()
	initial := state.NetworkState{Hidden: tensors.Zeros(size)}
	if withOutput {
		initial.Output = tensors.Zeros(size)
	}
	traj := &state.Trajectory{States: []state.NetworkState{initial}}
	for _, h := range hidden {
		st := state.NetworkState{Hidden: h}
		if withOutput {
			st.Output = tensors.FromFlatDataAndDimensions([]float64{2 * h.Flat()[0], 2 * h.Flat()[1]}, 2)
		}
		traj.States = append(traj.States, st)
	}
	return traj
}

func TestLossDict(t *testing.T) {
	d, err := NewLossDict([]string{"b", "a"}, []float64{1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, d.Labels())
	assert.Equal(t, 3.5, d.Total())
	value, found := d.Get("a")
	assert.True(t, found)
	assert.Equal(t, 2.5, value)
	assert.Equal(t, "LossDict{b=1, a=2.5; total=3.5}", d.String())

	_, err = NewLossDict([]string{"a", "a"}, []float64{1, 2})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestActivityAndOutputLosses(t *testing.T) {
	trajs := []*state.Trajectory{
		trajectory(true, vec(1, 0), vec(0, 2)),
		trajectory(true, vec(1, 1), vec(1, 1)),
	}
	term, err := NewNetworkActivityLoss("activity").Term(trajs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 4}, term.Flat())

	d, err := Evaluate(NewNetworkOutputLoss("output"), trajs, nil, nil)
	require.NoError(t, err)
	value, _ := d.Get("output")
	assert.Equal(t, (20.0+16.0)/2, value)

	// Without readout the output is absent.
	noOutput := []*state.Trajectory{trajectory(false, vec(1, 0))}
	_, err = Evaluate(NewNetworkOutputLoss("output"), noOutput, nil, nil)
	require.ErrorIs(t, err, errs.ErrState)
}

func TestComposite(t *testing.T) {
	activity := NewNetworkActivityLoss("activity")
	output := NewNetworkOutputLoss("output")
	inner, err := NewComposite("inner", []Loss{activity, output}, []float64{2, 3})
	require.NoError(t, err)

	// Nested composites are flattened one level, with prefixed labels and multiplied weights.
	outer, err := NewComposite("outer", []Loss{inner, activity, Relabel(inner, "group")}, []float64{10, 1, 0.5})
	require.NoError(t, err)
	if diff := cmp.Diff(
		[]string{"activity", "inner_activity", "inner_output", "group_activity", "group_output"},
		outer.Labels()); diff != "" {
		t.Errorf("Unexpected labels (-want, +got):\n%s", diff)
	}
	for label, want := range map[string]float64{
		"activity": 1, "inner_activity": 20, "inner_output": 30, "group_activity": 1, "group_output": 1.5} {
		weight, found := outer.Weight(label)
		require.True(t, found, label)
		assert.Equal(t, want, weight, label)
	}

	// Repeated labels get suffixes.
	repeated, err := Add(activity, activity, activity)
	require.NoError(t, err)
	assert.Equal(t, []string{"activity", "activity_1", "activity_2"}, repeated.Labels())

	// Evaluate: weighted and averaged over trials.
	trajs := []*state.Trajectory{trajectory(true, vec(1, 0), vec(0, 2))}
	d, err := inner.Evaluate(trajs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"activity", "output"}, d.Labels())
	assert.Equal(t, 2*5.0+3*20.0, d.Total())
	total, err := inner.Term(trajs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, d.Total(), total.Flat()[0])

	// Mismatched number of weights.
	_, err = NewComposite("bad", []Loss{activity, output}, []float64{1})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestScaleAndMerge(t *testing.T) {
	activity := NewNetworkActivityLoss("activity")
	output := NewNetworkOutputLoss("output")
	scaled, err := Scale(activity, 0.1)
	require.NoError(t, err)
	weight, _ := scaled.Weight("activity")
	assert.Equal(t, 0.1, weight)

	base, err := NewComposite("base", []Loss{activity, output}, []float64{1, 1})
	require.NoError(t, err)
	override, err := NewComposite("override", []Loss{activity}, []float64{5})
	require.NoError(t, err)
	merged := base.Merge(override)
	assert.Equal(t, "override", merged.Label())
	assert.Equal(t, []string{"activity", "output"}, merged.Labels())
	weight, _ = merged.Weight("activity")
	assert.Equal(t, 5.0, weight)
	weight, _ = merged.Weight("output")
	assert.Equal(t, 1.0, weight)
}

func TestTargetStateLoss(t *testing.T) {
	trajs := []*state.Trajectory{
		trajectory(false, vec(1, 0), vec(0, 2), vec(3, 3)),
		trajectory(false, vec(1, 1), vec(1, 1), vec(1, 1)),
	}

	// Final state, with per-trial targets.
	final := TargetFinalState()
	loss := NewTargetStateLoss("final", state.FieldHidden, &final)
	trials := []TrialSpec{
		{Targets: map[string]TargetSpec{"final": {Value: vec(3, 3)}}},
		{Targets: map[string]TargetSpec{"final": {Value: vec(0, 0)}}},
	}
	term, err := loss.Term(trajs, trials, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, term.Flat())

	// Missing target value.
	_, err = loss.Term(trajs, nil, nil)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	// Zero target over all steps, with discount.
	zero := TargetZero()
	zero.Discount = []float64{0, 0, 1}
	term, err = NewTargetStateLoss("zero", state.FieldHidden, &zero).Term(trajs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{18, 2}, term.Flat())

	// One target row per selected step, with an L1 norm.
	rows := TargetSpec{
		Value:    tensors.FromFlatDataAndDimensions([]float64{1, 0, 0, 0}, 2, 2),
		TimeIdxs: []int{0, 1},
	}
	l1 := NewTargetStateLoss("rows", state.FieldHidden, &rows)
	l1.Norm = func(diff *tensors.Tensor) float64 {
		var sum float64
		for _, v := range diff.Flat() {
			sum += max(v, -v)
		}
		return sum
	}
	term, err = l1.Term(trajs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, term.Flat())

	// Out of range time index.
	bad := TargetSpec{Value: tensors.FromScalar(0), TimeIdxs: []int{3}}
	_, err = NewTargetStateLoss("bad", state.FieldHidden, &bad).Term(trajs, nil, nil)
	require.ErrorIs(t, err, errs.ErrShape)
}

func TestModelLoss(t *testing.T) {
	var seen staged.Model
	loss := NewModelLoss("weights", func(model staged.Model) (float64, error) {
		seen = model
		return 7, nil
	})
	d, err := Evaluate(loss, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, d.Total())
	assert.Nil(t, seen)
}

func TestPowerDiscount(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, PowerDiscount(3, 0))
	assert.InDeltaSlice(t, []float64{0.0625, 0.25, 0.5625, 1}, PowerDiscount(4, 2), 1e-12)
}

func TestMSE(t *testing.T) {
	assert.Equal(t, 2.5, MSE(vec(1, 2), vec(0, 4)))
	nan := tensors.FromFlatDataAndDimensions([]float64{0, math.NaN()}, 2)
	assert.Equal(t, 1.0, NaNSafeMSE(vec(1, 2), nan))
}
