// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/xslices"
	"github.com/pkg/errors"
)

// TargetSpec describes the target of a TargetStateLoss: a value, the time steps at which it is
// compared with the state, and how each of those steps is discounted.
//
// Nil fields mean "not specified": Value has no default, TimeIdxs defaults to all steps and
// Discount to ones.
type TargetSpec struct {
	// Value is the target: a scalar, a vector (the same for every selected step) or a matrix with
	// one row per selected step.
	Value *tensors.Tensor

	// TimeIdxs are the steps where the target applies. Negative indices count from the end.
	TimeIdxs []int

	// Discount has either 1 value, or one value per selected step.
	Discount []float64
}

// Combine returns spec with the non-nil fields of other overriding it.
func (spec TargetSpec) Combine(other TargetSpec) TargetSpec {
	if other.Value != nil {
		spec.Value = other.Value
	}
	if other.TimeIdxs != nil {
		spec.TimeIdxs = other.TimeIdxs
	}
	if other.Discount != nil {
		spec.Discount = other.Discount
	}
	return spec
}

// TargetFinalState is a TargetSpec for the last step only. The value is given per trial.
func TargetFinalState() TargetSpec { return TargetSpec{TimeIdxs: []int{-1}} }

// TargetZero is a TargetSpec of zero for all steps, penalizing the magnitude of the state.
func TargetZero() TargetSpec { return TargetSpec{Value: tensors.FromScalar(0)} }

// TargetStateLoss penalizes the distance between a state field and a target.
//
// The default target is given by Spec, and it can be overridden per trial by TrialSpec.Targets,
// indexed by the loss label.
type TargetStateLoss struct {
	label string

	// Where is the state field compared with the target.
	Where state.Field

	// Norm of the difference between the state and the target, at one time step. Defaults to the
	// sum of squares.
	Norm func(diff *tensors.Tensor) float64

	// Spec is the default target. It can be nil, if all trials specify it.
	Spec *TargetSpec
}

var _ Loss = (*TargetStateLoss)(nil)

// NewTargetStateLoss creates a TargetStateLoss on the given field.
func NewTargetStateLoss(label string, where state.Field, spec *TargetSpec) *TargetStateLoss {
	return &TargetStateLoss{label: label, Where: where, Spec: spec}
}

// Label implements Loss.
func (l *TargetStateLoss) Label() string { return l.label }

// Term implements Loss, returning one value per trial: the discounted norms summed over the
// selected steps. The initial state is not part of the steps.
func (l *TargetStateLoss) Term(trajs []*state.Trajectory, trials []TrialSpec, _ staged.Model) (*tensors.Tensor, error) {
	norm := l.Norm
	if norm == nil {
		norm = ops.SumSquares
	}
	values := make([]float64, len(trajs))
	for trialIdx, traj := range trajs {
		var spec TargetSpec
		found := l.Spec != nil
		if found {
			spec = *l.Spec
		}
		if trials != nil {
			if override, ok := trials[trialIdx].Targets[l.label]; ok {
				spec = spec.Combine(override)
				found = true
			}
		}
		if !found || spec.Value == nil {
			return nil, errs.Configurationf("loss %q: no target value given for trial %d", l.label, trialIdx)
		}
		value, err := l.trialTerm(traj, spec, norm)
		if err != nil {
			return nil, errors.WithMessagef(err, "loss %q, trial %d", l.label, trialIdx)
		}
		values[trialIdx] = value
	}
	return tensors.FromFlatDataAndDimensions(values, len(values)), nil
}

func (l *TargetStateLoss) trialTerm(traj *state.Trajectory, spec TargetSpec, norm func(*tensors.Tensor) float64) (float64, error) {
	steps := traj.States[1:]
	timeIdxs := spec.TimeIdxs
	if timeIdxs == nil {
		timeIdxs = xslices.Iota(0, len(steps))
	}
	discount := spec.Discount
	if len(discount) != 0 && len(discount) != 1 && len(discount) != len(timeIdxs) {
		return 0, errs.Shapef("discount has %d values for %d time steps", len(discount), len(timeIdxs))
	}
	target := spec.Value
	if target.Rank() == 2 && target.Shape().Dim(0) != len(timeIdxs) {
		return 0, errs.Shapef("target shaped %s for %d time steps", target.Shape(), len(timeIdxs))
	}

	var total float64
	for ii, timeIdx := range timeIdxs {
		t, ok := xslices.NormalizeIndex(timeIdx, len(steps))
		if !ok {
			return 0, errs.Shapef("time index %d out of range for %d steps", timeIdx, len(steps))
		}
		current, err := l.Where.Get(steps[t])
		if err != nil {
			return 0, err
		}
		var diff *tensors.Tensor
		switch target.Rank() {
		case 0:
			diff = ops.AddScalar(current, -target.Flat()[0])
		case 1:
			diff = ops.Sub(current, target)
		default:
			diff = ops.Sub(current, ops.SliceRows(target, ii, ii+1).Reshape(target.Shape().Dim(1)))
		}
		weight := 1.0
		if len(discount) == 1 {
			weight = discount[0]
		} else if len(discount) > 1 {
			weight = discount[ii]
		}
		total += weight * norm(diff)
	}
	return total, nil
}

// sumOverSteps sums fn of the field over the steps of each trajectory, excluding the initial state.
func sumOverSteps(trajs []*state.Trajectory, field state.Field, fn func(*tensors.Tensor) float64) (*tensors.Tensor, error) {
	values := make([]float64, len(trajs))
	for trialIdx, traj := range trajs {
		for _, st := range traj.States[1:] {
			value, err := field.Get(st)
			if err != nil {
				return nil, errors.WithMessagef(err, "trial %d", trialIdx)
			}
			values[trialIdx] += fn(value)
		}
	}
	return tensors.FromFlatDataAndDimensions(values, len(values)), nil
}

// NetworkOutputLoss penalizes the squared magnitude of the network output. It fails with a state
// error for networks without a readout.
type NetworkOutputLoss struct{ label string }

// NewNetworkOutputLoss creates a NetworkOutputLoss.
func NewNetworkOutputLoss(label string) *NetworkOutputLoss { return &NetworkOutputLoss{label: label} }

// Label implements Loss.
func (l *NetworkOutputLoss) Label() string { return l.label }

// Term implements Loss, returning one value per trial.
func (l *NetworkOutputLoss) Term(trajs []*state.Trajectory, _ []TrialSpec, _ staged.Model) (*tensors.Tensor, error) {
	return sumOverSteps(trajs, state.FieldOutput, ops.SumSquares)
}

// NetworkActivityLoss penalizes the squared magnitude of the hidden activity.
type NetworkActivityLoss struct{ label string }

// NewNetworkActivityLoss creates a NetworkActivityLoss.
func NewNetworkActivityLoss(label string) *NetworkActivityLoss {
	return &NetworkActivityLoss{label: label}
}

// Label implements Loss.
func (l *NetworkActivityLoss) Label() string { return l.label }

// Term implements Loss, returning one value per trial.
func (l *NetworkActivityLoss) Term(trajs []*state.Trajectory, _ []TrialSpec, _ staged.Model) (*tensors.Tensor, error) {
	return sumOverSteps(trajs, state.FieldHidden, ops.SumSquares)
}

// ModelLoss is a loss that depends only on the model, e.g. a regularization of its weights.
type ModelLoss struct {
	label string
	fn    func(model staged.Model) (float64, error)
}

// NewModelLoss creates a ModelLoss.
func NewModelLoss(label string, fn func(model staged.Model) (float64, error)) *ModelLoss {
	return &ModelLoss{label: label, fn: fn}
}

// Label implements Loss.
func (l *ModelLoss) Label() string { return l.label }

// Term implements Loss, returning a scalar.
func (l *ModelLoss) Term(_ []*state.Trajectory, _ []TrialSpec, model staged.Model) (*tensors.Tensor, error) {
	if l.fn == nil {
		return nil, errs.Configurationf("model loss %q has no function", l.label)
	}
	value, err := l.fn(model)
	if err != nil {
		return nil, err
	}
	return tensors.FromScalar(value), nil
}
