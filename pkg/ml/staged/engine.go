// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package staged implements the execution engine of staged models: a model is an ordered Spec of
// named stages over a state.NetworkState, and one step of the model runs each stage in turn.
//
// For each stage, in order, Step:
//
//  1. selects the stage input from the raw input and the state (Stage.WhereInput);
//  2. runs the intervenors registered for the stage label, in registration order;
//  3. reads the sub-state the stage writes to (Stage.WhereState), if the stage is stateful;
//  4. calls the adapted stage callable with a stage-specific key;
//  5. writes the result back into the state.
//
// Execution is deterministic given the key.
package staged

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/internal/workerspool"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Model is a staged model.
type Model interface {
	// Spec returns the ordered stages of one step.
	Spec() *Spec

	// Intervenors returns the hooks to run before stages, indexed by stage label.
	Intervenors() Intervenors

	// Init returns the initial state.
	Init() state.NetworkState
}

// Step runs one step of the model from state st with the given raw input.
//
// The key is split into one sub-key per stage. Shape and state errors raised inside stages are
// returned as errors.
func Step(model Model, input *tensors.Tensor, st state.NetworkState, key random.Key) (next state.NetworkState, err error) {
	err = exceptions.TryCatch[error](func() {
		next = step(model.Spec(), model.Intervenors(), input, st, key)
	})
	return
}

func step(spec *Spec, intervenors Intervenors, input *tensors.Tensor, st state.NetworkState, key random.Key) state.NetworkState {
	keys := key.Split(spec.Len())
	for ii, stage := range spec.stages {
		in := stage.WhereInput.Select(input, st)
		for _, hook := range intervenors[stage.Label] {
			in, st = hook(in, st)
		}
		var sub *tensors.Tensor
		if spec.isStateful(ii) {
			sub = stage.WhereState.MustGet(st)
		}
		out := spec.fns[ii](in, sub, keys[ii])
		st = stage.WhereState.With(st, out)
	}
	return st
}

// Run threads the initial state of the model through len(inputs) steps, one per input. The key of
// step t is key.Fold(t).
//
// The returned trajectory has len(inputs)+1 states, the first being the initial state.
func Run(model Model, inputs []*tensors.Tensor, key random.Key) (*state.Trajectory, error) {
	st := model.Init()
	traj := &state.Trajectory{States: make([]state.NetworkState, 0, len(inputs)+1)}
	traj.States = append(traj.States, st)
	for t, input := range inputs {
		var err error
		st, err = Step(model, input, st, key.Fold(uint64(t)))
		if err != nil {
			return nil, errors.WithMessagef(err, "step %d", t)
		}
		traj.States = append(traj.States, st)
	}
	return traj, nil
}

// Batch runs independent trials of a model in parallel. Create it with NewBatch, configure it
// and call Run.
type Batch struct {
	model       Model
	pool        *workerspool.Pool
	onTrialDone func(trial int)
}

// NewBatch creates a Batch runner for the model, using a pool with the default parallelism.
func NewBatch(model Model) *Batch {
	return &Batch{model: model, pool: workerspool.New()}
}

// WithPool sets the worker pool used to run the trials.
func (b *Batch) WithPool(pool *workerspool.Pool) *Batch {
	b.pool = pool
	return b
}

// OnTrialDone sets a callback called (from the worker goroutine) after each trial finishes.
// It must be safe for concurrent use.
func (b *Batch) OnTrialDone(fn func(trial int)) *Batch {
	b.onTrialDone = fn
	return b
}

// Run evaluates the trials, each one a sequence of raw inputs, and returns their trajectories
// in trial order. The key is split into one key per trial.
//
// If any trial fails, the error of the first failed trial (in trial order) is returned.
func (b *Batch) Run(trials [][]*tensors.Tensor, key random.Key) ([]*state.Trajectory, error) {
	keys := key.Split(len(trials))
	trajs := make([]*state.Trajectory, len(trials))
	trialErrs := make([]error, len(trials))
	klog.V(1).Infof("staged: running %d trials with parallelism %d", len(trials), b.pool.MaxParallelism())
	b.pool.Run(len(trials), func(ii int) {
		trajs[ii], trialErrs[ii] = Run(b.model, trials[ii], keys[ii])
		if b.onTrialDone != nil {
			b.onTrialDone(ii)
		}
	})
	for ii, err := range trialErrs {
		if err != nil {
			return nil, errors.WithMessagef(err, "trial %d", ii)
		}
	}
	return trajs, nil
}

// RunBatch is a shortcut to NewBatch(model).WithPool(pool).Run(trials, key). If pool is nil, a
// pool with the default parallelism is used.
func RunBatch(model Model, trials [][]*tensors.Tensor, key random.Key, pool *workerspool.Pool) ([]*state.Trajectory, error) {
	b := NewBatch(model)
	if pool != nil {
		b.WithPool(pool)
	}
	return b.Run(trials, key)
}
