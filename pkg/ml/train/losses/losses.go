// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses computes scalar losses from the trajectories of a staged model, to be used by
// an (external) training loop.
//
// A Loss computes a term, with one value per trial (or a scalar). Losses are combined with
// NewComposite, Add and Scale into a Composite, whose Evaluate returns the weighted, trial-averaged
// value of each term in a LossDict.
package losses

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"gonum.org/v1/gonum/floats"
)

// TrialSpec holds the trial-by-trial information used by the losses.
type TrialSpec struct {
	// Targets overrides the default TargetSpec of TargetStateLoss terms, indexed by the loss label.
	Targets map[string]TargetSpec
}

// Loss computes a loss term.
type Loss interface {
	// Label of the loss term.
	Label() string

	// Term returns the loss, either one value per trial (a vector) or a scalar.
	// trials, if not nil, has one TrialSpec per trajectory.
	Term(trajs []*state.Trajectory, trials []TrialSpec, model staged.Model) (*tensors.Tensor, error)
}

// LossDict is an immutable ordered mapping of loss term labels to their values.
type LossDict struct {
	labels []string
	values map[string]float64
}

// NewLossDict creates a LossDict with the given labels and values. Labels must be unique.
func NewLossDict(labels []string, values []float64) (*LossDict, error) {
	if len(labels) != len(values) {
		return nil, errs.Configurationf("LossDict: %d labels and %d values", len(labels), len(values))
	}
	d := &LossDict{labels: make([]string, 0, len(labels)), values: make(map[string]float64, len(labels))}
	for ii, label := range labels {
		if _, found := d.values[label]; found {
			return nil, errs.Configurationf("LossDict: duplicate label %q", label)
		}
		d.labels = append(d.labels, label)
		d.values[label] = values[ii]
	}
	return d, nil
}

// Len returns the number of terms.
func (d *LossDict) Len() int { return len(d.labels) }

// Labels returns the labels, in order.
func (d *LossDict) Labels() []string { return append([]string(nil), d.labels...) }

// Get returns the value of the term with the given label.
func (d *LossDict) Get(label string) (value float64, found bool) {
	value, found = d.values[label]
	return
}

// All iterates over the terms, in order.
func (d *LossDict) All() iter.Seq2[string, float64] {
	return func(yield func(string, float64) bool) {
		for _, label := range d.labels {
			if !yield(label, d.values[label]) {
				return
			}
		}
	}
}

// Total returns the sum of all terms.
func (d *LossDict) Total() float64 {
	total := 0.0
	for _, label := range d.labels {
		total += d.values[label]
	}
	return total
}

// String implements fmt.Stringer.
func (d *LossDict) String() string {
	parts := make([]string, 0, len(d.labels))
	for label, value := range d.All() {
		parts = append(parts, fmt.Sprintf("%s=%g", label, value))
	}
	return fmt.Sprintf("LossDict{%s; total=%g}", strings.Join(parts, ", "), d.Total())
}

// Evaluate computes the loss and returns its terms. Terms with one value per trial are averaged
// over the trials. Composite losses return one entry per (weighted) term.
func Evaluate(loss Loss, trajs []*state.Trajectory, trials []TrialSpec, model staged.Model) (*LossDict, error) {
	if c, ok := loss.(*Composite); ok {
		return c.Evaluate(trajs, trials, model)
	}
	value, err := evaluateTerm(loss, trajs, trials, model)
	if err != nil {
		return nil, err
	}
	return NewLossDict([]string{loss.Label()}, []float64{value})
}

// evaluateTerm computes the term and averages it over the trials. Panics (e.g. shape errors) are
// returned as errors.
func evaluateTerm(loss Loss, trajs []*state.Trajectory, trials []TrialSpec, model staged.Model) (value float64, err error) {
	if trials != nil && len(trials) != len(trajs) {
		return 0, errs.Configurationf("loss %q: %d trial specs for %d trajectories", loss.Label(), len(trials), len(trajs))
	}
	var term *tensors.Tensor
	var termErr error
	err = exceptions.TryCatch[error](func() {
		term, termErr = loss.Term(trajs, trials, model)
	})
	if err == nil {
		err = termErr
	}
	if err != nil {
		return 0, err
	}
	if term.IsScalar() {
		return term.Flat()[0], nil
	}
	return ops.Mean(term), nil
}

// PowerDiscount returns nSteps weights rising as a power law from (1/nSteps)^exponent to 1, putting
// most of the weight on the last steps. An exponent of 0 gives all ones.
func PowerDiscount(nSteps, exponent int) []float64 {
	discount := make([]float64, nSteps)
	if nSteps == 0 {
		return discount
	}
	if exponent == 0 || nSteps == 1 {
		for ii := range discount {
			discount[ii] = 1
		}
		return discount
	}
	floats.Span(discount, 1/float64(nSteps), 1)
	for ii, d := range discount {
		discount[ii] = math.Pow(d, float64(exponent))
	}
	return discount
}

// MSE returns the mean squared error between x and y, which must have the same shape.
func MSE(x, y *tensors.Tensor) float64 {
	return ops.Mean(ops.Square(ops.Sub(x, y)))
}

// NaNSafeMSE returns the mean squared error between predictions and targets, ignoring the entries
// where the target is NaN. It returns 0 if all targets are NaN.
func NaNSafeMSE(predictions, targets *tensors.Tensor) float64 {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(errs.Shapef("NaNSafeMSE(): predictions shape %s != targets shape %s", predictions.Shape(), targets.Shape()))
	}
	var sum float64
	var count int
	for ii, target := range targets.Flat() {
		if math.IsNaN(target) {
			continue
		}
		diff := predictions.Flat()[ii] - target
		sum += diff * diff
		count++
	}
	return sum / float64(max(count, 1))
}
