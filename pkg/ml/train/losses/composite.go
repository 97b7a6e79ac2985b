// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"fmt"
	"slices"

	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/sets"
	"github.com/gomlx/stagednet/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Composite is a weighted sum of simple loss terms, with unique labels.
//
// Composites are never nested: composite terms given to NewComposite are flattened into their
// simple terms, with their weights multiplied by the weight of the composite.
type Composite struct {
	label   string
	labels  []string
	terms   []Loss
	weights []float64
}

var _ Loss = (*Composite)(nil)

// relabeled overrides the label of a loss.
type relabeled struct {
	Loss
	label string
}

func (r relabeled) Label() string { return r.label }

// Relabel returns the loss with a new label. For a Composite, the label is used as the prefix of the
// labels of its terms, when it is flattened into another Composite.
func Relabel(loss Loss, label string) Loss {
	if r, ok := loss.(relabeled); ok {
		loss = r.Loss
	}
	return relabeled{Loss: loss, label: label}
}

// uniqueLabel returns label, or if it is already taken, label suffixed with the lowest integer
// ("_1", "_2", ...) that makes it unique.
func uniqueLabel(label string, taken sets.Set[string]) string {
	if !taken.Has(label) {
		return label
	}
	for ii := 1; ; ii++ {
		candidate := fmt.Sprintf("%s_%d", label, ii)
		if !taken.Has(candidate) {
			return candidate
		}
	}
}

// NewComposite creates a Composite with the given label, terms and weights.
//
// weights can be nil, in which case all terms have weight 1. Otherwise it must have one weight per
// term, or a configuration error is returned.
//
// Composite terms are flattened: their terms' labels are prefixed by the label of the composite
// (the Relabel label if given, else its own label, if not empty). Labels that are not unique are
// suffixed with the lowest integer that makes them unique. Simple terms are labeled first.
func NewComposite(label string, terms []Loss, weights []float64) (*Composite, error) {
	if weights == nil {
		weights = make([]float64, len(terms))
		for ii := range weights {
			weights[ii] = 1
		}
	}
	if len(terms) != len(weights) {
		return nil, errs.Configurationf("mismatch between number of loss terms (%d) and number of term weights (%d)",
			len(terms), len(weights))
	}
	c := &Composite{label: label}
	taken := sets.Make[string]()
	type group struct {
		label     string
		composite *Composite
		weight    float64
	}
	var groups []group

	// Simple terms first.
	for ii, term := range terms {
		if term == nil {
			return nil, errs.Configurationf("loss term #%d is nil", ii)
		}
		termLabel := term.Label()
		groupLabel := ""
		if r, ok := term.(relabeled); ok {
			groupLabel = r.label
			term = r.Loss
		}
		if composite, ok := term.(*Composite); ok {
			groups = append(groups, group{label: groupLabel, composite: composite, weight: weights[ii]})
			continue
		}
		c.add(uniqueLabel(termLabel, taken), term, weights[ii])
		taken.Insert(xslices.Last(c.labels))
	}

	// Then the flattened composite terms.
	for _, g := range groups {
		prefix := g.label
		if prefix == "" {
			prefix = g.composite.label
		}
		for jj, termLabel := range g.composite.labels {
			if prefix != "" {
				termLabel = prefix + "_" + termLabel
			}
			c.add(uniqueLabel(termLabel, taken), g.composite.terms[jj], g.weight*g.composite.weights[jj])
			taken.Insert(xslices.Last(c.labels))
		}
	}
	return c, nil
}

func (c *Composite) add(label string, term Loss, weight float64) {
	c.labels = append(c.labels, label)
	c.terms = append(c.terms, term)
	c.weights = append(c.weights, weight)
}

// Add returns the Composite of the losses with weights 1.
func Add(losses ...Loss) (*Composite, error) {
	return NewComposite("", losses, nil)
}

// Scale returns the Composite of the loss with the given weight.
func Scale(loss Loss, weight float64) (*Composite, error) {
	return NewComposite("", []Loss{loss}, []float64{weight})
}

// Label implements Loss.
func (c *Composite) Label() string { return c.label }

// Labels returns the labels of the terms, in order.
func (c *Composite) Labels() []string { return slices.Clone(c.labels) }

// Weight returns the weight of the term with the given label.
func (c *Composite) Weight(label string) (float64, bool) {
	idx := slices.Index(c.labels, label)
	if idx < 0 {
		return 0, false
	}
	return c.weights[idx], true
}

// Merge returns a Composite with the terms of c and other. Terms of other override the terms of c
// with the same label. The label of the result is the label of other.
func (c *Composite) Merge(other *Composite) *Composite {
	merged := &Composite{label: other.label}
	for ii, label := range c.labels {
		if idx := slices.Index(other.labels, label); idx >= 0 {
			merged.add(label, other.terms[idx], other.weights[idx])
		} else {
			merged.add(label, c.terms[ii], c.weights[ii])
		}
	}
	for ii, label := range other.labels {
		if !slices.Contains(c.labels, label) {
			merged.add(label, other.terms[ii], other.weights[ii])
		}
	}
	return merged
}

// Evaluate computes all the terms, averages them over the trials and multiplies them by their weights.
func (c *Composite) Evaluate(trajs []*state.Trajectory, trials []TrialSpec, model staged.Model) (*LossDict, error) {
	values := make([]float64, len(c.terms))
	for ii, term := range c.terms {
		value, err := evaluateTerm(term, trajs, trials, model)
		if err != nil {
			return nil, errors.WithMessagef(err, "loss term %q", c.labels[ii])
		}
		values[ii] = value * c.weights[ii]
	}
	return NewLossDict(c.labels, values)
}

// Term implements Loss: it returns the scalar total of Evaluate.
func (c *Composite) Term(trajs []*state.Trajectory, trials []TrialSpec, model staged.Model) (*tensors.Tensor, error) {
	d, err := c.Evaluate(trajs, trials, model)
	if err != nil {
		return nil, err
	}
	return tensors.FromScalar(d.Total()), nil
}
