// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package populations partitions the hidden units of a recurrent network into 4 disjoint
// populations with different connectivity:
//
//   - input-only units receive the network inputs, but don't contribute to the readout;
//   - readout-only units contribute to the readout, but don't receive inputs;
//   - recurrent-only units neither receive inputs nor contribute to the readout;
//   - input-readout units do both.
//
// A Structure is used to build the connectivity masks of the hidden layer inputs (InputMask)
// and of the readout (ReadoutMask).
package populations

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/sets"
	"github.com/gomlx/stagednet/pkg/support/xslices"
)

// Population identifies one of the hidden unit populations.
type Population int

const (
	InputOnly Population = iota
	ReadoutOnly
	RecurrentOnly
	InputReadout

	// NumPopulations is the number of populations.
	NumPopulations
)

var populationNames = [NumPopulations]string{"input_only", "readout_only", "recurrent_only", "input_readout"}

// String implements fmt.Stringer.
func (p Population) String() string {
	if p < 0 || p >= NumPopulations {
		return fmt.Sprintf("Population(%d)", int(p))
	}
	return populationNames[p]
}

// Sizes holds the number of units in each population, indexed by Population.
type Sizes [NumPopulations]int

// Total number of units.
func (s Sizes) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// String returns the sizes as "input_only=2, readout_only=2, ...".
func (s Sizes) String() string {
	parts := make([]string, NumPopulations)
	for p, n := range s {
		parts[p] = fmt.Sprintf("%s=%d", Population(p), n)
	}
	return strings.Join(parts, ", ")
}

// ParseSizes parses a comma-separated list of 4 sizes, in the order input-only, readout-only,
// recurrent-only, input-readout. E.g.: "2,2,1,1".
func ParseSizes(str string) (Sizes, error) {
	var sizes Sizes
	parts := strings.Split(str, ",")
	if len(parts) != int(NumPopulations) {
		return sizes, errs.Configurationf("population sizes %q: expected %d comma-separated values, got %d",
			str, NumPopulations, len(parts))
	}
	for ii, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return sizes, errs.Configurationf("population sizes %q: %v", str, err)
		}
		sizes[ii] = n
	}
	return sizes, nil
}

// Indices holds the hidden unit indices of each population, indexed by Population.
type Indices [NumPopulations][]int

// AssignmentFn distributes the hiddenSize units among the populations with the given sizes.
// The key is only used by random assignments.
type AssignmentFn func(hiddenSize int, sizes Sizes, key random.Key) Indices

// splitInOrder assigns consecutive runs of order to the populations.
func splitInOrder(order []int, sizes Sizes) Indices {
	var indices Indices
	start := 0
	for p, n := range sizes {
		indices[p] = slices.Clone(order[start : start+n])
		start += n
	}
	return indices
}

// Random assigns units to populations by a random permutation drawn from key. It's the
// default assignment.
func Random(hiddenSize int, sizes Sizes, key random.Key) Indices {
	return splitInOrder(key.Permutation(hiddenSize), sizes)
}

// Contiguous assigns units to populations in contiguous blocks, in the order input-only,
// readout-only, recurrent-only and input-readout. The key is not used.
func Contiguous(hiddenSize int, sizes Sizes, _ random.Key) Indices {
	return splitInOrder(xslices.Iota(0, hiddenSize), sizes)
}

// Structure is an immutable partition of hidden units into populations.
type Structure struct {
	hiddenSize int
	sizes      Sizes
	indices    Indices
}

// Create a population Structure for hiddenSize units with the given population sizes.
//
// The sizes must be non-negative and sum up to hiddenSize. If assignment is nil, Random is used.
// The indices returned by the assignment are validated: the populations must be disjoint, of the
// requested sizes and together cover all hidden units.
func Create(hiddenSize int, sizes Sizes, assignment AssignmentFn, key random.Key) (*Structure, error) {
	for p, n := range sizes {
		if n < 0 {
			return nil, errs.Configurationf("population %s has negative size %d", Population(p), n)
		}
	}
	if total := sizes.Total(); total != hiddenSize {
		return nil, errs.Configurationf("population sizes must sum to hidden_size: got %d != %d (%s)",
			total, hiddenSize, sizes)
	}
	if assignment == nil {
		assignment = Random
	}
	indices := assignment(hiddenSize, sizes, key)
	if err := validate(hiddenSize, sizes, indices); err != nil {
		return nil, err
	}
	return &Structure{hiddenSize: hiddenSize, sizes: sizes, indices: indices}, nil
}

func validate(hiddenSize int, sizes Sizes, indices Indices) error {
	seen := sets.Make[int](hiddenSize)
	for p, idx := range indices {
		if len(idx) != sizes[p] {
			return errs.Configurationf("assignment gave %d units to population %s, expected %d",
				len(idx), Population(p), sizes[p])
		}
		popSet := sets.MakeWith(idx...)
		if len(popSet) != len(idx) {
			return errs.Configurationf("assignment repeats units in population %s: %v", Population(p), idx)
		}
		if !seen.IsDisjoint(popSet) {
			return errs.Configurationf("assignment gives units %v to population %s and to another population",
				sets.Sorted(seen.Intersect(popSet)), Population(p))
		}
		seen = seen.Union(popSet)
	}
	if !seen.Equal(sets.MakeWith(xslices.Iota(0, hiddenSize)...)) {
		return errs.Configurationf("assignment doesn't cover exactly the units 0..%d: got %v", hiddenSize-1, sets.Sorted(seen))
	}
	return nil
}

// HiddenSize is the total number of units.
func (s *Structure) HiddenSize() int { return s.hiddenSize }

// Sizes returns the number of units in each population.
func (s *Structure) Sizes() Sizes { return s.sizes }

// Size returns the number of units in population p.
func (s *Structure) Size(p Population) int { return s.sizes[p] }

// Indices returns a copy of the indices of the units in population p, in assignment order.
func (s *Structure) Indices(p Population) []int { return slices.Clone(s.indices[p]) }

// InputIndices returns the units receiving inputs: input-only followed by input-readout.
func (s *Structure) InputIndices() []int {
	return slices.Concat(s.indices[InputOnly], s.indices[InputReadout])
}

// ReadoutIndices returns the units contributing to the readout: readout-only followed by input-readout.
func (s *Structure) ReadoutIndices() []int {
	return slices.Concat(s.indices[ReadoutOnly], s.indices[InputReadout])
}

// PopulationOf returns the population of the given unit.
func (s *Structure) PopulationOf(unit int) (Population, error) {
	for p, idx := range s.indices {
		if slices.Contains(idx, unit) {
			return Population(p), nil
		}
	}
	return 0, errs.Configurationf("unit %d is not in 0..%d", unit, s.hiddenSize-1)
}

// InputMask returns the connectivity mask of the hidden layer inputs, shaped
// [blocks*hiddenSize, inputSize]: rows of the units receiving inputs are ones, all others zeros.
// The [hiddenSize, inputSize] mask is tiled blocks times along the rows, for layers whose input
// weights stack several gates (e.g. 3 for a GRU).
func (s *Structure) InputMask(inputSize, blocks int) *tensors.Tensor {
	mask := ops.SetRows(tensors.Zeros(s.hiddenSize, inputSize), s.InputIndices(), 1)
	if blocks == 1 {
		return mask
	}
	return ops.TileRows(mask, blocks)
}

// ReadoutMask returns the connectivity mask of the readout, shaped [outputSize, hiddenSize]:
// columns of the units contributing to the readout are ones, all others zeros.
func (s *Structure) ReadoutMask(outputSize int) *tensors.Tensor {
	return ops.SetColumns(tensors.Zeros(outputSize, s.hiddenSize), s.ReadoutIndices(), 1)
}

// String implements fmt.Stringer.
func (s *Structure) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "populations.Structure(hidden_size=%d)", s.hiddenSize)
	for p, idx := range s.indices {
		fmt.Fprintf(&sb, "\n  %-15s %v", Population(p).String()+":", idx)
	}
	return sb.String()
}
