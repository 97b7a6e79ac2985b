// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dimensions of a dense float64 tensor.
//
// Shapes are small value types: rank 0 is a scalar, rank 1 a vector and rank 2 a matrix
// (rows x columns). Contrary to most array libraries, axes of dimension 0 are valid: they are
// used for placeholders, e.g. the input weights of a recurrent cell that receives no input.
//
// Example:
//
//	s := shapes.Make(hiddenSize, inputSize)
//	if err := s.CheckDims(-1, inputSize); err != nil { ... }
package shapes

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// Shape holds the dimensions of a tensor.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions. It panics for negative dimensions.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%v): cannot create a shape with an axis with dimension < 0", dimensions)
		}
	}
	return s
}

// Scalar returns the shape of a scalar.
func Scalar() Shape { return Shape{} }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar (rank == 0).
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// IsZeroSize returns whether some axis has dimension 0.
func (s Shape) IsZeroSize() bool { return s.Size() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Size returns the number of elements of the shape, the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// String implements fmt.Stringer: "()" for scalars, "(3)" for a vector, "(2, 3)" for a matrix.
func (s Shape) String() string {
	parts := make([]string, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		parts[ii] = fmt.Sprintf("%d", dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CheckDims returns a shape error if the shape doesn't have the given dimensions.
// A dimension of -1 in dims matches any value.
func (s Shape) CheckDims(dims ...int) error {
	if s.Rank() != len(dims) {
		return errs.Shapef("shape %s has rank %d, wanted rank %d", s, s.Rank(), len(dims))
	}
	for axis, want := range dims {
		if want >= 0 && s.Dimensions[axis] != want {
			return errs.Shapef("shape %s has dimension %d on axis %d, wanted %d", s, s.Dimensions[axis], axis, want)
		}
	}
	return nil
}

// AssertDims panics with a shape error if the shape doesn't have the given dimensions.
// See CheckDims.
func (s Shape) AssertDims(dims ...int) {
	if err := s.CheckDims(dims...); err != nil {
		panic(err)
	}
}

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout.
//
// Notice the strides are in indices, not bytes.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for dim := rank - 1; dim >= 0; dim-- {
		strides[dim] = currentStride
		currentStride *= s.Dimensions[dim]
	}
	return
}

// Iter iterates sequentially over all possible indices of the shape.
//
// It yields the flat index and a slice of indices for each axis. The yielded slice is owned
// by the iterator: don't change it inside the loop.
func (s Shape) Iter() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		size := s.Size()
		indices := make([]int, s.Rank())
		for flatIdx := range size {
			if !yield(flatIdx, indices) {
				return
			}
			for axis := s.Rank() - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				indices[axis] = 0
			}
		}
	}
}
