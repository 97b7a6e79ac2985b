// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Tensor, a dense row-major float64 array of rank 0 to 2.
//
// Tensors are immutable by convention: no function in stagednet changes the contents of a
// Tensor after it has been created, so they can be freely shared across states, stages and
// goroutines. Functions that compute new values (see package ops) always allocate new tensors.
//
// A nil *Tensor is used to represent an absent value, e.g. the output field of a network state
// for a network without readout.
package tensors

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense float64 array with a shape.
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// FromFlatDataAndDimensions returns a Tensor with the given dimensions and a copy of data.
// It panics with a shape error if len(data) doesn't match the dimensions.
func FromFlatDataAndDimensions(data []float64, dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if shape.Size() != len(data) {
		panic(errs.Shapef("tensors.FromFlatDataAndDimensions(): len(data)=%d, but shape %s has size %d",
			len(data), shape, shape.Size()))
	}
	return &Tensor{shape: shape, flat: slices.Clone(data)}
}

// FromShape returns a zero-initialized Tensor with the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape.Clone(), flat: make([]float64, shape.Size())}
}

// Zeros returns a zero-initialized Tensor with the given dimensions.
func Zeros(dimensions ...int) *Tensor {
	return FromShape(shapes.Make(dimensions...))
}

// Full returns a Tensor with the given dimensions filled with value.
func Full(value float64, dimensions ...int) *Tensor {
	t := Zeros(dimensions...)
	for ii := range t.flat {
		t.flat[ii] = value
	}
	return t
}

// Ones returns a Tensor with the given dimensions filled with 1.
func Ones(dimensions ...int) *Tensor {
	return Full(1, dimensions...)
}

// FromScalar returns a rank-0 Tensor.
func FromScalar(value float64) *Tensor {
	return &Tensor{flat: []float64{value}}
}

// FromValue converts a Go value to a Tensor. It accepts float64, []float64 and [][]float64.
// Ragged [][]float64 values panic with a shape error.
func FromValue(value any) *Tensor {
	switch v := value.(type) {
	case float64:
		return FromScalar(v)
	case []float64:
		return FromFlatDataAndDimensions(v, len(v))
	case [][]float64:
		rows := len(v)
		cols := 0
		if rows > 0 {
			cols = len(v[0])
		}
		flat := make([]float64, 0, rows*cols)
		for ii, row := range v {
			if len(row) != cols {
				panic(errs.Shapef("tensors.FromValue(): row %d has %d elements, row 0 has %d", ii, len(row), cols))
			}
			flat = append(flat, row...)
		}
		return &Tensor{shape: shapes.Make(rows, cols), flat: flat}
	default:
		exceptions.Panicf("tensors.FromValue(): unsupported type %T", value)
	}
	return nil
}

// FromDense converts a gonum matrix to a Tensor (data is copied).
func FromDense(m mat.Matrix) *Tensor {
	rows, cols := m.Dims()
	return &Tensor{shape: shapes.Make(rows, cols), flat: mat.DenseCopyOf(m).RawMatrix().Data}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int { return len(t.flat) }

// IsScalar returns whether the tensor has rank 0.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Flat returns the underlying row-major data. It must not be modified: use CopyFlat to get
// a mutable copy.
func (t *Tensor) Flat() []float64 { return t.flat }

// CopyFlat returns a copy of the row-major data.
func (t *Tensor) CopyFlat() []float64 { return slices.Clone(t.flat) }

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), flat: slices.Clone(t.flat)}
}

// Reshape returns a tensor sharing the data with new dimensions of the same size.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if shape.Size() != t.Size() {
		panic(errs.Shapef("cannot reshape %s to %s", t.shape, shape))
	}
	return &Tensor{shape: shape, flat: t.flat}
}

// At returns the element at the given indices, one per axis.
func (t *Tensor) At(indices ...int) float64 {
	if len(indices) != t.Rank() {
		exceptions.Panicf("Tensor.At(%v) for tensor of shape %s", indices, t.shape)
	}
	flatIdx := 0
	for axis, stride := range t.shape.Strides() {
		idx := indices[axis]
		if idx < 0 || idx >= t.shape.Dimensions[axis] {
			exceptions.Panicf("Tensor.At(%v) out-of-bounds for shape %s", indices, t.shape)
		}
		flatIdx += idx * stride
	}
	return t.flat[flatIdx]
}

// Row returns a copy of row ii of a rank-2 tensor.
func (t *Tensor) Row(ii int) []float64 {
	t.shape.AssertDims(-1, -1)
	cols := t.shape.Dimensions[1]
	return slices.Clone(t.flat[ii*cols : (ii+1)*cols])
}

// Value returns the contents as a Go value: float64, []float64 or [][]float64 depending on the rank.
func (t *Tensor) Value() any {
	switch t.Rank() {
	case 0:
		return t.flat[0]
	case 1:
		return slices.Clone(t.flat)
	default:
		rows := t.shape.Dimensions[0]
		out := make([][]float64, rows)
		for ii := range rows {
			out[ii] = t.Row(ii)
		}
		return out
	}
}

// Dense returns a gonum matrix view of a rank-2 tensor with non-zero size. The returned
// matrix shares the data and must be used read-only.
func (t *Tensor) Dense() *mat.Dense {
	t.shape.AssertDims(-1, -1)
	if t.Size() == 0 {
		exceptions.Panicf("Tensor.Dense() of zero-size tensor %s", t.shape)
	}
	return mat.NewDense(t.shape.Dimensions[0], t.shape.Dimensions[1], t.flat)
}

// Equal compares shape and values exactly. NaN values are considered equal to each other.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii, v := range t.flat {
		w := other.flat[ii]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// InDelta compares shape and values, allowing an absolute difference of up to delta.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii, v := range t.flat {
		if math.Abs(v-other.flat[ii]) > delta {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.IsScalar() {
		return fmt.Sprintf("%g", t.flat[0])
	}
	return fmt.Sprintf("%s%v", t.shape, t.Value())
}
