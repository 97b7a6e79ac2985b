// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements the numeric operations on tensors used by the layers and the execution engine.
//
// Operations never modify their operands: they always return newly allocated tensors. Incompatible
// shapes panic with an error wrapping errs.ErrShape, which the public entry points of the engine
// convert back to a returned error.
//
// Element-wise operations use gonum's floats package, linear algebra uses gonum's mat package.
package ops

import (
	"math"

	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func assertSameShape(opName string, x, y *tensors.Tensor) {
	if !x.Shape().Equal(y.Shape()) {
		panic(errs.Shapef("ops.%s(): incompatible shapes %s and %s", opName, x.Shape(), y.Shape()))
	}
}

func newLike(x *tensors.Tensor) []float64 { return make([]float64, x.Size()) }

func fromFlat(shape shapes.Shape, flat []float64) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(flat, shape.Dimensions...)
}

// Add returns x + y, element-wise. Shapes must match.
func Add(x, y *tensors.Tensor) *tensors.Tensor {
	assertSameShape("Add", x, y)
	out := newLike(x)
	floats.AddTo(out, x.Flat(), y.Flat())
	return fromFlat(x.Shape(), out)
}

// Sub returns x - y, element-wise. Shapes must match.
func Sub(x, y *tensors.Tensor) *tensors.Tensor {
	assertSameShape("Sub", x, y)
	out := newLike(x)
	floats.SubTo(out, x.Flat(), y.Flat())
	return fromFlat(x.Shape(), out)
}

// Mul returns x * y, element-wise (the Hadamard product). Shapes must match.
func Mul(x, y *tensors.Tensor) *tensors.Tensor {
	assertSameShape("Mul", x, y)
	out := newLike(x)
	floats.MulTo(out, x.Flat(), y.Flat())
	return fromFlat(x.Shape(), out)
}

// MulScalar returns x * c.
func MulScalar(x *tensors.Tensor, c float64) *tensors.Tensor {
	out := newLike(x)
	floats.ScaleTo(out, c, x.Flat())
	return fromFlat(x.Shape(), out)
}

// AddScalar returns x + c.
func AddScalar(x *tensors.Tensor, c float64) *tensors.Tensor {
	out := x.CopyFlat()
	floats.AddConst(c, out)
	return fromFlat(x.Shape(), out)
}

// Lerp returns (1-alpha)*x + alpha*y, element-wise. Shapes must match.
func Lerp(x, y *tensors.Tensor, alpha float64) *tensors.Tensor {
	assertSameShape("Lerp", x, y)
	out := newLike(x)
	floats.ScaleTo(out, 1-alpha, x.Flat())
	floats.AddScaled(out, alpha, y.Flat())
	return fromFlat(x.Shape(), out)
}

// Map applies fn to each element of x.
func Map(x *tensors.Tensor, fn func(float64) float64) *tensors.Tensor {
	out := newLike(x)
	for ii, v := range x.Flat() {
		out[ii] = fn(v)
	}
	return fromFlat(x.Shape(), out)
}

// Tanh returns tanh(x), element-wise.
func Tanh(x *tensors.Tensor) *tensors.Tensor { return Map(x, math.Tanh) }

// Sigmoid returns 1/(1+exp(-x)), element-wise.
func Sigmoid(x *tensors.Tensor) *tensors.Tensor {
	return Map(x, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
}

// Square returns x*x, element-wise.
func Square(x *tensors.Tensor) *tensors.Tensor {
	return Map(x, func(v float64) float64 { return v * v })
}

// Sum returns the sum of all elements of x. Zero-size tensors sum to 0.
func Sum(x *tensors.Tensor) float64 { return floats.Sum(x.Flat()) }

// SumSquares returns the sum of the squares of all elements of x.
func SumSquares(x *tensors.Tensor) float64 { return floats.Dot(x.Flat(), x.Flat()) }

// Mean returns the mean of all elements of x, NaN for zero-size tensors.
func Mean(x *tensors.Tensor) float64 {
	if x.Size() == 0 {
		return math.NaN()
	}
	return Sum(x) / float64(x.Size())
}

// MatVec returns w·x, for a matrix w of shape (rows, cols) and a vector x of shape (cols).
// Zero-sized operands are valid: a (rows, 0) matrix yields a zero vector.
func MatVec(w, x *tensors.Tensor) *tensors.Tensor {
	if w.Rank() != 2 || x.Rank() != 1 || w.Shape().Dim(1) != x.Shape().Dim(0) {
		panic(errs.Shapef("ops.MatVec(): incompatible shapes %s and %s", w.Shape(), x.Shape()))
	}
	rows, cols := w.Shape().Dim(0), w.Shape().Dim(1)
	out := make([]float64, rows)
	if rows == 0 || cols == 0 {
		return tensors.FromFlatDataAndDimensions(out, rows)
	}
	y := mat.NewVecDense(rows, out)
	y.MulVec(w.Dense(), mat.NewVecDense(cols, x.Flat()))
	return tensors.FromFlatDataAndDimensions(out, rows)
}

// MatMul returns the matrix product a·b, for a of shape (m, k) and b of shape (k, n).
func MatMul(a, b *tensors.Tensor) *tensors.Tensor {
	if a.Rank() != 2 || b.Rank() != 2 || a.Shape().Dim(1) != b.Shape().Dim(0) {
		panic(errs.Shapef("ops.MatMul(): incompatible shapes %s and %s", a.Shape(), b.Shape()))
	}
	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	if m == 0 || k == 0 || n == 0 {
		return tensors.Zeros(m, n)
	}
	var product mat.Dense
	product.Mul(a.Dense(), b.Dense())
	return tensors.FromDense(&product)
}

// Transpose returns the transpose of a rank-2 tensor.
func Transpose(x *tensors.Tensor) *tensors.Tensor {
	x.Shape().AssertDims(-1, -1)
	rows, cols := x.Shape().Dim(0), x.Shape().Dim(1)
	out := make([]float64, x.Size())
	flat := x.Flat()
	for ii := range rows {
		for jj := range cols {
			out[jj*rows+ii] = flat[ii*cols+jj]
		}
	}
	return tensors.FromFlatDataAndDimensions(out, cols, rows)
}

// TileRows stacks n copies of the rank-2 tensor x along the rows axis: the result has shape
// (n*rows, cols).
func TileRows(x *tensors.Tensor, n int) *tensors.Tensor {
	x.Shape().AssertDims(-1, -1)
	out := make([]float64, 0, n*x.Size())
	for range n {
		out = append(out, x.Flat()...)
	}
	return tensors.FromFlatDataAndDimensions(out, n*x.Shape().Dim(0), x.Shape().Dim(1))
}

// SliceRows returns rows [from, to) of a rank-2 tensor, or elements [from, to) of a vector.
func SliceRows(x *tensors.Tensor, from, to int) *tensors.Tensor {
	if x.Rank() == 0 || from < 0 || to > x.Shape().Dim(0) || from > to {
		panic(errs.Shapef("ops.SliceRows(%d, %d): invalid range for shape %s", from, to, x.Shape()))
	}
	if x.Rank() == 1 {
		return tensors.FromFlatDataAndDimensions(x.Flat()[from:to], to-from)
	}
	cols := x.Shape().Dim(1)
	return tensors.FromFlatDataAndDimensions(x.Flat()[from*cols:to*cols], to-from, cols)
}

// SplitRows splits the rows of x (or elements of a vector) into n equal parts. The
// number of rows must be divisible by n.
func SplitRows(x *tensors.Tensor, n int) []*tensors.Tensor {
	rows := x.Shape().Dim(0)
	if n <= 0 || rows%n != 0 {
		panic(errs.Shapef("ops.SplitRows(): cannot split shape %s into %d parts", x.Shape(), n))
	}
	size := rows / n
	parts := make([]*tensors.Tensor, n)
	for ii := range n {
		parts[ii] = SliceRows(x, ii*size, (ii+1)*size)
	}
	return parts
}

// ConcatRows concatenates rank-2 tensors with the same number of columns along the rows, or
// vectors end-to-end.
func ConcatRows(xs ...*tensors.Tensor) *tensors.Tensor {
	if len(xs) == 0 {
		return tensors.Zeros(0)
	}
	rank := xs[0].Rank()
	var out []float64
	rows := 0
	for _, x := range xs {
		if x.Rank() != rank || (rank == 2 && x.Shape().Dim(1) != xs[0].Shape().Dim(1)) || rank == 0 {
			panic(errs.Shapef("ops.ConcatRows(): incompatible shapes %s and %s", xs[0].Shape(), x.Shape()))
		}
		out = append(out, x.Flat()...)
		rows += x.Shape().Dim(0)
	}
	if rank == 1 {
		return tensors.FromFlatDataAndDimensions(out, rows)
	}
	return tensors.FromFlatDataAndDimensions(out, rows, xs[0].Shape().Dim(1))
}

// Flatten concatenates the elements of all the given tensors, in row-major order, into a single vector.
func Flatten(xs ...*tensors.Tensor) *tensors.Tensor {
	var out []float64
	for _, x := range xs {
		out = append(out, x.Flat()...)
	}
	return tensors.FromFlatDataAndDimensions(out, len(out))
}

// Stack stacks tensors of equal shape into a tensor with one extra leading axis. Only vectors
// and scalars can be stacked, since tensors are limited to rank 2.
func Stack(xs ...*tensors.Tensor) *tensors.Tensor {
	if len(xs) == 0 {
		return tensors.Zeros(0)
	}
	first := xs[0]
	if first.Rank() > 1 {
		panic(errs.Shapef("ops.Stack(): cannot stack tensors of shape %s", first.Shape()))
	}
	out := make([]float64, 0, len(xs)*first.Size())
	for _, x := range xs {
		assertSameShape("Stack", first, x)
		out = append(out, x.Flat()...)
	}
	if first.Rank() == 0 {
		return tensors.FromFlatDataAndDimensions(out, len(xs))
	}
	return tensors.FromFlatDataAndDimensions(out, len(xs), first.Size())
}

// SetRows returns a copy of the rank-2 tensor x with the given rows set to value.
func SetRows(x *tensors.Tensor, rows []int, value float64) *tensors.Tensor {
	x.Shape().AssertDims(-1, -1)
	numRows, cols := x.Shape().Dim(0), x.Shape().Dim(1)
	out := x.CopyFlat()
	for _, row := range rows {
		if row < 0 || row >= numRows {
			panic(errs.Shapef("ops.SetRows(): row %d out of bounds for shape %s", row, x.Shape()))
		}
		for jj := range cols {
			out[row*cols+jj] = value
		}
	}
	return tensors.FromFlatDataAndDimensions(out, numRows, cols)
}

// SetColumns returns a copy of the rank-2 tensor x with the given columns set to value.
func SetColumns(x *tensors.Tensor, columns []int, value float64) *tensors.Tensor {
	x.Shape().AssertDims(-1, -1)
	numRows, cols := x.Shape().Dim(0), x.Shape().Dim(1)
	out := x.CopyFlat()
	for _, col := range columns {
		if col < 0 || col >= cols {
			panic(errs.Shapef("ops.SetColumns(): column %d out of bounds for shape %s", col, x.Shape()))
		}
		for ii := range numRows {
			out[ii*cols+col] = value
		}
	}
	return tensors.FromFlatDataAndDimensions(out, numRows, cols)
}
