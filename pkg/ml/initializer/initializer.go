// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package initializer includes several weight initializers, to be used with context.
// They implement context.VariableInitializer, and take all their randomness from the key given
// at variable creation.
package initializer

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"gonum.org/v1/gonum/mat"
)

// Initializer is the type of variable initializers, an alias to context.VariableInitializer.
type Initializer = context.VariableInitializer

var (
	// Zero initializes variables with zeros.
	Zero Initializer = context.ZeroInitializer

	// One initializes variables with ones.
	One = Constant(1)
)

// Constant returns an initializer that fills variables with value.
func Constant(value float64) Initializer {
	return func(_ random.Key, shape shapes.Shape) *tensors.Tensor {
		return tensors.Full(value, shape.Dimensions...)
	}
}

// Normal returns an initializer that generates random normal values with the given standard deviation
// and mean set to 0.
func Normal(stddev float64) Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		return ops.MulScalar(key.Normal(shape), stddev)
	}
}

// Uniform returns an initializer that generates random uniform values from [min, max).
func Uniform(minValue, maxValue float64) Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		return key.Uniform(shape, minValue, maxValue)
	}
}

// UniformFanIn returns the default initializer of linear and recurrent layers: values are uniform
// in [-1/sqrt(fanIn), 1/sqrt(fanIn)).
//
// Zero-size shapes and fanIn == 0 produce zeros.
func UniformFanIn(fanIn int) Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		if fanIn <= 0 || shape.IsZeroSize() {
			return tensors.FromShape(shape)
		}
		limit := 1 / math.Sqrt(float64(fanIn))
		return key.Uniform(shape, -limit, limit)
	}
}

// computeFanInFanOut of a weight matrix shaped (outputs, inputs).
// Vectors (biases) and scalars return zeros.
func computeFanInFanOut(shape shapes.Shape) (fanIn, fanOut int) {
	if shape.Rank() < 2 {
		return 0, 0
	}
	return shape.Dim(1), shape.Dim(0)
}

// XavierUniform returns an initializer that generates random values with a uniform distribution with a range
// defined by +/- sqrt(6 / (fanIn+fanOut)).
//
// It initializes biases (anything with rank <= 1) to zeros.
func XavierUniform() Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		fanIn, fanOut := computeFanInFanOut(shape)
		if fanIn+fanOut == 0 {
			return tensors.FromShape(shape)
		}
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		return key.Uniform(shape, -limit, limit)
	}
}

// XavierNormal returns an initializer that generates random values with a normal distribution with mean in 0
// and stddev of sqrt(2 / (fanIn+fanOut)).
//
// It initializes biases (anything with rank <= 1) to zeros.
func XavierNormal() Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		fanIn, fanOut := computeFanInFanOut(shape)
		if fanIn+fanOut == 0 {
			return tensors.FromShape(shape)
		}
		return ops.MulScalar(key.Normal(shape), math.Sqrt(2/float64(fanIn+fanOut)))
	}
}

// He returns the initializer that tries to preserve the variance of 1, calculated for the Relu activation
// functions: normal with stddev sqrt(2/fanIn).
//
// It initializes biases (anything with rank <= 1) to zeros.
func He() Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		fanIn, _ := computeFanInFanOut(shape)
		if fanIn == 0 {
			return tensors.FromShape(shape)
		}
		return ops.MulScalar(key.Normal(shape), math.Sqrt(2/float64(fanIn)))
	}
}

// Orthogonal returns an initializer of rank-2 variables whose rows (or columns, whichever are fewer)
// are orthonormal, multiplied by scale. It uses the QR decomposition of a random normal matrix,
// with the signs fixed by the diagonal of R so the distribution is uniform.
func Orthogonal(scale float64) Initializer {
	return func(key random.Key, shape shapes.Shape) *tensors.Tensor {
		if shape.Rank() != 2 {
			exceptions.Panicf("initializer.Orthogonal() requires a rank-2 shape, got %s", shape)
		}
		if shape.IsZeroSize() {
			return tensors.FromShape(shape)
		}
		rows, cols := shape.Dim(0), shape.Dim(1)
		big, small := max(rows, cols), min(rows, cols)
		a := key.Normal(shapes.Make(big, small)).Dense()

		var qr mat.QR
		qr.Factorize(a)
		var q, r mat.Dense
		qr.QTo(&q)
		qr.RTo(&r)
		thinQ := mat.DenseCopyOf(q.Slice(0, big, 0, small))
		for jj := range small {
			if r.At(jj, jj) < 0 {
				for ii := range big {
					thinQ.Set(ii, jj, -thinQ.At(ii, jj))
				}
			}
		}
		thinQ.Scale(scale, thinQ)
		result := tensors.FromDense(thinQ)
		if rows < cols {
			result = ops.Transpose(result)
		}
		return result
	}
}
