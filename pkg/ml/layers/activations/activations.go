// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activations implements several common activations, and includes a generic Apply method to apply an
// activation by its type.
//
// There is also FromName to convert an activation name (string) to its type, and ApplyFromContext that applies
// an activation based on the hyperparameter ParamActivation defined in a context.
package activations

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

const (
	// ParamActivation context hyperparameter defines the activation to use, for models using ApplyFromContext.
	// Available values are: `none`, `relu`, `leaky_relu`, `sigmoid`, `tanh`, `swish` (same as `silu`), `hard_swish`,
	// `selu`, `gelu` or `gelu_approx`.
	// The default is `none`.
	// See activations.TypeValues for complete list.
	ParamActivation = "activation"
)

// Type is an enum for the supported activation functions.
//
// It is converted to snake-format strings (e.g.: TypeLeakyRelu -> "leaky_relu"), and can be converted
// from string by using FromName or Parse.
type Type int

const (
	// TypeNone is the identity.
	TypeNone Type = iota
	TypeRelu
	TypeSigmoid
	TypeLeakyRelu
	TypeSelu
	TypeSwish
	TypeHardSwish

	// TypeSilu is an alias to TypeSwish
	TypeSilu

	TypeTanh

	TypeGelu
	TypeGeluApprox
)

//go:generate go tool enumer -type Type -trimprefix=Type -transform=snake -output=gen_type_enumer.go activations.go

// ApplyFromContext picks an activation function from the context using [ParamActivation] parameter,
// and applies it to x.
//
// It defaults to "none".
func ApplyFromContext(ctx *context.Context, x *tensors.Tensor) *tensors.Tensor {
	activationName := context.GetParamOr(ctx, ParamActivation, "none")
	return Apply(FromName(activationName), x)
}

// Apply the given activation type, element-wise.
// The TypeNone activation is a no-op.
//
// See TypeValues for valid values.
func Apply(activation Type, x *tensors.Tensor) *tensors.Tensor {
	if activation == TypeNone {
		return x
	}
	return ops.Map(x, ScalarFn(activation))
}

// ScalarFn returns the scalar function implementing the activation.
func ScalarFn(activation Type) func(float64) float64 {
	switch activation {
	case TypeNone:
		return func(x float64) float64 { return x }
	case TypeRelu:
		return relu
	case TypeLeakyRelu:
		return func(x float64) float64 { return leakyRelu(x, 0.3) }
	case TypeSigmoid:
		return sigmoid
	case TypeTanh:
		return math.Tanh
	case TypeSwish, TypeSilu:
		return func(x float64) float64 { return x * sigmoid(x) }
	case TypeHardSwish:
		return func(x float64) float64 { return x * min(max(x/6+0.5, 0), 1) }
	case TypeSelu:
		return selu
	case TypeGelu:
		return gelu
	case TypeGeluApprox:
		return geluApproximate
	default:
		exceptions.Panicf("Apply got invalid activation value %q: options are %v", activation, TypeValues())
	}
	return nil
}

// Parse converts the name of an activation to its type, returning a configuration error if the
// name is invalid. An empty string is converted to TypeNone.
func Parse(activationName string) (Type, error) {
	if activationName == "" {
		return TypeNone, nil
	}
	activation, err := TypeString(activationName)
	if err != nil {
		return TypeNone, errs.Configurationf("invalid activation name %q: options are %v", activationName, TypeStrings())
	}
	return activation, nil
}

// FromName converts the name of an activation to its type.
// It panics with a helpful message if name is invalid.
//
// And empty string is converted to TypeNone.
func FromName(activationName string) Type {
	activation, err := Parse(activationName)
	if err != nil {
		panic(err)
	}
	return activation
}

func relu(x float64) float64 { return max(x, 0) }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// leakyRelu returns `x if x >= 0; alpha*x if x < 0`.
func leakyRelu(x, alpha float64) float64 {
	if x >= 0 {
		return x
	}
	return alpha * x
}

const (
	SeluAlpha = 1.67326324
	SeluScale = 1.05070098
)

// selu stands for Scaled Exponential Linear Unit (SELU).
func selu(x float64) float64 {
	if x > 0 {
		return SeluScale * x
	}
	return SeluScale * SeluAlpha * (math.Exp(x) - 1)
}

// gelu(x) = x * 0.5 * (1 + Erf(x / √2)).
func gelu(x float64) float64 {
	return x * 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// geluApproximate(x) = x * 0.5 * (1 + Tanh(Sqrt(2/Pi) * (x+0.044715*x^3))).
func geluApproximate(x float64) float64 {
	return x * 0.5 * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(x+0.044715*x*x*x)))
}
