// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"slices"
	"sync"

	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/gomlx/stagednet/pkg/support/xslices"
)

// Constructor builds a layer mapping inputSize to outputSize, creating its variables in ctx.
// Hyperparameters beyond the sizes are read from ctx.
type Constructor func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error)

// Names of the registered layer types.
const (
	TypeLinear        = "linear"
	TypeTwoLayer      = "two_layer"
	TypeGRU           = "gru"
	TypeOrthogonalGRU = "orthogonal_gru"
	TypeLeakyRNN      = "leaky_rnn"
)

// Context hyperparameters read by the registered constructors.
const (
	// ParamTwoLayerHiddenSize is the size of the intermediate layer of "two_layer". Default is 32.
	ParamTwoLayerHiddenSize = "two_layer_hidden_size"

	// ParamTwoLayerNonlinearity is the nonlinearity between the layers of "two_layer". Default is "tanh".
	ParamTwoLayerNonlinearity = "two_layer_nonlinearity"

	// ParamOrthogonalScale is the scale of the orthogonal recurrent weights of "orthogonal_gru". Default is 1.
	ParamOrthogonalScale = "orthogonal_scale"
)

var (
	muRegistry sync.RWMutex
	registry   = map[string]Constructor{
		TypeLinear: func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
			return NewLinear(ctx, inputSize, outputSize, useBias, key)
		},
		TypeTwoLayer: func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
			nonlinearity, err := activations.Parse(context.GetParamOr(ctx, ParamTwoLayerNonlinearity, "tanh"))
			if err != nil {
				return nil, err
			}
			hiddenSize := context.GetParamOr(ctx, ParamTwoLayerHiddenSize, 32)
			return NewTwoLayerLinear(ctx, hiddenSize, inputSize, outputSize, useBias, nonlinearity, key)
		},
		TypeGRU: func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
			return NewGRUCell(ctx, inputSize, outputSize, useBias, key)
		},
		TypeOrthogonalGRU: func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
			scale := context.GetParamOr(ctx, ParamOrthogonalScale, 1.0)
			return NewOrthogonalGRUCell(ctx, inputSize, outputSize, useBias, scale, key)
		},
		TypeLeakyRNN: func(ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
			config, err := LeakyRNNConfigFromContext(ctx)
			if err != nil {
				return nil, err
			}
			return NewLeakyRNNCell(ctx, inputSize, outputSize, useBias, config, key)
		},
	}
)

// Register a layer type constructor under the given name, replacing any previous one.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	registry[name] = constructor
}

// Lookup returns the constructor registered under name, or a configuration error listing the
// available types.
func Lookup(name string) (Constructor, error) {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	constructor, found := registry[name]
	if !found {
		return nil, errs.Configurationf("unknown layer type %q, registered types are %v", name, xslices.SortedKeys(registry))
	}
	return constructor, nil
}

// RegisteredTypes returns the names of all registered layer types, sorted.
func RegisteredTypes() []string {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	return slices.Clone(xslices.SortedKeys(registry))
}

// New builds a layer of the registered type name.
func New(name string, ctx *context.Context, inputSize, outputSize int, useBias bool, key random.Key) (Layer, error) {
	constructor, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return constructor(ctx, inputSize, outputSize, useBias, key)
}
