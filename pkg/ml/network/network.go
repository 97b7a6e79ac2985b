// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package network implements a staged recurrent network: one step of a hidden layer (by default a
// GRU), with an optional encoder before it, an optional readout after it, nonlinearities and
// optional hidden noise.
//
// The stages of one step are, in order:
//
//   - "input": flattens the raw input into the Input field;
//   - "encoder" (only with an encoding size): Input -> Encoding;
//   - "hidden": Encoding (or Input) -> Hidden, the hidden layer;
//   - "hidden_nonlinearity": applied to Hidden;
//   - "hidden_noise" (only if configured): adds Gaussian noise to Hidden;
//   - "readout" (only with an output size): Hidden -> Output, with its bias set to zero;
//   - "out_nonlinearity": applied to Output, or to Hidden if there is no readout.
//
// Optionally, a populations.Structure restricts which hidden units receive the inputs and which
// contribute to the readout, by masking the hidden layer input weights and the readout weights.
//
// Example:
//
//	ctx := context.New()
//	net, err := network.New(ctx, inputSize, 64).
//		OutSize(2).
//		HiddenType(nn.TypeLeakyRNN).
//		Populations(structure).
//		Done(random.NewKey(seed))
//	traj, err := staged.Run(net, inputs, key)
package network

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/nn"
	"github.com/gomlx/stagednet/pkg/ml/populations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"k8s.io/klog/v2"
)

// Stage labels.
const (
	StageInput              = "input"
	StageEncoder            = "encoder"
	StageHidden             = "hidden"
	StageHiddenNonlinearity = "hidden_nonlinearity"
	StageHiddenNoise        = "hidden_noise"
	StageReadout            = "readout"
	StageOutNonlinearity    = "out_nonlinearity"
)

// Builder configures a Network. Create it with New, configure it with its methods, and call Done.
type Builder struct {
	ctx                   *context.Context
	inputSize, hiddenSize int
	outSize, encodingSize int
	hiddenType            string
	encoderType           string
	readoutType           string
	useBias               bool
	hiddenNonlinearity    activations.Type
	hiddenNonlinearitySet bool
	outNonlinearity       activations.Type
	hiddenNoiseStd        float64
	hasHiddenNoise        bool
	structure             *populations.Structure
	intervenors           staged.Intervenors
}

// New creates a Builder of a network with the given input and hidden sizes. Variables are
// created in ctx, under the scopes "encoder", "hidden" and "readout".
//
// Defaults: no encoder, no readout, a GRU hidden layer (nn.TypeGRU), linear encoder and readout
// (nn.TypeLinear), biases enabled, no nonlinearities and no hidden noise.
func New(ctx *context.Context, inputSize, hiddenSize int) *Builder {
	return &Builder{
		ctx:                ctx,
		inputSize:          inputSize,
		hiddenSize:         hiddenSize,
		hiddenType:         nn.TypeGRU,
		encoderType:        nn.TypeLinear,
		readoutType:        nn.TypeLinear,
		useBias:            true,
		hiddenNonlinearity: activations.TypeNone,
		outNonlinearity:    activations.TypeNone,
	}
}

// OutSize enables the readout with the given number of outputs. 0 disables it.
func (b *Builder) OutSize(outSize int) *Builder {
	b.outSize = outSize
	return b
}

// EncodingSize enables the encoder with the given number of units. 0 disables it.
func (b *Builder) EncodingSize(encodingSize int) *Builder {
	b.encodingSize = encodingSize
	return b
}

// HiddenType sets the registered layer type (see nn.Register) of the hidden layer.
func (b *Builder) HiddenType(layerType string) *Builder {
	b.hiddenType = layerType
	return b
}

// EncoderType sets the registered layer type of the encoder. It is ignored with a population
// structure, in which case the encoder is an unmasked nn.MaskedLinear.
func (b *Builder) EncoderType(layerType string) *Builder {
	b.encoderType = layerType
	return b
}

// ReadoutType sets the registered layer type of the readout. It is ignored with a population
// structure, in which case the readout is an nn.MaskedLinear.
func (b *Builder) ReadoutType(layerType string) *Builder {
	b.readoutType = layerType
	return b
}

// UseBias sets whether the layers have a bias term.
func (b *Builder) UseBias(useBias bool) *Builder {
	b.useBias = useBias
	return b
}

// HiddenNonlinearity sets the nonlinearity applied to the hidden layer output.
func (b *Builder) HiddenNonlinearity(activation activations.Type) *Builder {
	b.hiddenNonlinearity = activation
	b.hiddenNonlinearitySet = true
	return b
}

// OutNonlinearity sets the nonlinearity applied to the readout output (or to the hidden state
// if there is no readout).
func (b *Builder) OutNonlinearity(activation activations.Type) *Builder {
	b.outNonlinearity = activation
	return b
}

// HiddenNoiseStd enables the "hidden_noise" stage, with the given standard deviation.
func (b *Builder) HiddenNoiseStd(std float64) *Builder {
	b.hiddenNoiseStd = std
	b.hasHiddenNoise = true
	return b
}

// Populations sets the population structure of the hidden units. nil disables it.
func (b *Builder) Populations(structure *populations.Structure) *Builder {
	b.structure = structure
	return b
}

// Intervene registers hooks to run before the stage with the given label, after any previously
// registered ones.
func (b *Builder) Intervene(label string, hooks ...staged.Intervenor) *Builder {
	b.intervenors = b.intervenors.Add(label, hooks...)
	return b
}

// Network is a staged model with an optional encoder, a hidden layer and an optional readout.
// It implements staged.Model.
//
// It's immutable after construction, except for the values of its variables, which can be
// changed (e.g. by an optimizer) between evaluations.
type Network struct {
	ctx *context.Context

	inputSize, hiddenSize, outSize, encodingSize int

	encoder, hidden, readout nn.Layer

	hiddenNonlinearity, outNonlinearity activations.Type
	hiddenNoiseStd                      float64
	hasHiddenNoise                      bool
	structure                           *populations.Structure

	spec        *staged.Spec
	intervenors staged.Intervenors
}

var _ staged.Model = (*Network)(nil)

// Done creates the Network layers and variables, using key to initialize them.
//
// It returns a configuration error for invalid sizes or layer types, a population structure
// not matching the hidden size, a hidden layer type that cannot mask its inputs combined with a
// population structure, and intervenors registered for unknown stages.
func (b *Builder) Done(key random.Key) (*Network, error) {
	var net *Network
	var buildErr error
	err := exceptions.TryCatch[error](func() {
		net, buildErr = b.build(key)
	})
	if err == nil {
		err = buildErr
	}
	if err != nil {
		return nil, err
	}
	return net, nil
}

func (b *Builder) build(key random.Key) (*Network, error) {
	if b.inputSize < 0 || b.hiddenSize <= 0 || b.outSize < 0 || b.encodingSize < 0 {
		return nil, errs.Configurationf("invalid network sizes: input=%d, hidden=%d, out=%d, encoding=%d",
			b.inputSize, b.hiddenSize, b.outSize, b.encodingSize)
	}
	if b.hasHiddenNoise && b.hiddenNoiseStd < 0 {
		return nil, errs.Configurationf("hidden noise std must be >= 0, got %g", b.hiddenNoiseStd)
	}
	if b.structure != nil && b.structure.HiddenSize() != b.hiddenSize {
		return nil, errs.Configurationf("population structure has %d units, but hidden_size is %d",
			b.structure.HiddenSize(), b.hiddenSize)
	}
	n := &Network{
		ctx:                b.ctx,
		inputSize:          b.inputSize,
		hiddenSize:         b.hiddenSize,
		outSize:            b.outSize,
		encodingSize:       b.encodingSize,
		hiddenNonlinearity: b.hiddenNonlinearity,
		outNonlinearity:    b.outNonlinearity,
		hiddenNoiseStd:     b.hiddenNoiseStd,
		hasHiddenNoise:     b.hasHiddenNoise,
		structure:          b.structure,
	}
	hiddenKey, encoderKey, readoutKey := splitKey3(key)
	var err error

	// Encoder.
	hiddenInputSize := b.inputSize
	if b.encodingSize > 0 {
		encoderCtx := b.ctx.In(StageEncoder)
		if b.structure != nil {
			n.encoder, err = nn.NewMaskedLinear(encoderCtx, tensors.Ones(b.encodingSize, b.inputSize), b.useBias, encoderKey)
		} else {
			n.encoder, err = nn.New(b.encoderType, encoderCtx, b.inputSize, b.encodingSize, b.useBias, encoderKey)
		}
		if err != nil {
			return nil, errs.Configurationf("creating encoder: %v", err)
		}
		hiddenInputSize = b.encodingSize
	}

	// Hidden layer.
	n.hidden, err = nn.New(b.hiddenType, b.ctx.In(StageHidden), hiddenInputSize, b.hiddenSize, b.useBias, hiddenKey)
	if err != nil {
		return nil, errs.Configurationf("creating hidden layer: %v", err)
	}
	if b.structure != nil {
		maskable, ok := n.hidden.(nn.InputMaskable)
		if !ok {
			return nil, errs.Configurationf("hidden layer type %q (%T) cannot mask its inputs, required by the population structure",
				b.hiddenType, n.hidden)
		}
		mask := b.structure.InputMask(hiddenInputSize, maskable.InputBlocks())
		if err = maskable.SetInputMask(mask); err != nil {
			return nil, errs.Configurationf("masking hidden layer inputs: %v", err)
		}
		klog.V(1).Infof("network: hidden inputs masked to units %v (%d blocks)", b.structure.InputIndices(), maskable.InputBlocks())
	}
	if affine, ok := n.hidden.(nn.Affine); ok && affine.IsAffine() && !b.hiddenNonlinearitySet {
		klog.Warningf("network hidden layer is linear but no hidden nonlinearity is defined")
	}

	// Readout.
	if b.outSize > 0 {
		readoutCtx := b.ctx.In(StageReadout)
		if b.structure != nil {
			n.readout, err = nn.NewMaskedLinear(readoutCtx, b.structure.ReadoutMask(b.outSize), b.useBias, readoutKey)
		} else {
			n.readout, err = nn.New(b.readoutType, readoutCtx, b.hiddenSize, b.outSize, b.useBias, readoutKey)
		}
		if err != nil {
			return nil, errs.Configurationf("creating readout: %v", err)
		}
		zeroer, ok := n.readout.(nn.BiasZeroer)
		if !ok {
			return nil, errs.Configurationf("readout type %q (%T) cannot zero its bias", b.readoutType, n.readout)
		}
		if err = zeroer.ZeroBias(); err != nil {
			return nil, err
		}
	}

	n.spec, err = n.buildSpec()
	if err != nil {
		return nil, err
	}
	if err = b.intervenors.Validate(n.spec); err != nil {
		return nil, err
	}
	n.intervenors = b.intervenors.Clone()
	klog.V(1).Infof("network: stages %v, %d variables, %d parameters", n.spec.Labels(), len(n.Variables()), n.NumParameters())
	return n, nil
}

// splitKey3 splits key into the keys of the hidden layer, encoder and readout.
func splitKey3(key random.Key) (hidden, encoder, readout random.Key) {
	keys := key.Split(3)
	return keys[0], keys[1], keys[2]
}

// buildSpec assembles the ordered stages of one step.
func (n *Network) buildSpec() (*staged.Spec, error) {
	hasEncoder, hasReadout := n.encoder != nil, n.readout != nil
	hiddenInput := state.FieldInput
	if hasEncoder {
		hiddenInput = state.FieldEncoding
	}
	outField := state.FieldHidden
	if hasReadout {
		outField = state.FieldOutput
	}
	return staged.NewSpecBuilder().
		Add(StageInput, staged.Keyless(func(in *tensors.Tensor) *tensors.Tensor { return in }),
			staged.FromRawInput(), state.FieldInput).
		AddIf(hasEncoder, StageEncoder, staged.AdaptLayer(n.encoder),
			staged.FromState(state.FieldInput), state.FieldEncoding).
		Add(StageHidden, staged.AdaptLayer(n.hidden),
			staged.FromState(hiddenInput), state.FieldHidden).
		Add(StageHiddenNonlinearity, staged.Keyless(n.applyHiddenNonlinearity),
			staged.FromState(state.FieldHidden), state.FieldHidden).
		AddIf(n.hasHiddenNoise, StageHiddenNoise, staged.Stateful(n.addHiddenNoise),
			staged.FromState(state.FieldHidden), state.FieldHidden).
		AddIf(hasReadout, StageReadout, staged.AdaptLayer(n.readout),
			staged.FromState(state.FieldHidden), state.FieldOutput).
		Add(StageOutNonlinearity, staged.Keyless(n.applyOutNonlinearity),
			staged.FromState(outField), outField).
		Done()
}

func (n *Network) applyHiddenNonlinearity(x *tensors.Tensor) *tensors.Tensor {
	return activations.Apply(n.hiddenNonlinearity, x)
}

func (n *Network) applyOutNonlinearity(x *tensors.Tensor) *tensors.Tensor {
	return activations.Apply(n.outNonlinearity, x)
}

// addHiddenNoise adds std·N(0, 1) to the hidden state.
func (n *Network) addHiddenNoise(_, hidden *tensors.Tensor, key random.Key) *tensors.Tensor {
	return ops.Add(hidden, ops.MulScalar(key.Normal(hidden.Shape()), n.hiddenNoiseStd))
}

// Spec implements staged.Model.
func (n *Network) Spec() *staged.Spec { return n.spec }

// Intervenors implements staged.Model.
func (n *Network) Intervenors() staged.Intervenors { return n.intervenors }

// Init implements staged.Model: all present fields are zero. Output and Encoding are absent
// if there is no readout or encoder.
func (n *Network) Init() state.NetworkState {
	st := state.NetworkState{
		Input:  tensors.Zeros(n.inputSize),
		Hidden: tensors.Zeros(n.hiddenSize),
	}
	if n.readout != nil {
		st.Output = tensors.Zeros(n.outSize)
	}
	if n.encoder != nil {
		st.Encoding = tensors.Zeros(n.encodingSize)
	}
	return st
}

// WithIntervenors returns a copy of the network with the hooks appended to the existing ones.
// The copy shares the layers and variables of n.
func (n *Network) WithIntervenors(intervenors staged.Intervenors) (*Network, error) {
	if err := intervenors.Validate(n.spec); err != nil {
		return nil, err
	}
	n2 := *n
	n2.intervenors = n.intervenors.Merge(intervenors)
	return &n2, nil
}

// Context returns the context holding the network variables.
func (n *Network) Context() *context.Context { return n.ctx }

// Variables returns the variables of all layers, in the order encoder, hidden, readout.
func (n *Network) Variables() []*context.Variable {
	var vars []*context.Variable
	for _, layer := range []nn.Layer{n.encoder, n.hidden, n.readout} {
		if layer != nil {
			vars = append(vars, layer.Variables()...)
		}
	}
	return vars
}

// NumParameters returns the total number of scalar parameters in the network variables.
func (n *Network) NumParameters() int {
	total := 0
	for _, v := range n.Variables() {
		total += v.Shape().Size()
	}
	return total
}

// InputSize is the size of the (flattened) raw input.
func (n *Network) InputSize() int { return n.inputSize }

// HiddenSize is the number of hidden units.
func (n *Network) HiddenSize() int { return n.hiddenSize }

// OutSize is the number of outputs: the readout size, or the hidden size if there is no readout.
func (n *Network) OutSize() int {
	if n.readout == nil {
		return n.hiddenSize
	}
	return n.outSize
}

// EncodingSize is the number of encoder units, or 0 if there is no encoder.
func (n *Network) EncodingSize() int { return n.encodingSize }

// Encoder returns the encoder layer, or nil.
func (n *Network) Encoder() nn.Layer { return n.encoder }

// Hidden returns the hidden layer.
func (n *Network) Hidden() nn.Layer { return n.hidden }

// Readout returns the readout layer, or nil.
func (n *Network) Readout() nn.Layer { return n.readout }

// Populations returns the population structure, or nil.
func (n *Network) Populations() *populations.Structure { return n.structure }

// HiddenNoiseStd returns the hidden noise standard deviation, and whether hidden noise is enabled.
func (n *Network) HiddenNoiseStd() (float64, bool) { return n.hiddenNoiseStd, n.hasHiddenNoise }
