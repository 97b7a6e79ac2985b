// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package network

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/nn"
	"github.com/gomlx/stagednet/pkg/ml/populations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// Context hyperparameters read by FromContext.
const (
	// ParamInputSize is the size of the flattened raw input.
	ParamInputSize = "input_size"

	// ParamHiddenSize is the number of hidden units.
	ParamHiddenSize = "hidden_size"

	// ParamOutSize is the number of readout units. 0 disables the readout.
	ParamOutSize = "out_size"

	// ParamEncodingSize is the number of encoder units. 0 disables the encoder.
	ParamEncodingSize = "encoding_size"

	// ParamHiddenType is the registered layer type of the hidden layer, see nn.RegisteredTypes.
	ParamHiddenType = "hidden_type"

	// ParamEncoderType is the registered layer type of the encoder.
	ParamEncoderType = "encoder_type"

	// ParamReadoutType is the registered layer type of the readout.
	ParamReadoutType = "readout_type"

	// ParamUseBias sets whether the layers have a bias term.
	ParamUseBias = "use_bias"

	// ParamHiddenNonlinearity is the name of the hidden nonlinearity (see activations). It defaults
	// to "": no nonlinearity is applied, and a linear hidden layer is warned about.
	ParamHiddenNonlinearity = "hidden_nonlinearity"

	// ParamOutNonlinearity is the name of the output nonlinearity.
	ParamOutNonlinearity = "out_nonlinearity"

	// ParamHiddenNoiseStd is the standard deviation of the hidden noise. Values <= 0 disable the
	// "hidden_noise" stage.
	ParamHiddenNoiseStd = "hidden_noise_std"

	// ParamPopulationSizes is the comma-separated list of population sizes (input-only,
	// readout-only, recurrent-only, input-readout), e.g. "2,2,1,1". Empty disables the
	// population structure.
	ParamPopulationSizes = "population_sizes"

	// ParamPopulationAssignment is how units are assigned to populations: "random" or "contiguous".
	ParamPopulationAssignment = "population_assignment"
)

// Population assignments accepted by ParamPopulationAssignment.
const (
	AssignmentRandom     = "random"
	AssignmentContiguous = "contiguous"
)

// SetDefaultHyperparameters sets the default network hyperparameters in ctx, including the ones
// of the registered layer types.
func SetDefaultHyperparameters(ctx *context.Context) {
	leaky := nn.DefaultLeakyRNNConfig()
	ctx.SetParams(map[string]any{
		ParamInputSize:            1,
		ParamHiddenSize:           32,
		ParamOutSize:              0,
		ParamEncodingSize:         0,
		ParamHiddenType:           nn.TypeGRU,
		ParamEncoderType:          nn.TypeLinear,
		ParamReadoutType:          nn.TypeLinear,
		ParamUseBias:              true,
		ParamHiddenNonlinearity:   "",
		ParamOutNonlinearity:      activations.TypeNone.String(),
		ParamHiddenNoiseStd:       0.0,
		ParamPopulationSizes:      "",
		ParamPopulationAssignment: AssignmentRandom,

		nn.ParamLeakyDt:              leaky.Dt,
		nn.ParamLeakyTau:             leaky.Tau,
		nn.ParamLeakyUseNoise:        leaky.UseNoise,
		nn.ParamLeakyNoiseStrength:   leaky.NoiseStrength,
		nn.ParamLeakyNonlinearity:    leaky.Nonlinearity.String(),
		nn.ParamTwoLayerHiddenSize:   32,
		nn.ParamTwoLayerNonlinearity: activations.TypeTanh.String(),
		nn.ParamOrthogonalScale:      1.0,
	})
}

// FromContext configures a network Builder from the hyperparameters in ctx (see the Param*
// constants). Hyperparameters not set take the defaults of SetDefaultHyperparameters. The
// population structure, if any, is drawn with populationKey.
//
// The returned Builder can be further configured (e.g. with intervenors) before calling Done.
func FromContext(ctx *context.Context, populationKey random.Key) (b *Builder, err error) {
	var configErr error
	err = exceptions.TryCatch[error](func() {
		b, configErr = fromContext(ctx, populationKey)
	})
	if err == nil {
		err = configErr
	}
	if err != nil {
		return nil, errs.Configurationf("network.FromContext(): %v", err)
	}
	return b, nil
}

func fromContext(ctx *context.Context, populationKey random.Key) (*Builder, error) {
	hiddenSize := context.GetParamOr(ctx, ParamHiddenSize, 32)
	b := New(ctx, context.GetParamOr(ctx, ParamInputSize, 1), hiddenSize).
		OutSize(context.GetParamOr(ctx, ParamOutSize, 0)).
		EncodingSize(context.GetParamOr(ctx, ParamEncodingSize, 0)).
		HiddenType(context.GetParamOr(ctx, ParamHiddenType, nn.TypeGRU)).
		EncoderType(context.GetParamOr(ctx, ParamEncoderType, nn.TypeLinear)).
		ReadoutType(context.GetParamOr(ctx, ParamReadoutType, nn.TypeLinear)).
		UseBias(context.GetParamOr(ctx, ParamUseBias, true))

	if name := context.GetParamOr(ctx, ParamHiddenNonlinearity, ""); name != "" {
		activation, err := activations.Parse(name)
		if err != nil {
			return nil, err
		}
		b.HiddenNonlinearity(activation)
	}
	outActivation, err := activations.Parse(context.GetParamOr(ctx, ParamOutNonlinearity, activations.TypeNone.String()))
	if err != nil {
		return nil, err
	}
	b.OutNonlinearity(outActivation)
	if std := context.GetParamOr(ctx, ParamHiddenNoiseStd, 0.0); std > 0 {
		b.HiddenNoiseStd(std)
	}

	if sizesStr := context.GetParamOr(ctx, ParamPopulationSizes, ""); sizesStr != "" {
		sizes, err := populations.ParseSizes(sizesStr)
		if err != nil {
			return nil, err
		}
		var assignment populations.AssignmentFn
		switch name := context.GetParamOr(ctx, ParamPopulationAssignment, AssignmentRandom); name {
		case AssignmentRandom:
			assignment = populations.Random
		case AssignmentContiguous:
			assignment = populations.Contiguous
		default:
			return nil, errs.Configurationf("unknown %s %q, valid values are %q and %q",
				ParamPopulationAssignment, name, AssignmentRandom, AssignmentContiguous)
		}
		structure, err := populations.Create(hiddenSize, sizes, assignment, populationKey)
		if err != nil {
			return nil, err
		}
		b.Populations(structure)
	}
	return b, nil
}
