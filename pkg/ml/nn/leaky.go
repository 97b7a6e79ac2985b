// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"math"

	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/initializer"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
)

// Context hyperparameters read by LeakyRNNConfigFromContext.
const (
	// ParamLeakyDt is the integration time step dt. Default is 1.
	ParamLeakyDt = "leaky_dt"

	// ParamLeakyTau is the time constant tau. Default is 1.
	ParamLeakyTau = "leaky_tau"

	// ParamLeakyUseNoise enables the internal noise of the cell. Default is false.
	ParamLeakyUseNoise = "leaky_use_noise"

	// ParamLeakyNoiseStrength scales the internal noise. Default is 0.01.
	ParamLeakyNoiseStrength = "leaky_noise_strength"

	// ParamLeakyNonlinearity is the name of the cell nonlinearity (see activations). Default is "tanh".
	ParamLeakyNonlinearity = "leaky_nonlinearity"
)

// LeakyRNNConfig holds the hyperparameters of a LeakyRNNCell.
type LeakyRNNConfig struct {
	Dt, Tau       float64
	UseNoise      bool
	NoiseStrength float64
	Nonlinearity  activations.Type
}

// DefaultLeakyRNNConfig returns dt = tau = 1, no noise (strength 0.01 if enabled) and tanh.
func DefaultLeakyRNNConfig() LeakyRNNConfig {
	return LeakyRNNConfig{Dt: 1, Tau: 1, NoiseStrength: 0.01, Nonlinearity: activations.TypeTanh}
}

// LeakyRNNConfigFromContext reads the leaky_* hyperparameters from the context, with defaults from
// DefaultLeakyRNNConfig.
func LeakyRNNConfigFromContext(ctx *context.Context) (LeakyRNNConfig, error) {
	cfg := DefaultLeakyRNNConfig()
	cfg.Dt = context.GetParamOr(ctx, ParamLeakyDt, cfg.Dt)
	cfg.Tau = context.GetParamOr(ctx, ParamLeakyTau, cfg.Tau)
	cfg.UseNoise = context.GetParamOr(ctx, ParamLeakyUseNoise, cfg.UseNoise)
	cfg.NoiseStrength = context.GetParamOr(ctx, ParamLeakyNoiseStrength, cfg.NoiseStrength)
	var err error
	cfg.Nonlinearity, err = activations.Parse(context.GetParamOr(ctx, ParamLeakyNonlinearity, cfg.Nonlinearity.String()))
	return cfg, err
}

// LeakyRNNCell is a vanilla recurrent cell with a leaky, persistent state:
//
//	h' = (1-α)·h + α·f(W_ih·x + W_hh·h + b + noise),  α = dt/τ
//
// where noise is sampled from N(0, NoiseStd()²) when enabled. Variables are "weight_ih"
// [hiddenSize, inputSize], "weight_hh" [hiddenSize, hiddenSize] and, with useBias, "bias"
// [hiddenSize], all initialized uniformly in ±sqrt(1/hiddenSize).
//
// An inputSize of 0 is valid: weight_ih is then a [hiddenSize, 0] placeholder and the input is
// expected to be an empty vector.
type LeakyRNNCell struct {
	inputSize, hiddenSize int
	config                LeakyRNNConfig

	weightIH, weightHH, bias *context.Variable
	inputMask                *tensors.Tensor
}

var (
	_ StatefulLayer = (*LeakyRNNCell)(nil)
	_ InputMaskable = (*LeakyRNNCell)(nil)
)

// NewLeakyRNNCell creates a LeakyRNNCell. It returns a configuration error if dt or tau are not positive.
func NewLeakyRNNCell(ctx *context.Context, inputSize, hiddenSize int, useBias bool, config LeakyRNNConfig,
	key random.Key) (*LeakyRNNCell, error) {
	if inputSize < 0 || hiddenSize <= 0 {
		return nil, errs.Configurationf("nn.NewLeakyRNNCell(): invalid sizes input=%d, hidden=%d", inputSize, hiddenSize)
	}
	if config.Dt <= 0 || config.Tau <= 0 {
		return nil, errs.Configurationf("nn.NewLeakyRNNCell(): dt (%g) and tau (%g) must be > 0", config.Dt, config.Tau)
	}
	if config.UseNoise && config.NoiseStrength < 0 {
		return nil, errs.Configurationf("nn.NewLeakyRNNCell(): noise strength must be >= 0, got %g", config.NoiseStrength)
	}
	keys := key.Split(3)
	ctx = ctx.WithInitializer(initializer.UniformFanIn(hiddenSize))
	c := &LeakyRNNCell{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		config:     config,
		weightIH:   ctx.VariableWithShape("weight_ih", shapes.Make(hiddenSize, inputSize), keys[0]),
		weightHH:   ctx.VariableWithShape("weight_hh", shapes.Make(hiddenSize, hiddenSize), keys[1]),
	}
	if useBias {
		c.bias = ctx.VariableWithShape("bias", shapes.Make(hiddenSize), keys[2])
	}
	return c, nil
}

// Capability implements Layer.
func (c *LeakyRNNCell) Capability() Capability { return CapabilityStateful }

// InputSize implements Layer.
func (c *LeakyRNNCell) InputSize() int { return c.inputSize }

// OutputSize implements Layer: the hidden state size.
func (c *LeakyRNNCell) OutputSize() int { return c.hiddenSize }

// Variables implements Layer.
func (c *LeakyRNNCell) Variables() []*context.Variable {
	return nonNilVariables(c.weightIH, c.weightHH, c.bias)
}

// WeightIH returns the input weights variable.
func (c *LeakyRNNCell) WeightIH() *context.Variable { return c.weightIH }

// WeightHH returns the recurrent weights variable.
func (c *LeakyRNNCell) WeightHH() *context.Variable { return c.weightHH }

// Config returns the cell hyperparameters.
func (c *LeakyRNNCell) Config() LeakyRNNConfig { return c.config }

// Alpha returns dt/tau, the fraction of the state replaced at each step.
func (c *LeakyRNNCell) Alpha() float64 { return c.config.Dt / c.config.Tau }

// NoiseStd returns the standard deviation of the internal noise, sqrt(2/α)·noise_strength, or 0
// if noise is disabled.
func (c *LeakyRNNCell) NoiseStd() float64 {
	if !c.config.UseNoise {
		return 0
	}
	return math.Sqrt(2/c.Alpha()) * c.config.NoiseStrength
}

// InputBlocks implements InputMaskable.
func (c *LeakyRNNCell) InputBlocks() int { return 1 }

// SetInputMask implements InputMaskable.
func (c *LeakyRNNCell) SetInputMask(mask *tensors.Tensor) error {
	if err := mask.Shape().CheckDims(c.hiddenSize, c.inputSize); err != nil {
		return err
	}
	if c.inputMask != nil {
		mask = ops.Mul(c.inputMask, mask)
	}
	c.inputMask = mask
	return c.weightIH.SetValue(ops.Mul(c.weightIH.Value(), mask))
}

// Step implements StatefulLayer. The key is only used if noise is enabled.
func (c *LeakyRNNCell) Step(x, state *tensors.Tensor, key random.Key) *tensors.Tensor {
	checkInput("nn.LeakyRNNCell", x, c.inputSize)
	checkInput("nn.LeakyRNNCell state", state, c.hiddenSize)
	wIH := c.weightIH.Value()
	if c.inputMask != nil {
		wIH = ops.Mul(wIH, c.inputMask)
	}
	preActivation := ops.Add(ops.MatVec(wIH, x), ops.MatVec(c.weightHH.Value(), state))
	if c.bias != nil {
		preActivation = ops.Add(preActivation, c.bias.Value())
	}
	if c.config.UseNoise {
		noise := ops.MulScalar(key.Normal(state.Shape()), c.NoiseStd())
		preActivation = ops.Add(preActivation, noise)
	}
	return ops.Lerp(state, activations.Apply(c.config.Nonlinearity, preActivation), c.Alpha())
}
