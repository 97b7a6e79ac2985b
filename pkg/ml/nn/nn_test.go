// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn_test

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/layers/activations"
	"github.com/gomlx/stagednet/pkg/ml/nn"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(values ...float64) *tensors.Tensor { return tensors.FromValue(values) }

func mat(rows ...[]float64) *tensors.Tensor { return tensors.FromValue(rows) }

func TestLinear(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(0)
	l, err := nn.NewLinear(ctx.In("linear"), 2, 3, true, key)
	require.NoError(t, err)
	assert.Equal(t, nn.CapabilityStateless, l.Capability())
	assert.Len(t, l.Variables(), 2)
	assert.Equal(t, "/linear/weights", l.Weights().ScopeAndName())
	for _, v := range l.Weights().Value().Flat() {
		assert.LessOrEqual(t, math.Abs(v), 1/math.Sqrt(2))
	}

	require.NoError(t, l.Weights().SetValue(mat([]float64{1, 0}, []float64{0, 1}, []float64{1, 1})))
	require.NoError(t, l.Biases().SetValue(vec(1, 2, 3)))
	assert.Equal(t, []float64{2, 4, 6}, l.Forward(vec(1, 2), key).Value())

	require.NoError(t, l.ZeroBias())
	assert.Equal(t, []float64{1, 2, 3}, l.Forward(vec(1, 2), key).Value())

	err = exceptions.TryCatch[error](func() { l.Forward(vec(1, 2, 3), key) })
	require.Error(t, err)
	assert.True(t, errs.IsShape(err))

	_, err = nn.NewLinear(ctx.In("bad"), 2, 0, true, key)
	assert.True(t, errs.IsConfiguration(err))
}

func TestMaskedLinearMaskSurvivesUpdates(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(1)
	mask := mat([]float64{1, 0, 1}, []float64{0, 1, 0})
	m, err := nn.NewMaskedLinear(ctx.In("readout"), mask, false, key)
	require.NoError(t, err)
	assert.Equal(t, 3, m.InputSize())
	assert.Equal(t, 2, m.OutputSize())
	assert.Nil(t, m.Biases())

	// Construction applies the mask to the initial weights.
	w := m.Weights().Value()
	assert.Zero(t, w.At(0, 1))
	assert.Zero(t, w.At(1, 0))
	assert.Zero(t, w.At(1, 2))

	// Simulate an optimizer writing arbitrary values in all entries.
	require.NoError(t, m.Weights().SetValue(tensors.Full(5, 2, 3)))
	assert.Equal(t, []float64{10, 5}, m.Forward(vec(1, 1, 1), key).Value())
	assert.True(t, m.EffectiveWeights().Equal(ops.MulScalar(mask, 5)))
	assert.True(t, m.Mask().Equal(mask))

	_, err = nn.NewMaskedLinear(ctx.In("bad"), vec(1, 0), false, key)
	assert.True(t, errs.IsConfiguration(err))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestGRUCell(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(2)
	c, err := nn.NewGRUCell(ctx.In("gru"), 1, 1, true, key)
	require.NoError(t, err)
	assert.Equal(t, nn.CapabilityStateful, c.Capability())
	assert.Equal(t, 3, c.InputBlocks())
	assert.Len(t, c.Variables(), 4)

	// Gates stacked as reset, update, candidate.
	require.NoError(t, c.WeightIH().SetValue(mat([]float64{0.1}, []float64{0.2}, []float64{0.3})))
	require.NoError(t, c.WeightHH().SetValue(mat([]float64{0.4}, []float64{0.5}, []float64{0.6})))
	vars := c.Variables()
	require.NoError(t, vars[2].SetValue(vec(0.01, 0.02, 0.03)))
	require.NoError(t, vars[3].SetValue(vec(0.04)))

	x, h := 1.0, 0.5
	r := sigmoid(0.1*x + 0.01 + 0.4*h)
	z := sigmoid(0.2*x + 0.02 + 0.5*h)
	n := math.Tanh(0.3*x + 0.03 + r*(0.6*h+0.04))
	want := (1-z)*n + z*h
	got := c.Step(vec(x), vec(h), key)
	assert.InDelta(t, want, got.Flat()[0], 1e-12)

	from, to := nn.GRUGateRows(nn.GRUGateCandidate, 4)
	assert.Equal(t, 8, from)
	assert.Equal(t, 12, to)
}

func TestGRUCellInputMask(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(3)
	c, err := nn.NewGRUCell(ctx.In("gru"), 2, 2, false, key)
	require.NoError(t, err)
	// Only unit 0 receives inputs, in all 3 gates.
	rowMask := mat([]float64{1, 1}, []float64{0, 0})
	require.Error(t, c.SetInputMask(rowMask), "mask must be tiled for the 3 gates")
	require.NoError(t, c.SetInputMask(ops.TileRows(rowMask, 3)))

	require.NoError(t, c.WeightIH().SetValue(tensors.Ones(6, 2)))
	w := c.EffectiveWeightIH()
	for _, row := range []int{1, 3, 5} {
		assert.Equal(t, []float64{0, 0}, w.Row(row))
	}
	for _, row := range []int{0, 2, 4} {
		assert.Equal(t, []float64{1, 1}, w.Row(row))
	}
}

func TestOrthogonalGRUCell(t *testing.T) {
	ctx := context.New()
	c, err := nn.NewOrthogonalGRUCell(ctx.In("gru"), 2, 4, true, 1, random.NewKey(4))
	require.NoError(t, err)
	for _, block := range ops.SplitRows(c.WeightHH().Value(), 3) {
		gram := ops.MatMul(block, ops.Transpose(block))
		assert.True(t, gram.InDelta(identity(4), 1e-9))
	}
}

func identity(n int) *tensors.Tensor {
	rows := make([][]float64, n)
	for ii := range rows {
		rows[ii] = make([]float64, n)
		rows[ii][ii] = 1
	}
	return tensors.FromValue(rows)
}

func TestLeakyRNNCellDtEqualsTau(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(5)
	cfg := nn.LeakyRNNConfig{Dt: 0.1, Tau: 0.1, Nonlinearity: activations.TypeNone}
	c, err := nn.NewLeakyRNNCell(ctx.In("leaky"), 2, 3, false, cfg, key)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Alpha())
	require.NoError(t, c.WeightIH().SetValue(tensors.Zeros(3, 2)))
	wHH := mat([]float64{1, 2, 0}, []float64{0, 1, -1}, []float64{3, 0, 1})
	require.NoError(t, c.WeightHH().SetValue(wHH))

	h := vec(1, -2, 4)
	got := c.Step(vec(7, 8), h, key)
	assert.True(t, got.Equal(ops.MatVec(wHH, h)), "got %s", got)
	assert.Equal(t, []float64{-3, -6, 7}, got.Value())
}

func TestLeakyRNNCellLeak(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(6)
	cfg := nn.LeakyRNNConfig{Dt: 0.25, Tau: 1, Nonlinearity: activations.TypeTanh}
	c, err := nn.NewLeakyRNNCell(ctx.In("leaky"), 1, 1, true, cfg, key)
	require.NoError(t, err)
	require.NoError(t, c.WeightIH().SetValue(mat([]float64{0.5})))
	require.NoError(t, c.WeightHH().SetValue(mat([]float64{-0.5})))
	require.NoError(t, c.Variables()[2].SetValue(vec(0.1)))

	got := c.Step(vec(2), vec(1), key)
	want := 0.75*1 + 0.25*math.Tanh(0.5*2-0.5*1+0.1)
	assert.InDelta(t, want, got.Flat()[0], 1e-12)
}

func TestLeakyRNNCellNoInputs(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(7)
	c, err := nn.NewLeakyRNNCell(ctx.In("leaky"), 0, 4, true, nn.DefaultLeakyRNNConfig(), key)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 0}, c.WeightIH().Shape().Dimensions)
	got := c.Step(tensors.Zeros(0), tensors.Zeros(4), key)
	assert.Equal(t, 4, got.Size())
}

func TestLeakyRNNCellNoise(t *testing.T) {
	ctx := context.New()
	cfg := nn.LeakyRNNConfig{Dt: 0.5, Tau: 1, UseNoise: true, NoiseStrength: 0.1, Nonlinearity: activations.TypeNone}
	c, err := nn.NewLeakyRNNCell(ctx.In("leaky"), 1, 3, false, cfg, random.NewKey(8))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2/0.5)*0.1, c.NoiseStd(), 1e-12)

	x, h := vec(0), tensors.Zeros(3)
	k0, k1 := random.NewKey(9).Split2()
	a, b := c.Step(x, h, k0), c.Step(x, h, k0)
	assert.True(t, a.Equal(b), "same key must give the same noise")
	assert.False(t, a.Equal(c.Step(x, h, k1)), "different keys must give different noise")

	cfg.UseNoise = false
	quiet, err := nn.NewLeakyRNNCell(ctx.In("quiet"), 1, 3, false, cfg, random.NewKey(8))
	require.NoError(t, err)
	assert.Zero(t, quiet.NoiseStd())
}

func TestLeakyRNNCellNoiseStatistics(t *testing.T) {
	// With α=1, zero weights and no bias, the new state is the noise itself.
	ctx := context.New()
	cfg := nn.LeakyRNNConfig{Dt: 1, Tau: 1, UseNoise: true, NoiseStrength: 0.1, Nonlinearity: activations.TypeNone}
	const hiddenSize, numSteps = 8, 1000
	c, err := nn.NewLeakyRNNCell(ctx.In("leaky"), 2, hiddenSize, false, cfg, random.NewKey(10))
	require.NoError(t, err)
	require.NoError(t, c.WeightIH().SetValue(tensors.Zeros(hiddenSize, 2)))
	require.NoError(t, c.WeightHH().SetValue(tensors.Zeros(hiddenSize, hiddenSize)))
	wantStd := math.Sqrt(2) * 0.1
	require.InDelta(t, wantStd, c.NoiseStd(), 1e-12)

	x, h := vec(1, -1), tensors.Ones(hiddenSize)
	var sum, sumSquares float64
	for _, key := range random.NewKey(11).Split(numSteps) {
		for _, v := range c.Step(x, h, key).Flat() {
			sum += v
			sumSquares += v * v
		}
	}
	n := float64(hiddenSize * numSteps)
	mean := sum / n
	std := math.Sqrt(sumSquares/n - mean*mean)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, wantStd, std, 0.05*wantStd)
}

func TestLeakyRNNCellConfig(t *testing.T) {
	ctx := context.New()
	_, err := nn.NewLeakyRNNCell(ctx.In("bad"), 1, 3, false, nn.LeakyRNNConfig{Dt: 1, Tau: 0}, random.NewKey(0))
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	ctx.SetParams(map[string]any{nn.ParamLeakyDt: 0.01, nn.ParamLeakyTau: 0.05, nn.ParamLeakyNonlinearity: "relu"})
	cfg, err := nn.LeakyRNNConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Dt)
	assert.Equal(t, 0.05, cfg.Tau)
	assert.Equal(t, activations.TypeRelu, cfg.Nonlinearity)
	assert.False(t, cfg.UseNoise)
}

func TestNLayerLinear(t *testing.T) {
	ctx := context.New()
	key := random.NewKey(10)
	n, err := nn.NewTwoLayerLinear(ctx.In("readout"), 2, 3, 1, true, activations.TypeRelu, key)
	require.NoError(t, err)
	assert.Equal(t, 3, n.InputSize())
	assert.Equal(t, 1, n.OutputSize())
	layers := n.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, "/readout/layer_1/weights", layers[1].Weights().ScopeAndName())

	require.NoError(t, layers[0].Weights().SetValue(mat([]float64{1, 1, 1}, []float64{-1, -1, -1})))
	require.NoError(t, layers[0].Biases().SetValue(vec(0, 0)))
	require.NoError(t, layers[1].Weights().SetValue(mat([]float64{2, 3})))
	require.NoError(t, layers[1].Biases().SetValue(vec(1)))
	// relu([6, -6]) = [6, 0] -> 2*6 + 1
	assert.Equal(t, []float64{13}, n.Forward(vec(1, 2, 3), key).Value())

	require.NoError(t, n.ZeroBias())
	assert.Equal(t, []float64{12}, n.Forward(vec(1, 2, 3), key).Value())
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"gru", "leaky_rnn", "linear", "orthogonal_gru", "two_layer"}, nn.RegisteredTypes())
	_, err := nn.Lookup("lstm")
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	ctx := context.New()
	ctx.SetParam(nn.ParamLeakyTau, 4.0)
	layer, err := nn.New(nn.TypeLeakyRNN, ctx.In("hidden"), 2, 5, true, random.NewKey(0))
	require.NoError(t, err)
	leaky, ok := layer.(*nn.LeakyRNNCell)
	require.True(t, ok)
	assert.Equal(t, 0.25, leaky.Alpha())

	layer, err = nn.New(nn.TypeTwoLayer, ctx.In("readout"), 5, 2, true, random.NewKey(0))
	require.NoError(t, err)
	assert.Equal(t, nn.CapabilityStateless, layer.Capability())
	assert.Equal(t, 32*5+32+2*32+2, countParams(layer))
}

func countParams(layer nn.Layer) int {
	total := 0
	for _, v := range layer.Variables() {
		total += v.Shape().Size()
	}
	return total
}
