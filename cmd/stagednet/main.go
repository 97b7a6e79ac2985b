// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// stagednet builds a staged recurrent network from context hyperparameters, runs it on a batch of
// random trials and reports its stages, variables and losses.
//
// Example:
//
//	stagednet -set="hidden_size=12;hidden_type=leaky_rnn;out_size=2;hidden_nonlinearity=tanh" \
//		-populations=4,4,2,2 -trials=64 -steps=100 -plot=/tmp/hidden.png
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/stagednet/internal/workerspool"
	"github.com/gomlx/stagednet/pkg/core/ops"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/network"
	"github.com/gomlx/stagednet/pkg/ml/random"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/train/losses"
	"github.com/gomlx/stagednet/pkg/support/xslices"
	"github.com/gomlx/stagednet/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagNumTrials   = flag.Int("trials", 16, "Number of trials to run.")
	flagNumSteps    = flag.Int("steps", 50, "Number of steps per trial.")
	flagSeed        = flag.Int64("seed", 42, "Random seed for the network initialization, populations and trials.")
	flagParallelism = flag.Int("parallelism", 0, "Number of trials run in parallel. 0 uses the number of cores, -1 is unlimited.")
	flagInputScale  = flag.Float64("input_scale", 1.0, "Standard deviation of the random trial inputs.")
	flagActivity    = flag.Float64("activity_weight", 1e-3, "Weight of the hidden activity loss.")
	flagPlot        = flag.String("plot", "", "If set, the hidden activity of the first trial is plotted to this PNG file.")
	flagPopulations = xslices.Flag("populations", nil,
		"Population sizes (input-only, readout-only, recurrent-only, input-readout), e.g. \"4,4,2,2\". "+
			"Overrides the population_sizes hyperparameter.", strconv.Atoi)
)

func main() {
	ctx := context.New()
	network.SetDefaultHyperparameters(ctx)
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	if len(*flagPopulations) > 0 {
		ctx.SetParam(network.ParamPopulationSizes,
			strings.Join(xslices.Map(*flagPopulations, strconv.Itoa), ","))
		paramsSet = append(paramsSet, network.ParamPopulationSizes)
	}
	if len(paramsSet) > 0 {
		fmt.Printf("Hyperparameters set:\n%s\n", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}
	if err := run(ctx); err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

func run(ctx *context.Context) error {
	start := time.Now()
	populationKey, initKey, inputsKey, runKey := splitKey4(random.NewKey(*flagSeed))
	builder, err := network.FromContext(ctx, populationKey)
	if err != nil {
		return err
	}
	net, err := builder.Done(initKey)
	if err != nil {
		return err
	}
	fmt.Println(commandline.StagesTable(net.Spec()))
	if structure := net.Populations(); structure != nil {
		fmt.Printf("Populations: %s\n", structure)
	}
	fmt.Println(commandline.VariablesTable(net.Context()))
	fmt.Printf("Network with %s trainable parameters.\n", humanize.Comma(int64(net.NumParameters())))

	trials := randomTrials(inputsKey, *flagNumTrials, *flagNumSteps, net.InputSize(), *flagInputScale)
	_, onTrialDone := commandline.NewTrialsProgressBar(len(trials), "Running trials")
	trajs, err := staged.NewBatch(net).
		WithPool(newPool(*flagParallelism)).
		OnTrialDone(onTrialDone).
		Run(trials, runKey)
	if err != nil {
		return err
	}

	loss, err := newLoss(net, *flagActivity)
	if err != nil {
		return err
	}
	lossDict, err := losses.Evaluate(loss, trajs, nil, net)
	if err != nil {
		return err
	}
	fmt.Println(commandline.LossesTable(lossDict))
	klog.V(1).Infof("Losses: %s", lossDict)

	if *flagPlot != "" {
		if err := plotHiddenActivity(trajs[0], *flagPlot); err != nil {
			return err
		}
		fmt.Printf("Hidden activity of the first trial plotted to %q\n", *flagPlot)
	}
	fmt.Printf("Done in %s.\n", commandline.FormatDuration(time.Since(start)))
	return nil
}

// newPool maps the -parallelism flag to a pool: 0 uses the number of cores, negative is unlimited.
func newPool(parallelism int) *workerspool.Pool {
	if parallelism == 0 {
		return workerspool.New()
	}
	return workerspool.NewWithParallelism(parallelism)
}

// newLoss is the weighted hidden activity loss, plus the output loss if the network has a readout.
func newLoss(net *network.Network, activityWeight float64) (*losses.Composite, error) {
	terms := []losses.Loss{losses.NewNetworkActivityLoss("activity")}
	weights := []float64{activityWeight}
	if net.Readout() != nil {
		terms = append(terms, losses.NewNetworkOutputLoss("output"))
		weights = append(weights, 1.0)
	}
	return losses.NewComposite("", terms, weights)
}

func splitKey4(key random.Key) (random.Key, random.Key, random.Key, random.Key) {
	keys := key.Split(4)
	return keys[0], keys[1], keys[2], keys[3]
}

// randomTrials creates numTrials sequences of numSteps normally distributed inputs.
func randomTrials(key random.Key, numTrials, numSteps, inputSize int, scale float64) [][]*tensors.Tensor {
	trials := make([][]*tensors.Tensor, numTrials)
	for trialIdx, trialKey := range key.Split(numTrials) {
		trials[trialIdx] = make([]*tensors.Tensor, numSteps)
		for step := range numSteps {
			trials[trialIdx][step] = ops.MulScalar(trialKey.Fold(uint64(step)).Normal(shapes.Make(inputSize)), scale)
		}
	}
	return trials
}
