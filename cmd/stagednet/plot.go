// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/gomlx/stagednet/pkg/ml/state"
	"github.com/gomlx/stagednet/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// maxPlottedUnits limits the number of hidden units plotted, to keep the legend readable.
const maxPlottedUnits = 16

// plotHiddenActivity plots the activity of (up to maxPlottedUnits) hidden units over the steps of
// the trajectory to a PNG file.
func plotHiddenActivity(traj *state.Trajectory, filePath string) error {
	hidden, err := traj.Field(state.FieldHidden)
	if err != nil {
		return err
	}
	filePath, err = fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	if err = fsutil.CreateParentDir(filePath); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Hidden activity"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Activity"
	numSteps, numUnits := hidden.Shape().Dim(0), hidden.Shape().Dim(1)
	for unit := range min(numUnits, maxPlottedUnits) {
		xys := make(plotter.XYs, numSteps)
		for step := range numSteps {
			xys[step].X = float64(step)
			xys[step].Y = hidden.At(step, unit)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "failed to plot unit %d", unit)
		}
		line.Color = plotutil.Color(unit)
		line.Dashes = plotutil.Dashes(unit / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("unit %d", unit), line)
	}
	if err = p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
