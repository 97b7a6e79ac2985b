// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/stagednet/pkg/ml/context"
	"github.com/gomlx/stagednet/pkg/ml/staged"
	"github.com/gomlx/stagednet/pkg/ml/train/losses"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	tableBorderColor = lipgloss.Color("99")
)

// newTable creates a table with a header row and alternating row styles. The alignments are
// given per column, the last one repeated for the remaining columns.
func newTable(headers []string, alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tableBorderColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
}

// StagesTable renders the stages of a spec, in execution order.
func StagesTable(spec *staged.Spec) string {
	t := newTable([]string{"#", "Stage", "Input", "Writes", "Callable"}, lipgloss.Right, lipgloss.Left)
	for ii, stage := range spec.All() {
		t.Row(fmt.Sprintf("%d", ii), stage.Label, stage.WhereInput.String(), stage.WhereState.String(),
			stage.Callable.String())
	}
	return t.String()
}

// VariablesTable renders the variables of the context, with their shapes and sizes, and the total
// number of parameters.
func VariablesTable(ctx *context.Context) string {
	t := newTable([]string{"Variable", "Shape", "Size"}, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for v := range ctx.IterVariables() {
		t.Row(v.ScopeAndName(), v.Shape().String(), humanize.Comma(int64(v.Shape().Size())))
	}
	t.Row("Total", "", humanize.Comma(int64(ctx.NumParameters())))
	return t.String()
}

// LossesTable renders the terms of a LossDict, followed by their total.
func LossesTable(d *losses.LossDict) string {
	t := newTable([]string{"Loss", "Value"}, lipgloss.Left, lipgloss.Right)
	for label, value := range d.All() {
		t.Row(label, humanize.FormatFloat("#,###.####", value))
	}
	t.Row("Total", humanize.FormatFloat("#,###.####", d.Total()))
	return t.String()
}
