// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package staged

import (
	"fmt"
	"strings"
)

// FormatSpec pretty-prints the stages of a spec, one per line, with their input selector,
// written state field and callable.
func FormatSpec(spec *Spec) string {
	labelWidth, inputWidth := len("stage"), len("input")
	for _, stage := range spec.All() {
		labelWidth = max(labelWidth, len(stage.Label))
		inputWidth = max(inputWidth, len(stage.WhereInput.String()))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Spec with %d stages:\n", spec.Len())
	for ii, stage := range spec.All() {
		fmt.Fprintf(&sb, "  %2d. %-*s  %-*s -> %-8s  %s\n", ii, labelWidth, stage.Label,
			inputWidth, stage.WhereInput, stage.WhereState, stage.Callable)
	}
	return sb.String()
}
