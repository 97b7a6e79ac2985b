// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressWriter is where the progress bars are written. Defaults to os.Stderr.
var ProgressWriter io.Writer = os.Stderr

// NewTrialsProgressBar creates a progress bar for numTrials trials, and returns it along with a
// callback to be called (from any goroutine) when a trial is done, e.g. with staged.Batch.OnTrialDone.
func NewTrialsProgressBar(numTrials int, description string) (*progressbar.ProgressBar, func(trial int)) {
	bar := progressbar.NewOptions(numTrials,
		progressbar.OptionSetDescription(description),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("trials"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(ProgressWriter),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(ProgressWriter, "\n") }),
	)
	return bar, func(int) { _ = bar.Add(1) }
}
