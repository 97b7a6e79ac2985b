// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"fmt"
	"strings"
)

// Summary returns a multi-line summary of the Tensor's content, eliding the middle of
// long rows and of tall matrices. Inspired by numpy output.
func (t *Tensor) Summary(precision int) string {
	if t.shape.IsZeroSize() {
		return t.shape.String()
	}
	var buf bytes.Buffer
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	for _, dim := range t.shape.Dimensions {
		w("[%d]", dim)
	}
	w("float64")
	if t.IsScalar() {
		w("(%.*g)", precision, t.flat[0])
		return buf.String()
	}

	writeRow := func(row []float64) {
		w("{")
		if len(row) > 6 {
			for ii, v := range row[:3] {
				if ii > 0 {
					w(", ")
				}
				w("%.*g", precision, v)
			}
			w(", ..., ")
			for ii, v := range row[len(row)-3:] {
				if ii > 0 {
					w(", ")
				}
				w("%.*g", precision, v)
			}
		} else {
			for ii, v := range row {
				if ii > 0 {
					w(", ")
				}
				w("%.*g", precision, v)
			}
		}
		w("}")
	}

	if t.Rank() == 1 {
		writeRow(t.flat)
		return buf.String()
	}
	numRows, numCols := t.shape.Dimensions[0], t.shape.Dimensions[1]
	rowAt := func(ii int) []float64 { return t.flat[ii*numCols : (ii+1)*numCols] }
	indentStr := strings.Repeat(" ", 1)
	w("{")
	if numRows > 1 {
		w("\n%s", indentStr)
	}
	if numRows > 6 {
		for ii := range 3 {
			if ii > 0 {
				w(",\n%s", indentStr)
			}
			writeRow(rowAt(ii))
		}
		w(",\n%s...", indentStr)
		for ii := numRows - 3; ii < numRows; ii++ {
			w(",\n%s", indentStr)
			writeRow(rowAt(ii))
		}
	} else {
		for ii := range numRows {
			if ii > 0 {
				w(",\n%s", indentStr)
			}
			writeRow(rowAt(ii))
		}
	}
	w("}")
	return buf.String()
}
