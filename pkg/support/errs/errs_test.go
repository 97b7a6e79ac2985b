// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package errs_test

import (
	"fmt"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/support/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	err := errs.Configurationf("population sizes sum to %d, hidden_size is %d", 5, 6)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.False(t, errs.IsShape(err))
	assert.False(t, errs.IsState(err))
	assert.Contains(t, err.Error(), "sum to 5")
	assert.Contains(t, err.Error(), "configuration error")

	err = errors.WithMessage(errs.Statef("no output"), "computing loss")
	assert.True(t, errs.IsState(err))
	assert.True(t, errs.IsShape(errs.Shapef("mismatch")))
}

func TestPanicRecovery(t *testing.T) {
	err := exceptions.TryCatch[error](func() { panic(errs.Shapef("(%d) vs (%d)", 2, 3)) })
	require.Error(t, err)
	assert.True(t, errs.IsShape(err))
	assert.Contains(t, fmt.Sprintf("%v", err), "(2) vs (3)")
}
