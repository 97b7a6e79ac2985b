// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	got, err := ReplaceTildeInDir("~/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(usr.HomeDir, "settings.yaml"), got)

	got, err = ReplaceTildeInDir("/tmp/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/settings.yaml", got)
}

func TestCreateParentDir(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "a", "b", "plot.png")
	require.NoError(t, CreateParentDir(filePath))
	info, err := os.Stat(filepath.Dir(filePath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
