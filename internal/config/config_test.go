// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferFlags(t *testing.T) {
	c := DefaultTransfer()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--train_dir=a", "--val_dir=b", "--nb_epoch=3", "--plot"}))
	assert.Equal(t, "a", c.TrainDir)
	assert.Equal(t, "b", c.ValDir)
	assert.Equal(t, 3, c.Epochs)
	assert.Equal(t, 20, c.BatchSize)
	assert.True(t, c.Plot)
	assert.False(t, c.Resume)
	assert.Equal(t, "inceptionv3-ft.model", c.OutputModelFile)

	require.NoError(t, fs.Parse([]string{"--resume"}))
	assert.True(t, c.Resume)
}

func TestTransferValidate(t *testing.T) {
	c := DefaultTransfer()
	require.ErrorIs(t, c.Validate(), ErrMissingFlag)
	c.TrainDir = t.TempDir()
	require.ErrorIs(t, c.Validate(), ErrMissingFlag)

	c.ValDir = filepath.Join(t.TempDir(), "missing")
	require.ErrorIs(t, c.Validate(), corpus.ErrMissingDir)

	c.ValDir = t.TempDir()
	require.NoError(t, c.Validate())

	c.BatchSize = 0
	require.Error(t, c.Validate())
}

func TestCtrlMetsValidate(t *testing.T) {
	c := DefaultCtrlMets()
	assert.Equal(t, 256, c.ImgSize)
	assert.Equal(t, 1e-3, c.LearningRate)
	require.ErrorIs(t, c.Validate(), ErrMissingFlag)

	c.TrainDir = t.TempDir()
	require.NoError(t, c.Validate())
	c.TestDir = filepath.Join(t.TempDir(), "missing")
	require.ErrorIs(t, c.Validate(), corpus.ErrMissingDir)
	c.TestDir = ""

	c.Train = true
	c.LearningRate = 0
	require.Error(t, c.Validate())
}

func TestResolvePaths(t *testing.T) {
	usr, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	home := usr.HomeDir
	c := DefaultTransfer()
	c.TrainDir = "~/train"
	resolved, err := c.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "train"), resolved.TrainDir)
	assert.Equal(t, filepath.Join(home, ".cache/cometnet"), resolved.DataDir)
	// Values are copied, the original is unchanged.
	assert.Equal(t, "~/train", c.TrainDir)
	assert.Equal(t, "_plots", resolved.PlotDir)
}

func TestValidateTildeDirs(t *testing.T) {
	usr, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	dir, err := os.MkdirTemp(usr.HomeDir, ".cometnet-config-test-")
	if err != nil {
		t.Skipf("home directory not writable: %v", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()
	tildeDir := filepath.Join("~", filepath.Base(dir))

	c := DefaultTransfer()
	c.TrainDir, c.ValDir = tildeDir, tildeDir
	require.NoError(t, c.Validate())
	c.ValDir = filepath.Join(tildeDir, "missing")
	require.ErrorIs(t, c.Validate(), corpus.ErrMissingDir)

	m := DefaultCtrlMets()
	m.TrainDir, m.TestDir = tildeDir, tildeDir
	require.NoError(t, m.Validate())
}
