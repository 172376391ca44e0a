// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labeling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtrlMets(t *testing.T) {
	s := CtrlMets()
	require.Equal(t, 2, s.NumClasses())

	l, err := s.Label("foo.ctrl.7.jpg")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, l.OneHot)
	assert.Equal(t, 0, l.Class)

	l, err = s.Label("foo.mets.3.jpg")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, l.OneHot)
	assert.Equal(t, 1, l.Class)

	// Directory part of the path is ignored.
	l, err = s.Label(filepath.Join("some.dir", "bar.baz.mets.12.png"))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Class)
}

func TestCtrlMetsUnknownToken(t *testing.T) {
	s := CtrlMets()
	_, err := s.Label("foo.other.7.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownToken))
	var tokenErr *UnknownTokenError
	require.True(t, errors.As(err, &tokenErr))
	assert.Equal(t, "other", tokenErr.Token)

	// Not enough parts in the name.
	_, err = s.Label("foo.jpg")
	assert.True(t, errors.Is(err, ErrUnknownToken))
}

func TestFilenamePatternValidation(t *testing.T) {
	_, err := NewFilenamePattern("", 0, "a")
	assert.Error(t, err)
	_, err = NewFilenamePattern(".", 0)
	assert.Error(t, err)
	_, err = NewFilenamePattern(".", 0, "a", "a")
	assert.Error(t, err)

	fp, err := NewFilenamePattern("_", 0, "cat", "dog", "bird")
	require.NoError(t, err)
	l, err := fp.Label("bird_0001.jpg")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, l.OneHot)
}

func TestFileID(t *testing.T) {
	l, err := FileID{}.Label("1234.jpg")
	require.NoError(t, err)
	assert.Equal(t, "1234", l.ID)
	assert.False(t, l.HasClass())
	assert.Nil(t, l.OneHot)
	assert.Equal(t, 0, FileID{}.NumClasses())
}

func TestDirectoryGrouping(t *testing.T) {
	dir := t.TempDir()
	for _, class := range []string{"mets", "ctrl"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, class), 0755))
	}
	dg, err := DirectoryGroupingFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl", "mets"}, dg.Classes())
	assert.Equal(t, 2, dg.NumClasses())

	l, err := dg.Label(filepath.Join("mets", "nested", "x.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Class)
	assert.Equal(t, []float32{0, 1}, l.OneHot)

	_, err = dg.Label(filepath.Join("unknown", "x.jpg"))
	assert.True(t, errors.Is(err, ErrUnknownToken))
	_, err = dg.Label("x.jpg")
	assert.True(t, errors.Is(err, ErrUnknownToken))
}

func TestDirectoryGroupingEmpty(t *testing.T) {
	_, err := DirectoryGroupingFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestOneHot(t *testing.T) {
	assert.Equal(t, []float32{0, 0, 1, 0}, OneHot(2, 4))
}
