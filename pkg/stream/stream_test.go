// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/cometnet/pkg/augment"
	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classCorpus creates a directory-per-class corpus with the given number of JPEG images per class.
func classCorpus(t *testing.T, counts map[string]int) string {
	dir := t.TempDir()
	for class, count := range counts {
		classDir := filepath.Join(dir, class)
		require.NoError(t, os.MkdirAll(classDir, 0755))
		for ii := range count {
			img := imaging.New(20+ii, 10, color.NRGBA{R: uint8(10 * ii), G: 128, B: 64, A: 255})
			f, err := os.Create(filepath.Join(classDir, fmt.Sprintf("%s_%d.jpg", class, ii)))
			require.NoError(t, err)
			require.NoError(t, jpeg.Encode(f, img, nil))
			require.NoError(t, f.Close())
		}
	}
	return dir
}

func TestStreamEpoch(t *testing.T) {
	dir := classCorpus(t, map[string]int{"cats": 5, "dogs": 3})
	s, err := New(Config{Dir: dir, Width: 16, Height: 12, BatchSize: 3, Shuffle: true, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 8, s.NumFiles())
	assert.Equal(t, 2, s.NumClasses())
	assert.Equal(t, []string{"cats", "dogs"}, s.Classes())
	assert.Equal(t, 3, s.StepsPerEpoch())

	classCounts := make([]int, 2)
	for _, wantSize := range []int{3, 3, 2} {
		images, classes, err := s.YieldImages()
		require.NoError(t, err)
		require.Len(t, images, wantSize)
		for ii, img := range images {
			assert.Equal(t, image.Pt(16, 12), img.Bounds().Size())
			classCounts[classes[ii]]++
		}
	}
	assert.Equal(t, []int{5, 3}, classCounts)
	assert.Equal(t, 1, s.Epoch())
	_, _, err = s.YieldImages()
	require.ErrorIs(t, err, io.EOF)

	s.Reset()
	assert.Equal(t, 0, s.Epoch())
	spec, inputs, labels, err := s.Yield()
	require.NoError(t, err)
	assert.Same(t, s, spec)
	assert.Equal(t, []int{3, 12, 16, 3}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, labels[0].Shape().Dimensions)
}

func TestStreamInfinite(t *testing.T) {
	dir := classCorpus(t, map[string]int{"a": 2, "b": 2, "c": 1})
	s, err := New(Config{Dir: dir, Width: 8, Height: 8, BatchSize: 2, Infinite: true, Shuffle: true,
		Augmenter: augment.DefaultRandomAffine(), Seed: 3})
	require.NoError(t, err)
	require.Equal(t, 3, s.StepsPerEpoch())
	for step := range 7 {
		_, _, err := s.YieldImages()
		require.NoError(t, err, "step %d", step)
		// An epoch is complete as soon as its last batch is yielded, in both modes.
		assert.Equal(t, (step+1)/3, s.Epoch(), "step %d", step)
	}
	assert.Equal(t, 2, s.Epoch())
}

func TestStreamSkipsNonImageFiles(t *testing.T) {
	dir := classCorpus(t, map[string]int{"a": 2, "b": 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "Thumbs.db"), []byte("x"), 0644))
	s, err := New(Config{Dir: dir, Width: 8, Height: 8, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumFiles())
	images, _, err := s.YieldImages()
	require.NoError(t, err)
	assert.Len(t, images, 3)
}

func TestStreamDeterministicAugmentation(t *testing.T) {
	dir := classCorpus(t, map[string]int{"a": 3, "b": 3})
	cfg := Config{Dir: dir, Width: 8, Height: 8, BatchSize: 6, Shuffle: true,
		Augmenter: augment.DefaultRandomAffine(), Seed: 42}
	s1, err := New(cfg)
	require.NoError(t, err)
	s2, err := New(cfg)
	require.NoError(t, err)
	images1, classes1, err := s1.YieldImages()
	require.NoError(t, err)
	images2, classes2, err := s2.YieldImages()
	require.NoError(t, err)
	assert.Equal(t, classes1, classes2)
	for ii := range images1 {
		assert.Equal(t, imaging.Clone(images1[ii]).Pix, imaging.Clone(images2[ii]).Pix)
	}
}

func TestStreamErrors(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing"), Width: 8, Height: 8, BatchSize: 2})
	require.ErrorIs(t, err, corpus.ErrMissingDir)

	_, err = New(Config{Dir: t.TempDir(), Width: 8, Height: 8, BatchSize: 2})
	require.Error(t, err, "no classes")

	empty := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(empty, "a"), 0755))
	_, err = New(Config{Dir: empty, Width: 8, Height: 8, BatchSize: 2})
	require.Error(t, err, "no files")

	dir := classCorpus(t, map[string]int{"a": 1})
	_, err = New(Config{Dir: dir, Width: 8, Height: 8, BatchSize: 0})
	require.Error(t, err)
}
