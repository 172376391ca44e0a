// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageprep

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// gradient creates a width x height image with a horizontal red gradient and a vertical green gradient.
func gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * x / width), G: uint8(255 * y / height), B: 0x40, A: 0xFF})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestParseColorMode(t *testing.T) {
	m, err := ParseColorMode("rgb")
	require.NoError(t, err)
	assert.Equal(t, RGB, m)
	assert.Equal(t, 3, m.Channels())
	m, err = ParseColorMode("grayscale")
	require.NoError(t, err)
	assert.Equal(t, Grayscale, m)
	assert.Equal(t, 1, m.Channels())
	_, err = ParseColorMode("cmyk")
	require.Error(t, err)
}

func TestResize(t *testing.T) {
	img := gradient(40, 30)
	resized := Resize(img, 16, 16)
	assert.Equal(t, image.Pt(16, 16), resized.Bounds().Size())

	// Already at the target size: identical pixels.
	again := Resize(resized, 16, 16)
	assert.Equal(t, resized.Pix, again.Pix)

	// Deterministic.
	assert.Equal(t, resized.Pix, Resize(img, 16, 16).Pix)
}

func TestPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	rgb := Pixels(img, RGB)
	assert.Equal(t, []uint8{255, 0, 0, 10, 20, 30}, rgb)

	gray := Pixels(img, Grayscale)
	require.Len(t, gray, 2)
	// Luminance of pure red is ~0.299*255.
	assert.InDelta(t, 76, int(gray[0]), 1)
	assert.InDelta(t, 18, int(gray[1]), 1)
}

func TestToImageRoundTrip(t *testing.T) {
	img := gradient(8, 6)
	for _, mode := range []ColorMode{Grayscale, RGB} {
		pixels := Pixels(img, mode)
		back, err := ToImage(pixels, 8, 6, mode)
		require.NoError(t, err)
		assert.Equal(t, pixels, Pixels(back, mode), "mode %s", mode)
	}
	_, err := ToImage(make([]uint8, 10), 8, 6, RGB)
	require.Error(t, err)
}

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ctrl.1.png")
	writePNG(t, path, gradient(20, 10))

	pixels, err := Prepare(path, 8, 8, Grayscale)
	require.NoError(t, err)
	assert.Len(t, pixels, 8*8)

	pixels, err = Prepare(path, 8, 4, RGB)
	require.NoError(t, err)
	assert.Len(t, pixels, 8*4*3)

	_, err = Prepare(filepath.Join(dir, "missing.png"), 8, 8, RGB)
	require.Error(t, err)

	notImage := filepath.Join(dir, "text.png")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0644))
	_, err = Prepare(notImage, 8, 8, RGB)
	require.Error(t, err)
}

func TestConvertDirToJPEG(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), gradient(10, 10))
	f, err := os.Create(filepath.Join(dir, "b.bmp"))
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, gradient(10, 10)))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	count, err := ConvertDirToJPEG(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	for _, name := range []string{"a.jpg", "b.jpg", "notes.txt"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "a.png"))
	assert.NoFileExists(t, filepath.Join(dir, "b.bmp"))

	img, err := Load(filepath.Join(dir, "b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 10), img.Bounds().Size())
}
