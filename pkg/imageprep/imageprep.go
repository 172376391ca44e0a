// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imageprep loads images from disk and converts them to fixed size pixel arrays.
//
// Resizing does not preserve the aspect ratio: every image is stretched to exactly the configured
// width and height.
package imageprep

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// ColorMode selects the channels kept for each pixel.
type ColorMode int

const (
	// Grayscale keeps one channel, the luminance.
	Grayscale ColorMode = iota

	// RGB keeps 3 channels. Alpha is dropped.
	RGB
)

// Channels returns the number of channels for the color mode.
func (m ColorMode) Channels() int {
	if m == Grayscale {
		return 1
	}
	return 3
}

// String implements fmt.Stringer.
func (m ColorMode) String() string {
	switch m {
	case Grayscale:
		return "grayscale"
	case RGB:
		return "rgb"
	}
	return "unknown"
}

// ParseColorMode converts "grayscale" or "rgb" to a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "grayscale", "gray":
		return Grayscale, nil
	case "rgb":
		return RGB, nil
	}
	return Grayscale, errors.Errorf("unknown color mode %q, valid values are \"grayscale\" or \"rgb\"", s)
}

// Load reads and decodes the image in imagePath. JPEG, PNG, GIF and BMP are supported.
func Load(imagePath string) (image.Image, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image")
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", imagePath)
	}
	return img, nil
}

// Resize img to exactly width x height, using a Lanczos filter. If img already has the requested size,
// an identical copy is returned.
func Resize(img image.Image, width, height int) *image.NRGBA {
	size := img.Bounds().Size()
	if size.X == width && size.Y == height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Pixels returns the pixels of img in row-major order, with mode.Channels() bytes per pixel.
// Grayscale uses the luminance (0.299R + 0.587G + 0.114B).
func Pixels(img image.Image, mode ColorMode) []uint8 {
	var nrgba *image.NRGBA
	if mode == Grayscale {
		nrgba = imaging.Grayscale(img)
	} else {
		nrgba = imaging.Clone(img)
	}
	size := nrgba.Bounds().Size()
	channels := mode.Channels()
	pixels := make([]uint8, size.X*size.Y*channels)
	pos := 0
	for y := 0; y < size.Y; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*size.X]
		for x := 0; x < size.X; x++ {
			copy(pixels[pos:pos+channels], row[4*x:4*x+channels])
			pos += channels
		}
	}
	return pixels
}

// Prepare loads the image in imagePath, resizes it to width x height and returns its pixels for the
// given color mode.
func Prepare(imagePath string, width, height int, mode ColorMode) ([]uint8, error) {
	img, err := Load(imagePath)
	if err != nil {
		return nil, err
	}
	return Pixels(Resize(img, width, height), mode), nil
}

// ToImage converts pixels generated by Pixels back to an image.Image.
func ToImage(pixels []uint8, width, height int, mode ColorMode) (image.Image, error) {
	if len(pixels) != width*height*mode.Channels() {
		return nil, errors.Errorf("%d bytes given for a %dx%d %s image, wanted %d",
			len(pixels), width, height, mode, width*height*mode.Channels())
	}
	rect := image.Rect(0, 0, width, height)
	if mode == Grayscale {
		img := image.NewGray(rect)
		copy(img.Pix, pixels)
		return img, nil
	}
	img := image.NewNRGBA(rect)
	for ii := 0; ii < width*height; ii++ {
		img.SetNRGBA(ii%width, ii/width, color.NRGBA{
			R: pixels[3*ii], G: pixels[3*ii+1], B: pixels[3*ii+2], A: 0xFF})
	}
	return img, nil
}
