// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package augment implements random image transformations used to augment training data.
package augment

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Augmenter transforms an image using the given random number generator.
//
// Implementations must not modify img, and must be safe to call concurrently as long as each caller
// uses its own rng.
type Augmenter interface {
	Augment(img image.Image, rng *rand.Rand) image.Image
}

// Identity is an Augmenter that returns the image unchanged.
type Identity struct{}

// Augment implements Augmenter.
func (Identity) Augment(img image.Image, _ *rand.Rand) image.Image { return img }

// RandomAffine applies a random rotation, shift, shear and zoom in one affine transformation,
// followed by optional random flips.
//
// The output has the same bounds as the input. Pixels not covered by the transformed image are filled
// with Fill.
type RandomAffine struct {
	// RotationRange in degrees: rotation is sampled uniformly from [-RotationRange, RotationRange].
	RotationRange float64

	// WidthShift and HeightShift are fractions of the image width and height.
	WidthShift, HeightShift float64

	// Shear angle range in degrees.
	Shear float64

	// Zoom: horizontal and vertical zoom factors are sampled independently from [1-Zoom, 1+Zoom].
	// Values above 1 zoom out.
	Zoom float64

	// HorizontalFlip and VerticalFlip enable flipping with probability 0.5.
	HorizontalFlip, VerticalFlip bool

	// Fill color for uncovered pixels. Defaults to black if nil.
	Fill color.Color
}

// DefaultRandomAffine returns the augmentation used for transfer-learning training data.
func DefaultRandomAffine() *RandomAffine {
	return &RandomAffine{
		RotationRange:  30,
		WidthShift:     0.2,
		HeightShift:    0.2,
		Shear:          0.2,
		Zoom:           0.2,
		HorizontalFlip: true,
		VerticalFlip:   true,
	}
}

// affine is a 2x3 matrix mapping (x, y) to (m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]).
type affine f64.Aff3

var identityAffine = affine{1, 0, 0, 0, 1, 0}

// mul returns a*b, the transformation that applies b first and then a.
func (a affine) mul(b affine) affine {
	return affine{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// invert returns the inverse transformation. The matrix is assumed not to be singular.
func (a affine) invert() affine {
	det := a[0]*a[4] - a[1]*a[3]
	i0, i1 := a[4]/det, -a[1]/det
	i3, i4 := -a[3]/det, a[0]/det
	return affine{
		i0, i1, -(i0*a[2] + i1*a[5]),
		i3, i4, -(i3*a[2] + i4*a[5]),
	}
}

func uniform(rng *rand.Rand, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return (2*rng.Float64() - 1) * limit
}

// sampleTransform returns a random transformation mapping output coordinates to input coordinates.
func (ra *RandomAffine) sampleTransform(width, height float64, rng *rand.Rand) affine {
	theta := uniform(rng, ra.RotationRange) * math.Pi / 180
	tx := uniform(rng, ra.WidthShift) * width
	ty := uniform(rng, ra.HeightShift) * height
	shear := uniform(rng, ra.Shear) * math.Pi / 180
	zx, zy := 1.0, 1.0
	if ra.Zoom > 0 {
		zx, zy = 1+uniform(rng, ra.Zoom), 1+uniform(rng, ra.Zoom)
	}

	cx, cy := width/2, height/2
	m := affine{1, 0, cx, 0, 1, cy}
	m = m.mul(affine{math.Cos(theta), -math.Sin(theta), 0, math.Sin(theta), math.Cos(theta), 0})
	m = m.mul(affine{1, -math.Sin(shear), 0, 0, math.Cos(shear), 0})
	m = m.mul(affine{zx, 0, 0, 0, zy, 0})
	m = m.mul(affine{1, 0, -cx + tx, 0, 1, -cy + ty})
	return m
}

// Augment implements Augmenter.
func (ra *RandomAffine) Augment(img image.Image, rng *rand.Rand) image.Image {
	bounds := img.Bounds()
	size := bounds.Size()
	outToIn := ra.sampleTransform(float64(size.X), float64(size.Y), rng)

	var out *image.NRGBA
	if outToIn == identityAffine {
		out = imaging.Clone(img)
	} else {
		// Transform works on absolute coordinates, so the input origin offset is folded in.
		inToOut := affine{1, 0, float64(bounds.Min.X), 0, 1, float64(bounds.Min.Y)}.mul(outToIn).invert()
		fill := ra.Fill
		if fill == nil {
			fill = color.Black
		}
		out = image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
		draw.Draw(out, out.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
		draw.BiLinear.Transform(out, f64.Aff3(inToOut), img, bounds, draw.Over, nil)
	}
	if ra.HorizontalFlip && rng.Intn(2) == 1 {
		out = imaging.FlipH(out)
	}
	if ra.VerticalFlip && rng.Intn(2) == 1 {
		out = imaging.FlipV(out)
	}
	return out
}
