// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataset holds a fully loaded corpus of preprocessed images and their labels.
//
// A Dataset is built from a flat directory of images with Build, persisted with Save and
// restored with Load. Use NewBatches to feed it to a train.Loop.
package dataset

import (
	"io"
	"math/rand"
	"path/filepath"

	"github.com/gomlx/cometnet/internal/workers"
	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/cometnet/pkg/imageprep"
	"github.com/gomlx/cometnet/pkg/labeling"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Sample is one preprocessed image and its label.
type Sample struct {
	// Pixels in row-major order, shaped [height][width][channels].
	Pixels []uint8

	Label labeling.Label

	// Path of the source image. It is not persisted.
	Path string
}

// Dataset is an in-memory collection of samples of the same size.
type Dataset struct {
	Name                    string
	Width, Height, Channels int
	NumClasses              int
	Samples                 []Sample
}

// Len returns the number of samples.
func (ds *Dataset) Len() int { return len(ds.Samples) }

// SampleSize is the number of bytes of each sample's Pixels.
func (ds *Dataset) SampleSize() int { return ds.Width * ds.Height * ds.Channels }

// Validate checks that every sample is consistent with the dataset dimensions.
func (ds *Dataset) Validate() error {
	if ds.Width <= 0 || ds.Height <= 0 || ds.Channels <= 0 {
		return errors.Errorf("dataset %q has invalid dimensions %dx%dx%d", ds.Name, ds.Width, ds.Height, ds.Channels)
	}
	size := ds.SampleSize()
	for ii, sample := range ds.Samples {
		if len(sample.Pixels) != size {
			return errors.Errorf("dataset %q sample #%d (%q) has %d bytes of pixels, wanted %d",
				ds.Name, ii, sample.Path, len(sample.Pixels), size)
		}
		if ds.NumClasses == 0 {
			continue
		}
		if len(sample.Label.OneHot) != ds.NumClasses {
			return errors.Errorf("dataset %q sample #%d (%q) one-hot label has length %d, wanted %d",
				ds.Name, ii, sample.Path, len(sample.Label.OneHot), ds.NumClasses)
		}
		if sample.Label.Class < 0 || sample.Label.Class >= ds.NumClasses {
			return errors.Errorf("dataset %q sample #%d (%q) has class %d, outside of [0, %d)",
				ds.Name, ii, sample.Path, sample.Label.Class, ds.NumClasses)
		}
	}
	return nil
}

// Shuffle the samples in place, using a uniform permutation.
func (ds *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds.Samples), func(i, j int) {
		ds.Samples[i], ds.Samples[j] = ds.Samples[j], ds.Samples[i]
	})
}

// Split returns a dataset with all but the last n samples (head) and one with the last n samples (tail).
// If n is larger than the number of samples, head is empty.
//
// Samples are shared, not copied.
func (ds *Dataset) Split(n int) (head, tail *Dataset) {
	n = max(0, min(n, len(ds.Samples)))
	cut := len(ds.Samples) - n
	head, tail = ds.withSamples(ds.Samples[:cut:cut]), ds.withSamples(ds.Samples[cut:])
	head.Name, tail.Name = ds.Name+"-head", ds.Name+"-tail"
	return
}

func (ds *Dataset) withSamples(samples []Sample) *Dataset {
	other := *ds
	other.Samples = samples
	return &other
}

// BuildConfig configures Build.
type BuildConfig struct {
	// Name of the dataset. Defaults to the base name of Dir.
	Name string

	// Dir holds the image files, directly under it.
	Dir string

	// Width and Height all images are resized to.
	Width, Height int

	Mode imageprep.ColorMode

	// Rand used to shuffle the samples. If nil the samples are kept in file name order.
	Rand *rand.Rand

	// SkipUnlabeled skips files the labeling strategy can't label, instead of failing.
	SkipUnlabeled bool

	// Progress displays a progress bar while reading images.
	Progress bool

	// ProgressOutput is where the progress bar is written, if set.
	ProgressOutput io.Writer
}

// Build reads every file in cfg.Dir, labels it with strategy, resizes it and shuffles the result.
func Build(cfg BuildConfig, strategy labeling.Strategy) (*Dataset, error) {
	names, err := corpus.ListFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d to build dataset", cfg.Width, cfg.Height)
	}
	ds := &Dataset{
		Name:       cfg.Name,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Channels:   cfg.Mode.Channels(),
		NumClasses: strategy.NumClasses(),
		Samples:    make([]Sample, 0, len(names)),
	}
	if ds.Name == "" {
		ds.Name = filepath.Base(cfg.Dir)
	}

	var pBar *progressbar.ProgressBar
	if cfg.Progress {
		options := []progressbar.Option{
			progressbar.OptionSetDescription(ds.Name),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		}
		if cfg.ProgressOutput != nil {
			options = append(options, progressbar.OptionSetWriter(cfg.ProgressOutput))
		}
		pBar = progressbar.NewOptions(len(names), options...)
		// Closed on every return, so a failed build doesn't leave the terminal mid-line.
		defer func() { _ = pBar.Close() }()
	}
	var numSkipped int
	for _, name := range names {
		imgPath := filepath.Join(cfg.Dir, name)
		label, err := strategy.Label(name)
		if err != nil {
			if cfg.SkipUnlabeled && errors.Is(err, labeling.ErrUnknownToken) {
				klog.Warningf("skipping %q: %v", imgPath, err)
				numSkipped++
				if pBar != nil {
					_ = pBar.Add(1)
				}
				continue
			}
			return nil, errors.WithMessagef(err, "while building dataset %q", ds.Name)
		}
		ds.Samples = append(ds.Samples, Sample{Label: label, Path: imgPath})
	}
	err = workers.Default.Map(len(ds.Samples), func(i int) error {
		sample := &ds.Samples[i]
		var err error
		sample.Pixels, err = imageprep.Prepare(sample.Path, cfg.Width, cfg.Height, cfg.Mode)
		if pBar != nil {
			_ = pBar.Add(1)
		}
		return err
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "while building dataset %q", ds.Name)
	}
	klog.V(1).Infof("dataset %q: %d samples read from %q using %s labeling, %d skipped",
		ds.Name, len(ds.Samples), cfg.Dir, strategy.Name(), numSkipped)
	if cfg.Rand != nil {
		ds.Shuffle(cfg.Rand)
	}
	return ds, nil
}
