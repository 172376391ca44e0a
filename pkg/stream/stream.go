// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stream implements a train.Dataset that lazily reads, resizes and augments images from a
// directory-per-class corpus.
//
// One epoch is StepsPerEpoch() = ceil(NumFiles() / BatchSize) batches, and every file is yielded exactly
// once per epoch (the last batch of an epoch may be smaller). In epoch mode Yield returns io.EOF at the
// end of the epoch until Reset is called. In infinite mode the stream reshuffles and continues.
package stream

import (
	"image"
	"io"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/gomlx/cometnet/internal/workers"
	"github.com/gomlx/cometnet/pkg/augment"
	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/cometnet/pkg/imageprep"
	"github.com/gomlx/cometnet/pkg/labeling"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of a Stream.
type Config struct {
	// Name of the stream, defaults to the base name of Dir.
	Name string

	// Dir is the root of the corpus: each subdirectory is a class.
	Dir string

	// Width and Height of the yielded images.
	Width, Height int

	BatchSize int

	// Infinite makes the stream loop over epochs forever.
	Infinite bool

	// Shuffle the files at every epoch.
	Shuffle bool

	// Augmenter applied to every image after resizing. Defaults to augment.Identity.
	Augmenter augment.Augmenter

	// Seed for the shuffling and augmentation. If 0 a time based seed is used.
	Seed int64
}

type labeledFile struct {
	path  string
	class int32
}

// Stream implements train.Dataset over a directory-per-class corpus.
//
// It is safe for concurrent calls to Yield, so it can be wrapped with datasets.CustomParallel.
type Stream struct {
	cfg      Config
	grouping *labeling.DirectoryGrouping
	files    []labeledFile
	toTensor *timage.ToTensorConfig

	// mu protects the fields below.
	mu          sync.Mutex
	rng         *rand.Rand
	order       []int
	stepInEpoch int
	epoch       int
}

var _ train.Dataset = (*Stream)(nil)

// New creates a Stream over the corpus in cfg.Dir.
//
// It fails if the directory doesn't exist, if it has no class subdirectories or no files.
func New(cfg Config) (*Stream, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", cfg.BatchSize)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	grouping, err := labeling.DirectoryGroupingFromDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	classFiles, err := corpus.WalkClassFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(classFiles) == 0 {
		return nil, errors.Errorf("no files found in the class subdirectories of %q", cfg.Dir)
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(cfg.Dir)
	}
	if cfg.Augmenter == nil {
		cfg.Augmenter = augment.Identity{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	s := &Stream{
		cfg:      cfg,
		grouping: grouping,
		files:    make([]labeledFile, 0, len(classFiles)),
		toTensor: timage.ToTensor(dtypes.Float32),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		order:    make([]int, len(classFiles)),
	}
	for _, cf := range classFiles {
		label, err := grouping.Label(cf.RelPath)
		if err != nil {
			return nil, err
		}
		s.files = append(s.files, labeledFile{path: cf.Path, class: int32(label.Class)})
	}
	klog.V(1).Infof("stream %q: %d files in %d classes %q", cfg.Name, len(s.files), grouping.NumClasses(),
		grouping.Classes())
	s.Reset()
	return s, nil
}

// Name implements train.Dataset.
func (s *Stream) Name() string { return s.cfg.Name }

// NumFiles in the corpus.
func (s *Stream) NumFiles() int { return len(s.files) }

// NumClasses in the corpus.
func (s *Stream) NumClasses() int { return s.grouping.NumClasses() }

// Classes returns the class names, indexed by class number.
func (s *Stream) Classes() []string { return s.grouping.Classes() }

// BatchSize of the yielded batches.
func (s *Stream) BatchSize() int { return s.cfg.BatchSize }

// StepsPerEpoch is the number of batches in one epoch.
func (s *Stream) StepsPerEpoch() int {
	return (len(s.files) + s.cfg.BatchSize - 1) / s.cfg.BatchSize
}

// Epoch returns the number of completed epochs since the last Reset.
func (s *Stream) Epoch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Reset implements train.Dataset. It restarts from the beginning of an epoch, with a new shuffle if configured.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = 0
	s.startEpochLocked()
}

func (s *Stream) startEpochLocked() {
	s.stepInEpoch = 0
	for ii := range s.order {
		s.order[ii] = ii
	}
	if s.cfg.Shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })
	}
}

// nextBatch selects the files of the next batch and a seed for the augmentation of each one.
func (s *Stream) nextBatch() (files []labeledFile, seeds []int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepInEpoch >= s.StepsPerEpoch() {
		if !s.cfg.Infinite {
			return nil, nil, io.EOF
		}
		s.startEpochLocked()
	}
	start := s.stepInEpoch * s.cfg.BatchSize
	end := min(start+s.cfg.BatchSize, len(s.order))
	files = make([]labeledFile, 0, end-start)
	seeds = make([]int64, 0, end-start)
	for _, idx := range s.order[start:end] {
		files = append(files, s.files[idx])
		seeds = append(seeds, s.rng.Int63())
	}
	s.stepInEpoch++
	if s.stepInEpoch == s.StepsPerEpoch() {
		s.epoch++
	}
	return
}

// YieldImages returns the next batch as images, with their class indices. See Yield to get tensors.
func (s *Stream) YieldImages() (images []image.Image, classes []int32, err error) {
	files, seeds, err := s.nextBatch()
	if err != nil {
		return nil, nil, err
	}
	images = make([]image.Image, len(files))
	classes = make([]int32, len(files))
	for ii, f := range files {
		classes[ii] = f.class
	}
	err = workers.Default.Map(len(files), func(ii int) error {
		img, err := imageprep.Load(files[ii].path)
		if err != nil {
			return err
		}
		resized := imageprep.Resize(img, s.cfg.Width, s.cfg.Height)
		images[ii] = s.cfg.Augmenter.Augment(resized, rand.New(rand.NewSource(seeds[ii])))
		return nil
	})
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "stream %q", s.cfg.Name)
	}
	return images, classes, nil
}

// Yield implements train.Dataset. It returns:
//
//   - spec: the Stream itself.
//   - inputs: float32 RGB images with values in [0, 1], shaped [batch_size, height, width, 3].
//   - labels: int32 class indices shaped [batch_size, 1].
func (s *Stream) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	var images []image.Image
	var classes []int32
	images, classes, err = s.YieldImages()
	if err != nil {
		return
	}
	spec = s
	inputs = []*tensors.Tensor{s.toTensor.Batch(images)}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(classes, len(classes), 1)}
	return
}

// Parallel wraps the stream with datasets.CustomParallel, to load and augment images in parallel.
// Only meaningful for infinite streams, since parallel yields don't preserve the epoch boundaries.
func (s *Stream) Parallel() train.Dataset {
	if !s.cfg.Infinite {
		klog.Warningf("stream %q is not infinite, not parallelizing", s.cfg.Name)
		return s
	}
	return datasets.CustomParallel(s).Buffer(10).Start()
}
