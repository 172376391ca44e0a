// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config holds the configuration of the two pipelines. Each configuration is a value built once
// from the command line, validated, and then passed to every stage.
package config

import (
	"flag"

	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ErrMissingFlag is returned by Validate when a required flag was not given.
var ErrMissingFlag = errors.New("missing required flag")

// Transfer configures the transfer-learning pipeline.
type Transfer struct {
	TrainDir, ValDir string
	Epochs           int
	BatchSize        int
	OutputModelFile  string
	Plot             bool
	PlotDir          string

	// CheckpointDir holds the model with the best validation loss.
	CheckpointDir string

	// DataDir caches the pre-trained backbone weights.
	DataDir string

	// ImageWidth and ImageHeight of the images fed to the model.
	ImageWidth, ImageHeight int

	// AugmentValidation also applies the random augmentation to the validation images.
	AugmentValidation bool

	// Seed for shuffling and augmentation. 0 uses a time based seed.
	Seed int64

	// Resume training from the checkpoints in CheckpointDir and OutputModelFile. Without it training
	// refuses to start if they already hold a checkpoint.
	Resume bool
}

// DefaultTransfer returns the default transfer-learning configuration.
func DefaultTransfer() Transfer {
	return Transfer{
		Epochs:            200,
		BatchSize:         20,
		OutputModelFile:   "inceptionv3-ft.model",
		PlotDir:           "_plots",
		CheckpointDir:     "_models/best",
		DataDir:           "~/.cache/cometnet",
		ImageWidth:        224,
		ImageHeight:       224,
		AugmentValidation: true,
	}
}

// RegisterFlags binds the configuration fields to flags in fs, using the current values as defaults.
func (c *Transfer) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.TrainDir, "train_dir", c.TrainDir, "Directory with the training images, one subdirectory per class.")
	fs.StringVar(&c.ValDir, "val_dir", c.ValDir, "Directory with the validation images, one subdirectory per class.")
	fs.IntVar(&c.Epochs, "nb_epoch", c.Epochs, "Number of epochs to train.")
	fs.IntVar(&c.BatchSize, "batch_size", c.BatchSize, "Batch size.")
	fs.StringVar(&c.OutputModelFile, "output_model_file", c.OutputModelFile, "Where to save the final model.")
	fs.BoolVar(&c.Plot, "plot", c.Plot, "Plot accuracy and loss per epoch.")
	fs.StringVar(&c.PlotDir, "plot_dir", c.PlotDir, "Directory where plots are saved.")
	fs.StringVar(&c.CheckpointDir, "checkpoint", c.CheckpointDir, "Directory where the model with the best validation loss is saved.")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "Directory to cache the pre-trained weights.")
	fs.BoolVar(&c.AugmentValidation, "augment_val", c.AugmentValidation, "Apply random augmentation to the validation images.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed, 0 for a time based seed.")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "Continue training from the checkpoints in --checkpoint and --output_model_file.")
}

// Validate checks the configuration. It returns an error matching ErrMissingFlag if a directory was
// not given, and one matching corpus.ErrMissingDir if it doesn't exist. Directories are checked
// after "~" is expanded.
func (c Transfer) Validate() error {
	if c.TrainDir == "" || c.ValDir == "" {
		return errors.Wrap(ErrMissingFlag, "--train_dir and --val_dir are required")
	}
	resolved, err := c.ResolvePaths()
	if err != nil {
		return err
	}
	for _, dir := range []string{resolved.TrainDir, resolved.ValDir} {
		if !corpus.Exists(dir) {
			return errors.Wrapf(corpus.ErrMissingDir, "%q", dir)
		}
	}
	if c.Epochs <= 0 || c.BatchSize <= 0 {
		return errors.Errorf("--nb_epoch (%d) and --batch_size (%d) must be positive", c.Epochs, c.BatchSize)
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return errors.Errorf("invalid image size %dx%d", c.ImageWidth, c.ImageHeight)
	}
	return nil
}

// ResolvePaths returns a copy of the configuration with "~" expanded in every path.
func (c Transfer) ResolvePaths() (Transfer, error) {
	err := resolvePaths(&c.TrainDir, &c.ValDir, &c.OutputModelFile, &c.PlotDir, &c.CheckpointDir, &c.DataDir)
	return c, err
}

// CtrlMets configures the ctrl/mets pipeline.
type CtrlMets struct {
	TrainDir, TestDir string

	// OutDir where the archives are written.
	OutDir string

	ImgSize      int
	LearningRate float64

	// Train the AlexNet-style model after the archives are created.
	Train          bool
	Epochs         int
	BatchSize      int
	ValidationSize int
	CheckpointDir  string

	// Resume training from the checkpoint in CheckpointDir.
	Resume bool

	SkipUnlabeled bool
	Seed          int64

	// ToJPEG converts PNG and BMP inputs to JPEG before processing.
	ToJPEG bool

	// Force recreating the archives even if they exist.
	Force bool
}

// DefaultCtrlMets returns the default ctrl/mets configuration.
func DefaultCtrlMets() CtrlMets {
	return CtrlMets{
		OutDir:         ".",
		ImgSize:        256,
		LearningRate:   1e-3,
		Epochs:         10,
		BatchSize:      64,
		ValidationSize: 500,
		CheckpointDir:  "_models/alexnet",
	}
}

// RegisterFlags binds the configuration fields to flags in fs, using the current values as defaults.
func (c *CtrlMets) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.TrainDir, "train_dir", c.TrainDir, "Directory with the training images, labeled by file name (e.g. x.ctrl.1.jpg).")
	fs.StringVar(&c.TestDir, "test_dir", c.TestDir, "Directory with the test images, identified by the file name prefix. Optional.")
	fs.StringVar(&c.OutDir, "out", c.OutDir, "Directory where train_data.npz and test_data.npz are written.")
	fs.IntVar(&c.ImgSize, "img_size", c.ImgSize, "Images are resized to img_size x img_size.")
	fs.Float64Var(&c.LearningRate, "learning_rate", c.LearningRate, "Learning rate.")
	fs.BoolVar(&c.Train, "train", c.Train, "Train the AlexNet model on the train archive.")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "Number of epochs to train.")
	fs.IntVar(&c.BatchSize, "batch_size", c.BatchSize, "Batch size.")
	fs.IntVar(&c.ValidationSize, "validation_size", c.ValidationSize, "Number of train samples held out for validation.")
	fs.StringVar(&c.CheckpointDir, "checkpoint", c.CheckpointDir, "Directory where the model with the best validation loss is saved.")
	fs.BoolVar(&c.SkipUnlabeled, "skip_unlabeled", c.SkipUnlabeled, "Skip train files without a ctrl/mets label, instead of failing.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed, 0 for a time based seed.")
	fs.BoolVar(&c.ToJPEG, "to_jpeg", c.ToJPEG, "Convert PNG and BMP images to JPEG (in place) before processing.")
	fs.BoolVar(&c.Force, "force", c.Force, "Recreate the archives even if they already exist.")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "Continue training from the checkpoint in --checkpoint.")
}

// Validate checks the configuration. It returns an error matching ErrMissingFlag if --train_dir was
// not given, and one matching corpus.ErrMissingDir if a directory doesn't exist. Directories are
// checked after "~" is expanded.
func (c CtrlMets) Validate() error {
	if c.TrainDir == "" {
		return errors.Wrap(ErrMissingFlag, "--train_dir is required")
	}
	resolved, err := c.ResolvePaths()
	if err != nil {
		return err
	}
	dirs := []string{resolved.TrainDir}
	if resolved.TestDir != "" {
		dirs = append(dirs, resolved.TestDir)
	}
	for _, dir := range dirs {
		if !corpus.Exists(dir) {
			return errors.Wrapf(corpus.ErrMissingDir, "%q", dir)
		}
	}
	if c.ImgSize <= 0 {
		return errors.Errorf("invalid --img_size %d", c.ImgSize)
	}
	if c.Train {
		if c.Epochs <= 0 || c.BatchSize <= 0 {
			return errors.Errorf("--epochs (%d) and --batch_size (%d) must be positive", c.Epochs, c.BatchSize)
		}
		if c.LearningRate <= 0 {
			return errors.Errorf("invalid --learning_rate %g", c.LearningRate)
		}
		if c.ValidationSize <= 0 {
			return errors.Errorf("invalid --validation_size %d", c.ValidationSize)
		}
	}
	return nil
}

// ResolvePaths returns a copy of the configuration with "~" expanded in every path.
func (c CtrlMets) ResolvePaths() (CtrlMets, error) {
	err := resolvePaths(&c.TrainDir, &c.TestDir, &c.OutDir, &c.CheckpointDir)
	return c, err
}

func resolvePaths(paths ...*string) error {
	for _, p := range paths {
		if *p == "" {
			continue
		}
		resolved, err := fsutil.ReplaceTildeInDir(*p)
		if err != nil {
			return errors.WithMessagef(err, "invalid path %q", *p)
		}
		*p = resolved
	}
	return nil
}
