// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// ctrlmets builds the ctrl/mets grayscale image archives and optionally trains an AlexNet-style
// classifier on them.
//
// Training images are labeled by their file name: "<id>.ctrl.<n>.jpg" or "<id>.mets.<n>.jpg".
// Test images are identified by the prefix of their file name, up to the first ".".
//
// Usage:
//
//	ctrlmets --train_dir <dir> [--test_dir <dir>] [--out .] [--train]
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/gomlx/cometnet/internal/config"
	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/cometnet/pkg/dataset"
	"github.com/gomlx/cometnet/pkg/imageprep"
	"github.com/gomlx/cometnet/pkg/labeling"
	"github.com/gomlx/cometnet/pkg/models"
	"github.com/gomlx/cometnet/pkg/training"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Corpus roles, also the base names of the archives.
const (
	TrainRole = "train_data"
	TestRole  = "test_data"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command with the given arguments and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.DefaultCtrlMets()
	fs := flag.NewFlagSet("ctrlmets", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	var settings string
	fs.StringVar(&settings, "set", "", "Set hyperparameters, e.g. \"alexnet_dense_units=1024;alexnet_normalization=layer\".")
	klog.InitFlags(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: %s --train_dir <dir> [--test_dir <dir>] [flags]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cfg.ResolvePaths()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err = cfg.Validate(); err != nil {
		switch {
		case errors.Is(err, config.ErrMissingFlag):
			fs.Usage()
		case errors.Is(err, corpus.ErrMissingDir):
			_, _ = fmt.Fprintln(stdout, "Directories Not Found!")
		default:
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	if err := ctrlMets(cfg, settings, stdout); err != nil {
		klog.Errorf("%+v", err)
		return 1
	}
	return 0
}

// ctrlMets runs the pipeline. Paths in cfg must already be resolved.
func ctrlMets(cfg config.CtrlMets, settings string, stdout io.Writer) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if cfg.ToJPEG {
		for _, dir := range []string{cfg.TrainDir, cfg.TestDir} {
			if dir == "" {
				continue
			}
			n, err := imageprep.ConvertDirToJPEG(dir, imageprep.DefaultJPEGQuality)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Converted %d images in %s to JPEG\n", n, dir)
		}
	}

	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %q", cfg.OutDir)
	}
	trainPath := dataset.ArchivePath(cfg.OutDir, TrainRole)
	if err := buildArchive(cfg, cfg.TrainDir, TrainRole, labeling.CtrlMets(), rng, trainPath, stdout); err != nil {
		return err
	}
	if cfg.TestDir != "" {
		testPath := dataset.ArchivePath(cfg.OutDir, TestRole)
		if err := buildArchive(cfg, cfg.TestDir, TestRole, labeling.FileID{Delimiter: "."}, rng, testPath, stdout); err != nil {
			return err
		}
	}
	if !cfg.Train {
		return nil
	}
	return trainAlexNet(cfg, settings, trainPath, rng, stdout)
}

// buildArchive creates the archive for the corpus in dir, unless it already exists and --force is not set.
func buildArchive(cfg config.CtrlMets, dir, role string, strategy labeling.Strategy, rng *rand.Rand,
	archivePath string, stdout io.Writer) error {
	if !cfg.Force {
		exists, err := fsutil.FileExists(archivePath)
		if err != nil {
			return err
		}
		if exists {
			_, _ = fmt.Fprintf(stdout, "Reusing %s\n", archivePath)
			return nil
		}
	}
	ds, err := dataset.Build(dataset.BuildConfig{
		Name:          role,
		Dir:           dir,
		Width:         cfg.ImgSize,
		Height:        cfg.ImgSize,
		Mode:          imageprep.Grayscale,
		Rand:          rng,
		SkipUnlabeled: cfg.SkipUnlabeled,
		Progress:      true,
	}, strategy)
	if err != nil {
		return err
	}
	if err = ds.Save(archivePath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Saved %d images from %s to %s\n", ds.Len(), dir, archivePath)
	return nil
}

func trainAlexNet(cfg config.CtrlMets, settings, trainPath string, rng *rand.Rand, stdout io.Writer) error {
	ds, err := dataset.Load(trainPath, TrainRole)
	if err != nil {
		return err
	}
	if ds.Len() <= cfg.ValidationSize {
		return errors.Errorf("train archive %q has %d samples, not enough to hold out %d for validation",
			trainPath, ds.Len(), cfg.ValidationSize)
	}
	trainDS, valDS := ds.Split(cfg.ValidationSize)
	trainDS.Name, valDS.Name = "train", "validation"

	ctx := models.CreateDefaultContext(models.AlexNet)
	ctx.SetParam(models.ParamNumClasses, ds.NumClasses)
	ctx.SetParam(optimizers.ParamLearningRate, cfg.LearningRate)
	paramsSet, err := commandline.ParseContextSettings(ctx, settings)
	if err != nil {
		return err
	}
	klog.V(1).Infof("hyperparameters:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))

	trainBatches := dataset.NewBatches(trainDS, cfg.BatchSize, true, rng).DropIncomplete(true)
	valBatches := dataset.NewBatches(valDS, cfg.BatchSize, false, nil)
	start := time.Now()
	history, err := training.Train(ctx, backends.MustNew(), training.Options{
		Train:         trainBatches,
		Validation:    valBatches,
		StepsPerEpoch: trainBatches.StepsPerEpoch(),
		Epochs:        cfg.Epochs,
		CheckpointDir: cfg.CheckpointDir,
		ParamsSet:     paramsSet,
		ProgressBar:   true,
		Resume:        cfg.Resume,
		BatchSize:     cfg.BatchSize,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, training.SummaryTable(history))
	_, _ = fmt.Fprintf(stdout, "Training Time: %s\n", commandline.FormatDuration(time.Since(start)))
	return nil
}
