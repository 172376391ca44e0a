// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// transferlearn fine-tunes a pre-trained image model on a directory-per-class corpus.
//
// Usage:
//
//	transferlearn --train_dir <dir> --val_dir <dir> [--nb_epoch 200] [--batch_size 20]
//	    [--output_model_file inceptionv3-ft.model] [--plot]
//
// Each subdirectory of --train_dir and --val_dir is a class. Training images are randomly augmented,
// the model with the best validation loss is kept in --checkpoint and the final model is saved to
// --output_model_file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/cometnet/internal/config"
	"github.com/gomlx/cometnet/pkg/augment"
	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/cometnet/pkg/models"
	"github.com/gomlx/cometnet/pkg/stream"
	"github.com/gomlx/cometnet/pkg/training"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command with the given arguments and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.DefaultTransfer()
	fs := flag.NewFlagSet("transferlearn", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	var settings string
	fs.StringVar(&settings, "set", "", "Set hyperparameters, e.g. \"fc_size=512;optimizers.learning_rate=1e-4\".")
	klog.InitFlags(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: %s --train_dir <dir> --val_dir <dir> [flags]\n", fs.Name())
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

	start := time.Now()
	if err := transferLearn(cfg, settings, stdout); err != nil {
		klog.Errorf("%+v", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "Training Time: %s\n", commandline.FormatDuration(time.Since(start)))
	return 0
}

// transferLearn runs the pipeline. Paths in cfg must already be resolved.
func transferLearn(cfg config.Transfer, settings string, stdout io.Writer) error {
	nbTrainFiles, err := corpus.CountFiles(cfg.TrainDir)
	if err != nil {
		return err
	}
	nbClasses, err := corpus.CountClasses(cfg.TrainDir)
	if err != nil {
		return err
	}
	nbValFiles, err := corpus.CountFiles(cfg.ValDir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Found %d training images in %d classes, %d validation images.\n",
		nbTrainFiles, nbClasses, nbValFiles)

	ctx := models.CreateDefaultContext(models.Transfer)
	ctx.SetParam(models.ParamNumClasses, nbClasses)
	ctx.SetParam(models.ParamDataDir, cfg.DataDir)
	paramsSet, err := commandline.ParseContextSettings(ctx, settings)
	if err != nil {
		return err
	}
	klog.V(1).Infof("hyperparameters:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))

	trainStream, err := stream.New(stream.Config{
		Name:      "train",
		Dir:       cfg.TrainDir,
		Width:     cfg.ImageWidth,
		Height:    cfg.ImageHeight,
		BatchSize: cfg.BatchSize,
		Infinite:  true,
		Shuffle:   true,
		Augmenter: augment.DefaultRandomAffine(),
		Seed:      cfg.Seed,
	})
	if err != nil {
		return err
	}
	valCfg := stream.Config{
		Name:      "validation",
		Dir:       cfg.ValDir,
		Width:     cfg.ImageWidth,
		Height:    cfg.ImageHeight,
		BatchSize: cfg.BatchSize,
		Seed:      cfg.Seed + 1,
	}
	if cfg.AugmentValidation {
		valCfg.Augmenter = augment.DefaultRandomAffine()
	}
	valStream, err := stream.New(valCfg)
	if err != nil {
		return err
	}
	if valStream.NumClasses() != trainStream.NumClasses() {
		return errors.Errorf("validation directory %q has %d classes, training directory %q has %d",
			cfg.ValDir, valStream.NumClasses(), cfg.TrainDir, trainStream.NumClasses())
	}

	if err = models.Prepare(ctx, cfg.DataDir); err != nil {
		return err
	}
	history, err := training.Train(ctx, backends.MustNew(), training.Options{
		Train:          trainStream.Parallel(),
		Validation:     valStream,
		StepsPerEpoch:  trainStream.StepsPerEpoch(),
		Epochs:         cfg.Epochs,
		CheckpointDir:  cfg.CheckpointDir,
		OutputModelDir: cfg.OutputModelFile,
		ParamsSet:      paramsSet,
		ProgressBar:    true,
		Resume:         cfg.Resume,
		BatchSize:      cfg.BatchSize,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, training.SummaryTable(history))
	if err = history.SaveYAML(filepath.Join(cfg.OutputModelFile, training.HistoryFileName)); err != nil {
		return err
	}

	if cfg.Plot {
		accPath, lossPath, err := training.PlotHistory(history, cfg.PlotDir, cfg.Epochs, cfg.BatchSize)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Plots saved to %s and %s\n", accPath, lossPath)
	}
	return nil
}
