// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package training drives the training of the image classification models: it builds the trainer,
// evaluates on the validation data at the end of every epoch, keeps the checkpoint with the best
// validation loss, and reports the results as a History, plots and tables.
package training

import (
	"math"
	"path/filepath"
	"slices"
	"time"

	"github.com/gomlx/cometnet/pkg/models"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options for Train.
type Options struct {
	// Train dataset, usually infinite. It must yield images and int32 class labels shaped [batch_size, 1].
	Train train.Dataset

	// Validation dataset, it must end with io.EOF. It is reset before every evaluation.
	Validation train.Dataset

	// StepsPerEpoch is the number of training batches per epoch.
	StepsPerEpoch int

	Epochs int

	// CheckpointDir where the model with the best validation loss is saved. Optional.
	CheckpointDir string

	// OutputModelDir where the final model is saved after training. Optional.
	OutputModelDir string

	// ParamsSet are hyperparameters set on the command line: they are not overwritten when loading a checkpoint.
	ParamsSet []string

	// ProgressBar attaches a progress bar to the training loop.
	ProgressBar bool

	// Resume training from the checkpoints in CheckpointDir and OutputModelDir. Without it, Train fails
	// with ErrExistingCheckpoint if either already holds a checkpoint.
	Resume bool

	// BatchSize is recorded in the History. Optional.
	BatchSize int
}

// ErrExistingCheckpoint is returned by Train when a checkpoint directory is not empty and Options.Resume is false.
var ErrExistingCheckpoint = errors.New("checkpoint directory already holds a checkpoint")

// checkpointExcludes returns the hyperparameters a loaded checkpoint must not overwrite: the ones set on
// the command line and the ones derived from the training data.
func checkpointExcludes(paramsSet []string) []string {
	return append(slices.Clone(paramsSet), models.ParamNumClasses, models.ParamDataDir)
}

// newHandler creates the checkpoint handler for dir. Unless resume is set, it fails if dir already
// holds a checkpoint.
func newHandler(ctx *context.Context, dir string, excludes []string, resume bool) (*checkpoints.Handler, error) {
	handler, err := checkpoints.Build(ctx).Dir(dir).ExcludeParams(excludes...).Keep(1).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create checkpoint in %q", dir)
	}
	if resume {
		return handler, nil
	}
	found, err := handler.ListCheckpoints()
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return nil, errors.Wrapf(ErrExistingCheckpoint, "%q (use --resume to continue training from it)", dir)
	}
	return handler, nil
}

// loadResumedHistory returns the history saved in checkpointDir, or nil if there is none.
func loadResumedHistory(checkpointDir string) (*History, error) {
	historyPath := filepath.Join(checkpointDir, HistoryFileName)
	exists, err := fsutil.FileExists(historyPath)
	if err != nil || !exists {
		return nil, err
	}
	return LoadHistory(historyPath)
}

func (opts *Options) validate() error {
	if opts.Train == nil || opts.Validation == nil {
		return errors.New("training requires both a train and a validation dataset")
	}
	if opts.StepsPerEpoch <= 0 {
		return errors.Errorf("invalid number of steps per epoch %d", opts.StepsPerEpoch)
	}
	if opts.Epochs <= 0 {
		return errors.Errorf("invalid number of epochs %d", opts.Epochs)
	}
	return nil
}

// Train the model selected by the models.ParamModel hyperparameter in ctx for opts.Epochs epochs.
//
// At the end of every epoch, it evaluates the model on opts.Validation, records the metrics in the
// returned History and, if the validation loss improved, saves a checkpoint to opts.CheckpointDir,
// along with the history so far.
//
// With opts.Resume, the checkpoints in opts.CheckpointDir or opts.OutputModelDir are loaded and training
// continues up to a total of opts.Epochs. The history saved in opts.CheckpointDir is continued, and
// only a validation loss lower than its best one saves a new checkpoint.
func Train(ctx *context.Context, backend backends.Backend, opts Options) (*History, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	modelName := context.GetParamOr(ctx, models.ParamModel, "")
	modelFn, err := models.Lookup(modelName)
	if err != nil {
		return nil, err
	}

	excludes := checkpointExcludes(opts.ParamsSet)
	var bestHandler, outputHandler *checkpoints.Handler
	var resumed *History
	if opts.CheckpointDir != "" {
		if bestHandler, err = newHandler(ctx, opts.CheckpointDir, excludes, opts.Resume); err != nil {
			return nil, err
		}
		if opts.Resume {
			if resumed, err = loadResumedHistory(opts.CheckpointDir); err != nil {
				return nil, err
			}
		}
	}
	if opts.OutputModelDir != "" {
		if outputHandler, err = newHandler(ctx, opts.OutputModelDir, excludes, opts.Resume); err != nil {
			return nil, err
		}
	}

	var history *History
	var trainErr error
	if panicErr := exceptions.TryCatch[error](func() {
		history, trainErr = runTraining(ctx, backend, modelName, modelFn, bestHandler, resumed, opts)
	}); panicErr != nil {
		return history, errors.WithMessagef(panicErr, "training %q panicked", modelName)
	}
	if trainErr != nil {
		return history, trainErr
	}
	if err = saveHistory(history, opts.CheckpointDir); err != nil {
		return history, err
	}
	if outputHandler != nil {
		if err = outputHandler.Save(); err != nil {
			return history, errors.WithMessagef(err, "failed to save final model to %q", opts.OutputModelDir)
		}
		klog.Infof("final model saved to %q", opts.OutputModelDir)
	}
	return history, nil
}

func runTraining(ctx *context.Context, backend backends.Backend, modelName string, modelFn train.ModelFn,
	bestHandler *checkpoints.Handler, resumed *History, opts Options) (*History, error) {
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	trainer := train.NewTrainer(backend, ctx, modelFn,
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics

	var saver Saver
	if bestHandler != nil {
		saver = bestHandler
	}
	best := NewBestCheckpoint(saver)
	history := NewHistory(modelName)
	history.BatchSize = opts.BatchSize
	epoch := 0
	numSteps := opts.Epochs * opts.StepsPerEpoch
	if globalStep := int(optimizers.GetGlobalStep(ctx)); globalStep > 0 {
		trainer.SetContext(ctx.Reuse())
		epoch = globalStep / opts.StepsPerEpoch
		numSteps -= globalStep
		klog.Infof("continuing training from global step %d (epoch %d)", globalStep, epoch)
		if resumed != nil {
			history = resumed
			history.Truncate(epoch)
			if opts.BatchSize > 0 {
				history.BatchSize = opts.BatchSize
			}
			if history.BestEpoch > 0 {
				best.Restore(history.BestEpoch, history.BestValLoss)
			}
		} else {
			klog.Warningf("no %s found to resume from, the first epoch will overwrite the best checkpoint", HistoryFileName)
		}
	}
	if numSteps <= 0 {
		klog.Infof("model already trained for %d epochs, nothing to do", epoch)
		return history, nil
	}

	// TrainMetrics starts with the batch loss and its moving average, followed by movingAccuracyMetric.
	trainLossIdx := 1
	trainAccIdx := metricIndex(trainer.TrainMetrics(), movingAccuracyMetric)
	evalAccIdx := metricIndex(trainer.EvalMetrics(), meanAccuracyMetric)

	loop := train.NewLoop(trainer)
	if opts.ProgressBar {
		commandline.AttachProgressBar(loop)
	}

	start := time.Now()
	previousElapsed := history.Elapsed
	train.EveryNSteps(loop, opts.StepsPerEpoch, "epoch evaluation", 100,
		func(loop *train.Loop, stepMetrics []*tensors.Tensor) error {
			epoch++
			opts.Validation.Reset()
			evalMetrics := trainer.Eval(opts.Validation)
			loss, acc := metricValue(stepMetrics[trainLossIdx]), metricValue(stepMetrics[trainAccIdx])
			valLoss, valAcc := metricValue(evalMetrics[0]), metricValue(evalMetrics[evalAccIdx])
			history.Record(epoch, acc, valAcc, loss, valLoss)
			improved, err := best.Observe(epoch, valLoss)
			if improved {
				history.BestEpoch, history.BestValLoss = best.Best()
			}
			klog.Infof("epoch %d/%d: loss=%.4f acc=%.4f val_loss=%.4f val_acc=%.4f improved=%v",
				epoch, opts.Epochs, loss, acc, valLoss, valAcc, improved)
			if err != nil {
				return err
			}
			history.Elapsed = previousElapsed + time.Since(start)
			return saveHistory(history, opts.CheckpointDir)
		})

	_, err := loop.RunSteps(opts.Train, numSteps)
	history.Elapsed = previousElapsed + time.Since(start)
	if err != nil {
		return history, errors.WithMessagef(err, "training %q failed after %d epochs", modelName, history.Len())
	}
	return history, nil
}

// saveHistory writes the history next to the best checkpoint, if there is one.
func saveHistory(history *History, checkpointDir string) error {
	if checkpointDir == "" {
		return nil
	}
	return history.SaveYAML(filepath.Join(checkpointDir, HistoryFileName))
}

func metricIndex(list []metrics.Interface, m metrics.Interface) int {
	for ii, candidate := range list {
		if candidate == m {
			return ii
		}
	}
	exceptions.Panicf("metric %q not registered in trainer", m.Name())
	return -1
}

// metricValue converts a scalar metric to float64.
func metricValue(t *tensors.Tensor) float64 {
	switch v := t.Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}
