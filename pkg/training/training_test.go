// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package training

import (
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gomlx/cometnet/pkg/dataset"
	"github.com/gomlx/cometnet/pkg/labeling"
	"github.com/gomlx/cometnet/pkg/models"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

type countingSaver struct {
	count int
	err   error
}

func (s *countingSaver) Save() error {
	s.count++
	return s.err
}

func TestBestCheckpoint(t *testing.T) {
	saver := &countingSaver{}
	best := NewBestCheckpoint(saver)
	for epoch, loss := range []float64{0.9, 0.7, 0.8, math.NaN(), 0.5, 0.5} {
		_, err := best.Observe(epoch+1, loss)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, saver.count)
	bestEpoch, bestLoss := best.Best()
	assert.Equal(t, 5, bestEpoch)
	assert.Equal(t, 0.5, bestLoss)

	saver.err = errors.New("disk full")
	improved, err := best.Observe(7, 0.1)
	assert.True(t, improved)
	require.Error(t, err)

	// Without a saver it only tracks.
	tracker := NewBestCheckpoint(nil)
	improved, err = tracker.Observe(1, 2.0)
	require.NoError(t, err)
	assert.True(t, improved)
}

func TestBestCheckpointRestore(t *testing.T) {
	saver := &countingSaver{}
	best := NewBestCheckpoint(saver)
	best.Restore(3, 0.5)
	assert.Zero(t, saver.count)

	// A resumed run must not replace the best checkpoint of the previous one with a worse model.
	improved, err := best.Observe(4, 73.0)
	require.NoError(t, err)
	assert.False(t, improved)
	assert.Zero(t, saver.count)
	epoch, loss := best.Best()
	assert.Equal(t, 3, epoch)
	assert.Equal(t, 0.5, loss)

	improved, err = best.Observe(5, 0.4)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.Equal(t, 1, saver.count)
}

func TestHistoryTruncate(t *testing.T) {
	h := sampleHistory()
	h.Truncate(2)
	assert.Equal(t, []int{1, 2}, h.Epochs)
	assert.Equal(t, []float64{0.69, 0.55}, h.Loss)
	assert.Len(t, h.ValAcc, 2)
	h.Truncate(5)
	assert.Equal(t, 2, h.Len())
	h.Truncate(0)
	assert.Zero(t, h.Len())
}

func TestCheckpointExcludes(t *testing.T) {
	set := []string{"optimizers.learning_rate"}
	excludes := checkpointExcludes(set)
	assert.Contains(t, excludes, "optimizers.learning_rate")
	assert.Contains(t, excludes, models.ParamNumClasses)
	assert.Contains(t, excludes, models.ParamDataDir)
	assert.Equal(t, []string{"optimizers.learning_rate"}, set)
}

// saveCheckpoint saves a checkpoint with a single variable to dir.
func saveCheckpoint(t *testing.T, dir string) {
	ctx := context.New()
	ctx.SetParam(models.ParamModel, models.AlexNet)
	ctx.In("dense").VariableWithValue("weights", []float32{1, 2})
	require.NoError(t, must.M1(checkpoints.Build(ctx).Dir(dir).Done()).Save())
}

func TestTrainRefusesExistingCheckpoint(t *testing.T) {
	ds := dataset.NewBatches(syntheticDataset(4, 8), 2, false, nil)
	for _, field := range []string{"checkpoint", "output"} {
		dir := t.TempDir()
		saveCheckpoint(t, dir)
		opts := Options{Train: ds, Validation: ds, StepsPerEpoch: 2, Epochs: 1}
		if field == "checkpoint" {
			opts.CheckpointDir = dir
		} else {
			opts.OutputModelDir = dir
		}
		_, err := Train(models.CreateDefaultContext(models.AlexNet), nil, opts)
		require.ErrorIs(t, err, ErrExistingCheckpoint, field)
		assert.Contains(t, err.Error(), "--resume")
	}
}

func sampleHistory() *History {
	h := NewHistory(models.AlexNet)
	h.Record(1, 0.55, 0.50, 0.69, 0.70)
	h.Record(2, 0.70, 0.65, 0.55, 0.60)
	h.Record(3, 0.80, 0.62, 0.40, 0.62)
	h.BestEpoch, h.BestValLoss = 2, 0.60
	h.Elapsed = 90 * time.Second
	return h
}

func TestHistoryYAML(t *testing.T) {
	h := sampleHistory()
	require.NotEmpty(t, h.RunID)
	assert.NotEqual(t, h.RunID, NewHistory(models.AlexNet).RunID)

	filePath := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, h.SaveYAML(filePath))
	loaded, err := LoadHistory(filePath)
	require.NoError(t, err)
	assert.Equal(t, h, loaded)

	_, err = LoadHistory(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPlotHistory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	accPath, lossPath, err := PlotHistory(sampleHistory(), dir, 200, 20)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "accuracy_epochs200_batch20.png"), accPath)
	assert.Equal(t, filepath.Join(dir, "loss_epochs200_batch20.png"), lossPath)
	assert.FileExists(t, accPath)
	assert.FileExists(t, lossPath)

	_, _, err = PlotHistory(NewHistory(models.AlexNet), dir, 1, 1)
	require.Error(t, err)
}

func TestSummaryTable(t *testing.T) {
	table := SummaryTable(sampleHistory())
	for _, want := range []string{"Epoch", "Val Loss", "0.6000", "80.00%"} {
		assert.Contains(t, table, want)
	}
	assert.GreaterOrEqual(t, strings.Count(table, "\n"), 4)
}

func TestTrainInvalidOptions(t *testing.T) {
	ctx := models.CreateDefaultContext("unknown")
	ds := dataset.NewBatches(syntheticDataset(4, 8), 2, false, nil)
	_, err := Train(ctx, nil, Options{Train: ds, Validation: ds, StepsPerEpoch: 2, Epochs: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")

	ctx = models.CreateDefaultContext(models.AlexNet)
	_, err = Train(ctx, nil, Options{Train: ds, Validation: ds, StepsPerEpoch: 0, Epochs: 1})
	require.Error(t, err)
	_, err = Train(ctx, nil, Options{Train: ds, StepsPerEpoch: 1, Epochs: 1})
	require.Error(t, err)
}

// syntheticDataset creates a grayscale dataset where class 1 images are bright and class 0 images are dark.
func syntheticDataset(n, size int) *dataset.Dataset {
	rng := rand.New(rand.NewSource(17))
	ds := &dataset.Dataset{Name: "synthetic", Width: size, Height: size, Channels: 1, NumClasses: 2}
	for ii := range n {
		class := ii % 2
		pixels := make([]uint8, size*size)
		for jj := range pixels {
			pixels[jj] = uint8(rng.Intn(64) + 160*class)
		}
		ds.Samples = append(ds.Samples, dataset.Sample{Pixels: pixels, Label: labeling.ClassLabel(class, 2)})
	}
	return ds
}

func TestTrainAlexNet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping training test in short mode.")
	}
	ctx := models.CreateDefaultContext(models.AlexNet)
	ctx.SetParam(models.ParamAlexNetDenseUnits, 8)
	data := syntheticDataset(8, 64)
	trainDS := dataset.NewBatches(data, 4, true, rand.New(rand.NewSource(1)))
	valDS := dataset.NewBatches(data, 4, false, nil)
	checkpointDir := filepath.Join(t.TempDir(), "best")
	outputDir := filepath.Join(t.TempDir(), "final")

	h, err := Train(ctx, backends.MustNew(), Options{
		Train:          trainDS,
		Validation:     valDS,
		StepsPerEpoch:  trainDS.StepsPerEpoch(),
		Epochs:         2,
		CheckpointDir:  checkpointDir,
		OutputModelDir: outputDir,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, h.Epochs)
	assert.Contains(t, []int{1, 2}, h.BestEpoch)
	assert.Positive(t, h.Elapsed)
	for _, dir := range []string{checkpointDir, outputDir} {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		require.NoError(t, err)
		assert.NotEmpty(t, matches, "no checkpoint in %q", dir)
	}
}

func TestTrainResume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping training test in short mode.")
	}
	backend := backends.MustNew()
	data := syntheticDataset(8, 64)
	newContext := func() *context.Context {
		ctx := models.CreateDefaultContext(models.AlexNet)
		ctx.SetParam(models.ParamAlexNetDenseUnits, 8)
		return ctx
	}
	checkpointDir := filepath.Join(t.TempDir(), "best")
	opts := Options{
		Train:          dataset.NewBatches(data, 4, true, rand.New(rand.NewSource(1))),
		Validation:     dataset.NewBatches(data, 4, false, nil),
		StepsPerEpoch:  2,
		Epochs:         2,
		CheckpointDir:  checkpointDir,
		OutputModelDir: filepath.Join(t.TempDir(), "final"),
		BatchSize:      4,
	}
	first, err := Train(newContext(), backend, opts)
	require.NoError(t, err)
	saved, err := LoadHistory(filepath.Join(checkpointDir, HistoryFileName))
	require.NoError(t, err)
	assert.Equal(t, first.Epochs, saved.Epochs)
	assert.Equal(t, first.BestEpoch, saved.BestEpoch)
	bestFiles := must.M1(filepath.Glob(filepath.Join(checkpointDir, "*.json")))

	_, err = Train(newContext(), backend, opts)
	require.ErrorIs(t, err, ErrExistingCheckpoint)

	opts.Resume, opts.Epochs = true, 3
	resumed, err := Train(newContext(), backend, opts)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, resumed.RunID)
	assert.Equal(t, []int{1, 2, 3}, resumed.Epochs)
	assert.Equal(t, first.ValLoss[0], resumed.ValLoss[0])
	if resumed.ValLoss[2] >= first.BestValLoss {
		assert.Equal(t, first.BestEpoch, resumed.BestEpoch)
		assert.Equal(t, first.BestValLoss, resumed.BestValLoss)
		assert.Equal(t, bestFiles, must.M1(filepath.Glob(filepath.Join(checkpointDir, "*.json"))))
	} else {
		assert.Equal(t, 3, resumed.BestEpoch)
	}

	// Already trained for 3 epochs.
	again, err := Train(newContext(), backend, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Len())
}
