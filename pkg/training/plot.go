// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package training

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	trainColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	valColor   = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
)

// PlotFileNames returns the names of the accuracy and loss plots for the given training configuration.
func PlotFileNames(epochs, batchSize int) (accName, lossName string) {
	return fmt.Sprintf("accuracy_epochs%d_batch%d.png", epochs, batchSize),
		fmt.Sprintf("loss_epochs%d_batch%d.png", epochs, batchSize)
}

// PlotHistory writes two PNG plots to dir: train and validation accuracy per epoch, and train and
// validation loss per epoch. The directory is created if needed.
func PlotHistory(h *History, dir string, epochs, batchSize int) (accPath, lossPath string, err error) {
	if h.Len() == 0 {
		return "", "", errors.New("no epochs recorded in history, nothing to plot")
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return "", "", errors.Wrapf(err, "failed to create plots directory %q", dir)
	}
	accName, lossName := PlotFileNames(epochs, batchSize)
	accPath, lossPath = filepath.Join(dir, accName), filepath.Join(dir, lossName)
	if err = savePlot(h, "Training and validation accuracy", "Accuracy", h.Acc, h.ValAcc, accPath); err != nil {
		return "", "", err
	}
	if err = savePlot(h, "Training and validation loss", "Loss", h.Loss, h.ValLoss, lossPath); err != nil {
		return "", "", err
	}
	return
}

func savePlot(h *History, title, yLabel string, train, val []float64, filePath string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	for _, series := range []struct {
		name   string
		values []float64
		color  color.Color
	}{{"train", train, trainColor}, {"validation", val, valColor}} {
		xys := make(plotter.XYs, len(series.values))
		for ii, v := range series.values {
			xys[ii].X = float64(h.Epochs[ii])
			xys[ii].Y = v
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return errors.Wrapf(err, "failed to plot %s %s", series.name, yLabel)
		}
		line.Color = series.color
		points.GlyphStyle.Color = series.color
		p.Add(line, points)
		p.Legend.Add(series.name, line, points)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
