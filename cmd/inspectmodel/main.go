// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// inspectmodel reports on a model directory saved by ctrlmets or transferlearn: the size of the model,
// its hyperparameters and the per-epoch training history.
//
// Usage:
//
//	inspectmodel [--summary] [--params] [--history] [--plot] <model_dir>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/gomlx/cometnet/pkg/training"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type options struct {
	summary, params, history, plot bool
	scope, plotDir                 string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command with the given arguments and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("inspectmodel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.summary, "summary", true, "Display the global step and the size of the model variables under --scope.")
	fs.BoolVar(&opts.params, "params", false, "List the hyperparameters.")
	fs.BoolVar(&opts.history, "history", true, "Display the per-epoch training history, if one was saved.")
	fs.BoolVar(&opts.plot, "plot", false, "Plot the training history to --plot_dir.")
	fs.StringVar(&opts.scope, "scope", "/", "Scope of the variables considered in the summary.")
	fs.StringVar(&opts.plotDir, "plot_dir", "_plots", "Directory where plots are saved.")
	klog.InitFlags(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: %s [flags] <model_dir>\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	modelDir, err := fsutil.ReplaceTildeInDir(fs.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !corpus.Exists(modelDir) {
		_, _ = fmt.Fprintln(stdout, "Directories Not Found!")
		return 1
	}
	if err = report(modelDir, opts, stdout); err != nil {
		klog.Errorf("%+v", err)
		return 1
	}
	return 0
}

func report(modelDir string, opts options, stdout io.Writer) error {
	if opts.summary || opts.params {
		ctx := context.New()
		handler, err := checkpoints.Build(ctx).Dir(modelDir).Immediate().Done()
		if err != nil {
			return errors.WithMessagef(err, "failed to load model from %q", modelDir)
		}
		found, err := handler.ListCheckpoints()
		if err != nil {
			return err
		}
		if len(found) == 0 {
			klog.Warningf("no checkpoint found in %q", modelDir)
		} else {
			if opts.summary {
				_, _ = fmt.Fprintln(stdout, titleStyle.Render("Summary"))
				_, _ = fmt.Fprintln(stdout, summaryTable(ctx, modelDir, opts.scope, found[len(found)-1]))
			}
			if opts.params {
				_, _ = fmt.Fprintln(stdout, titleStyle.Render("Hyperparameters"))
				_, _ = fmt.Fprintln(stdout, paramsTable(ctx))
			}
		}
	}

	if !opts.history && !opts.plot {
		return nil
	}
	historyPath := filepath.Join(modelDir, training.HistoryFileName)
	exists, err := fsutil.FileExists(historyPath)
	if err != nil {
		return err
	}
	if !exists {
		klog.Warningf("no training history found in %q", modelDir)
		return nil
	}
	h, err := training.LoadHistory(historyPath)
	if err != nil {
		return err
	}
	if opts.history {
		_, _ = fmt.Fprintln(stdout, titleStyle.Render("History"))
		_, _ = fmt.Fprintln(stdout, training.SummaryTable(h))
	}
	if opts.plot {
		accPath, lossPath, err := training.PlotHistory(h, opts.plotDir, h.Len(), h.BatchSize)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Plots saved to %s and %s\n", accPath, lossPath)
	}
	return nil
}
