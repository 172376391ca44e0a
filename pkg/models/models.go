// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package models holds the model graphs used to classify images, and their hyperparameters.
//
// Models are selected by the "model" hyperparameter: see ModelFns.
package models

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Hyperparameters names, stored in the context.
const (
	// ParamModel selects the model, see ModelFns.
	ParamModel = "model"

	// ParamNumClasses is the number of output classes. It is set from the training data.
	ParamNumClasses = "num_classes"

	// ParamDataDir where pre-trained weights are stored.
	ParamDataDir = "data_dir"

	ParamAlexNetDenseUnits    = "alexnet_dense_units"
	ParamAlexNetDropoutRate   = "alexnet_dropout_rate"
	ParamAlexNetNormalization = "alexnet_normalization"

	// ParamFCSize is the size of the hidden layer of the transfer-learning head.
	ParamFCSize = "fc_size"

	// ParamTransferPretrained selects whether the backbone uses pre-trained weights.
	ParamTransferPretrained = "transfer_pretrained"

	// ParamTransferFinetune makes the backbone trainable. By default it is frozen.
	ParamTransferFinetune = "transfer_finetune"
)

// Names of the models in ModelFns.
const (
	AlexNet  = "alexnet"
	Transfer = "transfer"
)

var (
	// ModelFns maps a model name to its model graph function.
	// It can be extended with new models.
	ModelFns = map[string]train.ModelFn{
		AlexNet:  AlexNetModelGraph,
		Transfer: TransferModelGraph,
	}

	// ModelPreps maps model names to a preparation function called before training starts.
	ModelPreps = map[string]func(ctx *context.Context, dataDir string) error{
		Transfer: TransferModelPrep,
	}
)

// Lookup returns the model graph function for the given model name.
func Lookup(name string) (train.ModelFn, error) {
	modelFn, found := ModelFns[name]
	if !found || modelFn == nil {
		names := maps.Keys(ModelFns)
		slices.Sort(names)
		return nil, errors.Errorf("unknown model %q, valid values are %q", name, names)
	}
	return modelFn, nil
}

// Prepare runs the preparation function of the model selected in ctx, if there is one.
func Prepare(ctx *context.Context, dataDir string) error {
	name := context.GetParamOr(ctx, ParamModel, "")
	if prep, found := ModelPreps[name]; found {
		return prep(ctx, dataDir)
	}
	return nil
}

// CreateDefaultContext returns a context with the default hyperparameters for the given model.
func CreateDefaultContext(model string) *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamModel:      model,
		ParamNumClasses: 2,
		ParamDataDir:    ".",

		optimizers.ParamOptimizer:    "sgd",
		optimizers.ParamLearningRate: 1e-3,
		layers.ParamDropoutRate:      0.0,

		// AlexNet.
		ParamAlexNetDenseUnits:    4096,
		ParamAlexNetDropoutRate:   0.5,
		ParamAlexNetNormalization: "batch",

		// Transfer learning head.
		ParamFCSize:             1024,
		ParamTransferPretrained: true,
		ParamTransferFinetune:   false,
	})
	if model == Transfer {
		ctx.SetParam(optimizers.ParamOptimizer, "rmsprop")
	}
	return ctx
}
