// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package models

import (
	"github.com/gomlx/gomlx/examples/inceptionv3"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/pkg/errors"
)

// TransferModelPrep downloads the pre-trained backbone weights to dataDir, if they are not there yet.
func TransferModelPrep(ctx *context.Context, dataDir string) error {
	ctx.SetParam(ParamDataDir, dataDir)
	if !context.GetParamOr(ctx, ParamTransferPretrained, true) {
		return nil
	}
	if err := inceptionv3.DownloadAndUnpackWeights(dataDir); err != nil {
		return errors.WithMessagef(err, "failed to download InceptionV3 weights to %q", dataDir)
	}
	return nil
}

// TransferModelGraph builds a new classification head on top of a pre-trained InceptionV3 backbone:
// the backbone output is mean pooled, followed by a dense hidden layer (ParamFCSize units, relu) and the
// readout layer. It returns the logits, shaped [batch_size, num_classes].
//
// The backbone is frozen unless ParamTransferFinetune is set.
//
// inputs: only one tensor, RGB images shaped [batch_size, height, width, 3], with values from 0 to 1.
func TransferModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	ctx = ctx.In("model")
	images := inputs[0]
	images = inceptionv3.PreprocessImage(images, 1.0, timage.ChannelsLast)
	var preTrainedPath string
	if context.GetParamOr(ctx, ParamTransferPretrained, true) {
		preTrainedPath = context.GetParamOr(ctx, ParamDataDir, ".")
	}
	features := inceptionv3.BuildGraph(ctx, images).
		PreTrained(preTrainedPath).
		SetPooling(inceptionv3.MeanPooling).
		Trainable(context.GetParamOr(ctx, ParamTransferFinetune, false)).
		Done()

	x := layers.DenseWithBias(ctx.In("fc"), features, context.GetParamOr(ctx, ParamFCSize, 1024))
	x = activations.Relu(x)
	logits := layers.DenseWithBias(ctx.In("readout"), x, context.GetParamOr(ctx, ParamNumClasses, 2))
	return []*Node{logits}
}
