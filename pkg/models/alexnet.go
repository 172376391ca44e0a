// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package models

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
)

// AlexNetModelGraph builds an AlexNet-style CNN. It returns the logits, shaped [batch_size, num_classes].
//
// inputs: only one tensor, the images shaped [batch_size, height, width, channels], with values from 0 to 1.
func AlexNetModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	ctx = ctx.In("model")
	images := inputs[0]
	images.AssertRank(4)
	batchSize := images.Shape().Dimensions[0]
	numClasses := context.GetParamOr(ctx, ParamNumClasses, 2)
	if numClasses < 2 {
		exceptions.Panicf("AlexNet requires at least 2 classes, got %s=%d", ParamNumClasses, numClasses)
	}

	x := images
	x = alexNetConv(ctx.In("conv_0"), x, 96, 11, 4)
	x = MaxPool(x).Window(3).Strides(2).Done()
	x = alexNetNormalize(ctx.In("norm_0"), x)
	x = alexNetConv(ctx.In("conv_1"), x, 256, 5, 1)
	x = MaxPool(x).Window(3).Strides(2).Done()
	x = alexNetNormalize(ctx.In("norm_1"), x)
	x = alexNetConv(ctx.In("conv_2"), x, 384, 3, 1)
	x = alexNetConv(ctx.In("conv_3"), x, 384, 3, 1)
	x = alexNetConv(ctx.In("conv_4"), x, 256, 3, 1)
	x = MaxPool(x).Window(3).Strides(2).Done()
	x = alexNetNormalize(ctx.In("norm_2"), x)
	x = Reshape(x, batchSize, -1)

	var dropoutNode *Node
	if rate := context.GetParamOr(ctx, ParamAlexNetDropoutRate, 0.5); rate > 0 {
		dropoutNode = Scalar(x.Graph(), x.DType(), rate)
	}
	denseUnits := context.GetParamOr(ctx, ParamAlexNetDenseUnits, 4096)
	for ii := range 2 {
		ctx := ctx.Inf("dense_%d", ii)
		x = Tanh(layers.DenseWithBias(ctx, x, denseUnits))
		if dropoutNode != nil {
			x = layers.Dropout(ctx, x, dropoutNode)
		}
	}
	logits := layers.DenseWithBias(ctx.In("readout"), x, numClasses)
	return []*Node{logits}
}

func alexNetConv(ctx *context.Context, x *Node, channels, kernelSize, strides int) *Node {
	x = layers.Convolution(ctx, x).Channels(channels).KernelSize(kernelSize).Strides(strides).PadSame().Done()
	return activations.Relu(x)
}

func alexNetNormalize(ctx *context.Context, x *Node) *Node {
	norm := context.GetParamOr(ctx, ParamAlexNetNormalization, "batch")
	switch norm {
	case "batch":
		return batchnorm.New(ctx, x, -1).Done()
	case "layer":
		return layers.LayerNormalization(ctx, x, 1, 2).ScaleNormalization(false).Done()
	case "none", "":
		return x
	}
	exceptions.Panicf("invalid normalization selected %q, valid values are batch, layer, none", norm)
	return nil
}
