// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"io"
	"math/rand"
	"slices"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// Batches implements train.Dataset over an in-memory Dataset.
//
// Each Yield returns:
//
//   - inputs: one float32 tensor with the images scaled to [0, 1], shaped [batch_size, height, width, channels].
//   - labels: one int32 tensor with the class indices, shaped [batch_size, 1].
type Batches struct {
	name           string
	ds             *Dataset
	batchSize      int
	infinite       bool
	dropIncomplete bool
	rng            *rand.Rand

	// mu protects order and pos.
	mu    sync.Mutex
	order []int
	pos   int
}

var _ train.Dataset = (*Batches)(nil)

// NewBatches creates a train.Dataset that yields batches of batchSize samples of ds.
//
// If infinite is set it loops forever, otherwise it returns io.EOF after every sample has been yielded once.
// If rng is not nil, the samples are reshuffled at the start of every epoch.
func NewBatches(ds *Dataset, batchSize int, infinite bool, rng *rand.Rand) *Batches {
	b := &Batches{
		name:      ds.Name,
		ds:        ds,
		batchSize: batchSize,
		infinite:  infinite,
		rng:       rng,
		order:     make([]int, ds.Len()),
	}
	b.Reset()
	return b
}

// DropIncomplete configures whether the last batch of an epoch is dropped when it has fewer than
// batchSize samples. Default is false.
//
// Returns itself, to allow chain of method calls.
func (b *Batches) DropIncomplete(drop bool) *Batches {
	b.dropIncomplete = drop
	return b
}

// Name implements train.Dataset.
func (b *Batches) Name() string { return b.name }

// StepsPerEpoch returns the number of batches yielded per epoch.
func (b *Batches) StepsPerEpoch() int {
	if b.dropIncomplete {
		return b.ds.Len() / b.batchSize
	}
	return (b.ds.Len() + b.batchSize - 1) / b.batchSize
}

// Reset implements train.Dataset. It restarts the epoch, reshuffling if configured with a random number generator.
func (b *Batches) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Batches) resetLocked() {
	b.pos = 0
	for ii := range b.order {
		b.order[ii] = ii
	}
	if b.rng != nil {
		b.rng.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })
	}
}

// nextIndices returns the indices of the samples of the next batch.
func (b *Batches) nextIndices() ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.batchSize <= 0 {
		return nil, errors.Errorf("dataset %q: invalid batch size %d", b.name, b.batchSize)
	}
	if b.StepsPerEpoch() == 0 {
		if b.infinite {
			return nil, errors.Errorf("dataset %q has %d samples, not enough for one batch of %d",
				b.name, b.ds.Len(), b.batchSize)
		}
		return nil, io.EOF
	}
	for {
		remaining := len(b.order) - b.pos
		if remaining > 0 && (remaining >= b.batchSize || !b.dropIncomplete) {
			break
		}
		if !b.infinite {
			return nil, io.EOF
		}
		b.resetLocked()
	}
	end := min(b.pos+b.batchSize, len(b.order))
	indices := slices.Clone(b.order[b.pos:end])
	b.pos = end
	return indices, nil
}

// Yield implements train.Dataset.
func (b *Batches) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if b.ds.NumClasses == 0 {
		err = errors.Errorf("dataset %q has no class labels, it can't be used for training", b.name)
		return
	}
	var indices []int
	indices, err = b.nextIndices()
	if err != nil {
		return
	}
	spec = b.ds
	size := b.ds.SampleSize()
	images := make([]float32, len(indices)*size)
	classes := make([]int32, len(indices))
	for ii, idx := range indices {
		sample := &b.ds.Samples[idx]
		for jj, v := range sample.Pixels {
			images[ii*size+jj] = float32(v) / 255.0
		}
		classes[ii] = int32(sample.Label.Class)
	}
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(images, len(indices), b.ds.Height, b.ds.Width, b.ds.Channels),
	}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(classes, len(indices), 1)}
	return
}
