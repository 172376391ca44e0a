// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package training

import (
	"math"

	"k8s.io/klog/v2"
)

// Saver saves a model checkpoint. It is implemented by *checkpoints.Handler.
type Saver interface {
	Save() error
}

// BestCheckpoint saves a checkpoint every time the validation loss reaches a new minimum.
//
// The Saver is expected to keep only the latest checkpoint, so the best one is overwritten on improvement.
type BestCheckpoint struct {
	saver     Saver
	bestLoss  float64
	bestEpoch int
}

// NewBestCheckpoint creates a BestCheckpoint. If saver is nil, it only tracks the best epoch.
func NewBestCheckpoint(saver Saver) *BestCheckpoint {
	return &BestCheckpoint{saver: saver, bestLoss: math.Inf(1)}
}

// Restore the best epoch and validation loss of a previous run, so a resumed run only saves a checkpoint
// when it improves on it. Nothing is saved.
func (b *BestCheckpoint) Restore(epoch int, valLoss float64) {
	b.bestEpoch, b.bestLoss = epoch, valLoss
}

// Observe the validation loss at the end of epoch. If it is lower than any seen before, the checkpoint
// is saved and it returns true. NaN losses are never an improvement.
func (b *BestCheckpoint) Observe(epoch int, valLoss float64) (improved bool, err error) {
	if math.IsNaN(valLoss) || valLoss >= b.bestLoss {
		return false, nil
	}
	klog.V(1).Infof("epoch %d: val_loss improved from %g to %g", epoch, b.bestLoss, valLoss)
	b.bestLoss, b.bestEpoch = valLoss, epoch
	if b.saver != nil {
		if err = b.saver.Save(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Best returns the best epoch and its validation loss. Epoch is 0 if nothing was observed.
func (b *BestCheckpoint) Best() (epoch int, valLoss float64) {
	return b.bestEpoch, b.bestLoss
}
