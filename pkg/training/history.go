// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package training

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// HistoryFileName is the name of the history file saved next to a trained model.
const HistoryFileName = "history.yaml"

// History of the metrics collected at the end of every epoch.
type History struct {
	RunID string `yaml:"run_id"`
	Model string `yaml:"model"`

	// Epochs holds the epoch number (starting at 1) of each entry.
	Epochs  []int     `yaml:"epochs"`
	Acc     []float64 `yaml:"acc"`
	ValAcc  []float64 `yaml:"val_acc"`
	Loss    []float64 `yaml:"loss"`
	ValLoss []float64 `yaml:"val_loss"`

	// BestEpoch is the epoch with the lowest validation loss, or 0 if none was recorded yet.
	BestEpoch   int     `yaml:"best_epoch"`
	BestValLoss float64 `yaml:"best_val_loss"`

	Elapsed time.Duration `yaml:"elapsed"`

	// BatchSize used for training, if known.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// NewHistory creates an empty History with a new random RunID.
func NewHistory(model string) *History {
	return &History{RunID: uuid.NewString(), Model: model}
}

// Len returns the number of epochs recorded.
func (h *History) Len() int { return len(h.Epochs) }

// Record the metrics of one epoch.
func (h *History) Record(epoch int, acc, valAcc, loss, valLoss float64) {
	h.Epochs = append(h.Epochs, epoch)
	h.Acc = append(h.Acc, acc)
	h.ValAcc = append(h.ValAcc, valAcc)
	h.Loss = append(h.Loss, loss)
	h.ValLoss = append(h.ValLoss, valLoss)
}

// Truncate drops the entries of the epochs after numEpochs.
func (h *History) Truncate(numEpochs int) {
	n := 0
	for n < len(h.Epochs) && h.Epochs[n] <= numEpochs {
		n++
	}
	h.Epochs, h.Acc, h.ValAcc = h.Epochs[:n], h.Acc[:n], h.ValAcc[:n]
	h.Loss, h.ValLoss = h.Loss[:n], h.ValLoss[:n]
}

// SaveYAML writes the history to filePath, creating its directory if needed.
func (h *History) SaveYAML(filePath string) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize history of run %s", h.RunID)
	}
	if err = os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", filePath)
	}
	if err = os.WriteFile(filePath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write history to %q", filePath)
	}
	return nil
}

// LoadHistory reads a history saved with History.SaveYAML.
func LoadHistory(filePath string) (*History, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read history")
	}
	h := &History{}
	if err = yaml.Unmarshal(data, h); err != nil {
		return nil, errors.Wrapf(err, "failed to parse history in %q", filePath)
	}
	n := len(h.Epochs)
	if len(h.Acc) != n || len(h.ValAcc) != n || len(h.Loss) != n || len(h.ValLoss) != n {
		return nil, errors.Errorf("history in %q has metrics of different lengths", filePath)
	}
	return h, nil
}
