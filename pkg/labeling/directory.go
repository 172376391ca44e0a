// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labeling

import (
	"path/filepath"
	"strings"

	"github.com/gomlx/cometnet/pkg/corpus"
	"github.com/pkg/errors"
)

// DirectoryGrouping labels files by the first directory of their path relative to the corpus root.
type DirectoryGrouping struct {
	vocab vocabulary
}

var _ Strategy = (*DirectoryGrouping)(nil)

// NewDirectoryGrouping creates a DirectoryGrouping with the given class directories, in class order.
func NewDirectoryGrouping(classes []string) (*DirectoryGrouping, error) {
	vocab, err := newVocabulary(classes)
	if err != nil {
		return nil, err
	}
	return &DirectoryGrouping{vocab: vocab}, nil
}

// DirectoryGroupingFromDir creates a DirectoryGrouping whose classes are the subdirectories of dir, in
// sorted order. The number of classes is the number of subdirectories.
func DirectoryGroupingFromDir(dir string) (*DirectoryGrouping, error) {
	classes, err := corpus.ListClasses(dir)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, errors.Errorf("no class subdirectories in %q", dir)
	}
	return NewDirectoryGrouping(classes)
}

// Name implements Strategy.
func (dg *DirectoryGrouping) Name() string { return "directory" }

// NumClasses implements Strategy.
func (dg *DirectoryGrouping) NumClasses() int { return len(dg.vocab.tokens) }

// Classes implements Strategy.
func (dg *DirectoryGrouping) Classes() []string { return dg.vocab.tokens }

// Label implements Strategy.
func (dg *DirectoryGrouping) Label(relPath string) (Label, error) {
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	class, rest, found := strings.Cut(relPath, "/")
	if !found || rest == "" {
		// File at the corpus root: it has no class directory.
		return Label{}, &UnknownTokenError{Path: relPath, Known: dg.vocab.tokens}
	}
	return dg.vocab.label(relPath, class)
}
