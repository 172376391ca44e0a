// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package labeling

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FilenamePattern labels files by splitting their base name on Delimiter and looking up the part at
// Position in a fixed vocabulary. Negative positions count from the end, so -1 is the extension.
type FilenamePattern struct {
	delimiter string
	position  int
	vocab     vocabulary
}

var _ Strategy = (*FilenamePattern)(nil)

// NewFilenamePattern creates a FilenamePattern strategy. The class index of a token is its position in
// vocabulary.
func NewFilenamePattern(delimiter string, position int, vocabulary ...string) (*FilenamePattern, error) {
	if delimiter == "" {
		return nil, errors.New("FilenamePattern requires a non-empty delimiter")
	}
	vocab, err := newVocabulary(vocabulary)
	if err != nil {
		return nil, err
	}
	return &FilenamePattern{delimiter: delimiter, position: position, vocab: vocab}, nil
}

// CtrlMets returns the strategy for file names like "<prefix>.ctrl.<n>.jpg" ([1,0]) and
// "<prefix>.mets.<n>.jpg" ([0,1]).
func CtrlMets() *FilenamePattern {
	fp, err := NewFilenamePattern(".", -3, "ctrl", "mets")
	if err != nil {
		panic(err)
	}
	return fp
}

// Name implements Strategy.
func (fp *FilenamePattern) Name() string {
	return fmt.Sprintf("filename[%q,%d]%q", fp.delimiter, fp.position, fp.vocab.tokens)
}

// NumClasses implements Strategy.
func (fp *FilenamePattern) NumClasses() int { return len(fp.vocab.tokens) }

// Classes implements Strategy.
func (fp *FilenamePattern) Classes() []string { return fp.vocab.tokens }

// Token returns the part of the file name used for labeling, or false if the name doesn't have enough parts.
func (fp *FilenamePattern) Token(relPath string) (string, bool) {
	parts := strings.Split(filepath.Base(relPath), fp.delimiter)
	idx := fp.position
	if idx < 0 {
		idx += len(parts)
	}
	if idx < 0 || idx >= len(parts) {
		return "", false
	}
	return parts[idx], true
}

// Label implements Strategy.
func (fp *FilenamePattern) Label(relPath string) (Label, error) {
	token, ok := fp.Token(relPath)
	if !ok {
		return Label{}, &UnknownTokenError{Path: relPath, Known: fp.vocab.tokens}
	}
	return fp.vocab.label(relPath, token)
}

// FileID labels files with an identifier taken from the start of their base name, up to the first
// Delimiter. E.g.: "123.jpg" -> "123". It generates no classes.
type FileID struct {
	// Delimiter defaults to ".".
	Delimiter string
}

var _ Strategy = FileID{}

// Name implements Strategy.
func (FileID) Name() string { return "file-id" }

// NumClasses implements Strategy.
func (FileID) NumClasses() int { return 0 }

// Classes implements Strategy.
func (FileID) Classes() []string { return nil }

// Label implements Strategy. It never fails.
func (f FileID) Label(relPath string) (Label, error) {
	delimiter := f.Delimiter
	if delimiter == "" {
		delimiter = "."
	}
	id, _, _ := strings.Cut(filepath.Base(relPath), delimiter)
	return Label{Class: -1, ID: id}, nil
}
