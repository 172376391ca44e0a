// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package labeling defines how the label of an image in a corpus is derived.
//
// A Strategy maps the path of a file, relative to the corpus root, to a Label. The implemented
// conventions are:
//
//   - FilenamePattern: the file name is split on a delimiter, and one of the parts is looked up in a
//     fixed vocabulary. E.g.: "cell.ctrl.7.jpg" -> "ctrl" -> class 0.
//   - DirectoryGrouping: the first directory of the relative path is the class.
//   - FileID: there is no class, the file carries an identifier instead (typical for test corpora).
package labeling

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownToken is matched (with errors.Is) by the errors returned by a Strategy when a file doesn't map
// to any known class.
var ErrUnknownToken = errors.New("unknown label token")

// UnknownTokenError is returned by Strategy.Label when the token extracted from the path is not in the
// vocabulary of classes.
type UnknownTokenError struct {
	Path, Token string
	Known       []string
}

// Error implements error.
func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("cannot label %q: token %q is not one of %q", e.Path, e.Token, e.Known)
}

// Is allows errors.Is(err, ErrUnknownToken).
func (e *UnknownTokenError) Is(target error) bool {
	return target == ErrUnknownToken
}

// Label of one sample.
type Label struct {
	// Class index, from 0 to NumClasses-1. It is -1 for samples labeled only with an ID.
	Class int

	// OneHot encoding of Class. Nil for samples labeled only with an ID.
	OneHot []float32

	// ID of the sample, if the corpus is not labeled with classes.
	ID string
}

// HasClass returns whether the label holds a class.
func (l Label) HasClass() bool { return l.Class >= 0 }

// Strategy derives labels for the files of a corpus.
type Strategy interface {
	// Name of the strategy, for logging.
	Name() string

	// NumClasses returns the length of the one-hot vectors generated. It is 0 if the
	// strategy doesn't generate classes.
	NumClasses() int

	// Classes returns the name of each class, indexed by class number.
	Classes() []string

	// Label returns the label for the file at relPath, relative to the corpus root.
	// It returns an error matching ErrUnknownToken if the file can't be labeled.
	Label(relPath string) (Label, error)
}

// OneHot returns a vector of length numClasses with 1 at position class and 0 everywhere else.
func OneHot(class, numClasses int) []float32 {
	v := make([]float32, numClasses)
	v[class] = 1
	return v
}

// ClassLabel creates the label for the given class.
func ClassLabel(class, numClasses int) Label {
	return Label{Class: class, OneHot: OneHot(class, numClasses)}
}

// vocabulary maps tokens to their class index.
type vocabulary struct {
	tokens  []string
	indices map[string]int
}

func newVocabulary(tokens []string) (vocabulary, error) {
	if len(tokens) == 0 {
		return vocabulary{}, errors.New("labeling vocabulary is empty")
	}
	v := vocabulary{tokens: tokens, indices: make(map[string]int, len(tokens))}
	for ii, token := range tokens {
		if _, found := v.indices[token]; found {
			return vocabulary{}, errors.Errorf("token %q appears more than once in labeling vocabulary %q", token, tokens)
		}
		v.indices[token] = ii
	}
	return v, nil
}

func (v vocabulary) label(relPath, token string) (Label, error) {
	class, found := v.indices[token]
	if !found {
		return Label{}, &UnknownTokenError{Path: relPath, Token: token, Known: v.tokens}
	}
	return ClassLabel(class, len(v.tokens)), nil
}
