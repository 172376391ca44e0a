// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package corpus enumerates the image files of a corpus on disk.
//
// Two layouts are supported:
//
//   - Flat: all images directly under one directory, labels derived from the file names.
//     See ListFiles.
//   - Directory per class: one subdirectory per class, holding the images of that class (possibly
//     nested further). See ListClasses, CountFiles and WalkClassFiles.
//
// Only files with one of the ImageExtensions are listed, so stray files like "notes.txt" or "Thumbs.db"
// don't break the decoding or skew the file counts.
//
// A missing directory is always reported as an error wrapping ErrMissingDir, both by the listing and
// by the counting functions.
package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingDir is wrapped by all errors returned for a corpus directory that doesn't exist.
var ErrMissingDir = errors.New("corpus directory not found")

// ClassFile is one file of a directory-per-class corpus.
type ClassFile struct {
	// Class is the name of the class subdirectory holding the file.
	Class string

	// RelPath is the path of the file relative to the corpus root, starting with the class directory.
	RelPath string

	// Path is the full path to the file.
	Path string
}

// checkDir returns an error wrapping ErrMissingDir if dir doesn't exist, or a different error if it is
// not a directory.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrMissingDir, "%q", dir)
		}
		return errors.Wrapf(err, "failed to stat corpus directory %q", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("corpus path %q is not a directory", dir)
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ImageExtensions are the (lower case) file extensions of the images listed in a corpus.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// IsImageFile returns whether name has one of the ImageExtensions, ignoring case.
func IsImageFile(name string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(name)))
}

// Exists returns whether dir exists and is a directory.
func Exists(dir string) bool {
	return checkDir(dir) == nil
}

// ListFiles returns the names (not the full paths) of the image files directly under dir, sorted.
// Hidden files (starting with "."), files that are not images and subdirectories are skipped.
func ListFiles(dir string) ([]string, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list corpus directory %q", dir)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isHidden(entry.Name()) || !IsImageFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListClasses returns the names of the subdirectories of dir, sorted. Each one is a class.
func ListClasses(dir string) ([]string, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list corpus directory %q", dir)
	}
	var classes []string
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		classes = append(classes, entry.Name())
	}
	sort.Strings(classes)
	return classes, nil
}

// CountClasses returns the number of class subdirectories of dir.
func CountClasses(dir string) (int, error) {
	classes, err := ListClasses(dir)
	if err != nil {
		return 0, err
	}
	return len(classes), nil
}

// WalkClassFiles returns every image file under each class subdirectory of dir, recursively.
// Files directly under dir belong to no class and are not returned.
//
// Results are sorted by class and then by path.
func WalkClassFiles(dir string) ([]ClassFile, error) {
	classes, err := ListClasses(dir)
	if err != nil {
		return nil, err
	}
	var files []ClassFile
	for _, class := range classes {
		classDir := filepath.Join(dir, class)
		err = filepath.WalkDir(classDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if isHidden(d.Name()) && path != classDir {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !IsImageFile(d.Name()) {
				return nil
			}
			relPath, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, ClassFile{Class: class, RelPath: relPath, Path: path})
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to walk class directory %q", classDir)
		}
	}
	return files, nil
}

// CountFiles returns the number of image files inside the class subdirectories of dir, searching recursively.
func CountFiles(dir string) (int, error) {
	files, err := WalkClassFiles(dir)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
