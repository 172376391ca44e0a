// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageprep

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultJPEGQuality used by ConvertToJPEG if quality is <= 0.
const DefaultJPEGQuality = 95

// convertibleExtensions are the image formats that ConvertDirToJPEG re-encodes.
var convertibleExtensions = map[string]bool{".png": true, ".bmp": true}

// ConvertToJPEG decodes the image in src (PNG, BMP or any other supported format) and saves it as
// JPEG in dst.
func ConvertToJPEG(src, dst string, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	img, err := Load(src)
	if err != nil {
		return err
	}
	if err = imaging.Save(img, dst, imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrapf(err, "failed to save %q as JPEG", dst)
	}
	return nil
}

// ConvertDirToJPEG converts every PNG and BMP file directly under dir to JPEG, keeping the same name
// with the extension replaced by ".jpg", and removes the original.
//
// Returns the number of files converted.
func ConvertDirToJPEG(dir string, quality int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list %q", dir)
	}
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !convertibleExtensions[strings.ToLower(ext)] {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		dst := filepath.Join(dir, strings.TrimSuffix(entry.Name(), ext)+".jpg")
		if _, err := os.Stat(dst); err == nil {
			return count, errors.Errorf("cannot convert %q: %q already exists", src, dst)
		}
		if err := ConvertToJPEG(src, dst, quality); err != nil {
			return count, err
		}
		if err := os.Remove(src); err != nil {
			return count, errors.Wrapf(err, "failed to remove %q after conversion", src)
		}
		klog.V(1).Infof("converted %q -> %q", src, dst)
		count++
	}
	return count, nil
}
