// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Names of the arrays stored in an archive.
const (
	ImagesKey = "images"
	LabelsKey = "labels"
	IDsKey    = "ids"
)

// ArchiveExt is the extension used for dataset archives.
const ArchiveExt = ".npz"

// Save the dataset to filePath as a NumPy .npz archive, with:
//
//   - "images": uint8 shaped [N, height, width, channels].
//   - "labels": float32 one-hot labels shaped [N, num_classes], if the dataset has classes.
//   - "ids": uint8 shaped [N, max_id_length] with the NUL-padded sample IDs, if any sample has an ID.
//
// Empty datasets cannot be saved.
func (ds *Dataset) Save(filePath string) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	n := ds.Len()
	if n == 0 {
		return errors.Errorf("cannot save dataset %q to %q: it has no samples", ds.Name, filePath)
	}
	size := ds.SampleSize()
	images := make([]uint8, 0, n*size)
	for _, sample := range ds.Samples {
		images = append(images, sample.Pixels...)
	}
	arrays := map[string]*tensors.Tensor{
		ImagesKey: tensors.FromFlatDataAndDimensions(images, n, ds.Height, ds.Width, ds.Channels),
	}
	if ds.NumClasses > 0 {
		labels := make([]float32, 0, n*ds.NumClasses)
		for _, sample := range ds.Samples {
			labels = append(labels, sample.Label.OneHot...)
		}
		arrays[LabelsKey] = tensors.FromFlatDataAndDimensions(labels, n, ds.NumClasses)
	}
	var idLen int
	for _, sample := range ds.Samples {
		idLen = max(idLen, len(sample.Label.ID))
	}
	if idLen > 0 {
		ids := make([]uint8, n*idLen)
		for ii, sample := range ds.Samples {
			copy(ids[ii*idLen:], sample.Label.ID)
		}
		arrays[IDsKey] = tensors.FromFlatDataAndDimensions(ids, n, idLen)
	}

	if err := numpy.ToNpzFile(arrays, filePath); err != nil {
		return errors.WithMessagef(err, "while saving dataset %q", ds.Name)
	}
	if info, err := os.Stat(filePath); err == nil {
		klog.Infof("saved dataset %q: %d samples to %q (%s)", ds.Name, n, filePath, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// Load a dataset saved with Dataset.Save.
func Load(filePath, name string) (*Dataset, error) {
	arrays, err := numpy.FromNpzFile(filePath)
	if err != nil {
		return nil, err
	}
	images, found := arrays[ImagesKey]
	if !found {
		return nil, errors.Errorf("archive %q has no %q array", filePath, ImagesKey)
	}
	imagesShape := images.Shape()
	if imagesShape.DType != dtypes.Uint8 || imagesShape.Rank() != 4 {
		return nil, errors.Errorf("archive %q: %q must be uint8 shaped [N, height, width, channels], got %s",
			filePath, ImagesKey, imagesShape)
	}
	dims := imagesShape.Dimensions
	n := dims[0]
	ds := &Dataset{
		Name:     name,
		Height:   dims[1],
		Width:    dims[2],
		Channels: dims[3],
		Samples:  make([]Sample, n),
	}
	flatImages := tensors.CopyFlatData[uint8](images)
	size := ds.SampleSize()
	for ii := range ds.Samples {
		ds.Samples[ii].Pixels = flatImages[ii*size : (ii+1)*size : (ii+1)*size]
		ds.Samples[ii].Label.Class = -1
	}

	if labels, found := arrays[LabelsKey]; found {
		labelsShape := labels.Shape()
		if labelsShape.DType != dtypes.Float32 || labelsShape.Rank() != 2 || labelsShape.Dimensions[0] != n {
			return nil, errors.Errorf("archive %q: %q must be float32 shaped [%d, num_classes], got %s",
				filePath, LabelsKey, n, labelsShape)
		}
		ds.NumClasses = labelsShape.Dimensions[1]
		flatLabels := tensors.CopyFlatData[float32](labels)
		for ii := range ds.Samples {
			oneHot := flatLabels[ii*ds.NumClasses : (ii+1)*ds.NumClasses : (ii+1)*ds.NumClasses]
			class, err := argMaxOneHot(oneHot)
			if err != nil {
				return nil, errors.WithMessagef(err, "archive %q sample #%d", filePath, ii)
			}
			ds.Samples[ii].Label.OneHot = oneHot
			ds.Samples[ii].Label.Class = class
		}
	}

	if ids, found := arrays[IDsKey]; found {
		idsShape := ids.Shape()
		if idsShape.DType != dtypes.Uint8 || idsShape.Rank() != 2 || idsShape.Dimensions[0] != n {
			return nil, errors.Errorf("archive %q: %q must be uint8 shaped [%d, id_length], got %s",
				filePath, IDsKey, n, idsShape)
		}
		idLen := idsShape.Dimensions[1]
		flatIDs := tensors.CopyFlatData[uint8](ids)
		for ii := range ds.Samples {
			id := flatIDs[ii*idLen : (ii+1)*idLen]
			if end := bytes.IndexByte(id, 0); end >= 0 {
				id = id[:end]
			}
			ds.Samples[ii].Label.ID = string(id)
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid archive %q", filePath)
	}
	klog.V(1).Infof("loaded dataset %q: %d samples of %dx%dx%d from %q", name, n, ds.Height, ds.Width, ds.Channels, filePath)
	return ds, nil
}

// argMaxOneHot returns the position of the 1 in a one-hot vector.
func argMaxOneHot(oneHot []float32) (int, error) {
	class := -1
	for ii, v := range oneHot {
		switch v {
		case 0:
		case 1:
			if class >= 0 {
				return -1, errors.Errorf("label %v is not one-hot", oneHot)
			}
			class = ii
		default:
			return -1, errors.Errorf("label %v is not one-hot", oneHot)
		}
	}
	if class < 0 {
		return -1, errors.Errorf("label %v is not one-hot", oneHot)
	}
	return class, nil
}

// ArchivePath returns the path of the archive for the given corpus role (e.g. "train_data") under dir.
func ArchivePath(dir, role string) string {
	if !strings.HasSuffix(role, ArchiveExt) {
		role += ArchiveExt
	}
	return filepath.Join(dir, role)
}
