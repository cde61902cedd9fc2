package fsutil

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"

	"github.com/retrovault/amiga/pkg/elog"
	"github.com/retrovault/amiga/pkg/fs"
	"github.com/retrovault/amiga/pkg/media"
)

var log elog.View = &elog.CLI{}

// SetLogger installs the logger used by all fs subcommands.
func SetLogger(l elog.View) {
	log = l
}

// openedImage keeps the parsed image alive so that modified block
// devices can be written back.
type openedImage struct {
	dev  fs.BlockDevice
	save func() error
}

var opened = map[string]*openedImage{}

// OpenDevice opens any supported image as a block device.
func OpenDevice(path string) (fs.BlockDevice, error) {

	if img, ok := opened[path]; ok {
		return img.dev, nil
	}

	kind, err := media.About(path)
	if err != nil {
		return nil, err
	}

	img := &openedImage{}

	switch kind {

	case media.TypeADF:
		adf, err := media.OpenADF(path)
		if err != nil {
			return nil, err
		}
		img.dev = adf
		img.save = func() error { return adf.Save(path) }

	case media.TypeADZ:
		adf, err := media.OpenADZ(path)
		if err != nil {
			return nil, err
		}
		img.dev = adf
		img.save = func() error { return adf.Save(path) }

	case media.TypeHDF:
		hdf, err := media.OpenHDF(path)
		if err != nil {
			return nil, err
		}
		img.dev = hdf
		// Partitioned images expose their first partition; the
		// filesystem lives inside it
		if hdf.HasRDB() && len(hdf.Partitions) > 0 {
			if dev, err := hdf.PartitionDevice(0); err == nil {
				img.dev = dev
			}
		}
		img.save = func() error { return hdf.Save(path) }

	case media.TypeHDZ:
		hdf, err := media.OpenHDZ(path)
		if err != nil {
			return nil, err
		}
		img.dev = hdf
		img.save = func() error { return hdf.Save(path) }

	default:
		return nil, fmt.Errorf("%s: no block device support for %v images", path, kind)
	}

	opened[path] = img
	return img.dev, nil
}

// saveDevice writes a modified image back to its file.
func saveDevice(path string) error {

	img, ok := opened[path]
	if !ok || img.save == nil {
		return nil
	}
	return img.save()
}

// mountVolume opens the filesystem on an image.
func mountVolume(path string) (*fs.Volume, error) {

	dev, err := OpenDevice(path)
	if err != nil {
		return nil, err
	}
	return fs.Mount(dev)
}
