package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/retrovault/amiga/pkg/floppy"
)

// ADF sizes: 11264 bytes per cylinder for DD disks with 80 to 84
// cylinders; HD disks double the sector count.
const (
	adfSizeDD   = 901120 // 80 cylinders
	adfSizeHD   = 1802240
	bytesPerCyl = 2 * 11 * 512
)

// ADFFile is a raw Amiga disk image: all sectors in cylinder order.
type ADFFile struct {
	Data []byte

	dirty bool
}

// adfIsLegalSize reports whether the size matches a legal layout.
func adfIsLegalSize(size int) bool {

	if size == adfSizeHD {
		return true
	}
	for c := 80; c <= 84; c++ {
		if size == c*bytesPerCyl {
			return true
		}
	}
	return false
}

// NewADF creates an empty image for the given disk kind.
func NewADF(dia floppy.Diameter, den floppy.Density) (*ADFFile, error) {

	if dia != floppy.Inch35 {
		return nil, ErrDiskInvalidLayout
	}

	size := adfSizeDD
	if den == floppy.HD {
		size = adfSizeHD
	}

	return &ADFFile{Data: make([]byte, size)}, nil
}

// ReadADF loads an image from a reader.
func ReadADF(r io.Reader) (*ADFFile, error) {

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !adfIsLegalSize(len(data)) {
		return nil, fmt.Errorf("%d bytes: %w", len(data), ErrDiskInvalidLayout)
	}

	return &ADFFile{Data: data}, nil
}

// OpenADF loads an image from a file.
func OpenADF(path string) (*ADFFile, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadADF(f)
}

// Save writes the image back to a file.
func (a *ADFFile) Save(path string) error {
	err := ioutil.WriteFile(path, a.Data, 0644)
	if err == nil {
		a.dirty = false
	}
	return err
}

// Dirty reports whether blocks have been written since the last save.
func (a *ADFFile) Dirty() bool { return a.dirty }

// Density derives the recording density from the image size.
func (a *ADFFile) Density() floppy.Density {
	if len(a.Data) == adfSizeHD {
		return floppy.HD
	}
	return floppy.DD
}

// NumCyls returns the number of cylinders.
func (a *ADFFile) NumCyls() int {
	if a.Density() == floppy.HD {
		return 80
	}
	return len(a.Data) / bytesPerCyl
}

// NumHeads returns the number of disk sides.
func (a *ADFFile) NumHeads() int { return 2 }

// NumSectors returns the sectors per track.
func (a *ADFFile) NumSectors() int {
	if a.Density() == floppy.HD {
		return floppy.SectorsPerHD
	}
	return floppy.SectorsPerDD
}

// Blocks implements fs.BlockDevice.
func (a *ADFFile) Blocks() uint32 { return uint32(len(a.Data) / 512) }

// BSize implements fs.BlockDevice.
func (a *ADFFile) BSize() int { return 512 }

// ReadBlock implements fs.BlockDevice.
func (a *ADFFile) ReadBlock(dst []byte, nr uint32) error {
	if nr >= a.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(dst, a.Data[int(nr)*512:int(nr+1)*512])
	return nil
}

// WriteBlock implements fs.BlockDevice.
func (a *ADFFile) WriteBlock(src []byte, nr uint32) error {
	if nr >= a.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(a.Data[int(nr)*512:int(nr+1)*512], src)
	a.dirty = true
	return nil
}

// EncodeDisk MFM-encodes the image onto a floppy disk.
func (a *ADFFile) EncodeDisk(disk *floppy.Disk) error {

	if disk.Diameter != floppy.Inch35 {
		return ErrDiskIncompatible
	}

	numSectors := a.NumSectors()
	tracks := a.NumCyls() * a.NumHeads()

	for t := 0; t < tracks; t++ {
		offset := t * numSectors * 512
		disk.EncodeTrack(t, a.Data[offset:offset+numSectors*512], numSectors)
	}

	return nil
}

// DecodeDisk extracts the image from an MFM-encoded floppy disk.
func (a *ADFFile) DecodeDisk(disk *floppy.Disk) error {

	numSectors := a.NumSectors()
	tracks := a.NumCyls() * a.NumHeads()

	for t := 0; t < tracks; t++ {
		offset := t * numSectors * 512
		if err := disk.DecodeTrack(t, a.Data[offset:offset+numSectors*512], numSectors); err != nil {
			return err
		}
	}

	a.dirty = true
	return nil
}
