package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/thanhpk/randstr"

	"github.com/retrovault/amiga/pkg/fs"
)

// wtRegistry tracks open write-through files process-wide: a storage
// file may serve only one drive at a time.
var (
	wtLock     sync.Mutex
	wtRegistry = map[string]string{}
)

// DriveHead is the mechanical position of the hard drive head.
type DriveHead struct {
	Cylinder int
	Head     int
	Offset   int
}

// HardDrive is the drive-side model of a hard disk: a byte buffer with
// a geometry, a head position and an optional write-through stream
// mirroring every write into a host file.
type HardDrive struct {
	Nr int

	Geometry   Geometry
	Partitions []PartitionDescriptor
	Drivers    []DriverDescriptor

	Data []byte
	Head DriveHead

	Protected bool
	Modified  bool

	// Write-through state
	wtPath  string
	wtToken string
	wt      *os.File

	mu sync.Mutex
}

// NewHardDrive creates an empty drive with the given geometry.
func NewHardDrive(nr int, g Geometry) (*HardDrive, error) {

	if err := g.CheckCompatibility(); err != nil {
		return nil, err
	}

	return &HardDrive{
		Nr:       nr,
		Geometry: g,
		Data:     make([]byte, g.NumBytes()),
		Partitions: []PartitionDescriptor{{
			Name:     "DH0",
			UpperCyl: g.Cylinders - 1,
			Geometry: g,
		}},
	}, nil
}

// NewHardDriveFromHDF attaches an image to a drive.
func NewHardDriveFromHDF(nr int, hdf *HDFFile) (*HardDrive, error) {

	if err := hdf.Geometry.CheckCompatibility(); err != nil {
		return nil, err
	}

	return &HardDrive{
		Nr:         nr,
		Geometry:   hdf.Geometry,
		Partitions: hdf.Partitions,
		Drivers:    hdf.Drivers,
		Data:       hdf.Data,
	}, nil
}

// ChangeGeometry reinterprets the drive data with another geometry of
// the same capacity.
func (h *HardDrive) ChangeGeometry(g Geometry) error {

	if err := g.CheckCompatibility(); err != nil {
		return err
	}
	if g.NumBytes() != h.Geometry.NumBytes() {
		return ErrHdrUnmatchedGeometry
	}

	h.Geometry = g
	return nil
}

// verify validates a transfer request before any data moves.
func (h *HardDrive) verify(offset, length int) int8 {

	if length%512 != 0 {
		return IOErrBadLength
	}
	if offset%512 != 0 {
		return IOErrBadAddress
	}
	if offset+length > h.Geometry.NumBytes() {
		return IOErrBadAddress
	}
	return IOErrOK
}

// Read copies a byte range out of the drive. The head moves to the
// accessed location.
func (h *HardDrive) Read(dst []byte, offset int) int8 {

	h.mu.Lock()
	defer h.mu.Unlock()

	if code := h.verify(offset, len(dst)); code != IOErrOK {
		return code
	}

	h.moveHead(offset / 512)
	copy(dst, h.Data[offset:])
	return IOErrOK
}

// Write copies a byte range into the drive and mirrors it into the
// write-through stream if one is attached.
func (h *HardDrive) Write(src []byte, offset int) int8 {

	h.mu.Lock()
	defer h.mu.Unlock()

	if code := h.verify(offset, len(src)); code != IOErrOK {
		return code
	}

	h.moveHead(offset / 512)

	if h.Protected {
		return IOErrOK
	}

	copy(h.Data[offset:], src)
	h.Modified = true

	if h.wt != nil {
		h.wt.WriteAt(src, int64(offset))
	}

	return IOErrOK
}

func (h *HardDrive) moveHead(lba int) {
	h.Head.Cylinder = lba / (h.Geometry.Heads * h.Geometry.Sectors)
	h.Head.Head = (lba / h.Geometry.Sectors) % h.Geometry.Heads
	h.Head.Offset = (lba % h.Geometry.Sectors) * h.Geometry.BSize
}

// Format builds a fresh filing system on the drive.
func (h *HardDrive) Format(dos fs.Format, name string) error {

	dev := &hardDriveDevice{h}
	v, err := fs.FormatVolume(dev, dos, name)
	if err != nil {
		return err
	}
	return v.Flush()
}

// Mount opens the filing system on the drive.
func (h *HardDrive) Mount() (*fs.Volume, error) {
	return fs.Mount(&hardDriveDevice{h})
}

// EnableWriteThrough mirrors the drive into a host file. The file is
// claimed process-wide; a second drive opening the same path fails.
func (h *HardDrive) EnableWriteThrough(path string) error {

	if h.wt != nil {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	wtLock.Lock()
	defer wtLock.Unlock()

	if _, taken := wtRegistry[abs]; taken {
		return fmt.Errorf("%s: %w", path, ErrWtBlocked)
	}

	// Recreate the storage file with the current drive contents. The
	// data is staged under a random name and moved into place.
	tmp := abs + "." + randstr.Hex(8)
	if err := writeFileAtomic(tmp, abs, h.Data); err != nil {
		return fmt.Errorf("%v: %w", err, ErrWt)
	}

	f, err := os.OpenFile(abs, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrWt)
	}

	h.wt = f
	h.wtPath = abs
	h.wtToken = uuid.New().String()
	wtRegistry[abs] = h.wtToken

	return nil
}

func writeFileAtomic(tmp, final string, data []byte) error {

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, final)
}

// DisableWriteThrough detaches the storage file.
func (h *HardDrive) DisableWriteThrough() {

	if h.wt == nil {
		return
	}

	wtLock.Lock()
	defer wtLock.Unlock()

	h.wt.Close()
	h.wt = nil
	delete(wtRegistry, h.wtPath)
	h.wtPath = ""
	h.wtToken = ""
}

// WriteThroughEnabled reports whether a storage file is attached.
func (h *HardDrive) WriteThroughEnabled() bool {
	return h.wt != nil
}

// hardDriveDevice adapts a hard drive to the fs.BlockDevice contract.
type hardDriveDevice struct {
	h *HardDrive
}

func (d *hardDriveDevice) Blocks() uint32 { return uint32(d.h.Geometry.NumBlocks()) }
func (d *hardDriveDevice) BSize() int     { return d.h.Geometry.BSize }

func (d *hardDriveDevice) ReadBlock(dst []byte, nr uint32) error {
	if code := d.h.Read(dst[:512], int(nr)*512); code != IOErrOK {
		return fmt.Errorf("block %d: io error %d", nr, code)
	}
	return nil
}

func (d *hardDriveDevice) WriteBlock(src []byte, nr uint32) error {
	if code := d.h.Write(src[:512], int(nr)*512); code != IOErrOK {
		return fmt.Errorf("block %d: io error %d", nr, code)
	}
	return nil
}
