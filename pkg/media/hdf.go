package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
)

// RDB block identifiers
var (
	rdbMagicRDSK = []byte("RDSK")
	rdbMagicPART = []byte("PART")
	rdbMagicFSHD = []byte("FSHD")
	rdbMagicLSEG = []byte("LSEG")
)

// rdbSearchBlocks is the number of leading blocks scanned for a rigid
// disk block.
const rdbSearchBlocks = 16

// HDFFile is a raw hard drive image, optionally carrying a rigid disk
// block with partitions and loadable filesystem drivers.
type HDFFile struct {
	Data []byte

	Geometry   Geometry
	Partitions []PartitionDescriptor
	Drivers    []DriverDescriptor

	dirty bool
}

// NewHDF creates an empty image for the given geometry.
func NewHDF(g Geometry) (*HDFFile, error) {

	if err := g.CheckCompatibility(); err != nil {
		return nil, err
	}

	h := &HDFFile{
		Data:     make([]byte, g.NumBytes()),
		Geometry: g,
	}
	h.Partitions = []PartitionDescriptor{{
		Name:     "DH0",
		LowerCyl: 0,
		UpperCyl: g.Cylinders - 1,
		Geometry: g,
	}}

	return h, nil
}

// ReadHDF loads an image from a reader. The geometry is taken from the
// RDB if present, otherwise derived from the image size.
func ReadHDF(r io.Reader) (*HDFFile, error) {

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	h := &HDFFile{Data: data}

	if h.parseRDB() {
		return h, nil
	}

	geos := DriveGeometries(len(data))
	if len(geos) == 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(data), ErrHdrInvalidGeometry)
	}
	h.Geometry = geos[0]
	if err := h.Geometry.CheckCompatibility(); err != nil {
		return nil, err
	}

	h.Partitions = []PartitionDescriptor{{
		Name:     "DH0",
		LowerCyl: 0,
		UpperCyl: h.Geometry.Cylinders - 1,
		Geometry: h.Geometry,
	}}

	return h, nil
}

// OpenHDF loads an image from a file.
func OpenHDF(path string) (*HDFFile, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadHDF(f)
}

// Save writes the image back to a file.
func (h *HDFFile) Save(path string) error {
	err := ioutil.WriteFile(path, h.Data, 0644)
	if err == nil {
		h.dirty = false
	}
	return err
}

// Dirty reports whether blocks have been written since the last save.
func (h *HDFFile) Dirty() bool { return h.dirty }

// HasRDB reports whether the image starts with a rigid disk block.
func (h *HDFFile) HasRDB() bool {

	for i := 0; i < rdbSearchBlocks && (i+1)*512 <= len(h.Data); i++ {
		if bytes.Equal(h.Data[i*512:i*512+4], rdbMagicRDSK) {
			return true
		}
	}
	return false
}

// parseRDB extracts geometry, partitions and driver descriptors from
// the rigid disk block. It returns false if no RDB is present.
func (h *HDFFile) parseRDB() bool {

	rdb := -1
	for i := 0; i < rdbSearchBlocks && (i+1)*512 <= len(h.Data); i++ {
		if bytes.Equal(h.Data[i*512:i*512+4], rdbMagicRDSK) {
			rdb = i
			break
		}
	}
	if rdb < 0 {
		return false
	}

	block := func(nr uint32) []byte {
		if int(nr+1)*512 > len(h.Data) {
			return nil
		}
		return h.Data[int(nr)*512 : int(nr+1)*512]
	}
	be32 := binary.BigEndian.Uint32

	p := block(uint32(rdb))

	h.Geometry = Geometry{
		Cylinders: int(be32(p[64:])),
		Sectors:   int(be32(p[68:])),
		Heads:     int(be32(p[72:])),
		BSize:     512,
	}

	// Walk the partition list
	h.Partitions = nil
	for ref := be32(p[28:]); ref != 0xFFFFFFFF; {

		pb := block(ref)
		if pb == nil || !bytes.Equal(pb[0:4], rdbMagicPART) {
			break
		}

		nameLen := int(pb[36])
		if nameLen > 31 {
			nameLen = 31
		}

		// The DOS environment vector starts at offset 128
		env := pb[128:]

		part := PartitionDescriptor{
			Name:     string(pb[37 : 37+nameLen]),
			Flags:    be32(pb[32:]),
			LowerCyl: int(be32(env[36:])),
			UpperCyl: int(be32(env[40:])),
			DosType:  be32(env[64:]),
			Geometry: h.Geometry,
		}
		h.Partitions = append(h.Partitions, part)

		ref = be32(pb[16:])
	}

	// Walk the filesystem header list
	h.Drivers = nil
	for ref := be32(p[32:]); ref != 0xFFFFFFFF; {

		fb := block(ref)
		if fb == nil || !bytes.Equal(fb[0:4], rdbMagicFSHD) {
			break
		}

		driver := DriverDescriptor{
			DosType:    be32(fb[32:]),
			DosVersion: be32(fb[36:]),
		}

		// Collect the segment list block chain
		for seg := be32(fb[72:]); seg != 0xFFFFFFFF; {
			sb := block(seg)
			if sb == nil || !bytes.Equal(sb[0:4], rdbMagicLSEG) {
				break
			}
			driver.Blocks = append(driver.Blocks, seg)
			seg = be32(sb[16:])
		}

		h.Drivers = append(h.Drivers, driver)
		ref = be32(fb[16:])
	}

	return true
}

// ReadDriver assembles the code of a loadable filesystem driver from
// its segment list blocks. Each block contributes its payload behind a
// 20 byte header.
func (h *HDFFile) ReadDriver(nr int) ([]byte, error) {

	if nr < 0 || nr >= len(h.Drivers) {
		return nil, fmt.Errorf("driver %d: %w", nr, ErrHdrInvalidGeometry)
	}

	bytesPerBlock := 512 - 20
	segList := h.Drivers[nr].Blocks

	driver := make([]byte, 0, len(segList)*bytesPerBlock)
	for _, seg := range segList {
		offset := int(seg)*512 + 20
		driver = append(driver, h.Data[offset:offset+bytesPerBlock]...)
	}

	return driver, nil
}

// Blocks implements fs.BlockDevice.
func (h *HDFFile) Blocks() uint32 { return uint32(len(h.Data) / 512) }

// BSize implements fs.BlockDevice.
func (h *HDFFile) BSize() int { return 512 }

// ReadBlock implements fs.BlockDevice.
func (h *HDFFile) ReadBlock(dst []byte, nr uint32) error {
	if nr >= h.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(dst, h.Data[int(nr)*512:int(nr+1)*512])
	return nil
}

// WriteBlock implements fs.BlockDevice.
func (h *HDFFile) WriteBlock(src []byte, nr uint32) error {
	if nr >= h.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(h.Data[int(nr)*512:int(nr+1)*512], src)
	h.dirty = true
	return nil
}

// PartitionDevice returns a block device windowed to one partition.
func (h *HDFFile) PartitionDevice(nr int) (*PartitionDevice, error) {

	if nr < 0 || nr >= len(h.Partitions) {
		return nil, fmt.Errorf("partition %d: %w", nr, ErrHdrInvalidGeometry)
	}

	part := h.Partitions[nr]
	if err := part.Check(h.Geometry); err != nil {
		return nil, err
	}

	blocksPerCyl := uint32(h.Geometry.Heads * h.Geometry.Sectors)

	return &PartitionDevice{
		hdf:   h,
		first: uint32(part.LowerCyl) * blocksPerCyl,
		count: uint32(part.UpperCyl-part.LowerCyl+1) * blocksPerCyl,
	}, nil
}

// PartitionDevice is a fs.BlockDevice view into one partition of an
// HDF image.
type PartitionDevice struct {
	hdf   *HDFFile
	first uint32
	count uint32
}

// Blocks implements fs.BlockDevice.
func (p *PartitionDevice) Blocks() uint32 { return p.count }

// BSize implements fs.BlockDevice.
func (p *PartitionDevice) BSize() int { return 512 }

// ReadBlock implements fs.BlockDevice.
func (p *PartitionDevice) ReadBlock(dst []byte, nr uint32) error {
	if nr >= p.count {
		return fmt.Errorf("block %d out of range", nr)
	}
	return p.hdf.ReadBlock(dst, p.first+nr)
}

// WriteBlock implements fs.BlockDevice.
func (p *PartitionDevice) WriteBlock(src []byte, nr uint32) error {
	if nr >= p.count {
		return fmt.Errorf("block %d out of range", nr)
	}
	return p.hdf.WriteBlock(src, p.first+nr)
}
