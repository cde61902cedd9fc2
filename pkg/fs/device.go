package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
)

// BlockDevice is the storage contract the filesystem layer consumes.
// Media adapters implement it on top of their image formats.
type BlockDevice interface {

	// Blocks returns the number of addressable blocks.
	Blocks() uint32

	// BSize returns the block size in bytes; 512 for all Amiga formats.
	BSize() int

	// ReadBlock fills dst with the contents of block nr.
	ReadBlock(dst []byte, nr uint32) error

	// WriteBlock stores src as the new contents of block nr.
	WriteBlock(src []byte, nr uint32) error
}

// RAMDevice is an in-memory block device, mainly used in tests and as a
// scratch target for freshly formatted volumes.
type RAMDevice struct {
	bsize int
	data  []byte
}

// NewRAMDevice creates a zero-filled device with the given geometry.
func NewRAMDevice(blocks uint32, bsize int) *RAMDevice {
	return &RAMDevice{
		bsize: bsize,
		data:  make([]byte, int(blocks)*bsize),
	}
}

// Blocks implements BlockDevice.
func (d *RAMDevice) Blocks() uint32 { return uint32(len(d.data) / d.bsize) }

// BSize implements BlockDevice.
func (d *RAMDevice) BSize() int { return d.bsize }

// ReadBlock implements BlockDevice.
func (d *RAMDevice) ReadBlock(dst []byte, nr uint32) error {
	if nr >= d.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(dst, d.data[int(nr)*d.bsize:int(nr+1)*d.bsize])
	return nil
}

// WriteBlock implements BlockDevice.
func (d *RAMDevice) WriteBlock(src []byte, nr uint32) error {
	if nr >= d.Blocks() {
		return fmt.Errorf("block %d out of range", nr)
	}
	copy(d.data[int(nr)*d.bsize:int(nr+1)*d.bsize], src)
	return nil
}
