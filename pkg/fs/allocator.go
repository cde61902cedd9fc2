package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"math/bits"
)

// Allocator manages the free-block bitmap of a volume. Bit value one
// means the block is free. The first two blocks never appear in the
// bitmap; they are permanently allocated for the boot code.
type Allocator struct {
	v *Volume

	// Allocation pointer: the search for free blocks starts here
	ap uint32
}

func newAllocator(v *Volume) *Allocator {
	return &Allocator{v: v, ap: v.RootBlock}
}

// RequiredDataBlocks returns the number of data blocks a file of the
// given size occupies. OFS data blocks lose 24 bytes to their header.
func (a *Allocator) RequiredDataBlocks(fileSize int) int {

	numBytes := a.v.BSize()
	if a.v.DOS == OFS {
		numBytes -= 24
	}

	return (fileSize + numBytes - 1) / numBytes
}

// RequiredFileListBlocks returns the number of extension blocks a file
// of the given size needs.
func (a *Allocator) RequiredFileListBlocks(fileSize int) int {

	numBlocks := a.RequiredDataBlocks(fileSize)
	numRefs := a.v.BSize()/4 - 56

	// Small files keep all references in the header block
	if numBlocks <= numRefs {
		return 0
	}

	return (numBlocks - 1) / numRefs
}

// RequiredBlocks returns the total number of blocks a file of the given
// size needs, including its header block.
func (a *Allocator) RequiredBlocks(fileSize int) int {
	return 1 + a.RequiredDataBlocks(fileSize) + a.RequiredFileListBlocks(fileSize)
}

// Allocate claims the first free block at or after the allocation
// pointer, wrapping around once.
func (a *Allocator) Allocate() (uint32, error) {

	capacity := a.v.Blocks()
	i := a.ap

	for !a.IsUnallocated(i) || i < 2 {
		if i = (i + 1) % capacity; i == a.ap {
			return 0, ErrOutOfSpace
		}
	}

	if b, err := a.v.cache.Modify(i); err == nil {
		b.Type = BlockUnknown
	}
	a.MarkAsAllocated(i)
	a.ap = (i + 1) % capacity

	return i, nil
}

// AllocateMany returns count blocks, draining the prealloc list first.
// Surplus preallocated blocks are freed.
func (a *Allocator) AllocateMany(count int, prealloc []uint32) ([]uint32, error) {

	var result []uint32

	for len(prealloc) > 0 && count > 0 {
		result = append(result, prealloc[len(prealloc)-1])
		prealloc = prealloc[:len(prealloc)-1]
		count--
	}

	for _, nr := range prealloc {
		a.DeallocateBlock(nr)
	}

	for count > 0 {
		nr, err := a.Allocate()
		if err != nil {
			return result, err
		}
		result = append(result, nr)
		count--
	}

	return result, nil
}

// DeallocateBlock returns a block to the free pool.
func (a *Allocator) DeallocateBlock(nr uint32) {

	if b, err := a.v.cache.Modify(nr); err == nil {
		for i := range b.Data {
			b.Data[i] = 0
		}
		b.Type = BlockEmpty
	}
	a.MarkAsFree(nr)
}

// DeallocateBlocks returns several blocks to the free pool.
func (a *Allocator) DeallocateBlocks(nrs []uint32) {
	for _, nr := range nrs {
		a.DeallocateBlock(nr)
	}
}

// AllocateFileBlocks sizes the list and data block vectors of a file.
// Surplus blocks are freed, missing blocks are allocated. The order of
// allocation follows the filing system variant: OFS interleaves list
// blocks between their data blocks, FFS allocates them en bloc.
func (a *Allocator) AllocateFileBlocks(bytes int, listBlocks, dataBlocks []uint32) ([]uint32, []uint32, error) {

	numDataBlocks := a.RequiredDataBlocks(bytes)
	numListBlocks := a.RequiredFileListBlocks(bytes)
	refsPerBlock := a.v.BSize()/4 - 56

	refsInHeaderBlock := numDataBlocks
	if refsInHeaderBlock > refsPerBlock {
		refsInHeaderBlock = refsPerBlock
	}
	refsInListBlocks := numDataBlocks - refsInHeaderBlock
	refsInLastListBlock := refsInListBlocks % refsPerBlock

	// Free surplus blocks
	if len(listBlocks) > numListBlocks {
		a.DeallocateBlocks(listBlocks[numListBlocks:])
		listBlocks = listBlocks[:numListBlocks]
	}
	if len(dataBlocks) > numDataBlocks {
		a.DeallocateBlocks(dataBlocks[numDataBlocks:])
		dataBlocks = dataBlocks[:numDataBlocks]
	}

	dataNeeded := 0
	ensureData := func(n int) error {
		dataNeeded += n
		for len(dataBlocks) < dataNeeded {
			nr, err := a.Allocate()
			if err != nil {
				return err
			}
			dataBlocks = append(dataBlocks, nr)
		}
		return nil
	}

	listNeeded := 0
	ensureList := func(n int) error {
		listNeeded += n
		for len(listBlocks) < listNeeded {
			nr, err := a.Allocate()
			if err != nil {
				return err
			}
			listBlocks = append(listBlocks, nr)
		}
		return nil
	}

	if a.v.DOS == OFS {

		// Header -> data -> list -> data ... list -> data
		if err := ensureData(refsInHeaderBlock); err != nil {
			return listBlocks, dataBlocks, err
		}
		for i := 0; i < numListBlocks; i++ {
			if err := ensureList(1); err != nil {
				return listBlocks, dataBlocks, err
			}
			refs := refsPerBlock
			if i == numListBlocks-1 && refsInLastListBlock != 0 {
				refs = refsInLastListBlock
			}
			if err := ensureData(refs); err != nil {
				return listBlocks, dataBlocks, err
			}
		}

	} else {

		// Header -> data -> all list blocks -> remaining data
		if err := ensureData(refsInHeaderBlock); err != nil {
			return listBlocks, dataBlocks, err
		}
		if err := ensureList(numListBlocks); err != nil {
			return listBlocks, dataBlocks, err
		}
		if err := ensureData(refsInListBlocks); err != nil {
			return listBlocks, dataBlocks, err
		}
	}

	a.rectifyBitmapChecksums()
	return listBlocks, dataBlocks, nil
}

// IsUnallocated reports whether the block is marked free in the bitmap.
func (a *Allocator) IsUnallocated(nr uint32) bool {

	// The first two blocks are always allocated
	if nr < 2 {
		return false
	}

	bm, byteOff, bit := a.locateAllocationBit(nr)
	if bm == nil {
		return false
	}

	return bm.Data[byteOff]&(1<<bit) != 0
}

// IsAllocated reports whether the block is in use.
func (a *Allocator) IsAllocated(nr uint32) bool {
	return !a.IsUnallocated(nr)
}

// MarkAsAllocated clears the block's free bit.
func (a *Allocator) MarkAsAllocated(nr uint32) {
	a.setAllocationBit(nr, false)
}

// MarkAsFree sets the block's free bit.
func (a *Allocator) MarkAsFree(nr uint32) {
	a.setAllocationBit(nr, true)
}

func (a *Allocator) setAllocationBit(nr uint32, value bool) {

	if nr < 2 {
		return
	}

	bm, byteOff, bit := a.locateAllocationBit(nr)
	if bm == nil {
		return
	}

	bm.dirty = true
	if value {
		bm.Data[byteOff] |= 1 << bit
	} else {
		bm.Data[byteOff] &^= 1 << bit
	}
	bm.UpdateChecksum()
}

// locateAllocationBit finds the bitmap block, byte offset and bit index
// holding the allocation bit of a block. Longwords are stored in
// big-endian order, so the byte order inside each longword reverses.
func (a *Allocator) locateAllocationBit(nr uint32) (*Block, int, uint) {

	if nr < 2 {
		return nil, 0, 0
	}
	nr -= 2

	bitsPerBlock := uint32(a.v.BSize()-4) * 8
	bmNr := nr / bitsPerBlock

	if int(bmNr) >= len(a.v.bmBlocks) {
		return nil, 0, 0
	}

	bm, err := a.v.cache.ReadTyped(a.v.bmBlocks[bmNr], BlockBitmap)
	if err != nil {
		return nil, 0, 0
	}

	nr = nr % bitsPerBlock
	rByte := int(nr / 8)

	// Rectify the byte ordering inside the longword
	switch rByte % 4 {
	case 0:
		rByte += 3
	case 1:
		rByte++
	case 2:
		rByte--
	case 3:
		rByte -= 3
	}

	// Skip the leading checksum
	rByte += 4

	return bm, rByte, uint(nr % 8)
}

// SerializeBitmap flattens the bitmap blocks into one longword vector
// covering blocks [2, blocks). Bits beyond the last block are zeroed.
func (a *Allocator) SerializeBitmap() []uint32 {

	blocks := int(a.v.Blocks())
	longwords := ((blocks - 2) + 31) / 32

	result := make([]uint32, 0, longwords)

	for _, nr := range a.v.bmBlocks {

		bm, err := a.v.cache.ReadTyped(nr, BlockBitmap)
		if err != nil {
			break
		}

		for i := 4; i < a.v.BSize(); i += 4 {
			if len(result) == longwords {
				break
			}
			result = append(result, bm.Read32(i))
		}
	}

	// Zero out the superfluous bits in the last word
	if rem := (blocks - 2) % 32; rem != 0 && len(result) > 0 {
		result[len(result)-1] &= 1<<uint(rem) - 1
	}

	return result
}

// NumUnallocated counts the free blocks.
func (a *Allocator) NumUnallocated() int {

	result := 0
	for _, w := range a.SerializeBitmap() {
		result += bits.OnesCount32(w)
	}
	return result
}

// NumAllocated counts the used blocks.
func (a *Allocator) NumAllocated() int {
	return int(a.v.Blocks()) - a.NumUnallocated()
}

// clearTailBits zeroes the bitmap bits beyond the last block.
func (a *Allocator) clearTailBits() {

	blocks := a.v.Blocks()
	bitsPerBlock := uint32(a.v.BSize()-4) * 8

	for nr := blocks; nr < 2+uint32(len(a.v.bmBlocks))*bitsPerBlock; nr++ {
		a.setAllocationBit(nr, false)
	}
}

func (a *Allocator) rectifyBitmapChecksums() {

	for _, nr := range a.v.bmBlocks {
		if bm, err := a.v.cache.Read(nr); err == nil {
			bm.UpdateChecksum()
		}
	}
	for _, nr := range a.v.bmExtBlocks {
		if b, err := a.v.cache.Read(nr); err == nil {
			b.UpdateChecksum()
		}
	}
}
