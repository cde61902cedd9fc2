package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"github.com/retrovault/amiga/pkg/elog"
)

// Diagnosis accumulates the findings of the doctor.
type Diagnosis struct {
	BlockErrors        []uint32
	BitmapErrors       map[uint32]int
	UsedButUnallocated []uint32
	UnusedButAllocated []uint32
}

// Doctor checks and repairs a volume block by block.
type Doctor struct {
	v   *Volume
	Log elog.View

	Diagnosis Diagnosis
}

// NewDoctor creates a doctor for the volume.
func NewDoctor(v *Volume) *Doctor {
	return &Doctor{v: v}
}

// Xray32 checks the longword at byte offset off of block nr. It returns
// the diagnosis and, when the correct value is known, the expectation.
func (d *Doctor) Xray32(nr uint32, off int, strict bool) (BlockError, uint32, bool) {

	b, err := d.v.cache.Read(nr)
	if err != nil {
		return BlockErrOK, 0, false
	}

	value := b.Read32(off)
	bsize := b.bsize()

	expect := func(want uint32) (BlockError, uint32, bool) {
		if value != want {
			return BlockErrExpectedValue, want, true
		}
		return BlockErrOK, 0, false
	}

	refBelow := func(limit uint32) (BlockError, uint32, bool) {
		if value >= limit {
			return BlockErrExpectedSmallerValue, 0, false
		}
		return BlockErrOK, 0, false
	}

	pointsTo := func(kind BlockError, types ...BlockType) (BlockError, uint32, bool) {
		if value == 0 {
			return BlockErrOK, 0, false
		}
		if value >= d.v.Blocks() {
			return BlockErrExpectedSmallerValue, 0, false
		}
		t := d.v.cache.GetType(value)
		for _, want := range types {
			if t == want {
				return BlockErrOK, 0, false
			}
		}
		return kind, 0, false
	}

	switch b.Type {

	case BlockBoot:
		if strict && nr == 0 && off == 0 {
			want := uint32('D')<<24 | uint32('O')<<16 | uint32('S')<<8
			if d.v.DOS == FFS {
				want |= 1
			}
			return expect(want)
		}

	case BlockRoot:
		switch {
		case off == 0:
			return expect(tHeader)
		case off == 12:
			if value != rootHashTableSize {
				return BlockErrInvalidHashtableSize, rootHashTableSize, true
			}
		case off == 20:
			return expect(b.Checksum())
		case off >= 24 && off < 24+4*rootHashTableSize:
			return pointsTo(BlockErrExpectedHashableBlock, BlockUserDir, BlockFileHeader)
		case off == offBmFlag && strict:
			return expect(0xFFFFFFFF)
		case off >= offBmPages && off < offBmPages+100:
			return pointsTo(BlockErrExpectedBitmapBlock, BlockBitmap)
		case off == offBmExt:
			return pointsTo(BlockErrExpectedBitmapExtBlock, BlockBitmapExt)
		case off == bsize-4:
			return expect(stRoot)
		}

	case BlockUserDir:
		switch {
		case off == 0:
			return expect(tHeader)
		case off == offSelfRef:
			if value != nr {
				return BlockErrExpectedSelfRef, nr, true
			}
		case off == 20:
			return expect(b.Checksum())
		case off >= 24 && off < 24+4*b.HashTableSize():
			return pointsTo(BlockErrExpectedHashableBlock, BlockUserDir, BlockFileHeader)
		case off == bsize-16:
			return pointsTo(BlockErrExpectedHashableBlock, BlockUserDir, BlockFileHeader)
		case off == bsize-12:
			if value == 0 || value >= d.v.Blocks() {
				return BlockErrExpectedUserDirOrRoot, 0, false
			}
			return pointsTo(BlockErrExpectedUserDirOrRoot, BlockUserDir, BlockRoot)
		case off == bsize-4:
			return expect(stUserDir)
		}

	case BlockFileHeader:
		switch {
		case off == 0:
			return expect(tHeader)
		case off == offSelfRef:
			if value != nr {
				return BlockErrExpectedSelfRef, nr, true
			}
		case off == 20:
			return expect(b.Checksum())
		case off >= 24 && off < 24+4*b.HashTableSize():
			if strict {
				return pointsTo(BlockErrExpectedDataBlock, BlockData)
			}
			return refBelow(d.v.Blocks())
		case off == offFirstData:
			if strict {
				return pointsTo(BlockErrExpectedDataBlock, BlockData)
			}
			return refBelow(d.v.Blocks())
		case off == bsize-16:
			return pointsTo(BlockErrExpectedHashableBlock, BlockUserDir, BlockFileHeader)
		case off == bsize-12:
			if value == 0 || value >= d.v.Blocks() {
				return BlockErrExpectedUserDirOrRoot, 0, false
			}
			return pointsTo(BlockErrExpectedUserDirOrRoot, BlockUserDir, BlockRoot)
		case off == bsize-8:
			return pointsTo(BlockErrExpectedFileListBlock, BlockFileList)
		case off == bsize-4:
			return expect(stFile)
		}

	case BlockFileList:
		switch {
		case off == 0:
			return expect(tList)
		case off == offSelfRef:
			if value != nr {
				return BlockErrExpectedSelfRef, nr, true
			}
		case off == 20:
			return expect(b.Checksum())
		case off >= 24 && off < 24+4*b.HashTableSize():
			if strict {
				return pointsTo(BlockErrExpectedDataBlock, BlockData)
			}
			return refBelow(d.v.Blocks())
		case off == bsize-12:
			if value == 0 || value >= d.v.Blocks() {
				return BlockErrExpectedFileHeaderBlock, 0, false
			}
			return pointsTo(BlockErrExpectedFileHeaderBlock, BlockFileHeader)
		case off == bsize-8:
			return pointsTo(BlockErrExpectedFileListBlock, BlockFileList)
		case off == bsize-4:
			return expect(stFile)
		}

	case BlockData:
		if d.v.DOS != OFS {
			break
		}
		switch off {
		case 0:
			return expect(tData)
		case offDataHeaderRef:
			if value == 0 || value >= d.v.Blocks() {
				return BlockErrExpectedFileHeaderBlock, 0, false
			}
			return pointsTo(BlockErrExpectedFileHeaderBlock, BlockFileHeader)
		case offDataSeqNum:
			if strict && (value == 0 || value > d.v.Blocks()) {
				return BlockErrExpectedDatablockNr, 0, false
			}
		case offDataSize:
			if value > uint32(bsize-24) {
				return BlockErrExpectedSmallerValue, uint32(bsize - 24), true
			}
		case offDataNext:
			return pointsTo(BlockErrExpectedDataBlock, BlockData)
		case 20:
			return expect(b.Checksum())
		}
	}

	return BlockErrOK, 0, false
}

// Xray counts the anomalies of a single block.
func (d *Doctor) Xray(nr uint32, strict bool) int {

	count := 0
	for off := 0; off < d.v.BSize(); off += 4 {
		if e, _, _ := d.Xray32(nr, off, strict); e != BlockErrOK {
			count++
		}
	}
	return count
}

// XrayAll scans the whole volume and records the erroneous blocks.
func (d *Doctor) XrayAll(strict bool) int {

	d.Diagnosis.BlockErrors = nil

	var progress elog.Progress
	if d.Log != nil {
		progress = d.Log.NewProgress("xray", "blocks", int64(d.v.Blocks()))
	}

	for nr := uint32(0); nr < d.v.Blocks(); nr++ {

		if d.Xray(nr, strict) > 0 {
			d.Diagnosis.BlockErrors = append(d.Diagnosis.BlockErrors, nr)
		}
		if progress != nil {
			progress.Increment(1)
		}
	}

	if progress != nil {
		progress.Finish(true)
	}

	return len(d.Diagnosis.BlockErrors)
}

// Rectify repairs every erroneous longword whose expected value is
// known.
func (d *Doctor) Rectify(strict bool) error {

	d.XrayAll(strict)

	for _, nr := range d.Diagnosis.BlockErrors {
		if err := d.RectifyBlock(nr, strict); err != nil {
			return err
		}
	}

	return nil
}

// RectifyBlock repairs a single block.
func (d *Doctor) RectifyBlock(nr uint32, strict bool) error {

	for off := 0; off < d.v.BSize(); off += 4 {

		e, expected, ok := d.Xray32(nr, off, strict)
		if e == BlockErrOK || !ok {
			continue
		}

		b, err := d.v.cache.Modify(nr)
		if err != nil {
			return err
		}
		b.Write32(off, expected)
	}

	return nil
}

// XrayBitmap cross-checks the allocator against the set of blocks
// reachable from the root.
func (d *Doctor) XrayBitmap(strict bool) int {

	d.Diagnosis.BitmapErrors = map[uint32]int{}
	d.Diagnosis.UsedButUnallocated = nil
	d.Diagnosis.UnusedButAllocated = nil

	used := map[uint32]bool{d.v.RootBlock: true}

	root, err := d.v.Root()
	if err != nil {
		return 0
	}

	tree, err := d.v.Build(root, FindOpt{})
	if err == nil {
		for _, b := range tree.DFS() {
			used[b.Nr] = true
			if b.IsFile() {
				for _, nr := range d.v.CollectListBlocks(b) {
					used[nr] = true
				}
				for _, nr := range d.v.CollectDataBlocks(b) {
					used[nr] = true
				}
			}
		}
	}
	for _, nr := range d.v.bmBlocks {
		used[nr] = true
	}
	for _, nr := range d.v.bmExtBlocks {
		used[nr] = true
	}

	for nr := uint32(2); nr < d.v.Blocks(); nr++ {

		allocated := d.v.alloc.IsAllocated(nr)
		contained := used[nr]

		if allocated && !contained {
			d.Diagnosis.UnusedButAllocated = append(d.Diagnosis.UnusedButAllocated, nr)
			d.Diagnosis.BitmapErrors[nr] = 1
		} else if !allocated && contained {
			d.Diagnosis.UsedButUnallocated = append(d.Diagnosis.UsedButUnallocated, nr)
			d.Diagnosis.BitmapErrors[nr] = 2
		}
	}

	return len(d.Diagnosis.BitmapErrors)
}

// RectifyBitmap aligns the allocator with the reachable block set.
func (d *Doctor) RectifyBitmap(strict bool) {

	d.XrayBitmap(strict)

	for _, nr := range d.Diagnosis.UnusedButAllocated {
		d.v.alloc.MarkAsFree(nr)
	}
	for _, nr := range d.Diagnosis.UsedButUnallocated {
		d.v.alloc.MarkAsAllocated(nr)
	}
}

// CreateUsageMap renders the block type layout into a buffer of the
// given length. Higher-priority types win when blocks share a cell.
func (d *Doctor) CreateUsageMap(buffer []byte) {

	pri := map[BlockType]int{
		BlockUnknown:    0,
		BlockEmpty:      1,
		BlockData:       2,
		BlockFileList:   3,
		BlockFileHeader: 4,
		BlockUserDir:    5,
		BlockBitmap:     6,
		BlockBitmapExt:  6,
		BlockRoot:       7,
		BlockBoot:       7,
	}

	max := int(d.v.Blocks())
	length := len(buffer)

	for i := range buffer {
		buffer[i] = byte(BlockUnknown)
	}
	for i := 0; i < max; i++ {
		buffer[i*(length-1)/(max-1)] = byte(BlockEmpty)
	}
	for i := 0; i < max; i++ {
		if t := d.v.cache.GetType(uint32(i)); t != BlockEmpty {
			pos := i * (length - 1) / (max - 1)
			if pri[BlockType(buffer[pos])] < pri[t] {
				buffer[pos] = byte(t)
			}
		}
	}

	// Fill gaps
	for pos := 1; pos < length; pos++ {
		if buffer[pos] == byte(BlockUnknown) {
			buffer[pos] = buffer[pos-1]
		}
	}
}

// CreateAllocationMap renders the allocation state into a buffer: 0 for
// free, 1 for used, 2 and 3 for the two bitmap anomaly kinds.
func (d *Doctor) CreateAllocationMap(buffer []byte) {

	max := int(d.v.Blocks())
	length := len(buffer)

	for i := range buffer {
		buffer[i] = 255
	}
	for i := 0; i < max; i++ {
		buffer[i*(length-1)/(max-1)] = 0
	}
	for i := 0; i < max; i++ {
		if d.v.alloc.IsAllocated(uint32(i)) {
			buffer[i*(length-1)/(max-1)] = 1
		}
	}
	for _, nr := range d.Diagnosis.UnusedButAllocated {
		buffer[int(nr)*(length-1)/(max-1)] = 2
	}
	for _, nr := range d.Diagnosis.UsedButUnallocated {
		buffer[int(nr)*(length-1)/(max-1)] = 3
	}

	for pos := 1; pos < length; pos++ {
		if buffer[pos] == 255 {
			buffer[pos] = buffer[pos-1]
		}
	}
}

// CreateHealthMap renders the doctor's findings into a buffer: 0 for
// free, 1 for sound, 2 for erroneous blocks.
func (d *Doctor) CreateHealthMap(buffer []byte) {

	max := int(d.v.Blocks())
	length := len(buffer)

	for i := range buffer {
		buffer[i] = 255
	}
	for i := 0; i < max; i++ {
		buffer[i*(length-1)/(max-1)] = 0
	}
	for i := 0; i < max; i++ {
		if t := d.v.cache.GetType(uint32(i)); t != BlockEmpty {
			buffer[i*(length-1)/(max-1)] = 1
		}
	}
	for _, nr := range d.Diagnosis.BlockErrors {
		buffer[int(nr)*(length-1)/(max-1)] = 2
	}

	for pos := 1; pos < length; pos++ {
		if buffer[pos] == 255 {
			buffer[pos] = buffer[pos-1]
		}
	}
}
