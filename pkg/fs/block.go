package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"strings"
)

// BlockType classifies a filesystem block.
type BlockType int

const (
	BlockEmpty BlockType = iota
	BlockBoot
	BlockRoot
	BlockBitmap
	BlockBitmapExt
	BlockUserDir
	BlockFileHeader
	BlockFileList
	BlockData
	BlockUnknown
)

func (t BlockType) String() string {
	names := [...]string{
		"EMPTY", "BOOT", "ROOT", "BITMAP", "BITMAP_EXT",
		"USERDIR", "FILEHEADER", "FILELIST", "DATA", "UNKNOWN",
	}
	if int(t) >= len(names) {
		return "???"
	}
	return names[t]
}

// On-disk type and subtype codes
const (
	tHeader   = 2
	tList     = 16
	tData     = 8
	stRoot    = 1
	stUserDir = 2
	stFile    = 0xFFFFFFFD // -3
)

// Block is one filesystem block. The payload buffer is owned by the
// block cache; traversal code borrows it.
type Block struct {
	Nr   uint32
	Type BlockType
	Data []byte

	dirty bool
}

// Read32 reads the big-endian longword at byte offset off.
func (b *Block) Read32(off int) uint32 {
	p := b.Data[off:]
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

// Write32 stores a big-endian longword at byte offset off.
func (b *Block) Write32(off int, value uint32) {
	p := b.Data[off:]
	p[0] = byte(value >> 24)
	p[1] = byte(value >> 16)
	p[2] = byte(value >> 8)
	p[3] = byte(value)
	b.dirty = true
}

// bsize returns the block size.
func (b *Block) bsize() int { return len(b.Data) }

// Typed field accessors. The offsets follow the original filing system
// layout; negative offsets count from the block end.

func (b *Block) typeID() uint32    { return b.Read32(0) }
func (b *Block) subtypeID() uint32 { return b.Read32(b.bsize() - 4) }

// HashTableSize returns the number of hash table slots of a directory
// block.
func (b *Block) HashTableSize() int {
	return b.bsize()/4 - 56
}

func (b *Block) hasHashTable() bool {
	return b.Type == BlockRoot || b.Type == BlockUserDir
}

// HashRef returns the hash chain head at the given table index.
func (b *Block) HashRef(index int) uint32 {
	return b.Read32(24 + 4*index)
}

// SetHashRef stores a hash chain head.
func (b *Block) SetHashRef(index int, ref uint32) {
	b.Write32(24+4*index, ref)
}

// NextHashRef returns the next block in this block's hash chain.
func (b *Block) NextHashRef() uint32 {
	return b.Read32(b.bsize() - 16)
}

// SetNextHashRef chains this block behind another directory entry.
func (b *Block) SetNextHashRef(ref uint32) {
	b.Write32(b.bsize()-16, ref)
}

// ParentRef returns the parent directory reference.
func (b *Block) ParentRef() uint32 {
	return b.Read32(b.bsize() - 12)
}

// SetParentRef stores the parent directory reference.
func (b *Block) SetParentRef(ref uint32) {
	b.Write32(b.bsize()-12, ref)
}

// ExtensionRef returns the file list extension reference.
func (b *Block) ExtensionRef() uint32 {
	return b.Read32(b.bsize() - 8)
}

// SetExtensionRef stores the file list extension reference.
func (b *Block) SetExtensionRef(ref uint32) {
	b.Write32(b.bsize()-8, ref)
}

// FileSize returns the byte size stored in a file header.
func (b *Block) FileSize() uint32 {
	return b.Read32(b.bsize() - 188)
}

// SetFileSize stores the byte size of a file header.
func (b *Block) SetFileSize(size uint32) {
	b.Write32(b.bsize()-188, size)
}

// Name returns the BCPL-encoded block name.
func (b *Block) Name() string {

	off := b.bsize() - 80
	n := int(b.Data[off])
	if n > 30 {
		n = 30
	}
	return string(b.Data[off+1 : off+1+n])
}

// SetName stores a BCPL-encoded block name.
func (b *Block) SetName(name string) {

	if len(name) > 30 {
		name = name[:30]
	}

	off := b.bsize() - 80
	b.Data[off] = byte(len(name))
	copy(b.Data[off+1:off+31], name)
	b.dirty = true
}

// IsNamed compares the block name case-insensitively, following the
// filesystem's native semantics.
func (b *Block) IsNamed(name string) bool {
	return strings.EqualFold(b.Name(), name)
}

// IsDirectory reports whether this block starts a directory.
func (b *Block) IsDirectory() bool {
	return b.Type == BlockRoot || b.Type == BlockUserDir
}

// IsFile reports whether this block starts a file.
func (b *Block) IsFile() bool {
	return b.Type == BlockFileHeader
}

// Checksum computes the standard block checksum: the negated sum of all
// longwords with the checksum field counted as zero.
func (b *Block) Checksum() uint32 {

	off := b.checksumOffset()

	var sum uint32
	for i := 0; i < b.bsize(); i += 4 {
		if i == off {
			continue
		}
		sum += b.Read32(i)
	}

	return -sum
}

func (b *Block) checksumOffset() int {
	if b.Type == BlockBitmap {
		return 0
	}
	return 20
}

// StoredChecksum returns the checksum recorded in the block.
func (b *Block) StoredChecksum() uint32 {
	return b.Read32(b.checksumOffset())
}

// UpdateChecksum recomputes and stores the checksum.
func (b *Block) UpdateChecksum() {
	b.Write32(b.checksumOffset(), b.Checksum())
}

// hashName computes the directory hash of a name.
func hashName(name string, tableSize int) uint32 {

	hash := uint32(len(name))
	for _, c := range strings.ToUpper(name) {
		hash = (hash*13 + uint32(c)) & 0x7FF
	}
	return hash % uint32(tableSize)
}

// classify derives the block type from the on-disk content.
func classify(nr, root uint32, data []byte) BlockType {

	bsize := len(data)
	read32 := func(off int) uint32 {
		p := data[off:]
		return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
	}

	if nr < 2 {
		return BlockBoot
	}

	empty := true
	for _, v := range data {
		if v != 0 {
			empty = false
			break
		}
	}
	if empty {
		return BlockEmpty
	}

	t := read32(0)
	st := read32(bsize - 4)

	switch {
	case t == tHeader && st == stRoot:
		return BlockRoot
	case t == tHeader && st == stUserDir:
		return BlockUserDir
	case t == tHeader && st == stFile:
		return BlockFileHeader
	case t == tList && st == stFile:
		return BlockFileList
	case t == tData:
		return BlockData
	}

	if nr == root {
		return BlockRoot
	}

	return BlockUnknown
}
