package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
	"strings"
)

// Format selects the filing system variant.
type Format int

const (
	OFS Format = iota
	FFS
)

func (f Format) String() string {
	if f == FFS {
		return "FFS"
	}
	return "OFS"
}

// Root block field offsets (for bsize 512)
const (
	rootHashTableSize = 72

	offBmFlag  = 312
	offBmPages = 316
	offBmExt   = 416
)

// Volume is a mounted filing system over a block device.
type Volume struct {
	dev   BlockDevice
	cache *Cache

	DOS       Format
	RootBlock uint32

	// Bitmap block locations, discovered from the root block
	bmBlocks    []uint32
	bmExtBlocks []uint32

	// Current directory for relative lookups
	pwd uint32

	alloc *Allocator
}

// rootBlockFor returns the default root block location of a volume.
func rootBlockFor(blocks uint32) uint32 {
	return (blocks - 1 + 2) / 2
}

// Mount opens an existing filesystem on the device.
func Mount(dev BlockDevice) (*Volume, error) {

	root := rootBlockFor(dev.Blocks())

	v := &Volume{
		dev:       dev,
		cache:     NewCache(dev, root),
		RootBlock: root,
		pwd:       root,
	}

	// The boot block carries the DOS signature
	boot, err := v.cache.Read(0)
	if err != nil {
		return nil, err
	}
	if boot.Data[0] != 'D' || boot.Data[1] != 'O' || boot.Data[2] != 'S' {
		return nil, ErrUnformatted
	}
	if boot.Data[3]&1 != 0 {
		v.DOS = FFS
	}

	rb, err := v.cache.ReadTyped(root, BlockRoot)
	if err != nil {
		return nil, err
	}

	v.discoverBitmapBlocks(rb)
	v.installTyper()
	v.alloc = newAllocator(v)

	return v, nil
}

// FormatVolume creates a fresh filesystem on the device and mounts it.
func FormatVolume(dev BlockDevice, dos Format, name string) (*Volume, error) {

	root := rootBlockFor(dev.Blocks())

	v := &Volume{
		dev:       dev,
		cache:     NewCache(dev, root),
		DOS:       dos,
		RootBlock: root,
		pwd:       root,
	}

	// Boot block
	boot, err := v.cache.Modify(0)
	if err != nil {
		return nil, err
	}
	for i := range boot.Data {
		boot.Data[i] = 0
	}
	boot.Data[0], boot.Data[1], boot.Data[2] = 'D', 'O', 'S'
	if dos == FFS {
		boot.Data[3] = 1
	}
	boot.Type = BlockBoot

	// Root block
	rb, err := v.cache.Modify(root)
	if err != nil {
		return nil, err
	}
	for i := range rb.Data {
		rb.Data[i] = 0
	}
	rb.Type = BlockRoot
	rb.Write32(0, tHeader)
	rb.Write32(12, rootHashTableSize)
	rb.Write32(offBmFlag, 0xFFFFFFFF)
	rb.Write32(offBmPages, root+1)
	rb.SetName(name)
	rb.Write32(rb.bsize()-4, stRoot)

	// Bitmap block: everything free
	bm, err := v.cache.Modify(root + 1)
	if err != nil {
		return nil, err
	}
	for i := range bm.Data {
		bm.Data[i] = 0xFF
	}
	bm.Write32(0, 0)
	bm.Type = BlockBitmap

	v.bmBlocks = []uint32{root + 1}
	v.installTyper()
	v.alloc = newAllocator(v)

	// Zero the out-of-range tail bits and allocate the metadata blocks
	v.alloc.clearTailBits()
	v.alloc.MarkAsAllocated(root)
	v.alloc.MarkAsAllocated(root + 1)

	rb.UpdateChecksum()
	bm.UpdateChecksum()

	return v, nil
}

// installTyper teaches the cache which blocks are bitmap blocks; their
// content carries no signature.
func (v *Volume) installTyper() {
	v.cache.Typer = func(nr uint32, t BlockType) BlockType {
		for _, b := range v.bmBlocks {
			if b == nr {
				return BlockBitmap
			}
		}
		for _, b := range v.bmExtBlocks {
			if b == nr {
				return BlockBitmapExt
			}
		}
		return t
	}
}

func (v *Volume) discoverBitmapBlocks(rb *Block) {

	v.bmBlocks = nil
	v.bmExtBlocks = nil

	for i := 0; i < 25; i++ {
		if ref := rb.Read32(offBmPages + 4*i); ref != 0 {
			v.bmBlocks = append(v.bmBlocks, ref)
			v.cache.SetType(ref, BlockBitmap)
		}
	}

	ext := rb.Read32(offBmExt)
	for ext != 0 && ext < v.Blocks() {

		v.bmExtBlocks = append(v.bmExtBlocks, ext)
		v.cache.SetType(ext, BlockBitmapExt)

		b, err := v.cache.Read(ext)
		if err != nil {
			break
		}
		for i := 0; i < b.bsize()/4-1; i++ {
			if ref := b.Read32(4 * i); ref != 0 {
				v.bmBlocks = append(v.bmBlocks, ref)
				v.cache.SetType(ref, BlockBitmap)
			}
		}
		ext = b.Read32(b.bsize() - 4)
	}
}

// Blocks returns the volume capacity in blocks.
func (v *Volume) Blocks() uint32 { return v.dev.Blocks() }

// BSize returns the block size.
func (v *Volume) BSize() int { return v.dev.BSize() }

// Cache exposes the block cache.
func (v *Volume) Cache() *Cache { return v.cache }

// Allocator exposes the block allocator.
func (v *Volume) Allocator() *Allocator { return v.alloc }

// BitmapBlocks returns the bitmap block locations.
func (v *Volume) BitmapBlocks() []uint32 { return v.bmBlocks }

// BitmapExtBlocks returns the bitmap extension block locations.
func (v *Volume) BitmapExtBlocks() []uint32 { return v.bmExtBlocks }

// Name returns the volume name.
func (v *Volume) Name() string {

	rb, err := v.cache.Read(v.RootBlock)
	if err != nil {
		return ""
	}
	return rb.Name()
}

// Root returns the root block.
func (v *Volume) Root() (*Block, error) {
	return v.cache.ReadTyped(v.RootBlock, BlockRoot)
}

// IsEmptyBlock reports whether the block is unused.
func (v *Volume) IsEmptyBlock(nr uint32) bool {
	return v.cache.GetType(nr) == BlockEmpty
}

// Pwd returns the current directory block.
func (v *Volume) Pwd() uint32 { return v.pwd }

// Parent returns the parent directory of a block. The root block is its
// own parent.
func (v *Volume) Parent(b *Block) (*Block, error) {

	if b.Type == BlockRoot {
		return b, nil
	}

	return v.cache.ReadTyped(b.ParentRef(), BlockRoot, BlockUserDir)
}

// SeekName resolves a single path component relative to a directory.
func (v *Volume) SeekName(dir *Block, name string) (*Block, error) {

	// Special names resolve before any hash lookup
	switch name {
	case "/":
		return v.Root()
	case "", ".":
		return dir, nil
	case "..":
		return v.Parent(dir)
	}

	if !dir.hasHashTable() {
		return nil, wrapBlock(dir.Nr, ErrWrongBlockType)
	}

	visited := map[uint32]bool{}

	hash := hashName(name, dir.HashTableSize())
	ref := dir.HashRef(int(hash))

	for ref != 0 && !visited[ref] {

		b, err := v.cache.ReadTyped(ref, BlockUserDir, BlockFileHeader)
		if err != nil {
			break
		}
		if b.IsNamed(name) {
			return b, nil
		}

		visited[ref] = true
		ref = b.NextHashRef()
	}

	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Seek resolves a path. A leading volume marker ("name:") or slash
// starts the lookup at the root directory.
func (v *Volume) Seek(path string) (*Block, error) {

	start := v.pwd

	if i := strings.IndexByte(path, ':'); i >= 0 {
		path = path[i+1:]
		start = v.RootBlock
	} else if strings.HasPrefix(path, "/") {
		path = strings.TrimLeft(path, "/")
		start = v.RootBlock
	}

	node, err := v.cache.Read(start)
	if err != nil {
		return nil, err
	}

	for _, part := range strings.Split(path, "/") {
		node, err = v.SeekName(node, part)
		if err != nil {
			return nil, err
		}
	}

	return node, nil
}

// Exists reports whether a path resolves.
func (v *Volume) Exists(path string) bool {
	_, err := v.Seek(path)
	return err == nil
}

// Cd changes the current directory.
func (v *Volume) Cd(path string) error {

	b, err := v.Seek(path)
	if err != nil {
		return err
	}
	if !b.IsDirectory() {
		return fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}

	v.pwd = b.Nr
	return nil
}

// Flush writes all cached changes back to the device.
func (v *Volume) Flush() error {
	return v.cache.Flush()
}
