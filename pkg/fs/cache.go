package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"sort"
)

// defaultCacheCapacity bounds the number of blocks held in memory.
const defaultCacheCapacity = 1024

// Cache is a write-back block cache keyed by block number. It owns all
// block buffers; traversal code receives borrowed references.
type Cache struct {
	dev  BlockDevice
	root uint32

	// Typer overrides the content-derived type of a loaded block.
	// Bitmap blocks carry no signature; the volume knows them from the
	// root block references.
	Typer func(nr uint32, t BlockType) BlockType

	blocks   map[uint32]*Block
	lru      []uint32
	capacity int
}

// NewCache creates a cache over the given device.
func NewCache(dev BlockDevice, root uint32) *Cache {
	return &Cache{
		dev:      dev,
		root:     root,
		blocks:   make(map[uint32]*Block),
		capacity: defaultCacheCapacity,
	}
}

// Read returns the block with the given number, loading it through the
// backing device on a miss.
func (c *Cache) Read(nr uint32) (*Block, error) {

	if b, ok := c.blocks[nr]; ok {
		c.touch(nr)
		return b, nil
	}

	data := make([]byte, c.dev.BSize())
	if err := c.dev.ReadBlock(data, nr); err != nil {
		return nil, wrapBlock(nr, err)
	}

	b := &Block{
		Nr:   nr,
		Type: classify(nr, c.root, data),
		Data: data,
	}
	if c.Typer != nil {
		b.Type = c.Typer(nr, b.Type)
	}

	c.insert(b)
	return b, nil
}

// ReadTyped returns the block only if it has one of the wanted types.
func (c *Cache) ReadTyped(nr uint32, types ...BlockType) (*Block, error) {

	b, err := c.Read(nr)
	if err != nil {
		return nil, err
	}

	for _, t := range types {
		if b.Type == t {
			return b, nil
		}
	}

	return nil, wrapBlock(nr, ErrWrongBlockType)
}

// Modify returns the block marked dirty.
func (c *Cache) Modify(nr uint32) (*Block, error) {

	b, err := c.Read(nr)
	if err != nil {
		return nil, err
	}
	b.dirty = true
	return b, nil
}

// GetType returns the type of a block.
func (c *Cache) GetType(nr uint32) BlockType {

	b, err := c.Read(nr)
	if err != nil {
		return BlockUnknown
	}
	return b.Type
}

// SetType re-types a cached block. Blocks without a content signature,
// like bitmap blocks, are typed from the references that lead to them.
func (c *Cache) SetType(nr uint32, t BlockType) {

	b, err := c.Read(nr)
	if err != nil {
		return
	}
	b.Type = t
}

// IsDirty reports whether the block has unwritten changes.
func (c *Cache) IsDirty(nr uint32) bool {
	if b, ok := c.blocks[nr]; ok {
		return b.dirty
	}
	return false
}

// Flush writes all dirty blocks back in block-number order.
func (c *Cache) Flush() error {

	var dirty []uint32
	for nr, b := range c.blocks {
		if b.dirty {
			dirty = append(dirty, nr)
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i] < dirty[j] })

	for _, nr := range dirty {
		b := c.blocks[nr]
		if err := c.dev.WriteBlock(b.Data, nr); err != nil {
			return wrapBlock(nr, err)
		}
		b.dirty = false
	}

	return nil
}

// Invalidate drops a block from the cache, discarding changes.
func (c *Cache) Invalidate(nr uint32) {
	delete(c.blocks, nr)
	for i, v := range c.lru {
		if v == nr {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
}

func (c *Cache) insert(b *Block) {

	// Evict the least recently used clean block when full
	if len(c.blocks) >= c.capacity {
		for i := 0; i < len(c.lru); i++ {
			victim := c.lru[i]
			if !c.blocks[victim].dirty {
				delete(c.blocks, victim)
				c.lru = append(c.lru[:i], c.lru[i+1:]...)
				break
			}
		}
	}

	c.blocks[b.Nr] = b
	c.lru = append(c.lru, b.Nr)
}

func (c *Cache) touch(nr uint32) {
	for i, v := range c.lru {
		if v == nr {
			c.lru = append(append(c.lru[:i], c.lru[i+1:]...), nr)
			return
		}
	}
}
