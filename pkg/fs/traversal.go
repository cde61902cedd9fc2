package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"sort"
)

// FindOpt controls a traversal.
type FindOpt struct {
	// Descend into subdirectories
	Recursive bool

	// Optional filter; a nil filter accepts everything
	Accept func(*Block) bool

	// Sort each result set by name
	Sort bool

	// Not read by Find or Build; a tree from Build is flattened depth
	// first by DFS and breadth first by BFS
	BreadthFirst bool
}

// CollectHashedBlocks returns all directory entries of a directory
// block, walking every hash chain.
func (v *Volume) CollectHashedBlocks(dir *Block) ([]*Block, error) {

	var result []*Block

	if !dir.hasHashTable() {
		return nil, wrapBlock(dir.Nr, ErrWrongBlockType)
	}

	for i := 0; i < dir.HashTableSize(); i++ {

		ref := dir.HashRef(i)
		seen := map[uint32]bool{}

		for ref != 0 && ref < v.Blocks() && !seen[ref] {

			seen[ref] = true

			b, err := v.cache.ReadTyped(ref, BlockUserDir, BlockFileHeader)
			if err != nil {
				break
			}
			result = append(result, b)
			ref = b.NextHashRef()
		}
	}

	return result, nil
}

// Find traverses the directory tree below root and returns all accepted
// blocks. Every reachable block is visited exactly once; a block seen
// twice means the hash tables form a cycle.
func (v *Volume) Find(root *Block, opt FindOpt) ([]*Block, error) {

	visited := map[uint32]bool{}
	return v.find(root, opt, visited)
}

func (v *Volume) find(root *Block, opt FindOpt, visited map[uint32]bool) ([]*Block, error) {

	var result []*Block

	hashed, err := v.CollectHashedBlocks(root)
	if err != nil {
		return nil, err
	}

	for _, b := range hashed {

		if opt.Accept == nil || opt.Accept(b) {
			result = append(result, b)
		}

		if visited[b.Nr] {
			return nil, wrapBlock(b.Nr, ErrHasCycles)
		}
		visited[b.Nr] = true
	}

	if opt.Recursive {
		for _, b := range hashed {
			if b.IsDirectory() {
				sub, err := v.find(b, opt, visited)
				if err != nil {
					return nil, err
				}
				result = append(result, sub...)
			}
		}
	}

	if opt.Sort {
		sort.Slice(result, func(i, j int) bool {
			return result[i].Name() < result[j].Name()
		})
	}

	return result, nil
}

// TreeNode is one node of a directory tree built by Build.
type TreeNode struct {
	Block    *Block
	Children []*TreeNode
}

// Build assembles the directory tree below root. Order inside each
// directory follows the hash table, or the names when Sort is set.
// BreadthFirst is ignored; DFS and BFS each flatten in one fixed order.
func (v *Volume) Build(root *Block, opt FindOpt) (*TreeNode, error) {

	visited := map[uint32]bool{root.Nr: true}
	return v.build(root, opt, visited)
}

func (v *Volume) build(root *Block, opt FindOpt, visited map[uint32]bool) (*TreeNode, error) {

	node := &TreeNode{Block: root}

	if !root.IsDirectory() {
		return node, nil
	}

	hashed, err := v.CollectHashedBlocks(root)
	if err != nil {
		return nil, err
	}

	for _, b := range hashed {

		if opt.Accept != nil && !opt.Accept(b) {
			continue
		}
		if visited[b.Nr] {
			return nil, wrapBlock(b.Nr, ErrHasCycles)
		}
		visited[b.Nr] = true

		child, err := v.build(b, opt, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	if opt.Sort {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Block.Name() < node.Children[j].Block.Name()
		})
	}

	return node, nil
}

// DFS flattens the tree depth first.
func (n *TreeNode) DFS() []*Block {

	result := []*Block{n.Block}
	for _, c := range n.Children {
		result = append(result, c.DFS()...)
	}
	return result
}

// BFS flattens the tree breadth first.
func (n *TreeNode) BFS() []*Block {

	var result []*Block

	queue := []*TreeNode{n}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node.Block)
		queue = append(queue, node.Children...)
	}

	return result
}

// CollectListBlocks returns the extension block chain of a file.
func (v *Volume) CollectListBlocks(header *Block) []uint32 {

	var result []uint32
	seen := map[uint32]bool{}

	ref := header.ExtensionRef()
	for ref != 0 && ref < v.Blocks() && !seen[ref] {
		seen[ref] = true
		result = append(result, ref)

		b, err := v.cache.Read(ref)
		if err != nil {
			break
		}
		ref = b.ExtensionRef()
	}

	return result
}

// CollectDataBlocks returns the data block numbers of a file, in file
// order.
func (v *Volume) CollectDataBlocks(header *Block) []uint32 {

	var result []uint32

	refs := func(b *Block) {
		n := b.HashTableSize()
		// Data block references fill the table from the end
		for i := n - 1; i >= 0; i-- {
			if ref := b.HashRef(i); ref != 0 {
				result = append(result, ref)
			}
		}
	}

	refs(header)
	for _, nr := range v.CollectListBlocks(header) {
		if b, err := v.cache.Read(nr); err == nil {
			refs(b)
		}
	}

	return result
}
