package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
)

// File header field offsets
const (
	offSelfRef   = 4
	offHighSeq   = 8
	offFirstData = 16

	// OFS data block header
	offDataHeaderRef = 4
	offDataSeqNum    = 8
	offDataSize      = 12
	offDataNext      = 16
	ofsDataPayload   = 24
)

// addToHashTable links a new block into a directory's hash chain.
func (v *Volume) addToHashTable(dir *Block, b *Block) error {

	idx := int(hashName(b.Name(), dir.HashTableSize()))

	ref := dir.HashRef(idx)
	if ref == 0 {
		dir.SetHashRef(idx, b.Nr)
		dir.UpdateChecksum()
		return nil
	}

	// Append at the end of the chain
	seen := map[uint32]bool{}
	for {
		if seen[ref] {
			return wrapBlock(ref, ErrHasCycles)
		}
		seen[ref] = true

		node, err := v.cache.ReadTyped(ref, BlockUserDir, BlockFileHeader)
		if err != nil {
			return err
		}
		next := node.NextHashRef()
		if next == 0 {
			node, _ = v.cache.Modify(ref)
			node.SetNextHashRef(b.Nr)
			node.UpdateChecksum()
			return nil
		}
		ref = next
	}
}

// CreateDir creates a subdirectory.
func (v *Volume) CreateDir(dir *Block, name string) (*Block, error) {

	if !dir.IsDirectory() {
		return nil, wrapBlock(dir.Nr, ErrWrongBlockType)
	}
	if _, err := v.SeekName(dir, name); err == nil {
		return nil, fmt.Errorf("%q already exists: %w", name, ErrInvalidPath)
	}

	nr, err := v.alloc.Allocate()
	if err != nil {
		return nil, err
	}

	b, err := v.cache.Modify(nr)
	if err != nil {
		return nil, err
	}

	for i := range b.Data {
		b.Data[i] = 0
	}
	b.Type = BlockUserDir
	b.Write32(0, tHeader)
	b.Write32(offSelfRef, nr)
	b.SetName(name)
	b.SetParentRef(dir.Nr)
	b.Write32(b.bsize()-4, stUserDir)

	if err := v.addToHashTable(dir, b); err != nil {
		return nil, err
	}

	b.UpdateChecksum()
	return b, nil
}

// CreateFile creates a file holding the given data.
func (v *Volume) CreateFile(dir *Block, name string, data []byte) (*Block, error) {

	if !dir.IsDirectory() {
		return nil, wrapBlock(dir.Nr, ErrWrongBlockType)
	}
	if _, err := v.SeekName(dir, name); err == nil {
		return nil, fmt.Errorf("%q already exists: %w", name, ErrInvalidPath)
	}

	headerNr, err := v.alloc.Allocate()
	if err != nil {
		return nil, err
	}

	listBlocks, dataBlocks, err := v.alloc.AllocateFileBlocks(len(data), nil, nil)
	if err != nil {
		return nil, err
	}

	header, err := v.cache.Modify(headerNr)
	if err != nil {
		return nil, err
	}

	for i := range header.Data {
		header.Data[i] = 0
	}
	header.Type = BlockFileHeader
	header.Write32(0, tHeader)
	header.Write32(offSelfRef, headerNr)
	header.SetName(name)
	header.SetParentRef(dir.Nr)
	header.SetFileSize(uint32(len(data)))
	header.Write32(header.bsize()-4, stFile)

	refsPerBlock := v.BSize()/4 - 56

	// Distribute the data block references over header and list blocks
	holder := header
	slot := 0
	for i, nr := range dataBlocks {

		if slot == refsPerBlock {

			listNr := listBlocks[0]
			listBlocks = listBlocks[1:]

			holder.SetExtensionRef(listNr)
			holder.UpdateChecksum()

			holder, err = v.cache.Modify(listNr)
			if err != nil {
				return nil, err
			}
			for j := range holder.Data {
				holder.Data[j] = 0
			}
			holder.Type = BlockFileList
			holder.Write32(0, tList)
			holder.Write32(offSelfRef, listNr)
			holder.SetParentRef(headerNr)
			holder.Write32(holder.bsize()-4, stFile)
			slot = 0
		}

		holder.SetHashRef(holder.HashTableSize()-1-slot, nr)
		holder.Write32(offHighSeq, holder.Read32(offHighSeq)+1)
		slot++

		if i == 0 {
			header.Write32(offFirstData, nr)
		}
	}
	holder.UpdateChecksum()

	// Fill the data blocks
	if err := v.writeFileData(header, dataBlocks, data); err != nil {
		return nil, err
	}

	if err := v.addToHashTable(dir, header); err != nil {
		return nil, err
	}

	header.UpdateChecksum()
	return header, nil
}

func (v *Volume) writeFileData(header *Block, dataBlocks []uint32, data []byte) error {

	capacity := v.BSize()
	if v.DOS == OFS {
		capacity -= 24
	}

	for i, nr := range dataBlocks {

		b, err := v.cache.Modify(nr)
		if err != nil {
			return err
		}
		for j := range b.Data {
			b.Data[j] = 0
		}
		b.Type = BlockData

		chunk := data[i*capacity:]
		if len(chunk) > capacity {
			chunk = chunk[:capacity]
		}

		if v.DOS == OFS {

			b.Write32(0, tData)
			b.Write32(offDataHeaderRef, header.Nr)
			b.Write32(offDataSeqNum, uint32(i+1))
			b.Write32(offDataSize, uint32(len(chunk)))
			if i+1 < len(dataBlocks) {
				b.Write32(offDataNext, dataBlocks[i+1])
			}
			copy(b.Data[ofsDataPayload:], chunk)
			b.UpdateChecksum()

		} else {

			copy(b.Data, chunk)
		}
	}

	return nil
}

// ReadFile returns the contents of a file.
func (v *Volume) ReadFile(header *Block) ([]byte, error) {

	if !header.IsFile() {
		return nil, wrapBlock(header.Nr, ErrWrongBlockType)
	}

	size := int(header.FileSize())
	result := make([]byte, 0, size)

	capacity := v.BSize()
	if v.DOS == OFS {
		capacity -= 24
	}

	for _, nr := range v.CollectDataBlocks(header) {

		b, err := v.cache.Read(nr)
		if err != nil {
			return nil, err
		}

		chunk := capacity
		if remaining := size - len(result); chunk > remaining {
			chunk = remaining
		}

		if v.DOS == OFS {
			result = append(result, b.Data[ofsDataPayload:ofsDataPayload+chunk]...)
		} else {
			result = append(result, b.Data[:chunk]...)
		}
	}

	if len(result) != size {
		return result, wrapBlock(header.Nr, ErrWrongBlockType)
	}

	return result, nil
}
