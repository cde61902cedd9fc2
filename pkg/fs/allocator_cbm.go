package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// The CBM 1541 disk layout: 35 tracks in four speed zones with a
// dedicated directory track. Track numbers are 1-based on this system.
const (
	cbmTracks   = 35
	cbmDirTrack = 18
)

// cbmSectors returns the number of sectors of a track.
func cbmSectors(track int) int {
	switch {
	case track <= 17:
		return 21
	case track <= 24:
		return 19
	case track <= 30:
		return 18
	default:
		return 17
	}
}

// cbmInterleave returns the sector interleave of a track. The directory
// track uses a tighter interleave than the data zones.
func cbmInterleave(track int) int {
	if track == cbmDirTrack {
		return 3
	}
	return 10
}

// CBMAllocator is the block allocator of the CBM filesystem variant. It
// keeps one free-sector map per track and places blocks cylinder-aware:
// data spreads outward from the directory track, directory blocks stay
// on the directory track.
type CBMAllocator struct {
	free [cbmTracks + 1][]bool
}

// NewCBMAllocator returns an allocator with an empty disk. The first
// two sectors of the directory track are reserved for the BAM and the
// first directory block.
func NewCBMAllocator() *CBMAllocator {

	a := &CBMAllocator{}
	for t := 1; t <= cbmTracks; t++ {
		a.free[t] = make([]bool, cbmSectors(t))
		for s := range a.free[t] {
			a.free[t][s] = true
		}
	}

	a.free[cbmDirTrack][0] = false
	a.free[cbmDirTrack][1] = false

	return a
}

// Blocks returns the total number of blocks on the disk.
func (a *CBMAllocator) Blocks() int {
	n := 0
	for t := 1; t <= cbmTracks; t++ {
		n += cbmSectors(t)
	}
	return n
}

// NumUnallocated counts the free sectors.
func (a *CBMAllocator) NumUnallocated() int {
	n := 0
	for t := 1; t <= cbmTracks; t++ {
		for _, f := range a.free[t] {
			if f {
				n++
			}
		}
	}
	return n
}

// IsUnallocated reports whether a sector is free.
func (a *CBMAllocator) IsUnallocated(track, sector int) bool {
	return a.free[track][sector]
}

// MarkAsAllocated claims a sector.
func (a *CBMAllocator) MarkAsAllocated(track, sector int) {
	a.free[track][sector] = false
}

// MarkAsFree releases a sector.
func (a *CBMAllocator) MarkAsFree(track, sector int) {
	a.free[track][sector] = true
}

// Allocate claims the next data sector following (prevTrack,
// prevSector). The track search starts at the previous track and moves
// outward from the directory track; inside a track the speed-zone
// interleave is applied. Passing track 0 starts a fresh chain.
func (a *CBMAllocator) Allocate(prevTrack, prevSector int) (int, int, error) {

	if prevTrack == 0 {
		prevTrack, prevSector = cbmDirTrack-1, 0
	}

	// Try the previous track first, then alternate outward around the
	// directory track
	for _, t := range a.trackSearchOrder(prevTrack) {

		if t == cbmDirTrack {
			continue
		}

		sectors := cbmSectors(t)
		start := 0
		if t == prevTrack {
			start = (prevSector + cbmInterleave(t)) % sectors
		}

		for i := 0; i < sectors; i++ {
			s := (start + i) % sectors
			if a.free[t][s] {
				a.free[t][s] = false
				return t, s, nil
			}
		}
	}

	return 0, 0, ErrOutOfSpace
}

// AllocateDirBlock claims the next directory sector on the directory
// track.
func (a *CBMAllocator) AllocateDirBlock(prevSector int) (int, int, error) {

	sectors := cbmSectors(cbmDirTrack)
	start := (prevSector + cbmInterleave(cbmDirTrack)) % sectors

	for i := 0; i < sectors; i++ {
		s := (start + i) % sectors
		if a.free[cbmDirTrack][s] {
			a.free[cbmDirTrack][s] = false
			return cbmDirTrack, s, nil
		}
	}

	return 0, 0, ErrOutOfSpace
}

// trackSearchOrder yields the candidate tracks starting at the hint and
// fanning outward from the directory track.
func (a *CBMAllocator) trackSearchOrder(hint int) []int {

	order := []int{hint}
	for d := 1; d < cbmTracks; d++ {
		if t := cbmDirTrack - d; t >= 1 && t != hint {
			order = append(order, t)
		}
		if t := cbmDirTrack + d; t <= cbmTracks && t != hint {
			order = append(order, t)
		}
	}
	return order
}

// Serialize packs the per-track maps into BAM entry format: for each
// track a free count and three bitmap bytes, bit set meaning free.
func (a *CBMAllocator) Serialize() []byte {

	out := make([]byte, 0, 4*cbmTracks)

	for t := 1; t <= cbmTracks; t++ {

		count := 0
		var bmp [3]byte
		for s, f := range a.free[t] {
			if f {
				count++
				bmp[s/8] |= 1 << uint(s%8)
			}
		}
		out = append(out, byte(count), bmp[0], bmp[1], bmp[2])
	}

	return out
}

// DeserializeCBM restores an allocator from BAM entry format.
func DeserializeCBM(data []byte) *CBMAllocator {

	a := NewCBMAllocator()

	for t := 1; t <= cbmTracks; t++ {

		if len(data) < 4*t {
			break
		}
		entry := data[4*(t-1) : 4*t]

		for s := 0; s < cbmSectors(t); s++ {
			a.free[t][s] = entry[1+s/8]&(1<<uint(s%8)) != 0
		}
	}

	return a
}
