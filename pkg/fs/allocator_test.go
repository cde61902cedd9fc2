package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateReturnsDisjointBlocks(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	seen := map[uint32]bool{}
	for i := 0; i < 100; i++ {
		nr, err := a.Allocate()
		assert.NoError(t, err)
		assert.False(t, seen[nr], "block %d allocated twice", nr)
		assert.True(t, a.IsAllocated(nr))
		seen[nr] = true
	}
}

func TestAllocateWrapsAndFails(t *testing.T) {

	dev := NewRAMDevice(16, 512)
	v, err := FormatVolume(dev, OFS, "Tiny")
	assert.NoError(t, err)
	a := v.Allocator()

	// 16 blocks, 4 in use: 12 allocations succeed, the next fails
	for i := 0; i < 12; i++ {
		_, err := a.Allocate()
		assert.NoError(t, err)
	}

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestDeallocateReturnsBlockToPool(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	nr, err := a.Allocate()
	assert.NoError(t, err)
	assert.True(t, a.IsAllocated(nr))

	a.DeallocateBlock(nr)
	assert.True(t, a.IsUnallocated(nr))
}

func TestRequiredBlockArithmetic(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	// OFS data blocks carry 488 payload bytes
	assert.Equal(t, 1, a.RequiredDataBlocks(1))
	assert.Equal(t, 1, a.RequiredDataBlocks(488))
	assert.Equal(t, 2, a.RequiredDataBlocks(489))

	// 72 references fit into the header block
	assert.Equal(t, 0, a.RequiredFileListBlocks(72*488))
	assert.Equal(t, 1, a.RequiredFileListBlocks(72*488+1))

	for _, size := range []int{0, 1, 488, 489, 72 * 488, 100 * 488, 200 * 488} {
		assert.Equal(t,
			1+a.RequiredDataBlocks(size)+a.RequiredFileListBlocks(size),
			a.RequiredBlocks(size), "size %d", size)
	}
}

func TestRequiredBlockArithmeticFFS(t *testing.T) {

	v := ddVolume(t, FFS)
	a := v.Allocator()

	// FFS data blocks use the whole block
	assert.Equal(t, 1, a.RequiredDataBlocks(512))
	assert.Equal(t, 2, a.RequiredDataBlocks(513))
}

func TestAllocateManyDrainsPrealloc(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	pre, err := a.AllocateMany(3, nil)
	assert.NoError(t, err)

	result, err := a.AllocateMany(5, pre)
	assert.NoError(t, err)
	assert.Len(t, result, 5)

	// The preallocated blocks come first
	for _, nr := range pre {
		assert.Contains(t, result, nr)
	}
}

func TestAllocateManyFreesSurplusPrealloc(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	pre, err := a.AllocateMany(5, nil)
	assert.NoError(t, err)

	result, err := a.AllocateMany(2, pre)
	assert.NoError(t, err)
	assert.Len(t, result, 2)

	// Three of the preallocated blocks went back to the pool
	free := 0
	for _, nr := range pre {
		if a.IsUnallocated(nr) {
			free++
		}
	}
	assert.Equal(t, 3, free)
}

func TestSerializeBitmapCountsFreeBlocks(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	words := a.SerializeBitmap()
	assert.Equal(t, ((1760-2)+31)/32, len(words))

	assert.Equal(t, 1760-4, a.NumUnallocated())
	assert.Equal(t, 4, a.NumAllocated())

	// Allocation is reflected in the flattened bitmap
	nr, _ := a.Allocate()
	assert.Equal(t, 1760-5, a.NumUnallocated())
	assert.True(t, a.IsAllocated(nr))
}

func TestCBMAllocatorAvoidsDirectoryTrack(t *testing.T) {

	a := NewCBMAllocator()

	track, sector := 0, 0
	var err error
	for i := 0; i < 50; i++ {
		track, sector, err = a.Allocate(track, sector)
		assert.NoError(t, err)
		assert.NotEqual(t, cbmDirTrack, track)
	}
}

func TestCBMAllocatorInterleavesSectors(t *testing.T) {

	a := NewCBMAllocator()

	t1, s1, err := a.Allocate(0, 0)
	assert.NoError(t, err)
	t2, s2, err := a.Allocate(t1, s1)
	assert.NoError(t, err)

	if t1 == t2 {
		assert.Equal(t, (s1+10)%cbmSectors(t1), s2)
	}
}

func TestCBMAllocatorDirBlocksStayOnTrack18(t *testing.T) {

	a := NewCBMAllocator()

	track, sector, err := a.AllocateDirBlock(1)
	assert.NoError(t, err)
	assert.Equal(t, cbmDirTrack, track)
	assert.Equal(t, 4, sector)
}

func TestCBMAllocatorExhaustion(t *testing.T) {

	a := NewCBMAllocator()
	total := a.NumUnallocated()

	track, sector := 0, 0
	var err error
	dirFree := cbmSectors(cbmDirTrack) - 2

	for i := 0; i < total-dirFree; i++ {
		track, sector, err = a.Allocate(track, sector)
		assert.NoError(t, err)
	}

	_, _, err = a.Allocate(track, sector)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestCBMSerializeRoundTrip(t *testing.T) {

	a := NewCBMAllocator()
	a.Allocate(0, 0)
	a.Allocate(5, 3)

	b := DeserializeCBM(a.Serialize())
	assert.Equal(t, a.NumUnallocated(), b.NumUnallocated())

	for tr := 1; tr <= cbmTracks; tr++ {
		for s := 0; s < cbmSectors(tr); s++ {
			assert.Equal(t, a.IsUnallocated(tr, s), b.IsUnallocated(tr, s))
		}
	}
}
