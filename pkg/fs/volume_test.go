package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ddVolume(t *testing.T, dos Format) *Volume {
	dev := NewRAMDevice(1760, 512)
	v, err := FormatVolume(dev, dos, "Test")
	assert.NoError(t, err)
	return v
}

func TestFormatCreatesValidRootBlock(t *testing.T) {

	v := ddVolume(t, OFS)

	rb, err := v.Root()
	assert.NoError(t, err)

	assert.Equal(t, uint32(880), rb.Nr)
	assert.Equal(t, "Test", rb.Name())
	assert.Equal(t, uint32(tHeader), rb.typeID())
	assert.Equal(t, uint32(stRoot), rb.subtypeID())
	assert.Equal(t, uint32(rootHashTableSize), rb.Read32(12))

	// The checksum makes the longword sum vanish
	var sum uint32
	for i := 0; i < rb.bsize(); i += 4 {
		sum += rb.Read32(i)
	}
	assert.Equal(t, uint32(0), sum)
}

func TestFormatAllocatesMetadataBlocks(t *testing.T) {

	v := ddVolume(t, OFS)
	a := v.Allocator()

	// Boot blocks are permanently allocated and outside the bitmap
	assert.True(t, a.IsAllocated(0))
	assert.True(t, a.IsAllocated(1))

	// Root and bitmap block are marked in the bitmap
	assert.True(t, a.IsAllocated(880))
	assert.True(t, a.IsAllocated(881))

	// Everything else is free
	assert.True(t, a.IsUnallocated(2))
	assert.True(t, a.IsUnallocated(1759))
	assert.Equal(t, 1760-4, a.NumUnallocated())
}

func TestMountRediscoversVolume(t *testing.T) {

	dev := NewRAMDevice(1760, 512)
	v, err := FormatVolume(dev, FFS, "Workbench")
	assert.NoError(t, err)

	root, _ := v.Root()
	_, err = v.CreateDir(root, "Prefs")
	assert.NoError(t, err)
	assert.NoError(t, v.Flush())

	mounted, err := Mount(dev)
	assert.NoError(t, err)
	assert.Equal(t, FFS, mounted.DOS)
	assert.Equal(t, "Workbench", mounted.Name())
	assert.True(t, mounted.Exists("Prefs"))
}

func TestMountRejectsUnformattedDevice(t *testing.T) {

	dev := NewRAMDevice(1760, 512)
	_, err := Mount(dev)
	assert.ErrorIs(t, err, ErrUnformatted)
}

func TestSeekSpecialNames(t *testing.T) {

	v := ddVolume(t, OFS)
	root, _ := v.Root()

	sub, err := v.CreateDir(root, "Devs")
	assert.NoError(t, err)
	assert.NoError(t, v.Cd("Devs"))

	b, err := v.Seek(".")
	assert.NoError(t, err)
	assert.Equal(t, sub.Nr, b.Nr)

	b, err = v.Seek("..")
	assert.NoError(t, err)
	assert.Equal(t, root.Nr, b.Nr)

	b, err = v.Seek("/")
	assert.NoError(t, err)
	assert.Equal(t, root.Nr, b.Nr)

	// A volume marker anchors at the root
	b, err = v.Seek("Test:Devs")
	assert.NoError(t, err)
	assert.Equal(t, sub.Nr, b.Nr)
}

func TestSeekIsCaseInsensitive(t *testing.T) {

	v := ddVolume(t, OFS)
	root, _ := v.Root()

	_, err := v.CreateFile(root, "Startup-Sequence", []byte("echo"))
	assert.NoError(t, err)

	assert.True(t, v.Exists("STARTUP-SEQUENCE"))
	assert.True(t, v.Exists("startup-sequence"))
	assert.False(t, v.Exists("startup"))
}

func TestFileRoundTripOFS(t *testing.T) {
	testFileRoundTrip(t, OFS)
}

func TestFileRoundTripFFS(t *testing.T) {
	testFileRoundTrip(t, FFS)
}

func testFileRoundTrip(t *testing.T, dos Format) {

	v := ddVolume(t, dos)
	root, _ := v.Root()

	// Large enough to require file list blocks
	data := make([]byte, 100*488)
	for i := range data {
		data[i] = byte(i * 13)
	}

	header, err := v.CreateFile(root, "bigfile", data)
	assert.NoError(t, err)
	assert.Greater(t, len(v.CollectListBlocks(header)), 0)

	out, err := v.ReadFile(header)
	assert.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFlushIsExplicit(t *testing.T) {

	dev := NewRAMDevice(1760, 512)
	v, err := FormatVolume(dev, OFS, "Lazy")
	assert.NoError(t, err)

	// Nothing reached the device yet: the cache is write-back
	raw := make([]byte, 512)
	assert.NoError(t, dev.ReadBlock(raw, 880))
	allZero := true
	for _, b := range raw {
		if b != 0 {
			allZero = false
			break
		}
	}
	assert.True(t, allZero)

	assert.NoError(t, v.Flush())
	assert.NoError(t, dev.ReadBlock(raw, 880))
	assert.Equal(t, byte(tHeader), raw[3])
}
