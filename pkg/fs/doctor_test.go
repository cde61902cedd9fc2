package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func populatedVolume(t *testing.T) *Volume {

	v := ddVolume(t, OFS)
	root, _ := v.Root()

	devs, err := v.CreateDir(root, "Devs")
	assert.NoError(t, err)
	_, err = v.CreateDir(devs, "Keymaps")
	assert.NoError(t, err)

	_, err = v.CreateFile(root, "Startup-Sequence", []byte("LoadWB\nEndCLI\n"))
	assert.NoError(t, err)
	_, err = v.CreateFile(devs, "system-configuration", make([]byte, 1500))
	assert.NoError(t, err)

	return v
}

func TestXrayCleanVolume(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	assert.Equal(t, 0, d.XrayAll(false))
	assert.Equal(t, 0, d.XrayBitmap(false))
}

func TestXrayDetectsCorruption(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	// Corrupt the root block type field
	rb, _ := v.Root()
	rb.Write32(0, 0xDEAD)

	assert.Greater(t, d.XrayAll(false), 0)
	assert.Contains(t, d.Diagnosis.BlockErrors, v.RootBlock)
}

func TestRectifyThenXrayIsClean(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	rb, _ := v.Root()
	rb.Write32(0, 0xDEAD)
	rb.Write32(20, 0x1234) // bad checksum

	assert.NoError(t, d.Rectify(false))
	assert.Equal(t, 0, d.XrayAll(false))
}

func TestXrayBitmapFindsAnomalies(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	// Free a block that is in use
	root, _ := v.Root()
	sub, err := v.SeekName(root, "Devs")
	assert.NoError(t, err)
	v.Allocator().MarkAsFree(sub.Nr)

	// Allocate a block that is not reachable
	v.Allocator().MarkAsAllocated(1700)

	assert.Equal(t, 2, d.XrayBitmap(false))
	assert.Contains(t, d.Diagnosis.UsedButUnallocated, sub.Nr)
	assert.Contains(t, d.Diagnosis.UnusedButAllocated, uint32(1700))
}

func TestRectifyBitmapRestoresConsistency(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	root, _ := v.Root()
	sub, _ := v.SeekName(root, "Devs")
	v.Allocator().MarkAsFree(sub.Nr)
	v.Allocator().MarkAsAllocated(1700)

	d.RectifyBitmap(false)
	assert.Equal(t, 0, d.XrayBitmap(false))
}

func TestHealthMapMarksCorruptBlocks(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	rb, _ := v.Root()
	rb.Write32(0, 0xDEAD)
	d.XrayAll(false)

	buffer := make([]byte, 100)
	d.CreateHealthMap(buffer)

	pos := int(v.RootBlock) * 99 / (int(v.Blocks()) - 1)
	assert.Equal(t, byte(2), buffer[pos])
}

func TestUsageMapCoversVolume(t *testing.T) {

	v := populatedVolume(t)
	d := NewDoctor(v)

	buffer := make([]byte, 64)
	d.CreateUsageMap(buffer)

	// No cell remains unset
	for i, b := range buffer {
		assert.NotEqual(t, byte(BlockUnknown), b, "cell %d", i)
	}
}
