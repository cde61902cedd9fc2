package floppy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMFMRoundTrip(t *testing.T) {

	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
	}

	enc := make([]byte, 512)
	dec := make([]byte, 256)

	EncodeMFM(enc, src)
	DecodeMFM(dec, enc)

	assert.Equal(t, src, dec)
}

func TestOddEvenRoundTrip(t *testing.T) {

	src := []byte{0x00, 0xFF, 0x55, 0xAA, 0x12, 0x34, 0xDE, 0xAD}
	enc := make([]byte, 2*len(src))
	dec := make([]byte, len(src))

	EncodeOddEven(enc, src)
	DecodeOddEven(dec, enc)

	assert.Equal(t, src, dec)
}

func TestAddClockBitsPreservesDataBits(t *testing.T) {

	for v := 0; v < 256; v++ {
		for p := 0; p < 256; p++ {
			out := AddClockBits(byte(v), byte(p))
			assert.Equal(t, byte(v)&0x55, out&0x55)
		}
	}
}

func TestAddClockBitsRule(t *testing.T) {

	// A clock bit is set iff both neighboring data bits are clear
	assert.Equal(t, byte(0xAA), AddClockBits(0x00, 0x00))

	// A set data bit clears the adjacent clock bits
	out := AddClockBits(0x40, 0x00)
	assert.Equal(t, byte(0x40), out&0x55)
	assert.Equal(t, byte(0x0A), out&0xAA&0x1F)
}

func TestEncodeDecodeTrack(t *testing.T) {

	disk, err := NewDisk(Inch35, DD)
	assert.NoError(t, err)

	data := make([]byte, SectorsPerDD*SectorSize)
	for i := range data {
		data[i] = byte(i * 7)
	}

	disk.EncodeTrack(3, data, SectorsPerDD)

	out := make([]byte, SectorsPerDD*SectorSize)
	err = disk.DecodeTrack(3, out, SectorsPerDD)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data, out))
}

func TestTrackLayout(t *testing.T) {

	disk, err := NewDisk(Inch35, DD)
	assert.NoError(t, err)
	assert.Equal(t, TrackSizeDD, disk.TrackLength(0))

	data := make([]byte, SectorsPerDD*SectorSize)
	disk.EncodeTrack(0, data, SectorsPerDD)

	// Every sector starts with two sync words at offset 4
	track := disk.Track(0)
	for s := 0; s < SectorsPerDD; s++ {
		p := track[s*MFMSectorSize:]
		assert.Equal(t, []byte{0x44, 0x89, 0x44, 0x89}, p[4:8], "sector %d", s)
	}
}

func TestUnformattedDiskCarriesMagicWord(t *testing.T) {

	disk, err := NewDisk(Inch35, DD)
	assert.NoError(t, err)

	for tr := 0; tr < disk.NumTracks(); tr++ {
		assert.Equal(t, byte(0x44), disk.ReadByte(tr, 0))
		assert.Equal(t, byte(0xA2), disk.ReadByte(tr, 1))
	}
}

func TestChecksumTracksModification(t *testing.T) {

	disk, err := NewDisk(Inch35, DD)
	assert.NoError(t, err)

	before := disk.Checksum()
	disk.WriteByte(0x12, 0, 100)
	assert.True(t, disk.Modified)
	assert.NotEqual(t, before, disk.Checksum())
}
