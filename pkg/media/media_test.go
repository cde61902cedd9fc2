package media

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retrovault/amiga/pkg/floppy"
	"github.com/retrovault/amiga/pkg/fs"
)

func TestADFSizes(t *testing.T) {

	adf, err := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)
	assert.Equal(t, 901120, len(adf.Data))
	assert.Equal(t, 80, adf.NumCyls())
	assert.Equal(t, 11, adf.NumSectors())

	adf, err = NewADF(floppy.Inch35, floppy.HD)
	assert.NoError(t, err)
	assert.Equal(t, 1802240, len(adf.Data))
	assert.Equal(t, 22, adf.NumSectors())

	// 81..84 cylinder images are accepted
	_, err = ReadADF(bytes.NewReader(make([]byte, 82*bytesPerCyl)))
	assert.NoError(t, err)

	// Arbitrary sizes are not
	_, err = ReadADF(bytes.NewReader(make([]byte, 500000)))
	assert.ErrorIs(t, err, ErrDiskInvalidLayout)
}

func TestFormatFreshDiskOnADF(t *testing.T) {

	// Insert a fresh 901120 byte disk and format it
	adf, err := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)

	v, err := fs.FormatVolume(adf, fs.OFS, "Test")
	assert.NoError(t, err)
	assert.NoError(t, v.Flush())

	// The root block checksum makes the longword sum vanish
	root := make([]byte, 512)
	assert.NoError(t, adf.ReadBlock(root, 880))

	var sum uint32
	for i := 0; i < 512; i += 4 {
		sum += binary.BigEndian.Uint32(root[i:])
	}
	assert.Equal(t, uint32(0), sum)

	// Blocks 0, 1, root and bitmap are allocated
	a := v.Allocator()
	assert.True(t, a.IsAllocated(0))
	assert.True(t, a.IsAllocated(1))
	assert.True(t, a.IsAllocated(880))
	assert.True(t, a.IsAllocated(881))
	assert.Equal(t, 4, a.NumAllocated())
}

func TestADFEncodeDecodeRoundTrip(t *testing.T) {

	adf, err := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)
	for i := range adf.Data {
		adf.Data[i] = byte(i * 31)
	}

	disk, err := floppy.NewDisk(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)
	assert.NoError(t, adf.EncodeDisk(disk))

	out, err := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)
	assert.NoError(t, out.DecodeDisk(disk))

	assert.True(t, bytes.Equal(adf.Data, out.Data))
}

func TestHDFRoundTripThroughFile(t *testing.T) {

	dir, err := ioutil.TempDir("", "hdf")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "test.hdf")

	// A ~10 MiB image with a legal geometry (512 sectors per track would
	// be out of range); reloading it without an RDB derives the geometry
	// from the size
	hdf, err := NewHDF(Geometry{Cylinders: 320, Heads: 1, Sectors: 63, BSize: 512})
	assert.NoError(t, err)

	// Write a known pattern at LBA 100
	pattern := make([]byte, 8192)
	for i := range pattern {
		pattern[i] = byte(i % 253)
	}
	for i := 0; i < len(pattern)/512; i++ {
		assert.NoError(t, hdf.WriteBlock(pattern[i*512:(i+1)*512], uint32(100+i)))
	}

	assert.NoError(t, hdf.Save(path))

	// Reattach from the same path and verify the bytes
	loaded, err := OpenHDF(path)
	assert.NoError(t, err)

	got := make([]byte, 8192)
	for i := 0; i < len(got)/512; i++ {
		assert.NoError(t, loaded.ReadBlock(got[i*512:(i+1)*512], uint32(100+i)))
	}
	assert.True(t, bytes.Equal(pattern, got))
}

func TestHDFGeometryValidation(t *testing.T) {

	_, err := NewHDF(Geometry{Cylinders: 8, Heads: 4, Sectors: 32, BSize: 512})
	assert.ErrorIs(t, err, ErrHdrInvalidGeometry)

	_, err = NewHDF(Geometry{Cylinders: 64, Heads: 2, Sectors: 32, BSize: 1024})
	assert.ErrorIs(t, err, ErrHdrInvalidBsize)

	// One cylinder more than the largest legal geometry (504 MiB)
	_, err = NewHDF(Geometry{Cylinders: 1025, Heads: 16, Sectors: 63, BSize: 512})
	assert.ErrorIs(t, err, ErrHdrTooLarge)
}

func buildEADF(tracks int, raw map[int]EADFTrack) []byte {

	var buf bytes.Buffer
	buf.WriteString(eadfMagic)
	buf.Write([]byte{0, 0})
	binary.Write(&buf, binary.BigEndian, uint16(tracks))

	std := EADFTrack{Type: 0, AvailableBytes: 11 * 512, UsedBits: 11 * 512 * 8}

	layout := make([]EADFTrack, tracks)
	for t := 0; t < tracks; t++ {
		layout[t] = std
		if tr, ok := raw[t]; ok {
			layout[t] = tr
		}
	}

	for _, tr := range layout {
		buf.Write([]byte{0, 0})
		binary.Write(&buf, binary.BigEndian, uint16(tr.Type))
		binary.Write(&buf, binary.BigEndian, uint32(tr.AvailableBytes))
		binary.Write(&buf, binary.BigEndian, uint32(tr.UsedBits))
	}
	for _, tr := range layout {
		buf.Write(make([]byte, tr.AvailableBytes))
	}

	return buf.Bytes()
}

func TestEADFParsesRawTrackOffsets(t *testing.T) {

	raw := map[int]EADFTrack{
		80: {Type: 1, AvailableBytes: 0x1800, UsedBits: 0xC000},
	}
	data := buildEADF(168, raw)

	e, err := ReadEADF(bytes.NewReader(data))
	assert.NoError(t, err)
	assert.Equal(t, 168, e.StoredTracks())
	assert.Equal(t, 84, e.NumCyls())

	// The payload of track 80 starts behind the header plus the sizes
	// of all earlier tracks
	expected := 12 + 168*12 + 80*11*512
	assert.Equal(t, expected, e.trackDataOffset(80))

	view, err := e.TrackBits(80)
	assert.NoError(t, err)
	assert.Equal(t, 0xC000, view.Bits)
}

func TestEADFRejectsCorruptImages(t *testing.T) {

	// Legacy magic
	data := buildEADF(160, nil)
	copy(data, eadfLegacyMagic)
	_, err := ReadEADF(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtFactor5)

	// Track count out of range
	data = buildEADF(160, nil)
	binary.BigEndian.PutUint16(data[10:], 100)
	_, err = ReadEADF(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtCorrupted)

	// Used bits beyond the stored bytes
	data = buildEADF(160, map[int]EADFTrack{3: {Type: 1, AvailableBytes: 16, UsedBits: 200}})
	_, err = ReadEADF(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtCorrupted)

	// Bit counts must be byte aligned
	data = buildEADF(160, map[int]EADFTrack{3: {Type: 1, AvailableBytes: 16, UsedBits: 99}})
	_, err = ReadEADF(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtIncompatible)

	// Unsupported track type
	data = buildEADF(160, map[int]EADFTrack{3: {Type: 2, AvailableBytes: 16, UsedBits: 96}})
	_, err = ReadEADF(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrExtIncompatible)
}

func TestADZRoundTrip(t *testing.T) {

	adf, err := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, err)
	adf.Data[100] = 0x42

	var buf bytes.Buffer
	assert.NoError(t, WriteADZ(adf, &buf))

	loaded, err := ReadADZ(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	assert.Equal(t, byte(0x42), loaded.Data[100])
}

func TestAboutRecognizesFormats(t *testing.T) {

	dir, err := ioutil.TempDir("", "about")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		assert.NoError(t, ioutil.WriteFile(p, data, 0644))
		return p
	}

	adf := write("a.adf", make([]byte, adfSizeDD))
	kind, err := About(adf)
	assert.NoError(t, err)
	assert.Equal(t, TypeADF, kind)

	eadf := write("b.adf", buildEADF(160, nil))
	kind, err = About(eadf)
	assert.NoError(t, err)
	assert.Equal(t, TypeEADF, kind)

	var buf bytes.Buffer
	a, _ := NewADF(floppy.Inch35, floppy.DD)
	assert.NoError(t, WriteADZ(a, &buf))
	adz := write("c.adz", buf.Bytes())
	kind, err = About(adz)
	assert.NoError(t, err)
	assert.Equal(t, TypeADZ, kind)

	hdf := write("d.hdf", make([]byte, 64*16*63*512))
	kind, err = About(hdf)
	assert.NoError(t, err)
	assert.Equal(t, TypeHDF, kind)
}

func TestHDFWithRDBPartitions(t *testing.T) {

	// Build a minimal RDB image: RDSK in block 0, one PART in block 1
	data := make([]byte, 64*16*63*512)

	be := binary.BigEndian
	rdsk := data[0:512]
	copy(rdsk, rdbMagicRDSK)
	be.PutUint32(rdsk[28:], 1)          // first partition block
	be.PutUint32(rdsk[32:], 0xFFFFFFFF) // no filesystem headers
	be.PutUint32(rdsk[64:], 64)         // cylinders
	be.PutUint32(rdsk[68:], 63)         // sectors
	be.PutUint32(rdsk[72:], 16)         // heads

	part := data[512:1024]
	copy(part, rdbMagicPART)
	be.PutUint32(part[16:], 0xFFFFFFFF) // no next partition
	part[36] = 3
	copy(part[37:], "DH0")
	env := part[128:]
	be.PutUint32(env[36:], 2)  // lower cylinder
	be.PutUint32(env[40:], 63) // upper cylinder

	hdf, err := ReadHDF(bytes.NewReader(data))
	assert.NoError(t, err)

	assert.Equal(t, Geometry{64, 16, 63, 512}, hdf.Geometry)
	assert.Len(t, hdf.Partitions, 1)
	assert.Equal(t, "DH0", hdf.Partitions[0].Name)
	assert.Equal(t, 2, hdf.Partitions[0].LowerCyl)

	dev, err := hdf.PartitionDevice(0)
	assert.NoError(t, err)
	assert.Equal(t, uint32(62*16*63), dev.Blocks())
}

func TestWriteThroughMirrorsWrites(t *testing.T) {

	dir, err := ioutil.TempDir("", "wt")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "dh0.img")

	g := Geometry{Cylinders: 64, Heads: 2, Sectors: 32, BSize: 512}
	hd, err := NewHardDrive(0, g)
	assert.NoError(t, err)

	assert.NoError(t, hd.EnableWriteThrough(path))
	defer hd.DisableWriteThrough()

	// A second drive cannot claim the same storage file
	hd2, err := NewHardDrive(1, g)
	assert.NoError(t, err)
	assert.ErrorIs(t, hd2.EnableWriteThrough(path), ErrWtBlocked)

	// Writes are mirrored into the file
	block := make([]byte, 512)
	for i := range block {
		block[i] = 0x5A
	}
	assert.Equal(t, IOErrOK, hd.Write(block, 512))

	onDisk, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(block, onDisk[512:1024]))
}

func TestHardDriveIOErrors(t *testing.T) {

	g := Geometry{Cylinders: 64, Heads: 2, Sectors: 32, BSize: 512}
	hd, err := NewHardDrive(0, g)
	assert.NoError(t, err)

	buf := make([]byte, 100)
	assert.Equal(t, IOErrBadLength, hd.Read(buf, 0))

	buf = make([]byte, 512)
	assert.Equal(t, IOErrBadAddress, hd.Read(buf, 100))
	assert.Equal(t, IOErrBadAddress, hd.Read(buf, g.NumBytes()))
}

func TestHardDriveFormatAndMount(t *testing.T) {

	g := Geometry{Cylinders: 64, Heads: 2, Sectors: 32, BSize: 512}
	hd, err := NewHardDrive(0, g)
	assert.NoError(t, err)

	assert.NoError(t, hd.Format(fs.FFS, "System"))

	v, err := hd.Mount()
	assert.NoError(t, err)
	assert.Equal(t, "System", v.Name())
	assert.Equal(t, fs.FFS, v.DOS)
}

func TestIdentifyBootBlock(t *testing.T) {

	block := make([]byte, 512)
	info := IdentifyBootBlock(block)
	assert.Equal(t, "NDOS", info.DosType)

	copy(block, "DOS")
	block[3] = 1
	info = IdentifyBootBlock(block)
	assert.Equal(t, "FFS", info.DosType)

	block[20] = 0x4E // boot code present
	info = IdentifyBootBlock(block)
	assert.Contains(t, info.Name, "boot block")
}

func TestDriveGeometries(t *testing.T) {

	// A capacity matched by several geometries of the same size
	g := Geometry{Cylinders: 320, Heads: 1, Sectors: 63, BSize: 512}
	geos := DriveGeometries(g.NumBytes())
	assert.NotEmpty(t, geos)

	for _, geo := range geos {
		assert.Equal(t, g.NumBytes(), geo.NumBytes())
	}
}
