package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/retrovault/amiga/pkg/floppy"
)

// Extended ADF layout: an eight byte magic, two reserved bytes and the
// track count, followed by one twelve byte header per track and the
// track payloads.
const (
	eadfMagic       = "UAE-1ADF"
	eadfHeaderSize  = 12
	eadfTrackOffset = 12
)

// legacy extended ADF magic; such files use sector-offset compression
// and are rejected
const eadfLegacyMagic = "UAE--ADF"

// EADFTrack is the header of one stored track.
type EADFTrack struct {
	Type           int // 0 = standard, 1 = raw MFM
	AvailableBytes int
	UsedBits       int
}

// BitView is a window into a raw bit stream.
type BitView struct {
	Data []byte
	Bits int
}

// EADFFile is an extended ADF image: a mix of standard sector tracks
// and raw MFM tracks.
type EADFFile struct {
	Data   []byte
	Tracks []EADFTrack
}

// ReadEADF parses an extended ADF image.
func ReadEADF(r io.Reader) (*EADFFile, error) {

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	e := &EADFFile{Data: data}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenEADF loads an extended ADF from a file.
func OpenEADF(path string) (*EADFFile, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadEADF(f)
}

func (e *EADFFile) validate() error {

	if len(e.Data) < eadfTrackOffset {
		return ErrExtCorrupted
	}

	if bytes.HasPrefix(e.Data, []byte(eadfLegacyMagic)) {
		return ErrExtFactor5
	}
	if !bytes.HasPrefix(e.Data, []byte(eadfMagic)) {
		return ErrExtCorrupted
	}

	numTracks := int(binary.BigEndian.Uint16(e.Data[10:12]))
	if numTracks < 160 || numTracks > 168 {
		return fmt.Errorf("%d tracks: %w", numTracks, ErrExtCorrupted)
	}

	if len(e.Data) < e.proposedHeaderSize(numTracks) {
		return ErrExtCorrupted
	}

	e.Tracks = make([]EADFTrack, numTracks)
	for t := 0; t < numTracks; t++ {

		hdr := e.Data[eadfTrackOffset+t*eadfHeaderSize:]

		track := EADFTrack{
			Type:           int(binary.BigEndian.Uint16(hdr[2:4])),
			AvailableBytes: int(binary.BigEndian.Uint32(hdr[4:8])),
			UsedBits:       int(binary.BigEndian.Uint32(hdr[8:12])),
		}

		if track.Type != 0 && track.Type != 1 {
			return fmt.Errorf("track %d type %d: %w", t, track.Type, ErrExtIncompatible)
		}
		if track.Type == 0 && track.UsedBits != 11*512*8 {
			return fmt.Errorf("track %d: %w", t, ErrExtCorrupted)
		}
		if track.UsedBits > track.AvailableBytes*8 {
			return fmt.Errorf("track %d: %w", t, ErrExtCorrupted)
		}
		if track.UsedBits%8 != 0 {
			return fmt.Errorf("track %d: bit count is not byte aligned: %w", t, ErrExtIncompatible)
		}

		e.Tracks[t] = track
	}

	if len(e.Data) != e.proposedFileSize() {
		return ErrExtCorrupted
	}

	return nil
}

func (e *EADFFile) proposedHeaderSize(numTracks int) int {
	return eadfTrackOffset + numTracks*eadfHeaderSize
}

func (e *EADFFile) proposedFileSize() int {

	size := e.proposedHeaderSize(len(e.Tracks))
	for _, t := range e.Tracks {
		size += t.AvailableBytes
	}
	return size
}

// StoredTracks returns the number of stored tracks.
func (e *EADFFile) StoredTracks() int { return len(e.Tracks) }

// NumCyls returns the number of cylinders.
func (e *EADFFile) NumCyls() int { return (len(e.Tracks) + 1) / 2 }

// NumHeads returns the number of disk sides.
func (e *EADFFile) NumHeads() int { return 2 }

// Density infers the recording density from the largest stored track.
func (e *EADFFile) Density() floppy.Density {

	largest := 0
	for _, t := range e.Tracks {
		if t.UsedBits > largest {
			largest = t.UsedBits
		}
	}

	if largest < 16000*8 {
		return floppy.DD
	}
	return floppy.HD
}

// trackDataOffset returns the payload offset of track t.
func (e *EADFFile) trackDataOffset(t int) int {

	offset := e.proposedHeaderSize(len(e.Tracks))
	for i := 0; i < t; i++ {
		offset += e.Tracks[i].AvailableBytes
	}
	return offset
}

// TrackData returns the raw payload of track t.
func (e *EADFFile) TrackData(t int) []byte {
	off := e.trackDataOffset(t)
	return e.Data[off : off+e.Tracks[t].AvailableBytes]
}

// TrackBits returns the bit stream of track t. Standard tracks are
// MFM-encoded first; raw tracks are returned as stored.
func (e *EADFFile) TrackBits(t int) (BitView, error) {

	track := e.Tracks[t]

	if track.Type == 1 {
		return BitView{Data: e.TrackData(t), Bits: track.UsedBits}, nil
	}

	// Standard track: run the sector encoder over the stored data
	disk, err := floppy.NewDisk(floppy.Inch35, e.Density())
	if err != nil {
		return BitView{}, err
	}

	numSectors := floppy.SectorsPerDD
	if e.Density() == floppy.HD {
		numSectors = floppy.SectorsPerHD
	}

	disk.EncodeTrack(t, e.TrackData(t)[:numSectors*512], numSectors)
	return BitView{Data: disk.Track(t), Bits: track.UsedBits}, nil
}

// EncodeDisk transfers the image onto a floppy disk.
func (e *EADFFile) EncodeDisk(disk *floppy.Disk) error {

	if disk.Density != e.Density() {
		return ErrDiskIncompatible
	}

	numSectors := floppy.SectorsPerDD
	if e.Density() == floppy.HD {
		numSectors = floppy.SectorsPerHD
	}

	for t := 0; t < e.StoredTracks(); t++ {

		track := e.Tracks[t]

		if track.Type == 0 {
			disk.EncodeTrack(t, e.TrackData(t)[:numSectors*512], numSectors)
			continue
		}

		// Raw track: copy the bit stream verbatim
		n := track.UsedBits / 8
		for i := 0; i < n; i++ {
			disk.WriteByte(e.TrackData(t)[i], t, i)
		}
		disk.SetTrackLength(t, n)
	}

	return nil
}
