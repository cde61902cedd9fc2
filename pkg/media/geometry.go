package media

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"
	"sort"
)

// Geometry limits for hard drive images.
const (
	cMin = 16
	cMax = 1024
	hMin = 1
	hMax = 16
	sMin = 16
	sMax = 63

	maxHdrBytes = 504 * 1024 * 1024
)

// Geometry describes the layout of a hard drive.
type Geometry struct {
	Cylinders int
	Heads     int
	Sectors   int
	BSize     int
}

// NumBlocks returns the total block count.
func (g Geometry) NumBlocks() int {
	return g.Cylinders * g.Heads * g.Sectors
}

// NumBytes returns the total capacity in bytes.
func (g Geometry) NumBytes() int {
	return g.NumBlocks() * g.BSize
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d - %d - %d", g.Cylinders, g.Heads, g.Sectors)
}

// Typical number of sectors per track
// https://www.win.tue.nl/~aeb/linux/hdtypes/hdtypes-4.html
var sectorCounts = []int{
	16, 17, 24, 26, 27, 28, 29, 32, 34,
	35, 36, 38, 47, 50, 51, 52, 53, 55,
	56, 59, 60, 61, 62, 63,
}

// DriveGeometries computes all geometries compatible with an image of
// the given size, sorted by cylinder count.
func DriveGeometries(capacity int) []Geometry {

	var result []Geometry

	for h := hMin; h <= hMax; h++ {
		for _, s := range sectorCounts {

			cylSize := h * s * 512
			if capacity%cylSize != 0 {
				continue
			}

			c := capacity / cylSize
			if c > cMax {
				continue
			}
			if c < cMin && h > 1 {
				continue
			}

			result = append(result, Geometry{c, h, s, 512})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Cylinders < result[j].Cylinders
	})

	return result
}

// Unique reports whether exactly one geometry fits this capacity.
func (g Geometry) Unique() bool {
	return len(DriveGeometries(g.NumBytes())) == 1
}

// CheckCompatibility validates the geometry against the drive limits.
func (g Geometry) CheckCompatibility() error {

	if g.NumBytes() > maxHdrBytes {
		return ErrHdrTooLarge
	}
	if g.BSize != 512 {
		return ErrHdrInvalidBsize
	}
	if g.Cylinders > cMax {
		return ErrHdrInvalidGeometry
	}
	if g.Cylinders < cMin && g.Heads > 1 {
		return ErrHdrInvalidGeometry
	}
	if g.Heads < hMin || g.Heads > hMax {
		return ErrHdrInvalidGeometry
	}
	if g.Sectors < sMin || g.Sectors > sMax {
		return ErrHdrInvalidGeometry
	}

	return nil
}

// PartitionDescriptor describes one partition of a hard drive image.
type PartitionDescriptor struct {
	Name     string
	Flags    uint32
	LowerCyl int
	UpperCyl int
	DosType  uint32

	Geometry Geometry
}

// Check validates the partition bounds against the drive geometry.
func (p PartitionDescriptor) Check(g Geometry) error {
	if p.LowerCyl > p.UpperCyl || p.UpperCyl >= g.Cylinders {
		return ErrHdrInvalidGeometry
	}
	return nil
}

// DriverDescriptor describes a loadable filesystem driver embedded in a
// hard drive image. The driver code is scattered over a chain of
// segment list blocks.
type DriverDescriptor struct {
	DosType    uint32
	DosVersion uint32
	Blocks     []uint32
}
