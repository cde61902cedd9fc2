package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// EventSlot indexes one entry of the scheduler's fixed slot set. Slot order
// defines service priority: when several slots trigger on the same cycle,
// the lowest slot index is serviced first. The register change slot comes
// first so that delayed register writes take effect before any bus
// allocating event of the same cycle.
type EventSlot int

const (
	// Primary slots
	SlotREG EventSlot = iota
	SlotCIAA
	SlotCIAB
	SlotBPL
	SlotDAS
	SlotCOP
	SlotBLT
	SlotRAS
	SlotSEC

	// Secondary slots
	SlotIRQ
	SlotVBL
	SlotDSK
	SlotTER

	// Tertiary slots
	SlotDC0
	SlotDC1
	SlotDC2
	SlotDC3
	SlotHD0
	SlotHD1
	SlotHD2
	SlotHD3
	SlotINS

	SlotCount
)

func (s EventSlot) isSecondary() bool { return s > SlotSEC && s <= SlotTER }
func (s EventSlot) isTertiary() bool  { return s > SlotTER && s < SlotCount }

func (s EventSlot) String() string {
	names := [...]string{
		"REG", "CIAA", "CIAB", "BPL", "DAS", "COP", "BLT", "RAS", "SEC",
		"IRQ", "VBL", "DSK", "TER",
		"DC0", "DC1", "DC2", "DC3", "HD0", "HD1", "HD2", "HD3", "INS",
	}
	if s < 0 || s >= SlotCount {
		return "???"
	}
	return names[s]
}

// EventID identifies the pending event inside a slot. Zero means the slot
// is empty. Bitplane event ids reserve their two lowest bits for the
// drawing flags.
type EventID int

const (
	EventNone EventID = 0

	// Drawing flags, OR-ed into bitplane events
	DrawOdd  EventID = 0b01
	DrawEven EventID = 0b10
	DrawBoth EventID = 0b11
)

// Bitplane events (SlotBPL)
const (
	BplL1 EventID = (iota + 1) << 2
	BplL2
	BplL3
	BplL4
	BplL5
	BplL6
	BplL1Mod
	BplL2Mod
	BplL3Mod
	BplL4Mod
	BplL5Mod
	BplL6Mod
	BplH1
	BplH2
	BplH3
	BplH4
	BplH1Mod
	BplH2Mod
	BplH3Mod
	BplH4Mod
	BplEOL
)

// Disk, audio, sprite events (SlotDAS)
const (
	DasRefresh EventID = iota + 1
	DasD0
	DasD1
	DasD2
	DasA0
	DasA1
	DasA2
	DasA3
	DasS0_1
	DasS0_2
	DasS1_1
	DasS1_2
	DasS2_1
	DasS2_2
	DasS3_1
	DasS3_2
	DasS4_1
	DasS4_2
	DasS5_1
	DasS5_2
	DasS6_1
	DasS6_2
	DasS7_1
	DasS7_2
	DasSDMA
	DasTick
)

// Copper events (SlotCOP)
const (
	CopRequestDMA EventID = iota + 1
	CopWakeup
	CopWakeupBlit
	CopFetch
	CopMove
	CopWaitOrSkip
	CopWait1
	CopWait2
	CopSkip1
	CopSkip2
	CopJmp1
	CopJmp2
	CopVBlank
)

// Blitter events (SlotBLT)
const (
	BltStrt1 EventID = iota + 1
	BltStrt2
	BltCopySlow
	BltCopyFake
	BltLineSlow
	BltLineFake
)

// Remaining event ids
const (
	RegChange EventID = iota + 1
	CIAExecute
	CIAWakeup
	RasHsync
	SecTrigger
	TerTrigger
	IrqCheck
	VblStrobe0
	VblStrobe1
	VblStrobe2
	DskRotate
	DchInsert
	DchEject
	HdrIdle
	InsInspect
)

// never marks an empty slot trigger.
const never = int64(0x7FFFFFFFFFFFFFFF)
