package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"github.com/retrovault/amiga/pkg/beam"
)

// PAL color clock frequency in Hz. All Cycle quantities count color
// clocks; one DMA cycle covers four of them.
const PALClockFrequency = 3546895

// MSec converts milliseconds to color clock cycles.
func MSec(n int64) int64 { return n * PALClockFrequency / 1000 }

// USec converts microseconds to color clock cycles.
func USec(n int64) int64 { return n * PALClockFrequency / 1000000 }

// BusOwner identifies the client a DMA cycle was granted to.
type BusOwner int

const (
	BusNone BusOwner = iota
	BusRefresh
	BusDisk
	BusAud0
	BusAud1
	BusAud2
	BusAud3
	BusSprite0
	BusSprite1
	BusSprite2
	BusSprite3
	BusSprite4
	BusSprite5
	BusSprite6
	BusSprite7
	BusBpl1
	BusBpl2
	BusBpl3
	BusBpl4
	BusBpl5
	BusBpl6
	BusCopper
	BusBlitter
	BusCPU
	BusBlocked

	BusOwnerCount
)

// Revision selects the emulated Agnus chip. The revision decides the DMA
// pointer mask and the ECS id bits.
type Revision int

const (
	AgnusOCS Revision = iota // 8367
	AgnusECS1MB              // 8372
	AgnusECS2MB              // 8375
)

// PtrMask returns the DMA pointer mask of the revision.
func (r Revision) PtrMask() uint32 {
	switch r {
	case AgnusOCS:
		return 0x07FFFF
	case AgnusECS1MB:
		return 0x0FFFFF
	case AgnusECS2MB:
		return 0x1FFFFF
	}
	panic("invalid agnus revision")
}

// IDBits returns the revision bits read back through VPOSR.
func (r Revision) IDBits() uint16 {
	if r == AgnusOCS {
		return 0x0000
	}
	return 0x2000
}

// Agnus owns the chip bus. Every DMA client obtains its per-cycle bus
// grant here, and the per-line event tables of the sequencer decide which
// client is probed on which cycle.
type Agnus struct {
	amiga *Amiga

	Revision Revision

	// The master clock, in color clocks
	Clock int64

	// The current beam position
	Pos beam.Beam

	Sched *Scheduler
	Seq   *Sequencer

	// Per-cycle bus bookkeeping of the current line
	BusOwner [HPosCnt + 1]BusOwner
	BusValue [HPosCnt + 1]uint16

	// Bus usage statistics, by owner
	Usage [BusOwnerCount]int64

	// Registers
	DMACON         uint16
	dmaconInitial  uint16
	BPLCON0        uint16
	bplcon0Initial uint16
	BPLCON1        uint16
	BPL1MOD        int16
	BPL2MOD        int16

	// DMA pointers
	DSKPT uint32
	AudPT [4]uint32
	BplPT [6]uint32
	SprPT [8]uint32
	AudLC [4]uint32

	// Scroll values derived from BPLCON1
	scrollOdd  int64
	scrollEven int64

	// True if bitplane DMA takes place in the current line
	bplDmaLine bool

	// The bus-stolen line throttling the blitter when BLTPRI is clear
	BLS bool

	// Pending recompute work for the next hsync
	hsyncRecomputeBpl bool
	hsyncRecomputeDas bool

	changes regChangeRecorder
}

func newAgnus(amiga *Amiga, rev Revision) *Agnus {
	a := &Agnus{
		amiga:    amiga,
		Revision: rev,
		Sched:    NewScheduler(),
		Seq:      NewSequencer(),
	}
	a.Pos.SwitchMode(beam.PAL)
	return a
}

// DMA enable predicates

func (a *Agnus) bpldma() bool { return a.DMACON&(DMAEN|BPLEN) == DMAEN|BPLEN }
func (a *Agnus) copdma() bool { return a.DMACON&(DMAEN|COPEN) == DMAEN|COPEN }
func (a *Agnus) bltdma() bool { return a.DMACON&(DMAEN|BLTEN) == DMAEN|BLTEN }
func (a *Agnus) dskdma() bool { return a.DMACON&(DMAEN|DSKEN) == DMAEN|DSKEN }
func (a *Agnus) bltpri() bool { return a.DMACON&BLTPRI != 0 }

func (a *Agnus) hires() bool { return a.BPLCON0&0x8000 != 0 }

// BPU returns the number of enabled bitplanes encoded in BPLCON0.
func BPU(bplcon0 uint16) int {
	n := int(bplcon0>>12) & 0b111
	if n > 6 {
		n = 6
	}
	return n
}

// BusIsFree reports whether the given client could claim the current
// cycle. Copper probes in cycle 0xE0 block the bus for everybody.
func (a *Agnus) BusIsFree(owner BusOwner) bool {

	if a.BusOwner[a.Pos.H] != BusNone {
		return false
	}

	switch owner {

	case BusCopper:
		if !a.copdma() {
			return false
		}
		if a.Pos.H == 0xE0 {
			a.BusOwner[a.Pos.H] = BusBlocked
			return false
		}
		return true

	case BusBlitter:
		if !a.bltdma() {
			return false
		}
		if a.BLS && !a.bltpri() {
			return false
		}
		return true
	}

	return true
}

// AllocateBus claims the current cycle for the given client.
func (a *Agnus) AllocateBus(owner BusOwner) bool {

	if a.BusOwner[a.Pos.H] != BusNone {
		return false
	}

	switch owner {

	case BusCopper:
		a.BusOwner[a.Pos.H] = BusCopper
		return true

	case BusBlitter:
		if !a.bltdma() {
			return false
		}
		if a.BLS && !a.bltpri() {
			return false
		}
		a.BusOwner[a.Pos.H] = BusBlitter
		return true
	}

	a.BusOwner[a.Pos.H] = owner
	return true
}

// grant books a completed DMA access of the given owner.
func (a *Agnus) grant(owner BusOwner, value uint16) {
	a.BusOwner[a.Pos.H] = owner
	a.BusValue[a.Pos.H] = value
	a.Usage[owner]++
}

// DoDiskDMARead serves one word of disk DMA.
func (a *Agnus) DoDiskDMARead() uint16 {
	result := a.amiga.Mem.Peek16(a.DSKPT)
	a.DSKPT = (a.DSKPT + 2) & a.Revision.PtrMask()
	a.grant(BusDisk, result)
	return result
}

// DoDiskDMAWrite serves one word of disk DMA in write direction.
func (a *Agnus) DoDiskDMAWrite(value uint16) {
	a.amiga.Mem.Poke16(a.DSKPT, value)
	a.DSKPT = (a.DSKPT + 2) & a.Revision.PtrMask()
	a.grant(BusDisk, value)
}

// DoAudioDMARead serves one word of audio DMA for the given channel.
func (a *Agnus) DoAudioDMARead(channel int) uint16 {
	result := a.amiga.Mem.Peek16(a.AudPT[channel])
	a.AudPT[channel] = (a.AudPT[channel] + 2) & a.Revision.PtrMask()
	a.grant(BusAud0+BusOwner(channel), result)
	return result
}

// DoBitplaneDMARead serves one word of bitplane DMA for the given plane.
func (a *Agnus) DoBitplaneDMARead(plane int) uint16 {
	result := a.amiga.Mem.Peek16(a.BplPT[plane])
	a.BplPT[plane] = (a.BplPT[plane] + 2) & a.Revision.PtrMask()
	a.grant(BusBpl1+BusOwner(plane), result)
	return result
}

// DoSpriteDMARead serves one word of sprite DMA for the given channel.
func (a *Agnus) DoSpriteDMARead(channel int) uint16 {
	result := a.amiga.Mem.Peek16(a.SprPT[channel])
	a.SprPT[channel] = (a.SprPT[channel] + 2) & a.Revision.PtrMask()
	a.grant(BusSprite0+BusOwner(channel), result)
	return result
}

// DoCopperDMARead serves one word of copper DMA.
func (a *Agnus) DoCopperDMARead(addr uint32) uint16 {
	result := a.amiga.Mem.Peek16(addr)
	a.BusValue[a.Pos.H] = result
	a.Usage[BusCopper]++
	return result
}

// DoBlitterDMARead serves one word of blitter DMA.
func (a *Agnus) DoBlitterDMARead(addr uint32) uint16 {
	result := a.amiga.Mem.Peek16(addr)
	a.BusValue[a.Pos.H] = result
	a.Usage[BusBlitter]++
	return result
}

// DoBlitterDMAWrite serves one word of blitter DMA in write direction.
func (a *Agnus) DoBlitterDMAWrite(addr uint32, value uint16) {
	a.amiga.Mem.Poke16(addr, value)
	a.BusValue[a.Pos.H] = value
	a.Usage[BusBlitter]++
}

// ReloadAudPT reloads an audio pointer from its location register.
func (a *Agnus) ReloadAudPT(channel int) {
	a.AudPT[channel] = a.AudLC[channel]
}

// BeamToCycle returns the master cycle at which the beam reaches the
// given position of the current frame.
func (a *Agnus) BeamToCycle(v, h int64) int64 {
	return a.Clock + beam.DMACycles(a.Pos.Diff(v, h))
}

// ScheduleRel arms an event relative to the current master cycle.
func (a *Agnus) ScheduleRel(slot EventSlot, delta int64, id EventID) {
	a.Sched.ScheduleAbs(slot, a.Clock+delta, id)
}

// SchedulePos arms an event for a beam position of the current frame.
func (a *Agnus) SchedulePos(slot EventSlot, v, h int64, id EventID) {
	a.Sched.ScheduleAbs(slot, a.BeamToCycle(v, h), id)
}

// ReschedulePos rearms a slot for a beam position, keeping id and data.
func (a *Agnus) ReschedulePos(slot EventSlot, v, h int64) {
	a.Sched.RescheduleAbs(slot, a.BeamToCycle(v, h))
}

// inBplDmaLine reports whether bitplane DMA takes place in the current
// line for the given register values.
func (a *Agnus) inBplDmaLine(dmacon, bplcon0 uint16) bool {

	if dmacon&(DMAEN|BPLEN) != DMAEN|BPLEN {
		return false
	}
	if BPU(bplcon0) == 0 {
		return false
	}
	return a.Pos.V >= a.Seq.VStrt() && a.Pos.V < a.Seq.VStop()
}

// SyncWithEClock computes the wait needed to align a CPU access with the
// CIA E clock and executes the chipset for that long. One E clock cycle
// spans ten DMA cycles, six low and four high; the wait moves the access
// to position 2 of an E clock cycle.
func (a *Agnus) SyncWithEClock() {

	eClk := (a.Clock >> 2) % 10

	var delay int64
	switch eClk {
	case 0:
		delay = 4 * (2 + 10)
	case 1:
		delay = 4 * (1 + 10)
	case 2:
		delay = 4 * (0 + 10)
	case 3:
		delay = 4 * 9
	case 4:
		delay = 4 * 8
	case 5:
		delay = 4 * 7
	case 6:
		delay = 4 * 6
	case 7:
		delay = 4 * (5 + 10)
	case 8:
		delay = 4 * (4 + 10)
	case 9:
		delay = 4 * (3 + 10)
	}

	a.amiga.ExecuteCycles(beam.AsDMACycles(delay))
	a.amiga.CPUWaitStates += delay
}

// ExecuteUntilBusIsFree advances the chipset until the CPU can claim a
// bus cycle. After two stolen cycles the BLS line is asserted, slowing
// down the blitter unless BLTPRI is set.
func (a *Agnus) ExecuteUntilBusIsFree() {

	posh := a.Pos.H - 1
	if a.Pos.H == 0 {
		posh = HPosMax
	}

	if a.BusOwner[posh] != BusNone {

		var delay int64
		for {
			posh = a.Pos.H
			a.amiga.Execute()
			if delay++; delay == 2 {
				a.BLS = true
			}
			if a.BusOwner[posh] == BusNone {
				break
			}
		}

		a.BLS = false
		a.amiga.CPUWaitStates += beam.DMACycles(delay)
	}

	a.BusOwner[posh] = BusCPU
	a.Usage[BusCPU]++
}

// ExecuteUntilBusIsFreeForCIA syncs to the E clock first, then waits for
// a free bus cycle.
func (a *Agnus) ExecuteUntilBusIsFreeForCIA() {
	a.SyncWithEClock()
	a.ExecuteUntilBusIsFree()
}

// clearBusBookkeeping resets the per-cycle owner table at hsync.
func (a *Agnus) clearBusBookkeeping() {
	for i := range a.BusOwner {
		a.BusOwner[i] = BusNone
		a.BusValue[i] = 0
	}
}

// scheduleFirstBplEvent arms the BPL slot for the first event of a line.
func (a *Agnus) scheduleFirstBplEvent() {
	dmacycle := a.Seq.NextBplEvent[0]
	if a.Pos.H == 0 {
		a.Sched.ScheduleAbs(SlotBPL, a.Clock+beam.DMACycles(int64(dmacycle)), a.Seq.BplEvent[dmacycle])
	} else {
		a.Sched.ScheduleAbs(SlotBPL, a.Clock+beam.DMACycles(int64(dmacycle+1)), a.Seq.BplEvent[dmacycle])
	}
}

// scheduleNextBplEvent arms the BPL slot for the next event after hpos.
func (a *Agnus) scheduleNextBplEvent(hpos int) {
	if next := a.Seq.NextBplEvent[hpos]; next != 0 {
		a.Sched.ScheduleAbs(SlotBPL, a.Clock+beam.DMACycles(int64(next)-a.Pos.H), a.Seq.BplEvent[next])
	}
}

// scheduleBplEventForCycle arms the earliest BPL event at or after hpos.
func (a *Agnus) scheduleBplEventForCycle(hpos int) {
	if a.Seq.BplEvent[hpos] != EventNone {
		a.Sched.ScheduleAbs(SlotBPL, a.Clock+beam.DMACycles(int64(hpos)-a.Pos.H), a.Seq.BplEvent[hpos])
	} else {
		a.scheduleNextBplEvent(hpos)
	}
}

// scheduleFirstDasEvent arms the DAS slot for the first event of a line.
func (a *Agnus) scheduleFirstDasEvent() {
	dmacycle := a.Seq.NextDasEvent[0]
	if a.Pos.H == 0 {
		a.Sched.ScheduleAbs(SlotDAS, a.Clock+beam.DMACycles(int64(dmacycle)), a.Seq.DasEvent[dmacycle])
	} else {
		a.Sched.ScheduleAbs(SlotDAS, a.Clock+beam.DMACycles(int64(dmacycle+1)), a.Seq.DasEvent[dmacycle])
	}
}

// scheduleNextDasEvent arms the DAS slot for the next event after hpos.
func (a *Agnus) scheduleNextDasEvent(hpos int) {
	if next := a.Seq.NextDasEvent[hpos]; next != 0 {
		a.Sched.ScheduleAbs(SlotDAS, a.Clock+beam.DMACycles(int64(next)-a.Pos.H), a.Seq.DasEvent[next])
	} else {
		a.Sched.Cancel(SlotDAS)
	}
}
