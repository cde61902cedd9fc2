package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"github.com/retrovault/amiga/pkg/beam"
)

// Copper is a two-word coprocessor whose program lives in chip RAM. It
// supports MOVE, WAIT and SKIP, always synchronized to the beam.
type Copper struct {
	amiga *Amiga

	// Program counter and the two location registers
	COPPC  uint32
	COP1LC uint32
	COP2LC uint32

	// COPCON danger bit, gating access to the blitter registers and to
	// the registers below them
	CDANG bool

	// The two instruction words of the current instruction
	ins1 uint16
	ins2 uint16

	// True if the next instruction must be discarded (SKIP hit)
	skipNext bool
	discard  bool
}

func newCopper(amiga *Amiga) *Copper {
	return &Copper{amiga: amiga}
}

// vsyncHandler restarts the Copper at the beginning of a frame.
func (c *Copper) vsyncHandler() {
	c.COPPC = c.COP1LC
	c.skipNext = false
	c.discard = false
	if c.amiga.Agnus.copdma() {
		c.amiga.Agnus.Sched.ScheduleAbs(SlotCOP, c.amiga.Agnus.Clock+beam.DMACycles(2), CopRequestDMA)
	} else {
		c.amiga.Agnus.Sched.Cancel(SlotCOP)
	}
}

// activate resumes the Copper after Copper DMA has been switched on.
func (c *Copper) activate() {
	sched := c.amiga.Agnus.Sched
	if !sched.HasEvent(SlotCOP) {
		sched.ScheduleAbs(SlotCOP, c.amiga.Agnus.Clock+beam.DMACycles(2), CopRequestDMA)
	}
}

// strobe reloads the program counter from one of the location registers.
func (c *Copper) strobe(unit int) {
	if unit == 1 {
		c.COPPC = c.COP1LC
	} else {
		c.COPPC = c.COP2LC
	}
	c.activate()
	c.amiga.Agnus.Sched.ScheduleAbs(SlotCOP,
		c.amiga.Agnus.Clock+beam.DMACycles(2), CopRequestDMA)
}

// serviceEvent advances the Copper state machine by one event.
func (c *Copper) serviceEvent(id EventID) {

	ag := c.amiga.Agnus
	sched := ag.Sched

	reschedule := func(delay int64, next EventID) {
		sched.ScheduleAbs(SlotCOP, ag.Clock+beam.DMACycles(delay), next)
	}

	switch id {

	case CopRequestDMA, CopWakeup, CopWakeupBlit:

		if id == CopWakeupBlit && c.amiga.Blitter.BBUSY {
			reschedule(2, CopWakeupBlit)
			return
		}
		if !ag.BusIsFree(BusCopper) {
			reschedule(2, CopRequestDMA)
			return
		}
		reschedule(0, CopFetch)

	case CopFetch:

		if !ag.AllocateBus(BusCopper) {
			reschedule(2, CopFetch)
			return
		}
		c.ins1 = ag.DoCopperDMARead(c.COPPC)
		c.COPPC += 2

		c.discard = c.skipNext
		c.skipNext = false

		if c.ins1&1 == 0 {
			reschedule(2, CopMove)
		} else {
			reschedule(2, CopWaitOrSkip)
		}

	case CopMove:

		if !ag.AllocateBus(BusCopper) {
			reschedule(2, CopMove)
			return
		}
		c.ins2 = ag.DoCopperDMARead(c.COPPC)
		c.COPPC += 2

		addr := uint32(c.ins1) & 0x1FE

		if addr <= 0x74 && !c.CDANG {
			// Registers below 0x40 and the blitter registers (0x40 to
			// 0x74) need the danger bit. An illegal access halts the
			// Copper until the next frame
			sched.Cancel(SlotCOP)
			return
		}

		if !c.discard {
			c.amiga.PokeCustom16(addr, c.ins2)
		}
		c.discard = false

		reschedule(2, CopFetch)

	case CopWaitOrSkip:

		if !ag.AllocateBus(BusCopper) {
			reschedule(2, CopWaitOrSkip)
			return
		}
		c.ins2 = ag.DoCopperDMARead(c.COPPC)
		c.COPPC += 2

		if c.discard {
			c.discard = false
			reschedule(2, CopFetch)
			return
		}

		if c.ins2&1 == 0 {
			// WAIT
			if c.comparatorSatisfied() {
				reschedule(2, CopFetch)
			} else {
				c.scheduleWakeup()
			}
		} else {
			// SKIP
			c.skipNext = c.comparatorSatisfied()
			reschedule(2, CopFetch)
		}

	case CopWait1, CopWait2:

		// Re-check the comparator; the blitter-finished gate may still
		// hold the Copper back
		if c.ins2&0x8000 == 0 && c.amiga.Blitter.BBUSY {
			reschedule(2, CopWakeupBlit)
			return
		}
		reschedule(2, CopFetch)

	case CopVBlank:
		c.vsyncHandler()

	default:
		panic("unhandled copper event")
	}
}

// comparatorSatisfied evaluates the WAIT/SKIP beam comparator against the
// current beam position.
func (c *Copper) comparatorSatisfied() bool {

	if c.ins2&0x8000 == 0 && c.amiga.Blitter.BBUSY {
		return false
	}

	pos := c.amiga.Agnus.Pos

	vp := int64(c.ins1>>8) & 0xFF
	hp := int64(c.ins1) & 0xFE
	vm := int64(c.ins2>>8)&0x7F | 0x80
	hm := int64(c.ins2) & 0xFE

	v := pos.V & vm
	h := pos.H & hm

	return v > vp&vm || (v == vp&vm && h >= hp&hm)
}

// scheduleWakeup arms the COP slot for the first cycle on which the
// comparator can be satisfied.
func (c *Copper) scheduleWakeup() {

	ag := c.amiga.Agnus
	pos := ag.Pos

	// Scan the remainder of the frame for the wake-up position
	probe := pos
	for delta := int64(1); ; delta++ {
		probe = probe.Plus(1)
		if probe.Frame != pos.Frame {
			// The comparator cannot trigger in this frame; the vsync
			// handler restarts the Copper
			ag.Sched.Cancel(SlotCOP)
			return
		}

		vp := int64(c.ins1>>8) & 0xFF
		hp := int64(c.ins1) & 0xFE
		vm := int64(c.ins2>>8)&0x7F | 0x80
		hm := int64(c.ins2) & 0xFE

		v := probe.V & vm
		h := probe.H & hm
		if v > vp&vm || (v == vp&vm && h >= hp&hm) {
			ag.Sched.ScheduleAbs(SlotCOP, ag.Clock+beam.DMACycles(delta), CopWait1)
			return
		}
	}
}
