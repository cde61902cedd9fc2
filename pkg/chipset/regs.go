package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"

	"github.com/retrovault/amiga/pkg/beam"
)

// regID names a delayed register change.
type regID int

const (
	regNone regID = iota
	regSTRHOR

	regDMACON
	regINTREQ
	regINTENA

	regBPLCON0
	regBPLCON1
	regDIWSTRT
	regDIWSTOP
	regDDFSTRT
	regDDFSTOP
	regBPL1MOD
	regBPL2MOD

	regBLTSIZE
	regBLTCON0
	regBLTCON1

	regDSKPTH
	regDSKPTL
	regBPLxPTH
	regBPLxPTL
	regSPRxPTH
	regSPRxPTL
)

// regChange is one queued register write. Index selects the register
// instance for the pointer register families.
type regChange struct {
	id      regID
	index   int
	value   uint16
	trigger int64
}

// regChangeRecorder queues register writes until their propagation delay
// has elapsed. Writes are recorded in trigger order.
type regChangeRecorder struct {
	queue []regChange
}

func (r *regChangeRecorder) isEmpty() bool { return len(r.queue) == 0 }

func (r *regChangeRecorder) trigger() int64 {
	if len(r.queue) == 0 {
		return never
	}
	return r.queue[0].trigger
}

func (r *regChangeRecorder) insert(trigger int64, id regID, index int, value uint16) {
	c := regChange{id: id, index: index, value: value, trigger: trigger}

	for i := len(r.queue) - 1; i >= 0; i-- {
		if r.queue[i].trigger <= trigger {
			r.queue = append(r.queue, regChange{})
			copy(r.queue[i+2:], r.queue[i+1:])
			r.queue[i+1] = c
			return
		}
	}
	r.queue = append([]regChange{c}, r.queue...)
}

func (r *regChangeRecorder) read() regChange {
	c := r.queue[0]
	r.queue = r.queue[1:]
	return c
}

// recordRegisterChange queues a register write that takes effect after
// the given number of DMA cycles.
func (a *Agnus) recordRegisterChange(delay int64, id regID, index int, value uint16) {
	a.changes.insert(a.Clock+beam.DMACycles(delay), id, index, value)
	a.scheduleNextREGEvent()
}

func (a *Agnus) scheduleNextREGEvent() {
	a.Sched.ScheduleAbs(SlotREG, a.changes.trigger(), RegChange)
}

// serviceREGEvent applies all queued register changes up to the given
// cycle. It must run before any bus-allocating slot of the same cycle.
func (a *Agnus) serviceREGEvent(until int64) {

	for !a.changes.isEmpty() {

		if a.changes.trigger() > until {
			break
		}

		change := a.changes.read()

		switch change.id {

		case regSTRHOR:
			a.amiga.hsyncHandler()

		case regDMACON:
			a.setDMACON(change.value)
		case regINTREQ:
			a.amiga.Paula.SetINTREQ(change.value)
		case regINTENA:
			a.amiga.Paula.SetINTENA(change.value)

		case regBPLCON0:
			a.setBPLCON0(change.value)
		case regBPLCON1:
			a.setBPLCON1(change.value)
		case regDIWSTRT:
			a.Seq.SetDIWSTRT(change.value)
		case regDIWSTOP:
			a.Seq.SetDIWSTOP(change.value)
		case regDDFSTRT:
			a.setDDFSTRT(change.value)
		case regDDFSTOP:
			a.setDDFSTOP(change.value)
		case regBPL1MOD:
			a.BPL1MOD = int16(change.value) &^ 1
		case regBPL2MOD:
			a.BPL2MOD = int16(change.value) &^ 1

		case regBLTSIZE:
			a.amiga.Blitter.SetBLTSIZE(change.value)
		case regBLTCON0:
			a.amiga.Blitter.BLTCON0 = change.value
		case regBLTCON1:
			a.amiga.Blitter.BLTCON1 = change.value

		case regDSKPTH:
			a.DSKPT = replaceHi(a.DSKPT, change.value) & a.Revision.PtrMask()
		case regDSKPTL:
			a.DSKPT = replaceLo(a.DSKPT, change.value)
		case regBPLxPTH:
			a.BplPT[change.index] = replaceHi(a.BplPT[change.index], change.value) & a.Revision.PtrMask()
		case regBPLxPTL:
			a.BplPT[change.index] = replaceLo(a.BplPT[change.index], change.value)
		case regSPRxPTH:
			a.SprPT[change.index] = replaceHi(a.SprPT[change.index], change.value) & a.Revision.PtrMask()
		case regSPRxPTL:
			a.SprPT[change.index] = replaceLo(a.SprPT[change.index], change.value)

		default:
			panic(fmt.Sprintf("unhandled register change %d", change.id))
		}
	}

	a.scheduleNextREGEvent()
}

func replaceHi(ptr uint32, value uint16) uint32 {
	return uint32(value)<<16 | ptr&0xFFFF
}

func replaceLo(ptr uint32, value uint16) uint32 {
	return ptr&0xFFFF0000 | uint32(value)&^1
}

// setDMACON applies a new DMACON value and propagates the side effects
// into the event tables and the copper and blitter wake-up logic.
func (a *Agnus) setDMACON(value uint16) {

	old := a.DMACON
	a.DMACON = value & 0x07FF

	if old == a.DMACON {
		return
	}

	toggled := old ^ a.DMACON

	// Disk, audio and sprite changes select another DAS layout
	if toggled&(DSKEN|AUD0EN|AUD1EN|AUD2EN|AUD3EN|SPREN|DMAEN) != 0 {
		enables := uint16(0)
		if a.DMACON&DMAEN != 0 {
			enables = a.DMACON & 0x3F
		}
		a.Seq.UpdateDasEvents(enables)
		if a.Pos.H >= 0 && a.Pos.H < HPosCnt {
			a.scheduleNextDasEvent(int(a.Pos.H))
		}
	}

	// Bitplane changes feed the signal recorder
	oldBpl := old&(DMAEN|BPLEN) == DMAEN|BPLEN
	newBpl := a.DMACON&(DMAEN|BPLEN) == DMAEN|BPLEN
	if oldBpl != newBpl && a.Pos.H >= 0 {
		if newBpl {
			a.Seq.Sig.Insert(a.Pos.H+2, SigBMAPSet)
		} else {
			a.Seq.Sig.Insert(a.Pos.H+2, SigBMAPClr)
		}
		a.computeBplEvents()
	}

	// A Copper DMA enable restarts the Copper
	if toggled&(DMAEN|COPEN) != 0 && a.copdma() {
		a.amiga.Copper.activate()
	}

	// A Blitter DMA enable resumes a pending blit
	if toggled&(DMAEN|BLTEN) != 0 && a.bltdma() {
		a.amiga.Blitter.resume()
	}
}

func (a *Agnus) setBPLCON0(value uint16) {

	if a.BPLCON0 == value {
		return
	}
	a.BPLCON0 = value

	if a.Pos.H >= 0 {
		a.Seq.Sig.Insert(a.Pos.H+4, SigCon|uint32(value>>12))
		a.computeBplEvents()
	}
}

func (a *Agnus) setBPLCON1(value uint16) {

	a.BPLCON1 = value & 0xFF

	a.scrollOdd = int64(a.BPLCON1) & 0b111
	a.scrollEven = int64(a.BPLCON1>>4) & 0b111

	if a.Pos.H >= 0 {
		a.computeBplEvents()
	}
}

func (a *Agnus) setDDFSTRT(value uint16) {

	a.Seq.SetDDFSTRT(value)

	if a.Pos.H >= 0 {
		if a.Seq.DDFSTRT > a.Pos.H {
			a.Seq.Sig.Insert(a.Seq.DDFSTRT, SigBPHStart)
		}
		a.computeBplEvents()
	}
	a.Seq.RecomputeOnHsync = true
}

func (a *Agnus) setDDFSTOP(value uint16) {

	a.Seq.SetDDFSTOP(value)

	if a.Pos.H >= 0 {
		if a.Seq.DDFSTOP > a.Pos.H {
			a.Seq.Sig.Insert(a.Seq.DDFSTOP, SigBPHStop)
		}
		a.computeBplEvents()
	}
	a.Seq.RecomputeOnHsync = true
}

// computeBplEvents rebuilds the bitplane table from the recorded signals
// and rearms the BPL slot.
func (a *Agnus) computeBplEvents() {

	a.Seq.ComputeBplEvents(ComputeBplEventsInput{
		BplCon0:    a.bplcon0Initial,
		ScrollOdd:  a.scrollOdd,
		ScrollEven: a.scrollEven,
		BMapEn:     a.dmaconInitial&(DMAEN|BPLEN) == DMAEN|BPLEN,
	})

	if a.Pos.H >= 0 && a.Pos.H < HPosCnt {
		a.scheduleBplEventForCycle(int(a.Pos.H))
	}
}

// pokeRow describes one custom chip register: its name, the propagation
// delay of a write in DMA cycles, and the poke handler.
type pokeRow struct {
	name  string
	delay int64
	poke  func(a *Amiga, value uint16)
}

// pokeTable maps custom register offsets (address & 0x1FE) to handlers.
var pokeTable = map[uint32]pokeRow{

	0x020: {"DSKPTH", 2, func(a *Amiga, v uint16) { a.Agnus.pokePTH(regDSKPTH, 0, v) }},
	0x022: {"DSKPTL", 2, func(a *Amiga, v uint16) { a.Agnus.pokePTL(regDSKPTL, 0, v) }},
	0x024: {"DSKLEN", 0, func(a *Amiga, v uint16) { a.Paula.PokeDSKLEN(v) }},
	0x02E: {"COPCON", 0, func(a *Amiga, v uint16) { a.Copper.CDANG = v&2 != 0 }},

	0x040: {"BLTCON0", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regBLTCON0, 0, v) }},
	0x042: {"BLTCON1", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regBLTCON1, 0, v) }},
	0x044: {"BLTAFWM", 0, func(a *Amiga, v uint16) { a.Blitter.BLTAFWM = v }},
	0x046: {"BLTALWM", 0, func(a *Amiga, v uint16) { a.Blitter.BLTALWM = v }},
	0x048: {"BLTCPTH", 0, func(a *Amiga, v uint16) { a.Blitter.BLTCPT = replaceHi(a.Blitter.BLTCPT, v) }},
	0x04A: {"BLTCPTL", 0, func(a *Amiga, v uint16) { a.Blitter.BLTCPT = replaceLo(a.Blitter.BLTCPT, v) }},
	0x04C: {"BLTBPTH", 0, func(a *Amiga, v uint16) { a.Blitter.BLTBPT = replaceHi(a.Blitter.BLTBPT, v) }},
	0x04E: {"BLTBPTL", 0, func(a *Amiga, v uint16) { a.Blitter.BLTBPT = replaceLo(a.Blitter.BLTBPT, v) }},
	0x050: {"BLTAPTH", 0, func(a *Amiga, v uint16) { a.Blitter.BLTAPT = replaceHi(a.Blitter.BLTAPT, v) }},
	0x052: {"BLTAPTL", 0, func(a *Amiga, v uint16) { a.Blitter.BLTAPT = replaceLo(a.Blitter.BLTAPT, v) }},
	0x054: {"BLTDPTH", 0, func(a *Amiga, v uint16) { a.Blitter.BLTDPT = replaceHi(a.Blitter.BLTDPT, v) }},
	0x056: {"BLTDPTL", 0, func(a *Amiga, v uint16) { a.Blitter.BLTDPT = replaceLo(a.Blitter.BLTDPT, v) }},
	0x058: {"BLTSIZE", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regBLTSIZE, 0, v) }},
	0x060: {"BLTCMOD", 0, func(a *Amiga, v uint16) { a.Blitter.BLTCMOD = int16(v) &^ 1 }},
	0x062: {"BLTBMOD", 0, func(a *Amiga, v uint16) { a.Blitter.BLTBMOD = int16(v) &^ 1 }},
	0x064: {"BLTAMOD", 0, func(a *Amiga, v uint16) { a.Blitter.BLTAMOD = int16(v) &^ 1 }},
	0x066: {"BLTDMOD", 0, func(a *Amiga, v uint16) { a.Blitter.BLTDMOD = int16(v) &^ 1 }},
	0x070: {"BLTCDAT", 0, func(a *Amiga, v uint16) { a.Blitter.CHold = v }},
	0x072: {"BLTBDAT", 0, func(a *Amiga, v uint16) { a.Blitter.SetBLTBDAT(v) }},
	0x074: {"BLTADAT", 0, func(a *Amiga, v uint16) { a.Blitter.AHold = v }},

	0x07E: {"DSKSYNC", 0, func(a *Amiga, v uint16) { a.Paula.DSKSYNC = v }},

	0x080: {"COP1LCH", 0, func(a *Amiga, v uint16) { a.Copper.COP1LC = replaceHi(a.Copper.COP1LC, v) }},
	0x082: {"COP1LCL", 0, func(a *Amiga, v uint16) { a.Copper.COP1LC = replaceLo(a.Copper.COP1LC, v) }},
	0x084: {"COP2LCH", 0, func(a *Amiga, v uint16) { a.Copper.COP2LC = replaceHi(a.Copper.COP2LC, v) }},
	0x086: {"COP2LCL", 0, func(a *Amiga, v uint16) { a.Copper.COP2LC = replaceLo(a.Copper.COP2LC, v) }},
	0x088: {"COPJMP1", 0, func(a *Amiga, v uint16) { a.Copper.strobe(1) }},
	0x08A: {"COPJMP2", 0, func(a *Amiga, v uint16) { a.Copper.strobe(2) }},

	0x08E: {"DIWSTRT", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regDIWSTRT, 0, v) }},
	0x090: {"DIWSTOP", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regDIWSTOP, 0, v) }},
	0x092: {"DDFSTRT", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regDDFSTRT, 0, v) }},
	0x094: {"DDFSTOP", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regDDFSTOP, 0, v) }},

	0x096: {"DMACON", 2, func(a *Amiga, v uint16) { a.pokeDMACON(v) }},
	0x09E: {"ADKCON", 0, func(a *Amiga, v uint16) { a.pokeADKCON(v) }},
	0x09A: {"INTENA", 1, func(a *Amiga, v uint16) { a.pokeINTENA(v) }},
	0x09C: {"INTREQ", 1, func(a *Amiga, v uint16) { a.pokeINTREQ(v) }},

	0x100: {"BPLCON0", 4, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(4, regBPLCON0, 0, v) }},
	0x102: {"BPLCON1", 4, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(4, regBPLCON1, 0, v) }},
	0x108: {"BPL1MOD", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regBPL1MOD, 0, v) }},
	0x10A: {"BPL2MOD", 2, func(a *Amiga, v uint16) { a.Agnus.recordRegisterChange(2, regBPL2MOD, 0, v) }},
}

func init() {

	// Audio location registers
	for ch := 0; ch < 4; ch++ {
		ch := ch
		base := uint32(0x0A0 + 0x10*ch)
		pokeTable[base] = pokeRow{fmt.Sprintf("AUD%dLCH", ch), 0, func(a *Amiga, v uint16) {
			a.Agnus.AudLC[ch] = replaceHi(a.Agnus.AudLC[ch], v) & a.Agnus.Revision.PtrMask()
		}}
		pokeTable[base+2] = pokeRow{fmt.Sprintf("AUD%dLCL", ch), 0, func(a *Amiga, v uint16) {
			a.Agnus.AudLC[ch] = replaceLo(a.Agnus.AudLC[ch], v)
		}}
	}

	// Bitplane pointer registers
	for pl := 0; pl < 6; pl++ {
		pl := pl
		base := uint32(0x0E0 + 4*pl)
		pokeTable[base] = pokeRow{fmt.Sprintf("BPL%dPTH", pl+1), 2, func(a *Amiga, v uint16) {
			a.Agnus.pokePTH(regBPLxPTH, pl, v)
		}}
		pokeTable[base+2] = pokeRow{fmt.Sprintf("BPL%dPTL", pl+1), 2, func(a *Amiga, v uint16) {
			a.Agnus.pokePTL(regBPLxPTL, pl, v)
		}}
	}

	// Sprite pointer registers
	for sp := 0; sp < 8; sp++ {
		sp := sp
		base := uint32(0x120 + 4*sp)
		pokeTable[base] = pokeRow{fmt.Sprintf("SPR%dPTH", sp), 2, func(a *Amiga, v uint16) {
			a.Agnus.pokePTH(regSPRxPTH, sp, v)
		}}
		pokeTable[base+2] = pokeRow{fmt.Sprintf("SPR%dPTL", sp), 2, func(a *Amiga, v uint16) {
			a.Agnus.pokePTL(regSPRxPTL, sp, v)
		}}
	}
}

// pokePTH queues a pointer register high-word write unless the write
// races a DMA access of the same register's client.
func (a *Agnus) pokePTH(id regID, index int, value uint16) {
	if a.dropPointerWrite(id, index) {
		return
	}
	a.recordRegisterChange(2, id, index, value)
}

func (a *Agnus) pokePTL(id regID, index int, value uint16) {
	if a.dropPointerWrite(id, index) {
		return
	}
	a.recordRegisterChange(2, id, index, value)
}

// dropPointerWrite implements the hardware quirk that a CPU write to a
// DMA pointer register is lost when the register's own DMA client used
// the bus one cycle earlier.
func (a *Agnus) dropPointerWrite(id regID, index int) bool {

	posh := a.Pos.H - 1
	if posh < 0 {
		posh = HPosMax
	}

	owner := a.BusOwner[posh]

	switch id {
	case regDSKPTH, regDSKPTL:
		return owner == BusDisk
	case regBPLxPTH, regBPLxPTL:
		return owner == BusBpl1+BusOwner(index)
	case regSPRxPTH, regSPRxPTL:
		return owner == BusSprite0+BusOwner(index)
	}

	return false
}

// PokeCustom16 dispatches a write to a custom chip register. Unmapped
// registers are ignored like the real chip set does.
func (a *Amiga) PokeCustom16(addr uint32, value uint16) {
	if row, ok := pokeTable[addr&0x1FE]; ok {
		row.poke(a, value)
		a.Debugger.recordPoke(row.name, value)
	}
}

// pokeDMACON resolves the set/clear semantics of a DMACON write and
// queues the resulting absolute value.
func (a *Amiga) pokeDMACON(value uint16) {

	newValue := a.Agnus.DMACON
	if value&0x8000 != 0 {
		newValue |= value & 0x07FF
	} else {
		newValue &^= value & 0x07FF
	}
	a.Agnus.recordRegisterChange(2, regDMACON, 0, newValue)
}

func (a *Amiga) pokeADKCON(value uint16) {
	if value&0x8000 != 0 {
		a.ADKCON |= value & 0x7FFF
	} else {
		a.ADKCON &^= value & 0x7FFF
	}
}

func (a *Amiga) pokeINTENA(value uint16) {
	a.Agnus.recordRegisterChange(1, regINTENA, 0, value)
}

func (a *Amiga) pokeINTREQ(value uint16) {
	a.Agnus.recordRegisterChange(1, regINTREQ, 0, value)
}
