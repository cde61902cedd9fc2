package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"github.com/retrovault/amiga/pkg/beam"
	"github.com/retrovault/amiga/pkg/msg"
)

// BlitterAccuracy selects the emulation level. The fast level performs a
// blit atomically and only accounts for the stolen bus cycles; the slow
// level runs a micro program producing the exact DMA footprint.
type BlitterAccuracy int

const (
	BlitterFast BlitterAccuracy = iota
	BlitterSlow
)

// Blitter is the two-operand stream processor of the chip set.
type Blitter struct {
	amiga *Amiga

	Accuracy BlitterAccuracy

	BLTCON0 uint16
	BLTCON1 uint16

	BLTAFWM uint16
	BLTALWM uint16

	BLTAPT uint32
	BLTBPT uint32
	BLTCPT uint32
	BLTDPT uint32

	BLTAMOD int16
	BLTBMOD int16
	BLTCMOD int16
	BLTDMOD int16

	ANew  uint16
	BNew  uint16
	AOld  uint16
	BOld  uint16
	AHold uint16
	BHold uint16
	CHold uint16
	DHold uint16

	// Width and height of the pending blit
	sizeH int
	sizeV int

	BBUSY bool
	BZERO bool

	// Fill carry
	fillCarry bool

	// Slow blit micro program state
	prog   []microOp
	progPC int
	wordX  int
	wordY  int
	dAddr  uint32
}

type microOp int

const (
	opFetchA microOp = iota
	opFetchB
	opFetchC
	opHold
	opWriteD
)

func newBlitter(amiga *Amiga) *Blitter {
	return &Blitter{amiga: amiga, BLTAFWM: 0xFFFF, BLTALWM: 0xFFFF}
}

// BLTCON decoding

func (b *Blitter) ash() uint { return uint(b.BLTCON0 >> 12) }
func (b *Blitter) bsh() uint { return uint(b.BLTCON1 >> 12) }

func (b *Blitter) useA() bool { return b.BLTCON0&(1<<11) != 0 }
func (b *Blitter) useB() bool { return b.BLTCON0&(1<<10) != 0 }
func (b *Blitter) useC() bool { return b.BLTCON0&(1<<9) != 0 }
func (b *Blitter) useD() bool { return b.BLTCON0&(1<<8) != 0 }

func (b *Blitter) efe() bool  { return b.BLTCON1&(1<<4) != 0 }
func (b *Blitter) ife() bool  { return b.BLTCON1&(1<<3) != 0 }
func (b *Blitter) fe() bool   { return b.efe() || b.ife() }
func (b *Blitter) fci() bool  { return b.BLTCON1&(1<<2) != 0 }
func (b *Blitter) desc() bool { return b.BLTCON1&(1<<1) != 0 }
func (b *Blitter) line() bool { return b.BLTCON1&(1<<0) != 0 }

func (b *Blitter) minterm() uint8 { return uint8(b.BLTCON0) }

// SetBLTBDAT latches the B data register; the value passes through the
// barrel shifter immediately.
func (b *Blitter) SetBLTBDAT(value uint16) {
	b.BNew = value
	b.BHold = uint16((uint32(b.BOld)<<16 | uint32(b.BNew)) >> b.bsh())
	b.BOld = b.BNew
}

// SetBLTSIZE arms a blit. Writing zero performs a fake blit that only
// raises the interrupt.
func (b *Blitter) SetBLTSIZE(value uint16) {

	b.sizeV = int(value >> 6)
	if b.sizeV == 0 {
		b.sizeV = 1024
	}
	b.sizeH = int(value & 0x3F)
	if b.sizeH == 0 {
		b.sizeH = 64
	}

	b.BBUSY = true
	b.BZERO = true
	b.fillCarry = b.fci()

	if value == 0 {
		// Fake blit
		b.sizeH, b.sizeV = 0, 0
		b.scheduleTermination(beam.DMACycles(4))
		return
	}

	if !b.amiga.Agnus.bltdma() {
		return // resumed when blitter DMA is switched on
	}

	b.start()
}

func (b *Blitter) resume() {
	if b.BBUSY && !b.amiga.Agnus.Sched.HasEvent(SlotBLT) {
		b.start()
	}
}

func (b *Blitter) start() {

	if b.Accuracy == BlitterFast {
		if b.line() {
			b.doFastLineBlit()
			b.scheduleTermination(beam.DMACycles(int64(4*b.sizeV + 4)))
		} else {
			b.doFastCopyBlit()
			b.scheduleTermination(beam.DMACycles(int64(b.sizeH*b.sizeV + 4)))
		}
		return
	}

	// Slow level: build the micro program and execute it cycle by cycle
	b.buildMicroProgram()
	b.amiga.Agnus.Sched.ScheduleAbs(SlotBLT,
		b.amiga.Agnus.Clock+beam.DMACycles(2), BltCopySlow)
}

func (b *Blitter) scheduleTermination(delay int64) {
	b.amiga.Agnus.Sched.ScheduleAbs(SlotBLT,
		b.amiga.Agnus.Clock+delay, BltCopyFake)
}

// serviceEvent advances the blitter.
func (b *Blitter) serviceEvent(id EventID) {

	switch id {

	case BltCopyFake, BltLineFake:
		b.terminate()

	case BltCopySlow, BltLineSlow:
		b.executeSlowBlit()

	default:
		panic("unhandled blitter event")
	}
}

func (b *Blitter) terminate() {
	b.BBUSY = false
	b.amiga.Agnus.Sched.Cancel(SlotBLT)
	b.amiga.Paula.RaiseIRQ(IrqBLIT)
	b.amiga.Queue.Put(msg.Message{Type: msg.BlitterDone})
}

// mintermLogic applies the 8-entry minterm LUT bit-wise.
func mintermLogic(a, b, c uint16, mt uint8) uint16 {

	var r uint16
	if mt&0x80 != 0 {
		r |= a & b & c
	}
	if mt&0x40 != 0 {
		r |= a & b &^ c
	}
	if mt&0x20 != 0 {
		r |= a &^ b & c
	}
	if mt&0x10 != 0 {
		r |= a &^ b &^ c
	}
	if mt&0x08 != 0 {
		r |= ^a & b & c
	}
	if mt&0x04 != 0 {
		r |= ^a & b &^ c
	}
	if mt&0x02 != 0 {
		r |= ^a &^ b & c
	}
	if mt&0x01 != 0 {
		r |= ^a &^ b &^ c
	}

	return r
}

// doFill runs the area fill circuit over one word. Bits are processed
// from the low end. The carry LUT distinguishes inclusive and exclusive
// fill mode.
func (b *Blitter) doFill(word uint16, carry bool) (uint16, bool) {

	var result uint16
	for i := 0; i < 16; i++ {

		bit := word&(1<<i) != 0

		var out bool
		if b.efe() {
			out = bit != carry // exclusive: toggle on every set bit
		} else {
			out = bit || carry
		}
		if out {
			result |= 1 << i
		}
		if bit {
			carry = !carry
		}
	}

	return result, carry
}

// doFastCopyBlit performs a copy blit atomically.
func (b *Blitter) doFastCopyBlit() {

	ag := b.amiga.Agnus
	mem := b.amiga.Mem

	incr := int64(2)
	if b.desc() {
		incr = -2
	}

	ash := b.ash()
	bsh := b.bsh()
	mt := b.minterm()

	b.AOld = 0
	b.BOld = 0

	for y := 0; y < b.sizeV; y++ {

		b.fillCarry = b.fci()

		for x := 0; x < b.sizeH; x++ {

			if b.useA() {
				b.ANew = mem.Peek16(b.BLTAPT)
				b.BLTAPT = uint32(int64(b.BLTAPT)+incr) & ag.Revision.PtrMask()
				ag.Usage[BusBlitter]++
			}

			// Apply the first/last word masks
			masked := b.ANew
			if x == 0 {
				masked &= b.BLTAFWM
			}
			if x == b.sizeH-1 {
				masked &= b.BLTALWM
			}

			if b.desc() {
				b.AHold = uint16((uint32(masked)<<16 | uint32(b.AOld)) << ash >> 16)
			} else {
				b.AHold = uint16((uint32(b.AOld)<<16 | uint32(masked)) >> ash)
			}
			b.AOld = masked

			if b.useB() {
				b.BNew = mem.Peek16(b.BLTBPT)
				b.BLTBPT = uint32(int64(b.BLTBPT)+incr) & ag.Revision.PtrMask()
				ag.Usage[BusBlitter]++

				if b.desc() {
					b.BHold = uint16((uint32(b.BNew)<<16 | uint32(b.BOld)) << bsh >> 16)
				} else {
					b.BHold = uint16((uint32(b.BOld)<<16 | uint32(b.BNew)) >> bsh)
				}
				b.BOld = b.BNew
			}

			if b.useC() {
				b.CHold = mem.Peek16(b.BLTCPT)
				b.BLTCPT = uint32(int64(b.BLTCPT)+incr) & ag.Revision.PtrMask()
				ag.Usage[BusBlitter]++
			}

			b.DHold = mintermLogic(b.AHold, b.BHold, b.CHold, mt)

			if b.fe() {
				b.DHold, b.fillCarry = b.doFill(b.DHold, b.fillCarry)
			}

			if b.DHold != 0 {
				b.BZERO = false
			}

			if b.useD() {
				mem.Poke16(b.BLTDPT, b.DHold)
				b.BLTDPT = uint32(int64(b.BLTDPT)+incr) & ag.Revision.PtrMask()
				ag.Usage[BusBlitter]++
			}
		}

		// Apply the modulo values at the end of each row
		if b.useA() {
			b.BLTAPT = uint32(int64(b.BLTAPT)+modulo(b.BLTAMOD, b.desc())) & ag.Revision.PtrMask()
		}
		if b.useB() {
			b.BLTBPT = uint32(int64(b.BLTBPT)+modulo(b.BLTBMOD, b.desc())) & ag.Revision.PtrMask()
		}
		if b.useC() {
			b.BLTCPT = uint32(int64(b.BLTCPT)+modulo(b.BLTCMOD, b.desc())) & ag.Revision.PtrMask()
		}
		if b.useD() {
			b.BLTDPT = uint32(int64(b.BLTDPT)+modulo(b.BLTDMOD, b.desc())) & ag.Revision.PtrMask()
		}
	}
}

func modulo(mod int16, desc bool) int64 {
	if desc {
		return -int64(mod)
	}
	return int64(mod)
}

// doFastLineBlit draws a line of sizeV pixels. The A channel provides the
// line pattern, C the background and D the destination. The octant is
// encoded in BLTCON1.
func (b *Blitter) doFastLineBlit() {

	mem := b.amiga.Mem
	ag := b.amiga.Agnus

	sign := b.BLTCON1&(1<<6) != 0
	sud := b.BLTCON1&(1<<4) != 0
	sul := b.BLTCON1&(1<<3) != 0
	aul := b.BLTCON1&(1<<2) != 0

	bit := int(b.ash())
	mt := b.minterm()

	for i := 0; i < b.sizeV; i++ {

		// Fetch the background word
		if b.useC() {
			b.CHold = mem.Peek16(b.BLTDPT)
			ag.Usage[BusBlitter]++
		}

		pattern := uint16(0)
		if b.BHold&1 != 0 {
			pattern = 0xFFFF
		}

		b.AHold = (b.BLTAFWM >> uint(bit)) & (1 << uint(15-bit))
		b.DHold = mintermLogic(b.AHold, pattern, b.CHold, mt)

		if b.DHold != 0 {
			b.BZERO = false
		}

		if b.useD() {
			mem.Poke16(b.BLTDPT, b.DHold)
			ag.Usage[BusBlitter]++
		}

		// Step along the major axis; the sign of the accumulated error
		// decides whether the minor axis advances as well
		step := func(horizontal, up bool) {
			if horizontal {
				if up {
					if bit--; bit < 0 {
						bit = 15
						b.BLTDPT -= 2
					}
				} else {
					if bit++; bit > 15 {
						bit = 0
						b.BLTDPT += 2
					}
				}
			} else {
				if up {
					b.BLTDPT = uint32(int64(b.BLTDPT) - int64(b.BLTCMOD))
				} else {
					b.BLTDPT = uint32(int64(b.BLTDPT) + int64(b.BLTCMOD))
				}
			}
		}

		step(sud, sul)
		if !sign {
			step(!sud, aul)
		}

		// Update the error accumulator kept in the A pointer
		if sign {
			b.BLTAPT = uint32(int64(b.BLTAPT) + int64(b.BLTBMOD))
		} else {
			b.BLTAPT = uint32(int64(b.BLTAPT) + int64(b.BLTAMOD))
		}
		sign = int32(b.BLTAPT) < 0

		// Rotate the line pattern
		b.BHold = b.BHold>>1 | b.BHold<<15
	}
}

// buildMicroProgram compiles the channel configuration into the micro
// instruction sequence of one word.
func (b *Blitter) buildMicroProgram() {

	b.prog = b.prog[:0]
	if b.useA() {
		b.prog = append(b.prog, opFetchA)
	}
	if b.useB() {
		b.prog = append(b.prog, opFetchB)
	}
	if b.useC() {
		b.prog = append(b.prog, opFetchC)
	}
	b.prog = append(b.prog, opHold)
	if b.useD() {
		b.prog = append(b.prog, opWriteD)
	}

	b.progPC = 0
	b.wordX = 0
	b.wordY = 0
	b.AOld = 0
	b.BOld = 0
	b.fillCarry = b.fci()
}

// executeSlowBlit runs one micro instruction per DMA cycle, requesting
// the bus for every fetch and store.
func (b *Blitter) executeSlowBlit() {

	ag := b.amiga.Agnus

	reschedule := func() {
		ag.Sched.ScheduleAbs(SlotBLT, ag.Clock+beam.DMACycles(1), BltCopySlow)
	}

	op := b.prog[b.progPC]

	incr := int64(2)
	if b.desc() {
		incr = -2
	}

	needsBus := op == opFetchA || op == opFetchB || op == opFetchC || op == opWriteD
	if needsBus && !ag.AllocateBus(BusBlitter) {
		reschedule()
		return
	}

	switch op {

	case opFetchA:
		b.ANew = ag.DoBlitterDMARead(b.BLTAPT)
		b.BLTAPT = uint32(int64(b.BLTAPT)+incr) & ag.Revision.PtrMask()

	case opFetchB:
		b.BNew = ag.DoBlitterDMARead(b.BLTBPT)
		b.BLTBPT = uint32(int64(b.BLTBPT)+incr) & ag.Revision.PtrMask()

	case opFetchC:
		b.CHold = ag.DoBlitterDMARead(b.BLTCPT)
		b.BLTCPT = uint32(int64(b.BLTCPT)+incr) & ag.Revision.PtrMask()

	case opHold:

		masked := b.ANew
		if b.wordX == 0 {
			masked &= b.BLTAFWM
		}
		if b.wordX == b.sizeH-1 {
			masked &= b.BLTALWM
		}

		if b.desc() {
			b.AHold = uint16((uint32(masked)<<16 | uint32(b.AOld)) << b.ash() >> 16)
			b.BHold = uint16((uint32(b.BNew)<<16 | uint32(b.BOld)) << b.bsh() >> 16)
		} else {
			b.AHold = uint16((uint32(b.AOld)<<16 | uint32(masked)) >> b.ash())
			b.BHold = uint16((uint32(b.BOld)<<16 | uint32(b.BNew)) >> b.bsh())
		}
		b.AOld = masked
		b.BOld = b.BNew

		b.DHold = mintermLogic(b.AHold, b.BHold, b.CHold, b.minterm())
		if b.fe() {
			b.DHold, b.fillCarry = b.doFill(b.DHold, b.fillCarry)
		}
		if b.DHold != 0 {
			b.BZERO = false
		}
		b.dAddr = b.BLTDPT
		if b.useD() {
			b.BLTDPT = uint32(int64(b.BLTDPT)+incr) & ag.Revision.PtrMask()
		}

	case opWriteD:
		ag.DoBlitterDMAWrite(b.dAddr, b.DHold)
	}

	// Advance the program
	if b.progPC++; b.progPC == len(b.prog) {

		b.progPC = 0

		if b.wordX++; b.wordX == b.sizeH {

			b.wordX = 0
			b.fillCarry = b.fci()

			if b.useA() {
				b.BLTAPT = uint32(int64(b.BLTAPT)+modulo(b.BLTAMOD, b.desc())) & ag.Revision.PtrMask()
			}
			if b.useB() {
				b.BLTBPT = uint32(int64(b.BLTBPT)+modulo(b.BLTBMOD, b.desc())) & ag.Revision.PtrMask()
			}
			if b.useC() {
				b.BLTCPT = uint32(int64(b.BLTCPT)+modulo(b.BLTCMOD, b.desc())) & ag.Revision.PtrMask()
			}
			if b.useD() {
				b.BLTDPT = uint32(int64(b.BLTDPT)+modulo(b.BLTDMOD, b.desc())) & ag.Revision.PtrMask()
			}

			if b.wordY++; b.wordY == b.sizeV {
				b.terminate()
				return
			}
		}
	}

	reschedule()
}
