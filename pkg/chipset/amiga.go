package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"sync/atomic"

	"github.com/retrovault/amiga/pkg/beam"
	"github.com/retrovault/amiga/pkg/elog"
	"github.com/retrovault/amiga/pkg/msg"
)

// Amiga bundles the chipset components. All components run on a single
// logical clock; the external CPU drives the bus through the CPURead and
// CPUWrite entry points and receives wait states in return.
type Amiga struct {
	Agnus   *Agnus
	Paula   *Paula
	CIAA    *CIA
	CIAB    *CIA
	Copper  *Copper
	Blitter *Blitter
	Mem     *Memory
	Df      [4]*FloppyDrive

	Queue    msg.Queue
	Log      elog.Logger
	Debugger *Debugger

	ADKCON uint16

	// Wait states accumulated on behalf of the external CPU
	CPUWaitStates int64

	// Interrupt priority level presented to the CPU
	CPUIPL int

	// When set, Run breaks at the next frame boundary
	syncThread int32
}

// NewAmiga builds a chipset with the given configuration.
func NewAmiga(cfg Config, queue msg.Queue, log elog.Logger) *Amiga {

	if queue == nil {
		queue = msg.Discard{}
	}
	if log == nil {
		log = &elog.CLI{DisableTTY: true}
	}

	a := &Amiga{Queue: queue, Log: log}

	a.Mem = NewMemory(cfg.ChipRAM)
	a.Agnus = newAgnus(a, cfg.Revision)
	a.Agnus.Pos.SwitchMode(cfg.Format)
	a.Paula = newPaula(a)
	a.CIAA = newCIA(a, 0)
	a.CIAB = newCIA(a, 1)
	a.Copper = newCopper(a)
	a.Blitter = newBlitter(a)
	a.Blitter.Accuracy = cfg.BlitterAccuracy
	a.Debugger = newDebugger(a)

	for i := range a.Df {
		a.Df[i] = newFloppyDrive(a, i)
		a.Df[i].Mechanics = cfg.DriveMechanics
	}

	a.Reset()
	return a
}

// Reset puts the chipset into its power-up state and schedules the
// initial events.
func (a *Amiga) Reset() {

	ag := a.Agnus

	ag.Sched = NewScheduler()
	ag.Seq.ClearBplEvents()
	ag.Seq.UpdateDasEvents(0)
	ag.clearBusBookkeeping()

	ag.Sched.ScheduleAbs(SlotSEC, never, SecTrigger)
	ag.Sched.ScheduleAbs(SlotTER, never, TerTrigger)
	ag.Sched.ScheduleAbs(SlotIRQ, never, IrqCheck)
	ag.Sched.ScheduleAbs(SlotRAS, ag.Clock+beam.DMACycles(HPosMax), RasHsync)
	ag.Sched.ScheduleAbs(SlotCIAA, ag.Clock+CIACycles, CIAExecute)
	ag.Sched.ScheduleAbs(SlotCIAB, ag.Clock+CIACycles, CIAExecute)
	ag.Sched.ScheduleAbs(SlotDSK, ag.Clock+USec(16), DskRotate)

	ag.scheduleFirstBplEvent()
	ag.scheduleFirstDasEvent()
	ag.scheduleNextREGEvent()
}

// Execute emulates a single DMA cycle.
func (a *Amiga) Execute() {

	ag := a.Agnus

	if ag.Sched.NextTrigger <= ag.Clock {
		a.executeUntil(ag.Clock)
	}

	ag.Clock += beam.DMACycles(1)
	ag.Pos.H++
}

// ExecuteCycles emulates the given number of DMA cycles.
func (a *Amiga) ExecuteCycles(n int64) {
	for i := int64(0); i < n; i++ {
		a.Execute()
	}
}

// ExecuteLine emulates until the beginning of the next line.
func (a *Amiga) ExecuteLine() {
	ag := a.Agnus
	line := ag.Pos.V
	for ag.Pos.V == line {
		a.Execute()

		// Service the events of a new line's first cycle (the hsync)
		// without running that cycle
		if ag.Pos.H == 0 && ag.Sched.NextTrigger <= ag.Clock {
			a.executeUntil(ag.Clock)
		}
	}
}

// ExecuteFrame emulates until the beginning of the next frame.
func (a *Amiga) ExecuteFrame() {
	ag := a.Agnus
	frame := ag.Pos.Frame
	for ag.Pos.Frame == frame {
		a.Execute()

		// Service the events of a new line's first cycle (the hsync)
		// without running that cycle
		if ag.Pos.H == 0 && ag.Sched.NextTrigger <= ag.Clock {
			a.executeUntil(ag.Clock)
		}
	}
}

// SignalStop makes Run return at the next frame boundary.
func (a *Amiga) SignalStop() {
	atomic.StoreInt32(&a.syncThread, 1)
}

// Run emulates frames until SignalStop is called.
func (a *Amiga) Run() {
	for atomic.LoadInt32(&a.syncThread) == 0 {
		a.ExecuteFrame()
	}
	atomic.StoreInt32(&a.syncThread, 0)
}

// executeUntil drains all events that are due at the given cycle.
// Slots are serviced in slot order; the SEC and TER aggregators forward
// into the secondary and tertiary tiers.
func (a *Amiga) executeUntil(cycle int64) {

	ag := a.Agnus
	s := ag.Sched

	if s.IsDue(SlotREG, cycle) {
		ag.serviceREGEvent(cycle)
	}
	if s.IsDue(SlotCIAA, cycle) {
		a.serviceCIAEvent(SlotCIAA, a.CIAA)
	}
	if s.IsDue(SlotCIAB, cycle) {
		a.serviceCIAEvent(SlotCIAB, a.CIAB)
	}
	if s.IsDue(SlotBPL, cycle) {
		a.serviceBPLEvent(s.ID[SlotBPL])
	}
	if s.IsDue(SlotDAS, cycle) {
		a.serviceDASEvent(s.ID[SlotDAS])
	}
	if s.IsDue(SlotCOP, cycle) {
		a.Copper.serviceEvent(s.ID[SlotCOP])
	}
	if s.IsDue(SlotBLT, cycle) {
		a.Blitter.serviceEvent(s.ID[SlotBLT])
	}
	if s.IsDue(SlotRAS, cycle) {
		a.serviceRASEvent()
	}
	if s.IsDue(SlotSEC, cycle) {
		a.executeSecondaryUntil(cycle)
	}

	// Recompute the primary trigger cache
	next := s.Trigger[SlotREG]
	for slot := SlotCIAA; slot <= SlotSEC; slot++ {
		if s.Trigger[slot] < next {
			next = s.Trigger[slot]
		}
	}
	s.NextTrigger = next
}

func (a *Amiga) executeSecondaryUntil(cycle int64) {

	s := a.Agnus.Sched

	if s.IsDue(SlotIRQ, cycle) {
		a.Paula.checkInterrupt()
		s.Cancel(SlotIRQ)
		s.ScheduleAbs(SlotIRQ, never, IrqCheck)
	}
	if s.IsDue(SlotVBL, cycle) {
		a.serviceVBLEvent(s.ID[SlotVBL])
	}
	if s.IsDue(SlotDSK, cycle) {
		a.serviceDSKEvent()
	}
	if s.IsDue(SlotTER, cycle) {
		a.executeTertiaryUntil(cycle)
	}

	// Recompute the secondary trigger cache
	next := s.Trigger[SlotIRQ]
	for slot := SlotVBL; slot <= SlotTER; slot++ {
		if s.Trigger[slot] < next {
			next = s.Trigger[slot]
		}
	}
	s.Trigger[SlotSEC] = next
}

func (a *Amiga) executeTertiaryUntil(cycle int64) {

	s := a.Agnus.Sched

	for i := 0; i < 4; i++ {
		if s.IsDue(SlotDC0+EventSlot(i), cycle) {
			a.Df[i].ServiceDiskChangeEvent()
		}
	}
	for i := 0; i < 4; i++ {
		if s.IsDue(SlotHD0+EventSlot(i), cycle) {
			a.serviceHdrEvent(SlotHD0 + EventSlot(i))
		}
	}
	if s.IsDue(SlotINS, cycle) {
		a.Debugger.serviceInspectionEvent()
	}

	// Recompute the tertiary trigger cache
	next := s.Trigger[SlotDC0]
	for slot := SlotDC1; slot < SlotCount; slot++ {
		if s.Trigger[slot] < next {
			next = s.Trigger[slot]
		}
	}
	s.Trigger[SlotTER] = next
}

// serviceCIAEvent advances a CIA by one E clock cycle.
func (a *Amiga) serviceCIAEvent(slot EventSlot, cia *CIA) {
	cia.executeOneCycle()
	a.Agnus.Sched.ScheduleInc(slot, CIACycles, CIAExecute)
}

// serviceBPLEvent performs the bitplane access encoded in the event id.
func (a *Amiga) serviceBPLEvent(id EventID) {

	ag := a.Agnus

	base := id &^ DrawBoth

	switch base {

	case EventNone:
		// Draw-only event; the shift registers are kicked by the video
		// sink, which is outside the chipset core

	case BplEOL:
		return

	case BplL1, BplL2, BplL3, BplL4, BplL5, BplL6:
		plane := int(base/4) - 1
		ag.DoBitplaneDMARead(plane)

	case BplL1Mod, BplL2Mod, BplL3Mod, BplL4Mod, BplL5Mod, BplL6Mod:
		plane := int(base/4) - 7
		ag.DoBitplaneDMARead(plane)
		ag.addBplMod(plane)

	case BplH1, BplH2, BplH3, BplH4:
		plane := int(base/4) - 13
		ag.DoBitplaneDMARead(plane)

	case BplH1Mod, BplH2Mod, BplH3Mod, BplH4Mod:
		plane := int(base/4) - 17
		ag.DoBitplaneDMARead(plane)
		ag.addBplMod(plane)

	default:
		panic("unhandled bitplane event")
	}

	ag.scheduleNextBplEvent(int(ag.Pos.H))
}

// addBplMod applies the modulo register at the end of a fetch row. The
// even numbered planes BPL2, BPL4 and BPL6 (odd zero-based indices) use
// BPL2MOD.
func (ag *Agnus) addBplMod(plane int) {
	if plane&1 != 0 {
		ag.BplPT[plane] = uint32(int64(ag.BplPT[plane]) + int64(ag.BPL2MOD))
	} else {
		ag.BplPT[plane] = uint32(int64(ag.BplPT[plane]) + int64(ag.BPL1MOD))
	}
}

// serviceDASEvent performs the disk, audio or sprite access encoded in
// the event id.
func (a *Amiga) serviceDASEvent(id EventID) {

	ag := a.Agnus

	switch id {

	case DasRefresh:
		// Four memory refresh slots per line
		ag.BusOwner[0x01] = BusRefresh
		ag.BusOwner[0x03] = BusRefresh
		ag.BusOwner[0x05] = BusRefresh
		ag.BusOwner[0xE2] = BusRefresh
		ag.Usage[BusRefresh] += 4

	case DasD0, DasD1, DasD2:
		a.Paula.serviceDiskEvent()

	case DasA0, DasA1, DasA2, DasA3:
		a.Paula.serviceAudioEvent(int(id - DasA0))

	case DasS0_1, DasS0_2, DasS1_1, DasS1_2, DasS2_1, DasS2_2, DasS3_1, DasS3_2,
		DasS4_1, DasS4_2, DasS5_1, DasS5_2, DasS6_1, DasS6_2, DasS7_1, DasS7_2:
		channel := int(id-DasS0_1) / 2
		ag.DoSpriteDMARead(channel)

	case DasSDMA:
		// Sprite DMA arming slot; the sprite sequencer is part of the
		// video sink and only the bus usage is modelled here

	case DasTick:
		// The CIA B TOD counter counts vertical sync pulses
		if ag.Pos.V == 0 {
			a.CIAB.IncrementTOD()
		}

	default:
		panic("unhandled das event")
	}

	ag.scheduleNextDasEvent(int(ag.Pos.H))
}

// serviceRASEvent wraps the horizontal counter and lets the hsync
// handler run at the beginning of the next DMA cycle.
func (a *Amiga) serviceRASEvent() {

	ag := a.Agnus

	ag.recordRegisterChange(1, regSTRHOR, 0, 0)

	// Reset the horizontal counter (-1 to compensate for the increment
	// to come)
	ag.Pos.H = -1

	ag.Sched.RescheduleAbs(SlotRAS, ag.Clock+beam.DMACycles(HPosCnt))
}

// serviceVBLEvent handles the vertical blank strobes.
func (a *Amiga) serviceVBLEvent(id EventID) {

	switch id {

	case VblStrobe0:
		a.Paula.RaiseIRQ(IrqVERTB)
	case VblStrobe1, VblStrobe2:
	}

	a.Agnus.Sched.Cancel(SlotVBL)
}

// serviceDSKEvent keeps idle drives spinning so that index pulses arrive
// even while no disk DMA is running.
func (a *Amiga) serviceDSKEvent() {

	for _, d := range a.Df {
		if d.motor && d.IsSelected() && a.Paula.State() == DriveDMAOff {
			d.rotate()
		}
	}

	a.Agnus.Sched.ScheduleInc(SlotDSK, USec(16), DskRotate)
}

// serviceHdrEvent returns a hard drive to its idle state.
func (a *Amiga) serviceHdrEvent(slot EventSlot) {
	a.Queue.Put(msg.Message{Type: msg.HdrIdle, Drive: int(slot - SlotHD0)})
	a.Agnus.Sched.Cancel(slot)
}

// hsyncHandler performs the end-of-line bookkeeping. It runs at the
// beginning of the first DMA cycle of the new line.
func (a *Amiga) hsyncHandler() {

	ag := a.Agnus
	pos := &ag.Pos

	// Advance the beam to the next line
	pos.HLatched = pos.HCnt() - 1
	pos.V++
	if pos.V > pos.VMax() {
		a.vsyncHandler()
	}
	if pos.LOLToggle {
		pos.LOL = !pos.LOL
	}

	// Latch the line-initial register values
	ag.dmaconInitial = ag.DMACON
	ag.bplcon0Initial = ag.BPLCON0
	ag.Seq.DDFInitial = ag.Seq.DDF

	// Update the vertical window flipflop
	ag.bplDmaLine = ag.inBplDmaLine(ag.DMACON, ag.BPLCON0)
	ag.Seq.DDFInitial.FF1 = ag.bplDmaLine
	ag.Seq.DDF = ag.Seq.DDFInitial

	// Rebuild the event tables for the new line
	ag.Seq.RecomputeOnHsync = false
	ag.Seq.RecordSignals(ag.bplcon0Initial)
	ag.Seq.ComputeBplEvents(ComputeBplEventsInput{
		BplCon0:    ag.bplcon0Initial,
		ScrollOdd:  ag.scrollOdd,
		ScrollEven: ag.scrollEven,
		BMapEn:     ag.dmaconInitial&(DMAEN|BPLEN) == DMAEN|BPLEN,
	})

	// Start with a clean bus allocation table
	ag.clearBusBookkeeping()

	ag.scheduleFirstBplEvent()
	ag.scheduleFirstDasEvent()
}

// vsyncHandler performs the end-of-frame bookkeeping.
func (a *Amiga) vsyncHandler() {

	ag := a.Agnus
	pos := &ag.Pos

	pos.VLatched = pos.V
	pos.V = 0
	pos.Frame++
	if pos.LOFToggle {
		pos.LOF = !pos.LOF
	}

	// The CIA A TOD counter counts power supply ticks, once per frame
	a.CIAA.IncrementTOD()

	// Restart the Copper and raise the vertical blank interrupt
	a.Copper.vsyncHandler()
	ag.ScheduleRel(SlotVBL, beam.DMACycles(1), VblStrobe0)
}

// CPURead16 performs a chip memory read on behalf of the external CPU,
// blocking until a free bus cycle is available.
func (a *Amiga) CPURead16(addr uint32) uint16 {
	a.Agnus.ExecuteUntilBusIsFree()
	return a.Mem.Peek16(addr)
}

// CPUWrite16 performs a chip memory write on behalf of the external CPU.
func (a *Amiga) CPUWrite16(addr uint32, value uint16) {
	a.Agnus.ExecuteUntilBusIsFree()
	a.Mem.Poke16(addr, value)
}

// CPUReadCIA performs a CIA read, synchronized to the E clock.
func (a *Amiga) CPUReadCIA(cia *CIA) uint8 {
	a.Agnus.ExecuteUntilBusIsFreeForCIA()
	return cia.PeekPRA()
}

// CPUWriteCIA performs a CIA port write, synchronized to the E clock.
func (a *Amiga) CPUWriteCIA(cia *CIA, value uint8) {
	a.Agnus.ExecuteUntilBusIsFreeForCIA()
	cia.PokePRB(value)
}
