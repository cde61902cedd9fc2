package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// Interrupt sources, by INTREQ bit position.
type IrqSource int

const (
	IrqTBE IrqSource = iota
	IrqDSKBLK
	IrqSOFT
	IrqPORTS
	IrqCOPER
	IrqVERTB
	IrqBLIT
	IrqAUD0
	IrqAUD1
	IrqAUD2
	IrqAUD3
	IrqRBF
	IrqDSKSYN
	IrqEXTER
)

// DriveDMAState enumerates the disk controller states.
type DriveDMAState int

const (
	DriveDMAOff DriveDMAState = iota
	DriveDMAWait
	DriveDMARead
	DriveDMAWrite
	DriveDMAFlush
)

// Paula hosts the interrupt controller, the audio state machines and the
// bus side of the disk controller.
type Paula struct {
	amiga *Amiga

	INTREQ uint16
	INTENA uint16

	// Audio sample latches, one per channel
	AudDat [4]uint16
	AudLen [4]uint16
	AudPer [4]uint16
	AudVol [4]uint16

	// Disk controller
	DSKLEN  uint16
	dskArm  bool
	DSKSYNC uint16

	state  DriveDMAState
	synced bool
	shift  uint32
	nbits  int
}

func newPaula(amiga *Amiga) *Paula {
	return &Paula{amiga: amiga}
}

// RaiseIRQ requests an interrupt from the given source.
func (p *Paula) RaiseIRQ(src IrqSource) {
	p.SetINTREQ(0x8000 | 1<<uint(src))
}

// SetINTREQ applies a set/clear write to INTREQ.
func (p *Paula) SetINTREQ(value uint16) {
	if value&0x8000 != 0 {
		p.INTREQ |= value & 0x7FFF
	} else {
		p.INTREQ &^= value & 0x7FFF
	}
	p.checkInterrupt()
}

// SetINTENA applies a set/clear write to INTENA.
func (p *Paula) SetINTENA(value uint16) {
	if value&0x8000 != 0 {
		p.INTENA |= value & 0x7FFF
	} else {
		p.INTENA &^= value & 0x7FFF
	}
	p.checkInterrupt()
}

// IrqPending reports whether the given source is both requested and
// enabled.
func (p *Paula) IrqPending(src IrqSource) bool {
	if p.INTENA&0x4000 == 0 {
		return false
	}
	return p.INTREQ&p.INTENA&(1<<uint(src)) != 0
}

// checkInterrupt recomputes the interrupt level presented to the CPU.
func (p *Paula) checkInterrupt() {
	p.amiga.CPUIPL = p.interruptLevel()
}

func (p *Paula) interruptLevel() int {

	if p.INTENA&0x4000 == 0 {
		return 0
	}

	mask := p.INTREQ & p.INTENA & 0x3FFF
	if mask == 0 {
		return 0
	}

	switch {
	case mask&0x2000 != 0:
		return 6
	case mask&0x1800 != 0:
		return 5
	case mask&0x0780 != 0:
		return 4
	case mask&0x0070 != 0:
		return 3
	case mask&0x0008 != 0:
		return 2
	default:
		return 1
	}
}

// PokeDSKLEN arms the disk DMA machine. Two consecutive writes with the
// DMAEN bit set are required to actually start a transfer.
func (p *Paula) PokeDSKLEN(value uint16) {

	old := p.DSKLEN
	p.DSKLEN = value

	if value&0x8000 == 0 {
		p.state = DriveDMAOff
		p.dskArm = false
		p.synced = false
		return
	}

	if old&0x8000 != 0 && p.dskArm {

		p.dskArm = false
		p.synced = false
		p.shift = 0
		p.nbits = 0

		if value&0x4000 != 0 {
			p.state = DriveDMAWrite
		} else {
			// Reads wait for the sync word if sync matching is enabled
			p.state = DriveDMARead
			if p.amiga.ADKCON&0x0400 == 0 {
				p.synced = true
			}
		}
		return
	}

	p.dskArm = true
}

// State returns the current disk controller state.
func (p *Paula) State() DriveDMAState { return p.state }

// selectedDrive returns the drive currently selected through CIA B, or
// nil if no select line is low.
func (p *Paula) selectedDrive() *FloppyDrive {
	for _, d := range p.amiga.Df {
		if d.IsSelected() {
			return d
		}
	}
	return nil
}

// serviceDiskEvent performs one disk DMA slot (one word transfer).
func (p *Paula) serviceDiskEvent() {

	if p.state == DriveDMAOff {
		return
	}
	if !p.amiga.Agnus.dskdma() {
		return
	}

	drive := p.selectedDrive()
	if drive == nil {
		return
	}

	switch p.state {

	case DriveDMARead:
		p.performDMARead(drive)

	case DriveDMAWrite:
		p.performDMAWrite(drive)

	default:
	}
}

func (p *Paula) performDMARead(drive *FloppyDrive) {

	// Search the sync word first
	if !p.synced {

		// Shift in bytes until the last 16 bits match DSKSYNC
		for i := 0; i < 2; i++ {

			b := drive.ReadByteAndRotate()
			p.shift = p.shift<<8 | uint32(b)
			p.nbits += 8

			if p.nbits >= 16 && uint16(p.shift) == p.DSKSYNC {
				p.synced = true
				p.RaiseIRQ(IrqDSKSYN)
				break
			}
		}
		if !p.synced {
			return
		}
	}

	remaining := p.DSKLEN & 0x3FFF
	if remaining == 0 {
		p.finishDMA()
		return
	}

	word := drive.ReadWordAndRotate()
	p.amiga.Agnus.DoDiskDMAWrite(word)
	p.DSKLEN--

	if p.DSKLEN&0x3FFF == 0 {
		p.finishDMA()
	}
}

func (p *Paula) performDMAWrite(drive *FloppyDrive) {

	remaining := p.DSKLEN & 0x3FFF
	if remaining == 0 {
		p.finishDMA()
		return
	}

	word := p.amiga.Agnus.DoDiskDMARead()
	drive.WriteWordAndRotate(word)
	p.DSKLEN--

	if p.DSKLEN&0x3FFF == 0 {
		p.finishDMA()
	}
}

func (p *Paula) finishDMA() {
	p.state = DriveDMAOff
	p.RaiseIRQ(IrqDSKBLK)
}

// serviceAudioEvent latches one audio sample for the given channel.
func (p *Paula) serviceAudioEvent(channel int) {

	if p.amiga.Agnus.DMACON&(DMAEN|uint16(1<<uint(channel))) != DMAEN|uint16(1<<uint(channel)) {
		return
	}

	p.AudDat[channel] = p.amiga.Agnus.DoAudioDMARead(channel)

	if p.AudLen[channel] > 1 {
		p.AudLen[channel]--
	} else {
		p.amiga.Agnus.ReloadAudPT(channel)
		p.RaiseIRQ(IrqAUD0 + IrqSource(channel))
	}
}
