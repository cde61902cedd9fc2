package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// CIACycles is the length of one E clock cycle in color clocks. The E
// clock runs at one tenth of the DMA clock, phase locked six low, four
// high.
const CIACycles = 40

// CIA interrupt control bits
const (
	ciaICRTimerA = 1 << 0
	ciaICRTimerB = 1 << 1
	ciaICRAlarm  = 1 << 2
	ciaICRSerial = 1 << 3
	ciaICRFlag   = 1 << 4
	ciaICRSet    = 1 << 7
)

// CIA models one of the two 8520 peripheral chips. Only the parts the
// chipset core interacts with are emulated: the timers, the TOD counter
// and the peripheral ports wired to the drive control lines.
type CIA struct {
	amiga *Amiga
	nr    int // 0 = CIAA, 1 = CIAB

	PRA  uint8
	PRB  uint8
	DDRA uint8
	DDRB uint8

	// Timers
	TimerA     uint16
	LatchA     uint16
	RunningA   bool
	OneShotA   bool
	TimerB     uint16
	LatchB     uint16
	RunningB   bool
	OneShotB   bool

	// Time-of-day counter (24 bit) and its alarm
	TOD      uint32
	Alarm    uint32
	TODLatch uint32
	Frozen   bool

	// Interrupt control
	ICR     uint8
	ICRMask uint8

	// Counts serviced E clock cycles
	Cycles int64
}

func newCIA(amiga *Amiga, nr int) *CIA {
	return &CIA{amiga: amiga, nr: nr, LatchA: 0xFFFF, LatchB: 0xFFFF, PRA: 0xFF, PRB: 0xFF}
}

// executeOneCycle advances the chip by one E clock cycle.
func (c *CIA) executeOneCycle() {

	c.Cycles++

	if c.RunningA {
		if c.TimerA == 0 {
			c.TimerA = c.LatchA
			c.triggerICR(ciaICRTimerA)
			if c.OneShotA {
				c.RunningA = false
			}
		} else {
			c.TimerA--
		}
	}

	if c.RunningB {
		if c.TimerB == 0 {
			c.TimerB = c.LatchB
			c.triggerICR(ciaICRTimerB)
			if c.OneShotB {
				c.RunningB = false
			}
		} else {
			c.TimerB--
		}
	}
}

// IncrementTOD advances the time-of-day counter and checks the alarm.
func (c *CIA) IncrementTOD() {

	c.TOD = (c.TOD + 1) & 0xFFFFFF

	if c.TOD == c.Alarm {
		c.triggerICR(ciaICRAlarm)
	}
}

// EmulateFallingEdgeOnFlagPin triggers the FLAG interrupt. The disk
// index pulse of the selected drive is wired to the CIA B flag pin.
func (c *CIA) EmulateFallingEdgeOnFlagPin() {
	c.triggerICR(ciaICRFlag)
}

func (c *CIA) triggerICR(bit uint8) {

	c.ICR |= bit

	if c.ICRMask&bit != 0 {
		c.ICR |= ciaICRSet
		if c.nr == 0 {
			c.amiga.Paula.RaiseIRQ(IrqPORTS)
		} else {
			c.amiga.Paula.RaiseIRQ(IrqEXTER)
		}
	}
}

// PokePRB writes the peripheral port B. On CIA B the port carries the
// drive control lines.
func (c *CIA) PokePRB(value uint8) {

	old := c.PRB
	c.PRB = value

	if c.nr == 1 {
		for _, drive := range c.amiga.Df {
			drive.PRBDidChange(old, value)
		}
	}
}

// PeekPRA reads the peripheral port A. On CIA A the upper bits return
// the status flags of the selected drive.
func (c *CIA) PeekPRA() uint8 {

	if c.nr == 0 {
		result := uint8(0xFF)
		for _, drive := range c.amiga.Df {
			result &= drive.DriveStatusFlags()
		}
		return result
	}

	return c.PRA
}
