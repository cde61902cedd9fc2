package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"fmt"

	"github.com/armon/circbuf"

	"github.com/retrovault/amiga/pkg/beam"
)

// Debugger keeps a trace ring of recent register pokes and offers
// scheduled inspections through the INS slot.
type Debugger struct {
	amiga *Amiga

	trace *circbuf.Buffer

	// What the next inspection event should capture
	inspectionTarget string
}

func newDebugger(amiga *Amiga) *Debugger {
	buf, _ := circbuf.NewBuffer(16 * 1024)
	return &Debugger{amiga: amiga, trace: buf}
}

// recordPoke appends a register write to the trace ring.
func (d *Debugger) recordPoke(name string, value uint16) {
	pos := d.amiga.Agnus.Pos
	fmt.Fprintf(d.trace, "(%d,%d) %s <- %04x\n", pos.V, pos.H, name, value)
}

// Trace returns the most recent trace output.
func (d *Debugger) Trace() string {
	return string(d.trace.Bytes())
}

// ScheduleInspection arms the INS slot to capture a component state dump
// after the given number of DMA cycles.
func (d *Debugger) ScheduleInspection(target string, delay int64) {
	d.inspectionTarget = target
	d.amiga.Agnus.Sched.ScheduleAbs(SlotINS,
		d.amiga.Agnus.Clock+beam.DMACycles(delay), InsInspect)
}

func (d *Debugger) serviceInspectionEvent() {

	a := d.amiga
	pos := a.Agnus.Pos

	switch d.inspectionTarget {

	case "agnus":
		fmt.Fprintf(d.trace, "agnus: clock=%d pos=(%d,%d) dmacon=%04x\n",
			a.Agnus.Clock, pos.V, pos.H, a.Agnus.DMACON)

	case "copper":
		fmt.Fprintf(d.trace, "copper: pc=%06x cop1lc=%06x cop2lc=%06x\n",
			a.Copper.COPPC, a.Copper.COP1LC, a.Copper.COP2LC)

	case "blitter":
		fmt.Fprintf(d.trace, "blitter: bltcon0=%04x bltcon1=%04x busy=%v\n",
			a.Blitter.BLTCON0, a.Blitter.BLTCON1, a.Blitter.BBUSY)

	default:
	}

	a.Agnus.Sched.Cancel(SlotINS)
}

// BusUsageString renders the bus usage counters. The counters accumulate
// over all lines emulated so far; they are not reset per line.
func (d *Debugger) BusUsageString() string {

	names := map[BusOwner]string{
		BusRefresh: "refresh",
		BusDisk:    "disk",
		BusCopper:  "copper",
		BusBlitter: "blitter",
		BusCPU:     "cpu",
	}

	out := ""
	for owner, name := range names {
		out += fmt.Sprintf("%s: %d\n", name, d.amiga.Agnus.Usage[owner])
	}
	return out
}
