package chipset

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

// Horizontal table size. The last table entry always carries the
// end-of-line event.
const (
	HPosCnt = 227
	HPosMax = 226
)

// DMACON bits
const (
	AUD0EN uint16 = 1 << 0
	AUD1EN uint16 = 1 << 1
	AUD2EN uint16 = 1 << 2
	AUD3EN uint16 = 1 << 3
	DSKEN  uint16 = 1 << 4
	SPREN  uint16 = 1 << 5
	BLTEN  uint16 = 1 << 6
	COPEN  uint16 = 1 << 7
	BPLEN  uint16 = 1 << 8
	DMAEN  uint16 = 1 << 9
	BLTPRI uint16 = 1 << 10
)

// Display logic signals recorded per scanline. SigCon carries the upper
// nibble of BPLCON0 in its low four bits.
const (
	SigNone     uint32 = 0
	SigCon      uint32 = 1 << 4
	SigBMAPClr  uint32 = 1 << 5
	SigBMAPSet  uint32 = 1 << 6
	SigVFlopSet uint32 = 1 << 7
	SigVFlopClr uint32 = 1 << 8
	SigSHW      uint32 = 1 << 9
	SigRHW      uint32 = 1 << 10
	SigBPHStart uint32 = 1 << 11
	SigBPHStop  uint32 = 1 << 12
)

// SigRecorder keeps the signal changes of the current scanline sorted by
// trigger cycle. Signals sharing a trigger cycle are merged.
type SigRecorder struct {
	Keys     []int64
	Elements []uint32
	Modified bool
}

// Clear empties the recorder.
func (sr *SigRecorder) Clear() {
	sr.Keys = sr.Keys[:0]
	sr.Elements = sr.Elements[:0]
	sr.Modified = false
}

// Insert records a signal change at the given trigger cycle.
func (sr *SigRecorder) Insert(trigger int64, signal uint32) {

	for i := 0; i < len(sr.Keys); i++ {
		if sr.Keys[i] == trigger {
			sr.Elements[i] |= signal
			sr.Modified = true
			return
		}
		if sr.Keys[i] > trigger {
			sr.Keys = append(sr.Keys, 0)
			copy(sr.Keys[i+1:], sr.Keys[i:])
			sr.Keys[i] = trigger

			sr.Elements = append(sr.Elements, 0)
			copy(sr.Elements[i+1:], sr.Elements[i:])
			sr.Elements[i] = signal

			sr.Modified = true
			return
		}
	}

	sr.Keys = append(sr.Keys, trigger)
	sr.Elements = append(sr.Elements, signal)
	sr.Modified = true
}

// Count returns the number of recorded signal changes.
func (sr *SigRecorder) Count() int { return len(sr.Keys) }

// DDFState mirrors the display data fetch circuit. ff1 is the vertical
// window flipflop; ff2 opens at the left hardware stop (SHW); ff3 runs the
// fetch units; ff4 arms the trailing fetch unit; ff5 closes it.
type DDFState struct {
	FF1 bool
	FF2 bool
	FF3 bool
	FF4 bool
	FF5 bool
}

// Sequencer computes, per scanline, the bitplane event table and the
// disk/audio/sprite event table consumed by the bus arbiter.
type Sequencer struct {
	// Event tables and their jump tables
	BplEvent     [HPosCnt]EventID
	NextBplEvent [HPosCnt]int
	DasEvent     [HPosCnt]EventID
	NextDasEvent [HPosCnt]int

	// Signal recorder for the current line
	Sig SigRecorder

	// Current and start-of-line DDF state
	DDF        DDFState
	DDFInitial DDFState

	// Display registers owned by the sequencer
	DDFSTRT int64
	DDFSTOP int64
	DIWSTRT uint16
	DIWSTOP uint16

	// Flag raised when the table must be recomputed in the next line
	RecomputeOnHsync bool
}

// the 64 precomputed DAS layouts, indexed by the low six DMACON bits
var dasDMA [64][HPosCnt]EventID

func init() {

	for enable := 0; enable < 64; enable++ {

		p := &dasDMA[enable]
		con := uint16(enable)

		p[0x01] = DasRefresh

		if con&DSKEN != 0 {
			p[0x07] = DasD0
			p[0x09] = DasD1
			p[0x0B] = DasD2
		}
		if con&AUD0EN != 0 {
			p[0x0D] = DasA0
		}
		if con&AUD1EN != 0 {
			p[0x0F] = DasA1
		}
		if con&AUD2EN != 0 {
			p[0x11] = DasA2
		}
		if con&AUD3EN != 0 {
			p[0x13] = DasA3
		}
		if con&SPREN != 0 {
			p[0x15] = DasS0_1
			p[0x17] = DasS0_2
			p[0x19] = DasS1_1
			p[0x1B] = DasS1_2
			p[0x1D] = DasS2_1
			p[0x1F] = DasS2_2
			p[0x21] = DasS3_1
			p[0x23] = DasS3_2
			p[0x25] = DasS4_1
			p[0x27] = DasS4_2
			p[0x29] = DasS5_1
			p[0x2B] = DasS5_2
			p[0x2D] = DasS6_1
			p[0x2F] = DasS6_2
			p[0x31] = DasS7_1
			p[0x33] = DasS7_2
		}

		// Sprite DMA arming and the CIA TOD tick are always present
		p[0x66] = DasTick
		p[0xDF] = DasSDMA
	}
}

// NewSequencer returns a sequencer with empty tables.
func NewSequencer() *Sequencer {
	s := &Sequencer{}
	s.ClearBplEvents()
	s.UpdateDasEvents(0)
	return s
}

// ClearBplEvents empties the bitplane table, keeping the EOL marker.
func (s *Sequencer) ClearBplEvents() {
	for i := 0; i < HPosMax; i++ {
		s.BplEvent[i] = EventNone
	}
	s.BplEvent[HPosMax] = BplEOL
	s.UpdateBplJumpTable()
}

// UpdateDasEvents overwrites the variable part of the DAS table with the
// layout matching the given DMACON enable bits.
func (s *Sequencer) UpdateDasEvents(enables uint16) {
	row := &dasDMA[enables&0x3F]
	for i := 0; i < 0x38; i++ {
		s.DasEvent[i] = row[i]
	}
	s.DasEvent[0x66] = DasTick
	s.DasEvent[0xDF] = DasSDMA
	s.UpdateDasJumpTable()
}

// UpdateBplJumpTable rebuilds the bitplane jump table. NextBplEvent[i] is
// the least j > i whose entry is non-empty, or HPosMax.
func (s *Sequencer) UpdateBplJumpTable() {
	next := HPosMax
	for i := HPosMax; i >= 0; i-- {
		s.NextBplEvent[i] = next
		if s.BplEvent[i] != EventNone {
			next = i
		}
	}
}

// UpdateDasJumpTable rebuilds the DAS jump table.
func (s *Sequencer) UpdateDasJumpTable() {
	next := 0
	for i := HPosMax; i >= 0; i-- {
		s.NextDasEvent[i] = next
		if s.DasEvent[i] != EventNone {
			next = i
		}
	}
}

// computeFetchUnit lays out one 8-slot fetch unit for the given BPLCON0
// upper nibble. The second row is used inside the trailing fetch unit
// where the modulo values are added.
func computeFetchUnit(con uint8, id *[2][8]EventID) {

	*id = [2][8]EventID{}

	switch con {

	case 0x7, 0x6: // L6
		id[0][1], id[1][1] = BplL4, BplL4Mod
		id[0][2], id[1][2] = BplL6, BplL6Mod
		id[0][3], id[1][3] = BplL2, BplL2Mod
		id[0][5], id[1][5] = BplL3, BplL3Mod
		id[0][6], id[1][6] = BplL5, BplL5Mod
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0x5: // L5
		id[0][1], id[1][1] = BplL4, BplL4Mod
		id[0][3], id[1][3] = BplL2, BplL2Mod
		id[0][5], id[1][5] = BplL3, BplL3Mod
		id[0][6], id[1][6] = BplL5, BplL5Mod
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0x4: // L4
		id[0][1], id[1][1] = BplL4, BplL4Mod
		id[0][3], id[1][3] = BplL2, BplL2Mod
		id[0][5], id[1][5] = BplL3, BplL3Mod
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0x3: // L3
		id[0][3], id[1][3] = BplL2, BplL2Mod
		id[0][5], id[1][5] = BplL3, BplL3Mod
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0x2: // L2
		id[0][3], id[1][3] = BplL2, BplL2Mod
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0x1: // L1
		id[0][7], id[1][7] = BplL1, BplL1Mod

	case 0xC: // H4
		id[0][0], id[1][0] = BplH4, BplH4
		id[0][1], id[1][1] = BplH2, BplH2
		id[0][2], id[1][2] = BplH3, BplH3
		id[0][3], id[1][3] = BplH1, BplH1
		id[0][4], id[1][4] = BplH4, BplH4Mod
		id[0][5], id[1][5] = BplH2, BplH2Mod
		id[0][6], id[1][6] = BplH3, BplH3Mod
		id[0][7], id[1][7] = BplH1, BplH1Mod

	case 0xB: // H3
		id[0][1], id[1][1] = BplH2, BplH2
		id[0][2], id[1][2] = BplH3, BplH3
		id[0][3], id[1][3] = BplH1, BplH1
		id[0][5], id[1][5] = BplH2, BplH2Mod
		id[0][6], id[1][6] = BplH3, BplH3Mod
		id[0][7], id[1][7] = BplH1, BplH1Mod

	case 0xA: // H2
		id[0][1], id[1][1] = BplH2, BplH2
		id[0][3], id[1][3] = BplH1, BplH1
		id[0][5], id[1][5] = BplH2, BplH2Mod
		id[0][7], id[1][7] = BplH1, BplH1Mod

	case 0x9: // H1
		id[0][3], id[1][3] = BplH1, BplH1
		id[0][7], id[1][7] = BplH1, BplH1Mod

	case 0x0, 0x8, 0xD, 0xE, 0xF:
		// no fetch unit

	default:
		panic("invalid fetch unit selector")
	}
}

// ComputeBplEventsInput bundles the latched register values the table
// computation depends on.
type ComputeBplEventsInput struct {
	BplCon0    uint16
	ScrollOdd  int64
	ScrollEven int64
	BMapEn     bool // DMAEN && BPLEN at the start of the line
}

// RecordSignals fills the recorder with the default signal set of a line.
func (s *Sequencer) RecordSignals(bplcon0 uint16) {
	s.Sig.Clear()
	s.Sig.Insert(0, SigCon|uint32(bplcon0>>12))
	s.Sig.Insert(0x18, SigSHW)
	s.Sig.Insert(s.DDFSTRT, SigBPHStart)
	s.Sig.Insert(s.DDFSTOP, SigBPHStop)
	s.Sig.Insert(0xD8, SigRHW)
	s.Sig.Insert(HPosCnt, SigNone)
}

// ComputeBplEvents replays the recorded signals and fills the bitplane
// event table for the current line.
func (s *Sequencer) ComputeBplEvents(in ComputeBplEventsInput) {

	state := s.DDFInitial
	bmapen := in.BMapEn

	var fetch [2][8]EventID
	computeFetchUnit(uint8(in.BplCon0>>12), &fetch)

	mask := int64(0b111)
	if in.BplCon0&0x8000 != 0 {
		mask = 0b11
	}

	cnt := 0
	cycle := int64(0)

	for i := 0; i < s.Sig.Count(); i++ {

		signal := s.Sig.Elements[i]
		trigger := s.Sig.Keys[i]

		if trigger > HPosCnt {
			break
		}

		// Emulate the display logic up to the next signal change
		for j := cycle; j < trigger; j++ {

			var id EventID

			if cnt == 0 && state.FF5 {
				state.FF2 = false
				state.FF3 = false
				state.FF5 = false
			}
			if cnt == 0 && state.FF4 {
				state.FF5 = true
				state.FF4 = false
			}
			if state.FF3 {
				row := 0
				if state.FF5 {
					row = 1
				}
				id = fetch[row][cnt]
				cnt = (cnt + 1) & 7
			} else {
				id = EventNone
				cnt = 0
			}

			// Superimpose the drawing flags
			if j&mask == in.ScrollOdd&mask {
				id |= DrawOdd
			}
			if j&mask == in.ScrollEven&mask {
				id |= DrawEven
			}

			s.BplEvent[j] = id
		}

		// Emulate the signal change
		if signal&SigCon != 0 {
			computeFetchUnit(uint8(signal&0xF), &fetch)
			mask = 0b111
			if signal&0x8 != 0 {
				mask = 0b11
			}
		}
		if signal&SigBMAPClr != 0 {
			bmapen = false
			state.FF3 = false
			cnt = 0
		}
		if signal&SigBMAPSet != 0 {
			bmapen = true
		}
		if signal&SigVFlopSet != 0 {
			state.FF1 = true
		}
		if signal&SigVFlopClr != 0 {
			state.FF1 = false
			state.FF3 = false
			cnt = 0
		}
		if signal&SigSHW != 0 {
			state.FF2 = true
		}
		if signal&SigRHW != 0 {
			if state.FF3 {
				state.FF4 = true
			}
		}
		if signal&(SigBPHStart|SigBPHStop) != 0 {

			if signal&SigBPHStart != 0 && signal&SigBPHStop != 0 {
				// OCS: BPHSTART wins while the fetch unit is running
				if state.FF3 {
					signal &^= SigBPHStop
				} else {
					signal &^= SigBPHStart
				}
			}
			if signal&SigBPHStart != 0 {
				if state.FF2 {
					state.FF3 = true
				}
				if !state.FF1 {
					state.FF3 = false
				}
				if !bmapen {
					state.FF3 = false
				}
			}
			if signal&SigBPHStop != 0 {
				if state.FF3 {
					state.FF4 = true
				}
			}
		}

		cycle = trigger
	}

	// Add the end of line event
	s.BplEvent[HPosMax] = BplEOL

	s.UpdateBplJumpTable()

	// Write back the new DDF state
	s.DDF = state

	// The table of the next line differs if the state machine did not
	// return to its start-of-line state
	if state != s.DDFInitial {
		s.RecomputeOnHsync = true
	}
}

// SetDDFSTRT latches a new data fetch start position.
func (s *Sequencer) SetDDFSTRT(v uint16) {
	s.DDFSTRT = int64(v & 0xFC)
}

// SetDDFSTOP latches a new data fetch stop position.
func (s *Sequencer) SetDDFSTOP(v uint16) {
	s.DDFSTOP = int64(v & 0xFC)
}

// SetDIWSTRT latches the display window start position.
func (s *Sequencer) SetDIWSTRT(v uint16) { s.DIWSTRT = v }

// SetDIWSTOP latches the display window stop position.
func (s *Sequencer) SetDIWSTOP(v uint16) { s.DIWSTOP = v }

// VStrt returns the first display window line.
func (s *Sequencer) VStrt() int64 { return int64(s.DIWSTRT >> 8) }

// VStop returns the first line below the display window. Values without
// bit 7 are extended beyond line 255.
func (s *Sequencer) VStop() int64 {
	v := int64(s.DIWSTOP >> 8)
	if v&0x80 == 0 {
		v |= 0x100
	}
	return v
}
