package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDasTableLayouts(t *testing.T) {

	// No enables: only refresh, tick and sprite arming remain
	empty := dasDMA[0]
	assert.Equal(t, DasRefresh, empty[0x01])
	assert.Equal(t, EventNone, empty[0x07])
	assert.Equal(t, DasTick, empty[0x66])
	assert.Equal(t, DasSDMA, empty[0xDF])

	// Disk DMA occupies the three disk slots
	disk := dasDMA[DSKEN]
	assert.Equal(t, DasD0, disk[0x07])
	assert.Equal(t, DasD1, disk[0x09])
	assert.Equal(t, DasD2, disk[0x0B])

	// Audio channels have one fixed slot each
	audio := dasDMA[AUD0EN|AUD3EN]
	assert.Equal(t, DasA0, audio[0x0D])
	assert.Equal(t, EventNone, audio[0x0F])
	assert.Equal(t, DasA3, audio[0x13])

	// Sprites occupy sixteen slots
	spr := dasDMA[SPREN]
	assert.Equal(t, DasS0_1, spr[0x15])
	assert.Equal(t, DasS7_2, spr[0x33])

	// Equal DMACON values yield identical layouts
	assert.Equal(t, dasDMA[DSKEN|AUD1EN], dasDMA[DSKEN|AUD1EN])
}

func TestJumpTableInvariant(t *testing.T) {

	s := NewSequencer()
	s.BplEvent[10] = BplL1
	s.BplEvent[50] = BplL2
	s.UpdateBplJumpTable()

	// nextEvent[i] is the least j > i with a non-empty entry
	assert.Equal(t, 10, s.NextBplEvent[0])
	assert.Equal(t, 10, s.NextBplEvent[9])
	assert.Equal(t, 50, s.NextBplEvent[10])
	assert.Equal(t, 50, s.NextBplEvent[49])
	assert.Equal(t, HPosMax, s.NextBplEvent[50])
}

func TestFetchUnitLayouts(t *testing.T) {

	var id [2][8]EventID

	// Four lores planes fetch in slots 1, 3, 5, 7
	computeFetchUnit(0x4, &id)
	assert.Equal(t, BplL4, id[0][1])
	assert.Equal(t, BplL2, id[0][3])
	assert.Equal(t, BplL3, id[0][5])
	assert.Equal(t, BplL1, id[0][7])
	assert.Equal(t, EventNone, id[0][0])

	// The trailing unit applies the modulo values
	assert.Equal(t, BplL1Mod, id[1][7])

	// Hires planes fetch twice per unit
	computeFetchUnit(0xC, &id)
	assert.Equal(t, BplH4, id[0][0])
	assert.Equal(t, BplH4, id[0][4])
	assert.Equal(t, BplH1, id[0][3])
	assert.Equal(t, BplH1Mod, id[1][7])

	// No planes, no fetches
	computeFetchUnit(0x0, &id)
	assert.Equal(t, [2][8]EventID{}, id)
}

func TestComputeBplEventsLaysDownFetchUnits(t *testing.T) {

	s := NewSequencer()
	s.SetDDFSTRT(0x38)
	s.SetDDFSTOP(0xD0)
	s.DDFInitial = DDFState{FF1: true}

	s.RecordSignals(0x4200) // 4 lores planes
	s.ComputeBplEvents(ComputeBplEventsInput{
		BplCon0: 0x4200,
		BMapEn:  true,
	})

	// No fetches before DDFSTRT
	for i := 0; i < 0x38; i++ {
		assert.Equal(t, EventNone, s.BplEvent[i]&^DrawBoth, "cycle %d", i)
	}

	// The first fetch unit starts at DDFSTRT; slot 1 carries plane 4
	assert.Equal(t, BplL4, s.BplEvent[0x39]&^DrawBoth)
	assert.Equal(t, BplL2, s.BplEvent[0x3B]&^DrawBoth)
	assert.Equal(t, BplL1, s.BplEvent[0x3F]&^DrawBoth)

	// The table ends with the end-of-line marker
	assert.Equal(t, BplEOL, s.BplEvent[HPosMax]&^DrawBoth)
}

func TestComputeBplEventsRequiresSHW(t *testing.T) {

	s := NewSequencer()
	s.SetDDFSTRT(0x10) // before the left hardware stop at 0x18
	s.SetDDFSTOP(0xD0)
	s.DDFInitial = DDFState{FF1: true}

	s.RecordSignals(0x4200)
	s.ComputeBplEvents(ComputeBplEventsInput{
		BplCon0: 0x4200,
		BMapEn:  true,
	})

	// DDFSTRT fired before SHW, so no fetch unit starts at DDFSTRT
	for i := 0; i < 0x18; i++ {
		assert.Equal(t, EventNone, s.BplEvent[i]&^DrawBoth, "cycle %d", i)
	}
}

func TestDrawingFlagsFollowScrollValues(t *testing.T) {

	s := NewSequencer()
	s.SetDDFSTRT(0x38)
	s.SetDDFSTOP(0xD0)
	s.DDFInitial = DDFState{FF1: true}

	s.RecordSignals(0x1200)
	s.ComputeBplEvents(ComputeBplEventsInput{
		BplCon0:    0x1200, // one lores plane
		ScrollOdd:  3,
		ScrollEven: 5,
		BMapEn:     true,
	})

	// Odd drawing flags appear at positions matching scrollOdd mod 8
	for i := 0x40; i < 0x60; i++ {
		odd := s.BplEvent[i]&DrawOdd != 0
		assert.Equal(t, int64(i)&7 == 3, odd, "cycle %d", i)
	}
}

func TestSigRecorderMergesAndSorts(t *testing.T) {

	sr := SigRecorder{}
	sr.Insert(10, SigSHW)
	sr.Insert(5, SigBPHStart)
	sr.Insert(10, SigRHW)

	assert.Equal(t, 2, sr.Count())
	assert.Equal(t, int64(5), sr.Keys[0])
	assert.Equal(t, SigSHW|SigRHW, sr.Elements[1])
}

func TestBplTableMatchesFetchUnitReference(t *testing.T) {

	// For every BPLCON0 nibble the laid-down table must replay the
	// fetch unit pattern inside the DDF window
	for con := uint16(0); con < 16; con++ {

		s := NewSequencer()
		s.SetDDFSTRT(0x38)
		s.SetDDFSTOP(0xD0)
		s.DDFInitial = DDFState{FF1: true}

		bplcon0 := con << 12
		s.RecordSignals(bplcon0)
		s.ComputeBplEvents(ComputeBplEventsInput{BplCon0: bplcon0, BMapEn: true})

		var ref [2][8]EventID
		computeFetchUnit(uint8(con), &ref)

		empty := ref == [2][8]EventID{}
		for i := 0x38; i < 0x38+16; i++ {
			expected := ref[0][(i-0x38)&7]
			if empty {
				expected = EventNone
			}
			assert.Equal(t, expected, s.BplEvent[i]&^DrawBoth,
				"con %x cycle %d", con, i)
		}
	}
}
